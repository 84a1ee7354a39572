package record

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"sotto/audio"
)

func fakeCapture(t *testing.T, pcm []byte) *audio.FakeCapture {
	t.Helper()
	c, err := audio.NewFakeContextPCM(pcm, false).NewCapture(nil, audio.CaptureConfig{})
	if err != nil {
		t.Fatal(err)
	}
	return c.(*audio.FakeCapture)
}

func TestRecordCopiesUntilStop(t *testing.T) {
	pcm := pcmOf(3000, 8000)
	capture := fakeCapture(t, pcm)

	stop := make(chan struct{})
	go func() {
		<-capture.AudioDone()
		close(stop)
	}()

	var buf bytes.Buffer
	var levels int
	r := &Recorder{Capture: capture, OnLevel: func(float64) { levels++ }}
	st, err := r.Record(context.Background(), stop, &buf)
	if err != nil {
		t.Fatal(err)
	}

	if !bytes.HasPrefix(buf.Bytes(), pcm) {
		t.Fatal("recorded PCM does not start with the captured audio")
	}
	if st.Frames != uint64(buf.Len()/2) {
		t.Errorf("Frames = %d, wrote %d bytes", st.Frames, buf.Len())
	}
	if st.Duration < 500*time.Millisecond {
		t.Errorf("Duration = %v, want at least 500ms", st.Duration)
	}
	if st.Device != "fake" {
		t.Errorf("Device = %q", st.Device)
	}
	if st.Short() || st.AutoStopped {
		t.Errorf("stats = %+v", st)
	}
	if levels == 0 {
		t.Error("OnLevel never called")
	}
}

func TestRecordCancelled(t *testing.T) {
	capture := fakeCapture(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)

	r := &Recorder{Capture: capture}
	_, err := r.Record(ctx, make(chan struct{}), &bytes.Buffer{})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

type failingWriter struct{ err error }

func (w failingWriter) Write([]byte) (int, error) { return 0, w.err }

func TestRecordStopsOnWriteError(t *testing.T) {
	diskFull := errors.New("disk full")
	r := &Recorder{Capture: fakeCapture(t, pcmOf(100, 4000))}

	done := make(chan error, 1)
	go func() {
		_, err := r.Record(context.Background(), make(chan struct{}), failingWriter{diskFull})
		done <- err
	}()

	select {
	case err := <-done:
		if !errors.Is(err, diskFull) {
			t.Fatalf("err = %v, want %v", err, diskFull)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("recording did not stop after write error")
	}
}

func TestStatsShort(t *testing.T) {
	if !(Stats{Duration: 99 * time.Millisecond}).Short() {
		t.Error("99ms should be short")
	}
	if (Stats{Duration: MinDuration}).Short() {
		t.Error("MinDuration should not be short")
	}
}
