package host

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"sotto/audio"
	"sotto/bridge"
	"sotto/dictation"
	"sotto/transcriber"
)

func TestRegistryRegister(t *testing.T) {
	r := NewRegistry()
	noop := func(context.Context, bridge.Args) (any, error) { return nil, nil }

	if err := r.Register("a", noop); err != nil {
		t.Fatal(err)
	}
	if err := r.Register("a", noop); !errors.Is(err, ErrCommandExists) {
		t.Errorf("duplicate = %v", err)
	}
	if err := r.Register("", noop); !errors.Is(err, ErrInvalidArgs) {
		t.Errorf("empty name = %v", err)
	}
	if err := r.Register("b", nil); !errors.Is(err, ErrInvalidArgs) {
		t.Errorf("nil handler = %v", err)
	}
	if got := r.Commands(); !reflect.DeepEqual(got, []string{"a"}) {
		t.Errorf("Commands() = %v", got)
	}
}

func TestRegistryInvoke(t *testing.T) {
	r := NewRegistry()
	sentinel := errors.New("handler failed")
	var gotArgs bridge.Args
	r.Register("ok", func(_ context.Context, args bridge.Args) (any, error) {
		gotArgs = args
		return 42, nil
	})
	r.Register("fail", func(context.Context, bridge.Args) (any, error) {
		return nil, sentinel
	})

	v, err := r.Invoke(context.Background(), "ok", bridge.Args{"k": "v"})
	if err != nil || v != 42 {
		t.Errorf("ok = %v, %v", v, err)
	}
	if gotArgs["k"] != "v" {
		t.Errorf("args = %v", gotArgs)
	}

	if _, err := r.Invoke(context.Background(), "fail", nil); err != sentinel {
		t.Errorf("fail = %v, want the handler's error unchanged", err)
	}
	if _, err := r.Invoke(context.Background(), "nope", nil); !errors.Is(err, ErrUnknownCommand) {
		t.Errorf("unknown = %v", err)
	}
	if r.Calls() != 2 {
		t.Errorf("Calls() = %d, want 2", r.Calls())
	}
}

func newApp(t *testing.T, capture audio.CaptureDevice, tr transcriber.Transcriber) (*App, *bridge.Bridge) {
	t.Helper()
	app := &App{
		Dictator: dictation.New(dictation.Config{
			Capture:       capture,
			Transcriber:   tr,
			RecordingsDir: t.TempDir(),
		}),
		Capture: capture,
	}
	r := NewRegistry()
	if err := app.Register(r); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(app.Close)
	return app, bridge.New(r)
}

func TestAppRegistersEveryCommand(t *testing.T) {
	r := NewRegistry()
	app := &App{}
	if err := app.Register(r); err != nil {
		t.Fatal(err)
	}
	want := bridge.Commands()
	got := r.Commands()
	if len(got) != len(want) {
		t.Fatalf("Commands() = %v, want %v", got, want)
	}
	if err := app.Register(r); !errors.Is(err, ErrCommandExists) {
		t.Errorf("second Register = %v", err)
	}
}

func TestGreet(t *testing.T) {
	_, b := newApp(t, nil, transcriber.NewFake("", nil))

	v, err := b.Greet(context.Background(), "Ada")
	if err != nil {
		t.Fatal(err)
	}
	if v != "Hello, Ada! You've been greeted from Go!" {
		t.Errorf("greet = %q", v)
	}

	r := NewRegistry()
	(&App{}).Register(r)
	if _, err := r.Invoke(context.Background(), bridge.CmdGreet, nil); !errors.Is(err, ErrInvalidArgs) {
		t.Errorf("greet without name = %v", err)
	}
	if _, err := r.Invoke(context.Background(), bridge.CmdGreet, bridge.Args{"name": 7}); !errors.Is(err, ErrInvalidArgs) {
		t.Errorf("greet with number = %v", err)
	}
}

func TestTranscribeWithoutRecording(t *testing.T) {
	_, b := newApp(t, nil, transcriber.NewFake("x", nil))
	if _, err := b.Transcribe(context.Background()); !errors.Is(err, ErrNoRecording) {
		t.Errorf("err = %v, want ErrNoRecording", err)
	}
	if _, err := b.EndRecording(context.Background()); !errors.Is(err, dictation.ErrNotDictating) {
		t.Errorf("end_recording while idle = %v", err)
	}
}

func TestDictateThroughBridge(t *testing.T) {
	pcm := make([]byte, 16000)
	for i := range pcm {
		pcm[i] = byte(i * 7)
	}
	capture, err := audio.NewFakeContextPCM(pcm, false).NewCapture(nil, audio.CaptureConfig{})
	if err != nil {
		t.Fatal(err)
	}
	app, b := newApp(t, capture, transcriber.NewFake("through the bridge", nil))

	type result struct {
		v   any
		err error
	}
	done := make(chan result, 1)
	go func() {
		v, err := b.Dictate(context.Background())
		done <- result{v, err}
	}()

	deadline := time.Now().Add(2 * time.Second)
	for app.Dictator.State() != dictation.Recording {
		if time.Now().After(deadline) {
			t.Fatal("dictation never started")
		}
		time.Sleep(time.Millisecond)
	}
	<-capture.(*audio.FakeCapture).AudioDone()
	if v, err := b.EndRecording(context.Background()); v != nil || err != nil {
		t.Fatalf("end_recording = %v, %v", v, err)
	}

	select {
	case res := <-done:
		if res.err != nil {
			t.Fatal(res.err)
		}
		if res.v != "through the bridge" {
			t.Errorf("dictate = %v", res.v)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("dictate did not return")
	}
}
