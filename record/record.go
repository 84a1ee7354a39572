// Package record drives a capture device for the length of one recording.
package record

import (
	"context"
	"io"
	"sync"
	"time"

	"sotto/audio"
	"sotto/encoder"
)

// MinDuration is the shortest recording worth transcribing.
const MinDuration = 100 * time.Millisecond

type Stats struct {
	Device      string
	Frames      uint64
	Duration    time.Duration
	AutoStopped bool
}

// Short reports whether the recording is below MinDuration.
func (s Stats) Short() bool {
	return s.Duration < MinDuration
}

type Recorder struct {
	Capture audio.CaptureDevice

	// Tail keeps capturing for a moment after stop so the last syllable
	// isn't clipped.
	Tail time.Duration

	// AutoStop ends the recording after sustained silence.
	AutoStop bool

	// OnLevel receives the RMS level of every captured chunk.
	OnLevel func(level float64)

	// OnSilence receives silence warnings; the recording carries on unless
	// the event is SilenceAutoClose.
	OnSilence func(ev SilenceEvent)
}

// Record copies captured PCM into w until stop is closed or ctx is done.
// A cancelled ctx is reported as ctx.Err() together with the stats gathered
// so far. The first write error ends the recording.
func (r *Recorder) Record(ctx context.Context, stop <-chan struct{}, w io.Writer) (Stats, error) {
	det := &energyDetector{}

	var mu sync.Mutex
	var frames uint64
	var stopped bool
	var writeErr error

	done := make(chan struct{})
	var closeOnce sync.Once
	closeDone := func() { closeOnce.Do(func() { close(done) }) }

	r.Capture.SetCallback(func(data []byte, frameCount uint32) {
		mu.Lock()
		if stopped || writeErr != nil {
			mu.Unlock()
			return
		}
		frames += uint64(frameCount)
		if len(data) > 0 {
			if _, err := w.Write(data); err != nil {
				writeErr = err
				mu.Unlock()
				closeDone()
				return
			}
		}
		mu.Unlock()

		if len(data) > 1 {
			level := det.Process(data)
			if r.OnLevel != nil {
				r.OnLevel(level)
			}
		}
	})

	if err := r.Capture.Start(); err != nil {
		r.Capture.ClearCallback()
		return Stats{Device: r.Capture.DeviceName()}, err
	}

	var autoStopped, cancelled bool
	var flagMu sync.Mutex

	mon := newSilenceMonitor(r.AutoStop)
	go func() {
		ticker := time.NewTicker(tickInterval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				ev := mon.Tick(det.HasSpeechTick())
				if ev == SilenceNone {
					continue
				}
				if r.OnSilence != nil {
					r.OnSilence(ev)
				}
				if ev == SilenceAutoClose {
					flagMu.Lock()
					autoStopped = true
					flagMu.Unlock()
					closeDone()
					return
				}
			}
		}
	}()

	go func() {
		select {
		case <-stop:
			if r.Tail > 0 {
				select {
				case <-time.After(r.Tail):
				case <-done:
				}
			}
		case <-ctx.Done():
			flagMu.Lock()
			cancelled = true
			flagMu.Unlock()
		case <-done:
			return
		}
		closeDone()
	}()
	<-done

	r.Capture.Stop()
	r.Capture.ClearCallback()

	mu.Lock()
	stopped = true
	st := Stats{
		Device:   r.Capture.DeviceName(),
		Frames:   frames,
		Duration: encoder.Duration(frames),
	}
	err := writeErr
	mu.Unlock()

	flagMu.Lock()
	st.AutoStopped = autoStopped
	if cancelled && err == nil {
		err = ctx.Err()
	}
	flagMu.Unlock()

	return st, err
}
