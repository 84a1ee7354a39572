package hotkey

import (
	"context"
	"time"
)

type Event int

const (
	Start Event = iota
	Stop
)

func (e Event) String() string {
	if e == Stop {
		return "stop"
	}
	return "start"
}

// Gestures turns chord presses into Start and Stop events until ctx is done,
// then closes the channel.
//
// A press starts straight away. Releasing after longPress stops (hold to
// talk). Releasing sooner leaves recording running until the next press is
// released (tap to toggle).
func Gestures(ctx context.Context, hk Hotkey, longPress time.Duration) <-chan Event {
	out := make(chan Event)
	go func() {
		defer close(out)
		wait := func(ch <-chan struct{}) bool {
			select {
			case <-ch:
				return true
			case <-ctx.Done():
				return false
			}
		}
		emit := func(e Event) bool {
			select {
			case out <- e:
				return true
			case <-ctx.Done():
				return false
			}
		}

		for {
			if !wait(hk.Keydown()) || !emit(Start) {
				return
			}

			held := false
			timer := time.NewTimer(longPress)
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case <-timer.C:
				held = true
			case <-hk.Keyup():
				timer.Stop()
			}

			if held {
				if !wait(hk.Keyup()) {
					return
				}
			} else if !wait(hk.Keydown()) || !wait(hk.Keyup()) {
				return
			}
			if !emit(Stop) {
				return
			}
		}
	}()
	return out
}
