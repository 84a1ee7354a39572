package hotkey

import (
	"context"
	"testing"
	"time"
)

func next(t *testing.T, events <-chan Event) Event {
	t.Helper()
	select {
	case e, ok := <-events:
		if !ok {
			t.Fatal("events closed")
		}
		return e
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for an event")
		return 0
	}
}

func quiet(t *testing.T, events <-chan Event, d time.Duration) {
	t.Helper()
	select {
	case e := <-events:
		t.Fatalf("unexpected %v", e)
	case <-time.After(d):
	}
}

func TestHoldToTalk(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	fk := NewFake()
	threshold := 50 * time.Millisecond
	events := Gestures(ctx, fk, threshold)

	fk.Press()
	if e := next(t, events); e != Start {
		t.Fatalf("got %v, want start", e)
	}
	time.Sleep(threshold + 30*time.Millisecond)
	fk.Release()
	if e := next(t, events); e != Stop {
		t.Fatalf("got %v, want stop", e)
	}
}

func TestTapToToggle(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	fk := NewFake()
	events := Gestures(ctx, fk, 200*time.Millisecond)

	fk.Press()
	if e := next(t, events); e != Start {
		t.Fatalf("got %v, want start", e)
	}
	fk.Release()
	quiet(t, events, 50*time.Millisecond)

	fk.Press()
	quiet(t, events, 20*time.Millisecond)
	fk.Release()
	if e := next(t, events); e != Stop {
		t.Fatalf("got %v, want stop", e)
	}

	// and it starts over
	fk.Press()
	if e := next(t, events); e != Start {
		t.Fatalf("got %v, want start", e)
	}
}

func TestGesturesCloseOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	events := Gestures(ctx, NewFake(), time.Second)
	cancel()
	select {
	case _, ok := <-events:
		if ok {
			t.Fatal("event after cancel")
		}
	case <-time.After(time.Second):
		t.Fatal("channel not closed")
	}
}

func TestEventString(t *testing.T) {
	if Start.String() != "start" || Stop.String() != "stop" {
		t.Errorf("got %q, %q", Start, Stop)
	}
}
