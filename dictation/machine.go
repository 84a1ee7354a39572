// Package dictation owns the microphone for one dictation or recording at a
// time.
package dictation

import (
	"errors"
	"sync"
)

var (
	ErrAlreadyDictating = errors.New("cannot begin dictation, we're already dictating")
	ErrNotDictating     = errors.New("cannot end recording, we aren't dictating")
)

type State int

const (
	Idle State = iota
	Recording
	Transcribing
)

func (s State) String() string {
	switch s {
	case Recording:
		return "recording"
	case Transcribing:
		return "transcribing"
	}
	return "idle"
}

// Machine is the Idle -> Recording -> Transcribing -> Idle cycle. The stop
// channel handed out by Begin is closed exactly once, by EndRecording.
type Machine struct {
	mu    sync.Mutex
	state State
	stop  chan struct{}
}

func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Machine) Begin() (<-chan struct{}, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != Idle {
		return nil, ErrAlreadyDictating
	}
	m.state = Recording
	m.stop = make(chan struct{})
	return m.stop, nil
}

func (m *Machine) EndRecording() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != Recording {
		return ErrNotDictating
	}
	m.state = Transcribing
	close(m.stop)
	m.stop = nil
	return nil
}

// transcribing moves a recording that ended on its own (silence, ctx) into
// Transcribing without closing the stop channel twice.
func (m *Machine) transcribing() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == Recording {
		m.state = Transcribing
		m.stop = nil
	}
}

// Finish returns to Idle from any state. It must run when a dictation task
// ends, whether or not it succeeded.
func (m *Machine) Finish() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = Idle
	m.stop = nil
}
