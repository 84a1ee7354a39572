// Package host is the process side of the command bridge: named handlers
// that own the microphone and the transcription backends.
package host

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"sotto/bridge"
	"sotto/log"
)

var (
	ErrCommandExists  = errors.New("command already registered")
	ErrUnknownCommand = errors.New("unknown command")
	ErrInvalidArgs    = errors.New("invalid arguments")
)

type Handler func(ctx context.Context, args bridge.Args) (any, error)

// Registry maps command names to handlers. It implements bridge.Invoker, so
// a Bridge can sit directly on top of it in-process.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
	calls    atomic.Int64
}

func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

// Register adds a handler; names must be unique.
func (r *Registry) Register(name string, h Handler) error {
	if name == "" {
		return fmt.Errorf("command name is empty: %w", ErrInvalidArgs)
	}
	if h == nil {
		return fmt.Errorf("%s: handler is nil: %w", name, ErrInvalidArgs)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.handlers[name]; exists {
		return fmt.Errorf("%s: %w", name, ErrCommandExists)
	}
	r.handlers[name] = h
	return nil
}

// Invoke runs the named handler. Handler results and errors are returned
// as-is.
func (r *Registry) Invoke(ctx context.Context, command string, args bridge.Args) (any, error) {
	r.mu.RLock()
	h, ok := r.handlers[command]
	r.mu.RUnlock()
	if !ok {
		err := fmt.Errorf("%s: %w", command, ErrUnknownCommand)
		log.Command(command, 0, err)
		return nil, err
	}

	r.calls.Add(1)
	start := time.Now()
	result, err := h(ctx, args)
	log.Command(command, time.Since(start), err)
	return result, err
}

// Commands returns the registered names, sorted.
func (r *Registry) Commands() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Calls counts handler invocations since start.
func (r *Registry) Calls() int {
	return int(r.calls.Load())
}
