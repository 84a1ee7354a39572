// Package ipc carries bridge commands over a local unix socket as
// newline-delimited JSON.
package ipc

import (
	"errors"

	"sotto/bridge"
)

var (
	ErrClosed         = errors.New("ipc: connection closed")
	ErrAlreadyRunning = errors.New("ipc: a host is already listening on this socket")
)

type Request struct {
	ID      string      `json:"id"`
	Command string      `json:"command"`
	Args    bridge.Args `json:"args,omitempty"`
}

type Response struct {
	ID     string `json:"id"`
	OK     bool   `json:"ok"`
	Result any    `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
}

// RemoteError is a command failure reported by the host. Its message is the
// host error's message, untouched.
type RemoteError struct {
	Command string
	Message string
}

func (e *RemoteError) Error() string { return e.Message }
