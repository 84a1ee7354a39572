// Package bridge is the caller-side surface of the sotto host. Every method
// forwards to a single Invoker and hands back exactly what it returns.
package bridge

import "context"

const (
	CmdDictate      = "dictate"
	CmdTranscribe   = "transcribe"
	CmdRecord       = "record"
	CmdEndRecording = "end_recording"
	CmdGreet        = "greet"
)

// Args is the optional argument object sent with a command. nil means none.
type Args map[string]any

// Invoker calls a named command on the host.
type Invoker interface {
	Invoke(ctx context.Context, command string, args Args) (any, error)
}

type InvokerFunc func(ctx context.Context, command string, args Args) (any, error)

func (f InvokerFunc) Invoke(ctx context.Context, command string, args Args) (any, error) {
	return f(ctx, command, args)
}

// Commands returns the closed set of command names the bridge can send.
func Commands() []string {
	return []string{CmdDictate, CmdTranscribe, CmdRecord, CmdEndRecording, CmdGreet}
}

type Bridge struct {
	inv Invoker
}

func New(inv Invoker) *Bridge {
	return &Bridge{inv: inv}
}

func (b *Bridge) Dictate(ctx context.Context) (any, error) {
	return b.inv.Invoke(ctx, CmdDictate, nil)
}

func (b *Bridge) Transcribe(ctx context.Context) (any, error) {
	return b.inv.Invoke(ctx, CmdTranscribe, nil)
}

// TranscribeFile asks the host to transcribe a specific WAV file instead of
// the latest recording.
func (b *Bridge) TranscribeFile(ctx context.Context, path string) (any, error) {
	return b.inv.Invoke(ctx, CmdTranscribe, Args{"path": path})
}

func (b *Bridge) Record(ctx context.Context) (any, error) {
	return b.inv.Invoke(ctx, CmdRecord, nil)
}

func (b *Bridge) EndRecording(ctx context.Context) (any, error) {
	return b.inv.Invoke(ctx, CmdEndRecording, nil)
}

func (b *Bridge) Greet(ctx context.Context, name string) (any, error) {
	return b.inv.Invoke(ctx, CmdGreet, Args{"name": name})
}
