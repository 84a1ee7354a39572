package host

import (
	"context"
	"fmt"

	"sotto/audio"
	"sotto/bridge"
	"sotto/dictation"
)

var ErrNoRecording = dictation.ErrNoRecording

// App binds the bridge commands to a Dictator.
type App struct {
	Dictator *dictation.Dictator

	// Capture and Audio are released by Close when set.
	Capture audio.CaptureDevice
	Audio   audio.Context
}

// Register installs a handler for every bridge command.
func (a *App) Register(r *Registry) error {
	handlers := map[string]Handler{
		bridge.CmdDictate:      a.dictate,
		bridge.CmdEndRecording: a.endRecording,
		bridge.CmdRecord:       a.record,
		bridge.CmdTranscribe:   a.transcribe,
		bridge.CmdGreet:        greet,
	}
	for _, name := range bridge.Commands() {
		if err := r.Register(name, handlers[name]); err != nil {
			return err
		}
	}
	return nil
}

func (a *App) Close() {
	if a.Capture != nil {
		a.Capture.Close()
	}
	if a.Audio != nil {
		a.Audio.Close()
	}
}

func (a *App) dictate(ctx context.Context, _ bridge.Args) (any, error) {
	return a.Dictator.Dictate(ctx)
}

func (a *App) endRecording(_ context.Context, _ bridge.Args) (any, error) {
	return nil, a.Dictator.EndRecording()
}

func (a *App) record(ctx context.Context, _ bridge.Args) (any, error) {
	return a.Dictator.Record(ctx)
}

func (a *App) transcribe(ctx context.Context, args bridge.Args) (any, error) {
	path, _, err := stringArg(args, "path")
	if err != nil {
		return nil, err
	}
	return a.Dictator.Transcribe(ctx, path)
}

func greet(_ context.Context, args bridge.Args) (any, error) {
	name, ok, err := stringArg(args, "name")
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("greet: missing name: %w", ErrInvalidArgs)
	}
	return fmt.Sprintf("Hello, %s! You've been greeted from Go!", name), nil
}

// stringArg reads an optional string argument; present-but-not-a-string is
// an error.
func stringArg(args bridge.Args, key string) (string, bool, error) {
	v, ok := args[key]
	if !ok || v == nil {
		return "", false, nil
	}
	s, ok := v.(string)
	if !ok {
		return "", false, fmt.Errorf("%s must be a string, got %T: %w", key, v, ErrInvalidArgs)
	}
	return s, true, nil
}
