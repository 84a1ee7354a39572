// Package hotkey watches for the global Ctrl+Shift+Space chord and turns its
// presses into push-to-talk gestures.
package hotkey

// Hotkey delivers chord presses and releases. Sends never block; a press
// nobody is waiting for is dropped.
type Hotkey interface {
	Register() error
	Unregister()
	Keydown() <-chan struct{}
	Keyup() <-chan struct{}
}

// Chord is the key combination every platform listens for.
const Chord = "Ctrl+Shift+Space"

func notify(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}
