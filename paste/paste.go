// Package paste presses the platform paste shortcut in the focused window.
package paste

import (
	"fmt"
	"sync"

	"github.com/micmonay/keybd_event"
)

var (
	kb      keybd_event.KeyBonding
	kbOnce  sync.Once
	kbErr   error
	kbMutex sync.Mutex
)

// Init creates the virtual keyboard. On Linux the device needs a moment to
// be picked up by the compositor, so call it well before the first Send.
func Init() error {
	kbOnce.Do(func() {
		kb, kbErr = keybd_event.NewKeyBonding()
	})
	if kbErr != nil {
		return fmt.Errorf("keyboard emulation unavailable: %w", kbErr)
	}
	return nil
}

// Send presses Ctrl+V (Cmd+V on macOS).
func Send() error {
	if err := Init(); err != nil {
		return err
	}
	kbMutex.Lock()
	defer kbMutex.Unlock()
	kb.Clear()
	kb.SetKeys(keybd_event.VK_V)
	pasteModifier(&kb)
	return kb.Launching()
}
