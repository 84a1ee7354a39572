//go:build linux

package hotkey

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// The chord is read straight from the evdev keyboards, which works under both
// X11 and Wayland but needs the user in the input group.

const (
	evKey      = 1
	keyRelease = 0
	keyPress   = 1
	keyLCtrl   = 29
	keyRCtrl   = 97
	keyLShift  = 42
	keyRShift  = 54
	keySpace   = 57
)

// struct input_event on 64-bit: timeval (16), type, code, value.
const inputEventSize = 24

var errNoKeyboard = errors.New("no keyboard devices found (is the user in the 'input' group?)")

type evdevHotkey struct {
	keydown chan struct{}
	keyup   chan struct{}
	files   []*os.File
	once    sync.Once
}

func New() Hotkey {
	return &evdevHotkey{
		keydown: make(chan struct{}, 1),
		keyup:   make(chan struct{}, 1),
	}
}

func (h *evdevHotkey) Register() error {
	keyboards, err := findKeyboards()
	if err != nil {
		return fmt.Errorf("finding keyboards: %w", err)
	}
	if len(keyboards) == 0 {
		return errNoKeyboard
	}
	for _, path := range keyboards {
		f, err := os.Open(path)
		if err != nil {
			continue
		}
		h.files = append(h.files, f)
		go h.watch(f)
	}
	if len(h.files) == 0 {
		return fmt.Errorf("could not open any keyboard device (run: sudo usermod -aG input $USER, then log in again)")
	}
	return nil
}

// watch runs until the file is closed by Unregister.
func (h *evdevHotkey) watch(f *os.File) {
	buf := make([]byte, inputEventSize*16)
	var c chord
	for {
		n, err := f.Read(buf)
		if err != nil {
			return
		}
		for i := 0; i+inputEventSize <= n; i += inputEventSize {
			ev := buf[i : i+inputEventSize]
			if binary.LittleEndian.Uint16(ev[16:]) != evKey {
				continue
			}
			down, up := c.feed(binary.LittleEndian.Uint16(ev[18:]), int32(binary.LittleEndian.Uint32(ev[20:])))
			if down {
				notify(h.keydown)
			}
			if up {
				notify(h.keyup)
			}
		}
	}
}

func (h *evdevHotkey) Unregister() {
	h.once.Do(func() {
		for _, f := range h.files {
			f.Close()
		}
	})
}

func (h *evdevHotkey) Keydown() <-chan struct{} { return h.keydown }

func (h *evdevHotkey) Keyup() <-chan struct{} { return h.keyup }

// chord tracks Ctrl+Shift+Space on one keyboard. Autorepeat events (value 2)
// leave the state alone.
type chord struct {
	ctrl, shift, space bool
}

func (c *chord) feed(code uint16, value int32) (down, up bool) {
	hold := func(held bool) bool {
		switch value {
		case keyPress:
			return true
		case keyRelease:
			return false
		}
		return held
	}
	switch code {
	case keyLCtrl, keyRCtrl:
		c.ctrl = hold(c.ctrl)
	case keyLShift, keyRShift:
		c.shift = hold(c.shift)
	case keySpace:
		switch {
		case value == keyPress && !c.space && c.ctrl && c.shift:
			c.space = true
			return true, false
		case value == keyRelease && c.space:
			c.space = false
			return false, true
		}
	}
	return false, false
}

func findKeyboards() ([]string, error) {
	entries, err := os.ReadDir("/dev/input")
	if err != nil {
		return nil, err
	}
	var keyboards []string
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), "event") && isKeyboard(e.Name()) {
			keyboards = append(keyboards, filepath.Join("/dev/input", e.Name()))
		}
	}
	return keyboards, nil
}

// isKeyboard treats devices with a long key capability bitmap as keyboards;
// mice and power buttons only report a few keys.
func isKeyboard(eventName string) bool {
	data, err := os.ReadFile(filepath.Join("/sys/class/input", eventName, "device", "capabilities", "key"))
	if err != nil {
		return false
	}
	return len(strings.TrimSpace(string(data))) > 10
}

func Diagnose() (string, error) {
	keyboards, err := findKeyboards()
	if err != nil {
		return "", fmt.Errorf("cannot scan input devices: %w", err)
	}
	if len(keyboards) == 0 {
		return "", errNoKeyboard
	}
	for _, path := range keyboards {
		if f, err := os.Open(path); err == nil {
			f.Close()
			return fmt.Sprintf("%d keyboard(s) found, opened %s", len(keyboards), path), nil
		}
	}
	return "", fmt.Errorf("found %d keyboard(s) but cannot open any (run: sudo usermod -aG input $USER)", len(keyboards))
}
