// Package clipboard puts dictated text on the system clipboard.
package clipboard

import (
	"errors"
	"strings"

	cb "github.com/atotto/clipboard"
)

var ErrUnsupported = errors.New("no clipboard utility found (install wl-clipboard, xclip or xsel)")

// Available reports whether a clipboard backend was found at startup.
func Available() bool {
	return !cb.Unsupported
}

func Read() (string, error) {
	if cb.Unsupported {
		return "", ErrUnsupported
	}
	return cb.ReadAll()
}

// Copy writes text. Surrounding whitespace from the transcript is dropped;
// empty text leaves the clipboard alone.
func Copy(text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if cb.Unsupported {
		return ErrUnsupported
	}
	return cb.WriteAll(text)
}
