package audio

import (
	"errors"
	"fmt"
	"io"
	"os"

	"golang.org/x/term"
)

var ErrSelectionAborted = errors.New("device selection aborted")

// SelectDevice presents an interactive picker on the terminal and returns the
// chosen device. With a single device it returns that device without prompting.
func SelectDevice(ctx Context) (*DeviceInfo, error) {
	devices, err := ctx.Devices()
	if err != nil {
		return nil, fmt.Errorf("enumerating devices: %w", err)
	}
	switch len(devices) {
	case 0:
		return nil, ErrNoInputDevice
	case 1:
		return &devices[0], nil
	}

	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return nil, fmt.Errorf("device picker needs a terminal; use --device instead")
	}
	oldState, err := term.MakeRaw(fd)
	if err != nil {
		return nil, fmt.Errorf("setting raw mode: %w", err)
	}
	defer term.Restore(fd, oldState)

	idx, err := pickDevice(os.Stdin, os.Stdout, devices)
	if err != nil {
		return nil, err
	}
	return &devices[idx], nil
}

// pickDevice runs the picker loop over raw terminal input. Arrow keys and j/k
// move, Enter confirms, Ctrl+C aborts.
func pickDevice(in io.Reader, out io.Writer, devices []DeviceInfo) (int, error) {
	cursor := 0
	render := func() {
		fmt.Fprint(out, "\r\x1b[J")
		fmt.Fprint(out, "Select input device (↑/↓, Enter to confirm):\r\n\r\n")
		for i, d := range devices {
			if i == cursor {
				fmt.Fprintf(out, "  \x1b[1;36m▶ %s\x1b[0m\r\n", d.Name)
			} else {
				fmt.Fprintf(out, "    %s\r\n", d.Name)
			}
		}
	}
	render()

	buf := make([]byte, 3)
	for {
		n, err := in.Read(buf)
		if err != nil {
			return 0, fmt.Errorf("reading input: %w", err)
		}
		switch {
		case n == 1 && buf[0] == 13: // Enter
			fmt.Fprint(out, "\r\n")
			return cursor, nil
		case n == 1 && buf[0] == 3: // Ctrl+C
			fmt.Fprint(out, "\r\n")
			return 0, ErrSelectionAborted
		case n == 1 && buf[0] == 'j', n == 3 && buf[0] == 0x1b && buf[2] == 'B':
			if cursor < len(devices)-1 {
				cursor++
			}
		case n == 1 && buf[0] == 'k', n == 3 && buf[0] == 0x1b && buf[2] == 'A':
			if cursor > 0 {
				cursor--
			}
		}
		fmt.Fprintf(out, "\x1b[%dA", len(devices)+2)
		render()
	}
}
