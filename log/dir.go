package log

import (
	"os"
	"path/filepath"
	"runtime"
)

// defaultDir is where logs go when neither --logpath nor SOTTO_LOG_PATH is
// set: ~/Library/Logs on macOS, %LOCALAPPDATA% on Windows and the XDG state
// directory elsewhere.
func defaultDir() (string, error) {
	switch runtime.GOOS {
	case "windows":
		base, err := os.UserCacheDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(base, "sotto", "logs"), nil
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, "Library", "Logs", "sotto"), nil
	}
	return filepath.Join(xdgStateHome(), "sotto", "logs"), nil
}

func xdgStateHome() string {
	if d := os.Getenv("XDG_STATE_HOME"); d != "" {
		return d
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "state")
}
