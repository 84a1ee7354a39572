package log

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	diagLog        zerolog.Logger
	diagFile       *os.File
	transcribeFile *os.File
	logMu          sync.Mutex
	logReady       bool
	pid            int
	dir            string
)

func ResolveDir(flagPath string) (string, error) {
	// Priority 1: --logpath flag
	if flagPath != "" {
		return absolute(flagPath)
	}

	// Priority 2: SOTTO_LOG_PATH environment variable
	if envPath := os.Getenv("SOTTO_LOG_PATH"); envPath != "" {
		return absolute(envPath)
	}

	// Priority 3: Default OS-specific location
	return defaultDir()
}

func absolute(p string) (string, error) {
	if filepath.IsAbs(p) {
		return p, nil
	}
	wd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	return filepath.Join(wd, p), nil
}

func SetDir(d string) {
	dir = d
}

func Dir() string {
	return dir
}

func EnsureDir() error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}
	return nil
}

// Init opens the diagnostics and transcript logs in Dir. When mirror is
// non-nil, diagnostics are also written there (serve runs with stderr).
func Init(mirror io.Writer) error {
	logMu.Lock()
	defer logMu.Unlock()

	if err := EnsureDir(); err != nil {
		return err
	}

	pid = os.Getpid()

	var err error
	diagFile, err = os.OpenFile(filepath.Join(dir, "diagnostics_log.txt"), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	transcribeFile, err = os.OpenFile(filepath.Join(dir, "transcribe_log.txt"), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		diagFile.Close()
		return err
	}

	var out io.Writer = zerolog.ConsoleWriter{
		Out:        diagFile,
		TimeFormat: "2006-01-02 15:04:05",
		NoColor:    true,
	}
	if mirror != nil {
		out = zerolog.MultiLevelWriter(out, zerolog.ConsoleWriter{Out: mirror, TimeFormat: "15:04:05", NoColor: true})
	}
	diagLog = zerolog.New(out).With().Timestamp().Int("pid", pid).Logger()

	logReady = true
	return nil
}

func Close() {
	logMu.Lock()
	defer logMu.Unlock()
	if diagFile != nil {
		diagFile.Close()
		diagFile = nil
	}
	if transcribeFile != nil {
		transcribeFile.Close()
		transcribeFile = nil
	}
	logReady = false
}

func Info(msg string) {
	if logReady {
		diagLog.Info().Msg(msg)
	}
}

func Infof(format string, args ...any) {
	if logReady {
		diagLog.Info().Msg(fmt.Sprintf(format, args...))
	}
}

func Error(msg string) {
	if logReady {
		diagLog.Error().Msg(msg)
	}
}

func Errorf(format string, args ...any) {
	if logReady {
		diagLog.Error().Msg(fmt.Sprintf(format, args...))
	}
}

func Warn(msg string) {
	if logReady {
		diagLog.Warn().Msg(msg)
	}
}

func Warnf(format string, args ...any) {
	if logReady {
		diagLog.Warn().Msg(fmt.Sprintf(format, args...))
	}
}

// Command records one host-side command invocation.
func Command(name string, took time.Duration, err error) {
	if !logReady {
		return
	}
	ev := diagLog.Info()
	if err != nil {
		ev = diagLog.Warn().Err(err)
	}
	ev.Str("command", name).
		Float64("ms", float64(took.Microseconds())/1000).
		Msg("command")
}

type RecordingStats struct {
	Device   string
	Path     string
	Frames   uint64
	Duration time.Duration
}

func Recording(s RecordingStats) {
	if !logReady {
		return
	}
	ev := diagLog.Info().
		Str("device", s.Device).
		Uint64("frames", s.Frames).
		Float64("audio_s", s.Duration.Seconds())
	if s.Path != "" {
		ev = ev.Str("path", s.Path)
	}
	ev.Msg("recording")
}

type TranscriptionStats struct {
	Provider    string
	Format      string
	AudioS      float64
	EncodedKB   float64
	TotalMs     float64
	ConnReused  bool
	TLSProtocol string
}

func Transcription(s TranscriptionStats) {
	if !logReady {
		return
	}
	connStatus := "new"
	if s.ConnReused {
		connStatus = "reused"
	}
	ev := diagLog.Info().
		Str("provider", s.Provider).
		Str("format", s.Format).
		Str("conn", connStatus)
	if s.TLSProtocol != "" {
		ev = ev.Str("tls_proto", s.TLSProtocol)
	}
	ev.Float64("audio_s", s.AudioS).
		Float64("encoded_kb", s.EncodedKB).
		Float64("total_ms", s.TotalMs).
		Msg("transcription")
}

func TranscriptionText(text string) {
	if !logReady {
		return
	}
	logMu.Lock()
	defer logMu.Unlock()
	line := fmt.Sprintf("%s\t[%d]\t%s\n", time.Now().Format("2006-01-02 15:04:05"), pid, text)
	transcribeFile.WriteString(line)
}

func SessionStart(provider, model, socket string) {
	if !logReady {
		return
	}
	diagLog.Info().
		Str("provider", provider).
		Str("model", model).
		Str("socket", socket).
		Msg("session_start")
}

func SessionEnd(commands int) {
	if !logReady {
		return
	}
	diagLog.Info().
		Int("commands", commands).
		Msg("session_end")
}
