package transcriber

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strconv"
	"strings"

	"github.com/shirou/gopsutil/v3/cpu"
)

const DefaultWhisperBin = "whisper-cli"

// Local runs inference on this machine with the whisper.cpp command-line
// program over a downloaded ggml model.
type Local struct {
	baseTranscriber
	bin       string
	modelPath string
	threads   int
}

func NewLocal(bin, modelPath string) *Local {
	if bin == "" {
		bin = DefaultWhisperBin
	}
	return &Local{
		bin:       bin,
		modelPath: modelPath,
		threads:   physicalCores(),
	}
}

// physicalCores ignores SMT siblings; whisper.cpp gets slower when
// oversubscribed.
func physicalCores() int {
	n, err := cpu.Counts(false)
	if err != nil || n <= 0 {
		return runtime.NumCPU()
	}
	return n
}

func (l *Local) Name() string { return "local" }

func (l *Local) NewSession(ctx context.Context, cfg SessionConfig) (Session, error) {
	cfg.Language = l.sessionLanguage(cfg)
	cfg.Format = "wav"
	return newBatchSession(ctx, cfg, l.transcribe)
}

// args builds the whisper.cpp command line. whisper.cpp assumes English
// unless told otherwise, so an empty language asks for detection.
func (l *Local) args(wavPath, lang string) []string {
	if lang == "" {
		lang = "auto"
	}
	return []string{
		"-m", l.modelPath,
		"-f", wavPath,
		"-t", strconv.Itoa(l.threads),
		"--no-timestamps",
		"--no-prints",
		"-l", lang,
	}
}

func (l *Local) transcribe(ctx context.Context, audioData []byte, ext, lang string) (*Result, error) {
	tmp, err := os.CreateTemp("", "sotto-*."+ext)
	if err != nil {
		return nil, fmt.Errorf("failed to create temporary file to transcribe: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(audioData); err != nil {
		tmp.Close()
		return nil, err
	}
	if err := tmp.Close(); err != nil {
		return nil, err
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, l.bin, l.args(tmp.Name(), lang)...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			return nil, fmt.Errorf("failed to run speech recognition model: %w", err)
		}
		return nil, fmt.Errorf("failed to run speech recognition model: %w: %s", err, msg)
	}

	return &Result{Text: joinSegments(stdout.String())}, nil
}

// joinSegments turns whisper.cpp's one-segment-per-line output into a single
// transcript.
func joinSegments(out string) string {
	var parts []string
	for _, line := range strings.Split(out, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			parts = append(parts, line)
		}
	}
	return strings.Join(parts, " ")
}
