package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	_ "net/http/pprof"
	"os"
	"path/filepath"
	"runtime/debug"
	"time"

	"github.com/spf13/cobra"

	"sotto/audio"
	"sotto/config"
	"sotto/cue"
	"sotto/dictation"
	"sotto/encoder"
	"sotto/host"
	"sotto/ipc"
	"sotto/log"
	"sotto/model"
	"sotto/transcriber"
)

// recordTail keeps the microphone open briefly after end_recording so the
// last word is not clipped.
const recordTail = 150 * time.Millisecond

type serveFlags struct {
	provider string
	model    string
	lang     string
	format   string
	device   string
	setup    bool
	wav      string
	cues     bool
	autoStop bool
	verbose  bool
	profile  string
	fakeText string
}

func newServeCmd(c *cli) *cobra.Command {
	var f serveFlags
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the dictation host on the local socket",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c.applyServeFlags(cmd, f)
			return c.serve(cmd.Context(), f, cmd.ErrOrStderr())
		},
	}
	fl := cmd.Flags()
	fl.StringVar(&f.provider, "provider", "", "transcription backend: local, groq, openai or fake")
	fl.StringVar(&f.model, "model", "", "local whisper model (e.g. whisper_base)")
	fl.StringVar(&f.lang, "lang", "", "language code for transcription, empty to auto-detect")
	fl.StringVar(&f.format, "format", "", "upload format for API backends: flac or wav")
	fl.StringVar(&f.device, "device", "", "use the named microphone")
	fl.BoolVar(&f.setup, "setup", false, "pick the microphone interactively")
	fl.StringVar(&f.wav, "wav", "", "replay a 16 kHz mono WAV file instead of the microphone")
	fl.BoolVar(&f.cues, "cues", false, "play start and stop tones")
	fl.BoolVar(&f.autoStop, "auto-stop", false, "end a recording after a long stretch without speech")
	fl.BoolVarP(&f.verbose, "verbose", "v", false, "mirror diagnostics to stderr")
	fl.StringVar(&f.profile, "profile", "", "enable the pprof server (e.g. localhost:6060)")
	fl.StringVar(&f.fakeText, "fake-text", "", "transcript returned by the fake provider")
	fl.MarkHidden("fake-text")
	return cmd
}

func (c *cli) applyServeFlags(cmd *cobra.Command, f serveFlags) {
	set := func(name string, dst *string, v string) {
		if cmd.Flags().Changed(name) {
			*dst = v
		}
	}
	set("provider", &c.cfg.Provider, f.provider)
	set("model", &c.cfg.Model, f.model)
	set("lang", &c.cfg.Language, f.lang)
	set("format", &c.cfg.Format, f.format)
	set("device", &c.cfg.Device, f.device)
	if cmd.Flags().Changed("cues") {
		c.cfg.Cues = f.cues
	}
	if cmd.Flags().Changed("auto-stop") {
		c.cfg.AutoStop = f.autoStop
	}
}

func (c *cli) initLog(mirror io.Writer) error {
	logPath, err := log.ResolveDir(c.logPath)
	if err != nil {
		return fmt.Errorf("failed to resolve log directory: %w", err)
	}
	log.SetDir(logPath)
	if err := log.Init(mirror); err != nil {
		return err
	}

	crashPath := filepath.Join(log.Dir(), "crash_log.txt")
	crashFile, err := os.OpenFile(crashPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err == nil {
		fmt.Fprintf(crashFile, "\n=== Session %s [pid=%d] ===\n", time.Now().Format("2006-01-02 15:04:05"), os.Getpid())
		debug.SetCrashOutput(crashFile, debug.CrashOptions{})
	}
	return nil
}

func (c *cli) serve(ctx context.Context, f serveFlags, errOut io.Writer) error {
	cfg := c.cfg
	if err := cfg.Validate(); err != nil {
		return err
	}

	var mirror io.Writer
	if f.verbose {
		mirror = errOut
	}
	if err := c.initLog(mirror); err != nil {
		return err
	}
	defer log.Close()

	if f.profile != "" {
		go func() {
			fmt.Fprintf(errOut, "pprof server listening on http://%s/debug/pprof/\n", f.profile)
			if err := http.ListenAndServe(f.profile, nil); err != nil {
				log.Warnf("pprof server: %v", err)
			}
		}()
	}

	backend, err := c.newBackend(ctx, f, errOut)
	if err != nil {
		return err
	}

	actx, capture, err := openCapture(cfg, f)
	if err != nil {
		return err
	}

	dcfg := dictation.Config{
		Capture:       capture,
		Transcriber:   backend,
		Session:       transcriber.SessionConfig{Format: cfg.Format, Language: cfg.Language},
		RecordingsDir: cfg.RecordingsDir(),
		Tail:          recordTail,
		AutoStop:      cfg.AutoStop,
	}
	if cfg.Cues {
		dcfg.Cues = cue.New()
	}
	app := &host.App{Dictator: dictation.New(dcfg), Capture: capture, Audio: actx}
	defer app.Close()

	reg := host.NewRegistry()
	if err := app.Register(reg); err != nil {
		return err
	}

	ln, err := ipc.Listen(cfg.Socket)
	if err != nil {
		return err
	}
	defer os.Remove(cfg.Socket)

	log.SessionStart(backend.Name(), cfg.Model, cfg.Socket)
	fmt.Fprintf(errOut, "sotto %s listening on %s (mic: %s, provider: %s)\n", version, cfg.Socket, capture.DeviceName(), backend.Name())

	err = ipc.NewServer(reg).Serve(ctx, ln)
	log.SessionEnd(reg.Calls())
	return err
}

// newBackend builds the transcriber, fetching the local model first when
// it is not on disk yet.
func (c *cli) newBackend(ctx context.Context, f serveFlags, errOut io.Writer) (transcriber.Transcriber, error) {
	cfg := c.cfg
	opts := transcriber.Options{
		Provider:   cfg.Provider,
		Language:   cfg.Language,
		GroqKey:    cfg.GroqKey,
		OpenAIKey:  cfg.OpenAIKey,
		WhisperBin: cfg.WhisperBin,
		FakeText:   f.fakeText,
	}
	if cfg.Provider == "local" {
		m, err := model.Parse(cfg.Model)
		if err != nil {
			return nil, err
		}
		store := newModelStore(cfg, errOut)
		if opts.ModelPath, err = store.GetOrDownload(ctx, m); err != nil {
			return nil, err
		}
	}
	return transcriber.New(opts)
}

func newModelStore(cfg config.Config, progress io.Writer) *model.Store {
	store := model.NewStore(cfg.ModelsDir())
	if cfg.ModelIndex != "" {
		store.IndexURL = cfg.ModelIndex
	}
	store.Progress = progress
	return store
}

func openCapture(cfg config.Config, f serveFlags) (audio.Context, audio.CaptureDevice, error) {
	var actx audio.Context
	if f.wav != "" {
		fake, err := audio.NewFakeContext(f.wav, true)
		if err != nil {
			return nil, nil, fmt.Errorf("loading %s: %w", f.wav, err)
		}
		actx = fake
	} else {
		sys, err := audio.NewContext()
		if err != nil {
			return nil, nil, fmt.Errorf("initializing audio: %w", err)
		}
		actx = sys
	}

	var dev *audio.DeviceInfo
	var err error
	if f.setup {
		dev, err = audio.SelectDevice(actx)
	} else {
		dev, err = audio.FindDevice(actx, cfg.Device)
	}
	if err != nil {
		actx.Close()
		return nil, nil, err
	}

	capture, err := actx.NewCapture(dev, audio.CaptureConfig{
		SampleRate: encoder.SampleRate,
		Channels:   encoder.Channels,
	})
	if err != nil {
		actx.Close()
		return nil, nil, fmt.Errorf("opening microphone: %w", err)
	}
	return actx, capture, nil
}
