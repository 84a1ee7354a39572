// Package doctor checks that sotto can hear the microphone, reach its
// transcription backend and talk to a running host.
package doctor

import (
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"

	"sotto/audio"
	"sotto/bridge"
	"sotto/clipboard"
	"sotto/config"
	"sotto/encoder"
	"sotto/hotkey"
	"sotto/ipc"
	"sotto/model"
	"sotto/record"
	"sotto/transcriber"
)

type Status int

const (
	Pass Status = iota
	Warn
	Fail
)

func (s Status) String() string {
	switch s {
	case Warn:
		return "WARN"
	case Fail:
		return "FAIL"
	}
	return "PASS"
}

type Result struct {
	Name   string
	Status Status
	Detail string
	Fix    string
}

// Env is what the checks run against. Zero-valued hooks fall back to the
// real system.
type Env struct {
	Config config.Config

	NewAudio   func() (audio.Context, error)
	LookPath   func(file string) (string, error)
	Clipboard  func() bool
	Hotkey     func() (string, error)
	Dial       func(ctx context.Context, socket string) (bridge.Invoker, error)
	NewBackend func(config.Config) (transcriber.Transcriber, error)

	// Listen adds a live microphone and transcription test of this length.
	Listen time.Duration
}

func (e *Env) defaults() {
	if e.NewAudio == nil {
		e.NewAudio = audio.NewContext
	}
	if e.LookPath == nil {
		e.LookPath = exec.LookPath
	}
	if e.Clipboard == nil {
		e.Clipboard = clipboard.Available
	}
	if e.Hotkey == nil {
		e.Hotkey = hotkey.Diagnose
	}
	if e.Dial == nil {
		e.Dial = func(ctx context.Context, socket string) (bridge.Invoker, error) {
			return ipc.Dial(ctx, socket)
		}
	}
	if e.NewBackend == nil {
		e.NewBackend = func(c config.Config) (transcriber.Transcriber, error) {
			path, _ := model.NewStore(c.ModelsDir()).Get(model.Model(c.Model))
			return transcriber.New(transcriber.Options{
				Provider:   c.Provider,
				Language:   c.Language,
				GroqKey:    c.GroqKey,
				OpenAIKey:  c.OpenAIKey,
				WhisperBin: c.WhisperBin,
				ModelPath:  path,
			})
		}
	}
}

// Check runs every check and returns the results in order.
func Check(ctx context.Context, env Env) []Result {
	env.defaults()
	results := []Result{
		checkSystem(ctx, env.Config),
		checkMicrophone(env),
		checkBackend(env),
		checkHost(ctx, env),
		checkClipboard(env),
		checkHotkey(env),
	}
	if env.Listen > 0 && results[1].Status != Fail && results[2].Status != Fail {
		results = append(results, checkListen(ctx, env))
	}
	return results
}

// Run prints the results and returns an exit code (0 = no failures).
func Run(ctx context.Context, env Env, out io.Writer) int {
	fmt.Fprintln(out, "sotto doctor")
	fmt.Fprintln(out, "============")

	results := Check(ctx, env)
	code := 0
	for i, r := range results {
		fmt.Fprintf(out, "\n[%d/%d] %s\n  %s: %s\n", i+1, len(results), r.Name, r.Status, r.Detail)
		if r.Fix != "" {
			fmt.Fprintf(out, "  Fix: %s\n", r.Fix)
		}
		if r.Status == Fail {
			code = 1
		}
	}

	fmt.Fprintln(out)
	if code == 0 {
		fmt.Fprintln(out, "All checks passed!")
	} else {
		fmt.Fprintln(out, "Some checks failed. See details above.")
	}
	return code
}

func checkSystem(ctx context.Context, cfg config.Config) Result {
	r := Result{Name: "System"}
	var parts []string
	if info, err := host.InfoWithContext(ctx); err == nil {
		parts = append(parts, fmt.Sprintf("%s %s (%s)", info.Platform, info.PlatformVersion, info.KernelArch))
	}
	if n, err := cpu.CountsWithContext(ctx, false); err == nil {
		parts = append(parts, fmt.Sprintf("%d physical cores", n))
	}
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err == nil {
		parts = append(parts, fmt.Sprintf("%d MB available", vm.Available>>20))
	}
	r.Detail = strings.Join(parts, ", ")

	if cfg.Provider == "local" && err == nil {
		need := model.Model(cfg.Model).MemoryMB()
		if int(vm.Available>>20) < need {
			r.Status = Warn
			r.Detail += fmt.Sprintf("; %s needs about %d MB", cfg.Model, need)
			r.Fix = "pick a smaller model with --model"
		}
	}
	return r
}

func checkMicrophone(env Env) Result {
	r := Result{Name: "Microphone"}
	actx, err := env.NewAudio()
	if err != nil {
		return Result{Name: r.Name, Status: Fail, Detail: fmt.Sprintf("cannot connect to audio: %v", err)}
	}
	defer actx.Close()

	devices, err := actx.Devices()
	if err != nil {
		return Result{Name: r.Name, Status: Fail, Detail: fmt.Sprintf("cannot list devices: %v", err)}
	}
	if len(devices) == 0 {
		return Result{Name: r.Name, Status: Fail, Detail: audio.ErrNoInputDevice.Error(), Fix: "connect a microphone"}
	}
	if env.Config.Device != "" {
		if _, err := audio.FindDevice(actx, env.Config.Device); err != nil {
			return Result{Name: r.Name, Status: Fail,
				Detail: fmt.Sprintf("configured device %q not found", env.Config.Device),
				Fix:    "run `sotto serve --setup` to pick a device"}
		}
	}
	r.Detail = fmt.Sprintf("%d input device(s)", len(devices))
	return r
}

func checkBackend(env Env) Result {
	cfg := env.Config
	r := Result{Name: "Transcription (" + cfg.Provider + ")"}
	switch cfg.Provider {
	case "local":
		bin := cfg.WhisperBin
		if bin == "" {
			bin = transcriber.DefaultWhisperBin
		}
		path, err := env.LookPath(bin)
		if err != nil {
			r.Status = Fail
			r.Detail = fmt.Sprintf("%s not found", bin)
			r.Fix = "install whisper.cpp or set SOTTO_WHISPER_BIN"
			return r
		}
		m := model.Model(cfg.Model)
		if _, ok := model.NewStore(cfg.ModelsDir()).Get(m); !ok {
			r.Status = Warn
			r.Detail = fmt.Sprintf("using %s; model %s not downloaded yet", path, m)
			r.Fix = "run `sotto model download " + string(m) + "` (serve downloads it on first start)"
			return r
		}
		r.Detail = fmt.Sprintf("using %s with %s", path, m)
	case "groq":
		if cfg.GroqKey == "" {
			r.Status, r.Detail, r.Fix = Fail, "GROQ_API_KEY is not set", "export GROQ_API_KEY"
			return r
		}
		r.Detail = "API key set"
	case "openai":
		if cfg.OpenAIKey == "" {
			r.Status, r.Detail, r.Fix = Fail, "OPENAI_API_KEY is not set", "export OPENAI_API_KEY"
			return r
		}
		r.Detail = "API key set"
	case "fake":
		r.Status, r.Detail = Warn, "fake backend returns fixed text"
	default:
		r.Status, r.Detail = Fail, fmt.Sprintf("unknown provider %q", cfg.Provider)
	}
	return r
}

func checkHost(ctx context.Context, env Env) Result {
	r := Result{Name: "Host"}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	inv, err := env.Dial(ctx, env.Config.Socket)
	if err != nil {
		r.Status = Warn
		r.Detail = fmt.Sprintf("no host listening on %s", env.Config.Socket)
		r.Fix = "start one with `sotto serve`"
		return r
	}
	if c, ok := inv.(io.Closer); ok {
		defer c.Close()
	}
	reply, err := bridge.New(inv).Greet(ctx, "doctor")
	if err != nil {
		r.Status = Fail
		r.Detail = fmt.Sprintf("host did not answer: %v", err)
		return r
	}
	r.Detail = fmt.Sprintf("%v", reply)
	return r
}

func checkClipboard(env Env) Result {
	if !env.Clipboard() {
		return Result{Name: "Clipboard", Status: Warn, Detail: clipboard.ErrUnsupported.Error(),
			Fix: "`sotto dictate --copy` will not work until one is installed"}
	}
	return Result{Name: "Clipboard", Detail: "available"}
}

func checkHotkey(env Env) Result {
	detail, err := env.Hotkey()
	if err != nil {
		return Result{Name: "Hotkey", Status: Warn, Detail: err.Error(),
			Fix: "`sotto hotkey` will not see " + hotkey.Chord + "; the other commands are unaffected"}
	}
	return Result{Name: "Hotkey", Detail: detail}
}

func checkListen(ctx context.Context, env Env) Result {
	r := Result{Name: "Listen"}
	fail := func(format string, args ...any) Result {
		r.Status = Fail
		r.Detail = fmt.Sprintf(format, args...)
		return r
	}

	trans, err := env.NewBackend(env.Config)
	if err != nil {
		return fail("backend: %v", err)
	}
	actx, err := env.NewAudio()
	if err != nil {
		return fail("cannot connect to audio: %v", err)
	}
	defer actx.Close()
	dev, err := audio.FindDevice(actx, env.Config.Device)
	if err != nil {
		return fail("%v", err)
	}
	capture, err := actx.NewCapture(dev, audio.CaptureConfig{SampleRate: encoder.SampleRate, Channels: encoder.Channels})
	if err != nil {
		return fail("open microphone: %v", err)
	}
	defer capture.Close()

	sess, err := trans.NewSession(ctx, transcriber.SessionConfig{Format: env.Config.Format, Language: env.Config.Language})
	if err != nil {
		return fail("session: %v", err)
	}
	go func() {
		for range sess.Updates() {
		}
	}()

	stop := make(chan struct{})
	timer := time.AfterFunc(env.Listen, func() { close(stop) })
	defer timer.Stop()

	rec := &record.Recorder{Capture: capture}
	st, err := rec.Record(ctx, stop, transcriber.Writer(sess))
	if err != nil {
		sess.Close()
		return fail("recording: %v", err)
	}
	res, err := sess.Close()
	if err != nil {
		return fail("transcription: %v", err)
	}

	text := res.Text
	if text == "" {
		r.Status = Warn
		text = "(no speech detected)"
	}
	r.Detail = fmt.Sprintf("%.1fs from %s: %s", st.Duration.Seconds(), st.Device, text)
	return r
}
