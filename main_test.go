package main

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"sotto/audio"
	"sotto/bridge"
	"sotto/dictation"
	"sotto/host"
	"sotto/hotkey"
	"sotto/ipc"
	"sotto/transcriber"
)

func speech(frames int) []byte {
	pcm := make([]byte, frames*2)
	for i := 0; i < frames; i++ {
		binary.LittleEndian.PutUint16(pcm[i*2:], uint16(int16((i%40-20)*500)))
	}
	return pcm
}

// startHost runs an in-process host on a fresh socket with the fake backend.
func startHost(t *testing.T, text string) string {
	t.Helper()
	t.Setenv("SOTTO_HOME", t.TempDir())

	dir, err := os.MkdirTemp("", "sotto")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })
	sock := filepath.Join(dir, "s.sock")

	capture, err := audio.NewFakeContextPCM(speech(8000), false).NewCapture(nil, audio.CaptureConfig{})
	if err != nil {
		t.Fatal(err)
	}
	app := &host.App{
		Dictator: dictation.New(dictation.Config{
			Capture:       capture,
			Transcriber:   transcriber.NewFake(text, nil),
			RecordingsDir: filepath.Join(dir, "recordings"),
			Tail:          50 * time.Millisecond,
		}),
		Capture: capture,
	}
	reg := host.NewRegistry()
	if err := app.Register(reg); err != nil {
		t.Fatal(err)
	}

	ln, err := ipc.Listen(sock)
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		ipc.NewServer(reg).Serve(ctx, ln)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
		app.Close()
	})
	return sock
}

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := cmd.ExecuteContext(ctx)
	return out.String(), err
}

func TestVersion(t *testing.T) {
	t.Setenv("SOTTO_HOME", t.TempDir())
	out, err := execute(t, "", "version")
	if err != nil {
		t.Fatal(err)
	}
	if out != "sotto dev\n" {
		t.Errorf("got %q", out)
	}
}

func TestGreet(t *testing.T) {
	sock := startHost(t, "")
	out, err := execute(t, "", "--socket", sock, "greet", "Ada")
	if err != nil {
		t.Fatal(err)
	}
	if out != "Hello, Ada! You've been greeted from Go!\n" {
		t.Errorf("got %q", out)
	}
}

func TestDictatePlain(t *testing.T) {
	sock := startHost(t, "hello from the host")
	out, err := execute(t, "\n", "--socket", sock, "dictate", "--no-tui")
	if err != nil {
		t.Fatal(err)
	}
	if out != "hello from the host\n" {
		t.Errorf("got %q", out)
	}
}

func TestRecordThenTranscribeLatest(t *testing.T) {
	sock := startHost(t, "replayed")
	path, err := execute(t, "\n", "--socket", sock, "record")
	if err != nil {
		t.Fatal(err)
	}
	path = strings.TrimSpace(path)
	if filepath.Ext(path) != ".wav" {
		t.Fatalf("record printed %q, want a wav path", path)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatal(err)
	}

	out, err := execute(t, "", "--socket", sock, "transcribe")
	if err != nil {
		t.Fatal(err)
	}
	if out != "replayed\n" {
		t.Errorf("got %q", out)
	}
}

func TestTranscribeFileArgument(t *testing.T) {
	sock := startHost(t, "from a file")

	path := filepath.Join(t.TempDir(), "clip.wav")
	w, err := audio.CreateWAV(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := w.Write(speech(4000)); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	out, err := execute(t, "", "--socket", sock, "transcribe", path)
	if err != nil {
		t.Fatal(err)
	}
	if out != "from a file\n" {
		t.Errorf("got %q", out)
	}
}

func TestTranscribeWithoutRecording(t *testing.T) {
	sock := startHost(t, "unused")
	_, err := execute(t, "", "--socket", sock, "transcribe")
	if err == nil || err.Error() != dictation.ErrNoRecording.Error() {
		t.Fatalf("err = %v, want %q", err, dictation.ErrNoRecording)
	}
}

func TestEndRecordingWhileIdle(t *testing.T) {
	sock := startHost(t, "")
	_, err := execute(t, "", "--socket", sock, "end-recording")
	if err == nil || err.Error() != dictation.ErrNotDictating.Error() {
		t.Fatalf("err = %v, want %q", err, dictation.ErrNotDictating)
	}
}

func TestNoHost(t *testing.T) {
	t.Setenv("SOTTO_HOME", t.TempDir())
	_, err := execute(t, "", "--socket", filepath.Join(t.TempDir(), "none.sock"), "greet", "Ada")
	if err == nil || !strings.Contains(err.Error(), "sotto serve") {
		t.Fatalf("err = %v", err)
	}
}

func TestModelList(t *testing.T) {
	home := t.TempDir()
	t.Setenv("SOTTO_HOME", home)
	if err := os.WriteFile(filepath.Join(home, "whisper_tiny.bin"), []byte("ggml"), 0o644); err != nil {
		t.Fatal(err)
	}
	out, err := execute(t, "", "model", "list")
	if err != nil {
		t.Fatal(err)
	}
	for _, line := range strings.Split(out, "\n") {
		switch {
		case strings.Contains(line, "whisper_tiny") && !strings.Contains(line, "downloaded"):
			t.Errorf("tiny not marked downloaded: %q", line)
		case strings.Contains(line, "whisper_base") && !strings.Contains(line, "configured"):
			t.Errorf("base not marked configured: %q", line)
		}
	}
}

func TestServeRejectsUnknownProvider(t *testing.T) {
	t.Setenv("SOTTO_HOME", t.TempDir())
	_, err := execute(t, "", "serve", "--provider", "carrier-pigeon")
	if err == nil || !strings.Contains(err.Error(), "unknown provider") {
		t.Fatalf("err = %v", err)
	}
}

// lines hands every write to the test as one string.
type lines chan string

func (l lines) Write(p []byte) (int, error) {
	l <- string(p)
	return len(p), nil
}

func TestHotkeyHoldToTalk(t *testing.T) {
	sock := startHost(t, "pushed to talk")
	c := &cli{socket: sock}
	if err := c.load(); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	fk := hotkey.NewFake()
	out := make(lines, 4)
	errc := make(chan error, 1)
	go func() {
		errc <- c.runHotkey(ctx, fk, pttOptions{longPress: 30 * time.Millisecond}, out, io.Discard)
	}()

	fk.Press()
	time.Sleep(150 * time.Millisecond)
	fk.Release()

	select {
	case got := <-out:
		if got != "pushed to talk\n" {
			t.Errorf("got %q", got)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no transcript")
	}

	cancel()
	select {
	case err := <-errc:
		if err != nil {
			t.Fatal(err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("runHotkey did not return")
	}
}

func TestEndRecordingRetriesUntilRecording(t *testing.T) {
	calls := 0
	b := bridge.New(bridge.InvokerFunc(func(_ context.Context, command string, _ bridge.Args) (any, error) {
		if command != bridge.CmdEndRecording {
			t.Errorf("command = %q", command)
		}
		calls++
		if calls < 3 {
			return nil, dictation.ErrNotDictating
		}
		return nil, nil
	}))
	if err := endRecording(context.Background(), b); err != nil {
		t.Fatal(err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	never := bridge.New(bridge.InvokerFunc(func(context.Context, string, bridge.Args) (any, error) {
		return nil, dictation.ErrNotDictating
	}))
	if err := endRecording(ctx, never); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v, want deadline exceeded", err)
	}
}

func TestHotkeyQuickHold(t *testing.T) {
	sock := startHost(t, "quick one")
	c := &cli{socket: sock}
	if err := c.load(); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	fk := hotkey.NewFake()
	out := make(lines, 4)
	go c.runHotkey(ctx, fk, pttOptions{longPress: time.Millisecond}, out, io.Discard)

	// The stop can reach the host before its recording has begun.
	fk.Press()
	time.Sleep(5 * time.Millisecond)
	fk.Release()

	select {
	case got := <-out:
		if got != "quick one\n" {
			t.Errorf("got %q", got)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("dictation never ended")
	}
}

func key(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "ctrl+c":
		return tea.KeyMsg{Type: tea.KeyCtrlC}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestDictateModelFinish(t *testing.T) {
	ended := 0
	m := newDictateModel(nil, func() error { ended++; return nil }, time.Unix(0, 0))

	next, cmd := m.Update(key("enter"))
	m = next.(dictateModel)
	if m.phase != phaseTranscribing {
		t.Fatalf("phase = %v after enter", m.phase)
	}
	if cmd == nil {
		t.Fatal("enter returned no command")
	}
	msg := cmd()
	if ended != 1 {
		t.Fatalf("end called %d times", ended)
	}

	next, _ = m.Update(msg)
	m = next.(dictateModel)
	if m.phase != phaseTranscribing {
		t.Fatalf("phase = %v after successful end", m.phase)
	}

	// a second enter while transcribing does nothing
	if _, cmd := m.Update(key("enter")); cmd != nil {
		t.Error("enter while transcribing produced a command")
	}

	next, cmd = m.Update(dictateResultMsg{text: "done"})
	m = next.(dictateModel)
	if m.phase != phaseDone || m.text != "done" {
		t.Fatalf("model = %+v", m)
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("result did not quit the program")
	}
	if m.View() != "" {
		t.Errorf("view after done = %q", m.View())
	}
}

func TestDictateModelEndFailureReverts(t *testing.T) {
	boom := errors.New("cannot end recording, we aren't dictating")
	m := newDictateModel(nil, func() error { return boom }, time.Unix(0, 0))

	next, cmd := m.Update(key("enter"))
	next, _ = next.(dictateModel).Update(cmd())
	m = next.(dictateModel)
	if m.phase != phaseRecording {
		t.Fatalf("phase = %v, want recording again", m.phase)
	}
	if !strings.Contains(m.View(), boom.Error()) {
		t.Errorf("view does not show the error: %q", m.View())
	}
}

func TestDictateModelCancel(t *testing.T) {
	m := newDictateModel(nil, nil, time.Unix(0, 0))
	next, cmd := m.Update(key("ctrl+c"))
	if !next.(dictateModel).cancelled {
		t.Error("ctrl+c did not cancel")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("ctrl+c did not quit")
	}
}

func TestDictateModelTicks(t *testing.T) {
	start := time.Unix(100, 0)
	m := newDictateModel(nil, nil, start)
	next, cmd := m.Update(frameMsg(start.Add(1500 * time.Millisecond)))
	m = next.(dictateModel)
	if cmd == nil {
		t.Fatal("tick not rescheduled")
	}
	if !strings.Contains(m.View(), "REC 1.5s") {
		t.Errorf("view = %q", m.View())
	}
}

func TestRenderWaveWidth(t *testing.T) {
	for frame := 0; frame < 50; frame++ {
		if n := len([]rune(renderWave(frame, waveWidth))); n != waveWidth {
			t.Fatalf("frame %d: %d cells", frame, n)
		}
	}
}
