package main

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"sotto/bridge"
)

var errDictationCancelled = errors.New("dictation cancelled")

type dictatePhase int

const (
	phaseRecording dictatePhase = iota
	phaseTranscribing
	phaseDone
)

type frameMsg time.Time

// dictateResultMsg carries the host's answer to dictate.
type dictateResultMsg struct {
	text string
	err  error
}

type endRecordingMsg struct{ err error }

type dictateModel struct {
	phase     dictatePhase
	started   time.Time
	now       time.Time
	frame     int
	text      string
	err       error
	endErr    error
	cancelled bool

	result <-chan dictateResultMsg
	end    func() error
}

var (
	recStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	waveStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("208"))
	busyStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("4"))
	helpStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("239"))
	helpKeyStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("239")).Bold(true)
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("208"))
)

var (
	waveBars     = []rune("▁▂▃▄▅▆▇█")
	spinnerFrame = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}
)

const waveWidth = 24

func newDictateModel(result <-chan dictateResultMsg, end func() error, now time.Time) dictateModel {
	return dictateModel{started: now, now: now, result: result, end: end}
}

func frameTick() tea.Cmd {
	return tea.Tick(80*time.Millisecond, func(t time.Time) tea.Msg {
		return frameMsg(t)
	})
}

func waitResult(ch <-chan dictateResultMsg) tea.Cmd {
	return func() tea.Msg { return <-ch }
}

func endRecordingCmd(end func() error) tea.Cmd {
	return func() tea.Msg { return endRecordingMsg{err: end()} }
}

func (m dictateModel) Init() tea.Cmd {
	return tea.Batch(frameTick(), waitResult(m.result))
}

func (m dictateModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc", "q":
			m.cancelled = true
			return m, tea.Quit
		case "enter", " ":
			if m.phase == phaseRecording {
				m.phase = phaseTranscribing
				m.endErr = nil
				return m, endRecordingCmd(m.end)
			}
		}

	case endRecordingMsg:
		// the host may not have started recording yet; let the user retry
		if msg.err != nil && m.phase == phaseTranscribing {
			m.phase = phaseRecording
			m.endErr = msg.err
		}

	case frameMsg:
		if m.phase == phaseDone {
			return m, nil
		}
		m.frame++
		if m.phase == phaseRecording {
			m.now = time.Time(msg)
		}
		return m, frameTick()

	case dictateResultMsg:
		m.phase = phaseDone
		m.text = msg.text
		m.err = msg.err
		return m, tea.Quit
	}
	return m, nil
}

func (m dictateModel) View() string {
	switch m.phase {
	case phaseRecording:
		elapsed := m.now.Sub(m.started).Seconds()
		lines := []string{
			recStyle.Render(fmt.Sprintf("● REC %.1fs", elapsed)) + "  " + waveStyle.Render(renderWave(m.frame, waveWidth)),
		}
		if m.endErr != nil {
			lines = append(lines, warnStyle.Render("  ⚠ "+m.endErr.Error()))
		}
		lines = append(lines, helpKeyStyle.Render("Enter")+helpStyle.Render(" to finish, ")+
			helpKeyStyle.Render("Ctrl+C")+helpStyle.Render(" to cancel"))
		return strings.Join(lines, "\n") + "\n"
	case phaseTranscribing:
		return busyStyle.Render(spinnerFrame[m.frame%len(spinnerFrame)]+" transcribing...") + "\n"
	}
	return ""
}

// renderWave draws a travelling sine across width cells.
func renderWave(frame, width int) string {
	var b strings.Builder
	for i := 0; i < width; i++ {
		x := float64(i+frame) * 0.45
		v := (math.Sin(x) + math.Sin(x*0.37+1.3)) / 4
		idx := int((v + 0.5) * float64(len(waveBars)-1))
		idx = max(0, min(idx, len(waveBars)-1))
		b.WriteRune(waveBars[idx])
	}
	return b.String()
}

// runDictateTUI drives a host dictation from an interactive terminal. The
// view is drawn on stderr so stdout carries only the transcript.
func runDictateTUI(ctx context.Context, b *bridge.Bridge) (string, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	result := make(chan dictateResultMsg, 1)
	go func() {
		v, err := b.Dictate(ctx)
		text, _ := v.(string)
		result <- dictateResultMsg{text: text, err: err}
	}()

	end := func() error {
		_, err := b.EndRecording(ctx)
		return err
	}
	m := newDictateModel(result, end, time.Now())
	final, err := tea.NewProgram(m, tea.WithContext(ctx), tea.WithOutput(os.Stderr)).Run()
	if err != nil {
		return "", err
	}
	fm := final.(dictateModel)
	if fm.cancelled {
		return "", errDictationCancelled
	}
	return fm.text, fm.err
}
