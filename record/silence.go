package record

import (
	"encoding/binary"
	"math"
	"sync"
	"time"
)

const (
	tickInterval        = 100 * time.Millisecond
	silenceWarnEvery    = 8 * time.Second
	silenceAutoCloseDur = 30 * time.Second
	speechMinRatio      = 0.10
	speechClearRatio    = 0.25 // higher threshold to clear warning (hysteresis)
)

type SilenceEvent int

const (
	SilenceNone      SilenceEvent = iota
	SilenceWarn                   // no voice detected
	SilenceWarnClear              // speech resumed after warning
	SilenceRepeat                 // repeated every 8s while still silent
	SilenceAutoClose              // 30s of silence with auto-stop enabled
)

func (e SilenceEvent) String() string {
	switch e {
	case SilenceWarn:
		return "no_voice_warning"
	case SilenceWarnClear:
		return "voice_cleared"
	case SilenceRepeat:
		return "silence_during_warning"
	case SilenceAutoClose:
		return "silence_auto_close"
	}
	return "none"
}

// silenceMonitor keeps a ring of per-tick speech flags and reports when the
// speaker has gone quiet.
type silenceMonitor struct {
	warnAt   int
	windowSz int
	autoStop bool

	ticks       int
	window      []bool
	speechCount int
	warned      bool
	lastBeep    int
}

func newSilenceMonitor(autoStop bool) *silenceMonitor {
	windowSz := int(silenceAutoCloseDur / tickInterval)
	return &silenceMonitor{
		warnAt:   int(silenceWarnEvery / tickInterval),
		windowSz: windowSz,
		autoStop: autoStop,
		window:   make([]bool, windowSz),
	}
}

func (m *silenceMonitor) ratio(n int) float64 {
	n = min(n, m.ticks)
	if n == 0 {
		return 1.0
	}
	count := 0
	for i := 0; i < n; i++ {
		if m.window[(m.ticks-1-i+m.windowSz)%m.windowSz] {
			count++
		}
	}
	return float64(count) / float64(n)
}

func (m *silenceMonitor) Tick(hasSpeech bool) SilenceEvent {
	idx := m.ticks % m.windowSz
	if m.ticks >= m.windowSz && m.window[idx] {
		m.speechCount--
	}
	m.window[idx] = hasSpeech
	if hasSpeech {
		m.speechCount++
	}
	m.ticks++

	r := m.ratio(m.warnAt)

	if m.ticks >= m.warnAt && r < speechMinRatio && !m.warned {
		m.warned = true
		m.lastBeep = m.ticks
		return SilenceWarn
	}
	if m.warned && r >= speechClearRatio {
		m.warned = false
		return SilenceWarnClear
	}

	if !m.autoStop {
		return SilenceNone
	}

	// checked before repeat so the last beep is the closing one
	if m.ticks >= m.windowSz && float64(m.speechCount)/float64(m.windowSz) < speechMinRatio {
		return SilenceAutoClose
	}

	if m.warned && m.ticks-m.lastBeep >= m.warnAt {
		m.lastBeep = m.ticks
		return SilenceRepeat
	}

	return SilenceNone
}

const (
	energyFrameBytes = 16000 * 20 / 1000 * 2 // 20 ms
	energyThreshold  = 0.015                 // normalized RMS, roughly -36 dBFS
	energyDebounce   = 3                     // consecutive loud frames to confirm voice
)

// energyDetector is a level gate over 20 ms frames. It is coarse compared to
// a trained VAD but needs no cgo.
type energyDetector struct {
	mu         sync.Mutex
	buf        []byte
	run        int
	tickSpeech bool
	level      float64
}

func rms(pcm []byte) float64 {
	n := len(pcm) / 2
	if n == 0 {
		return 0
	}
	var sum float64
	for i := 0; i+1 < len(pcm); i += 2 {
		s := float64(int16(binary.LittleEndian.Uint16(pcm[i:]))) / 32768.0
		sum += s * s
	}
	return math.Sqrt(sum / float64(n))
}

// Process consumes PCM and returns the level of the whole chunk.
func (d *energyDetector) Process(pcm []byte) float64 {
	level := rms(pcm)

	d.mu.Lock()
	defer d.mu.Unlock()
	d.level = level
	d.buf = append(d.buf, pcm...)
	for len(d.buf) >= energyFrameBytes {
		frame := d.buf[:energyFrameBytes]
		d.buf = d.buf[energyFrameBytes:]
		if rms(frame) >= energyThreshold {
			d.run++
			if d.run >= energyDebounce {
				d.tickSpeech = true
			}
		} else {
			d.run = 0
		}
	}
	return level
}

// HasSpeechTick reports whether voice was confirmed since the previous call.
func (d *energyDetector) HasSpeechTick() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	s := d.tickSpeech
	d.tickSpeech = false
	return s
}
