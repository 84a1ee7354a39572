// Package cue plays the short ticks that mark the start and end of a
// recording, and a low double beep on errors.
package cue

import (
	"math"
	"sync"
)

const sampleRate = 44100

type tone struct {
	freq     float64
	duration float64 // seconds per beep
	volume   float64
	decay    float64
	repeat   int     // extra beeps after the first
	gap      float64 // seconds between beeps
}

var (
	startTone = tone{freq: 1200, duration: 0.2, volume: 0.5, decay: 60}
	endTone   = tone{freq: 900, duration: 0.2, volume: 0.5, decay: 40}
	errorTone = tone{freq: 350, duration: 0.08, volume: 0.6, decay: 30, repeat: 1, gap: 0.05}
)

// render produces mono PCM16 at sampleRate.
func render(t tone) []int16 {
	n := int(sampleRate * t.duration)
	beep := make([]int16, n)
	for i := range beep {
		x := float64(i) / sampleRate
		beep[i] = int16(math.Sin(2*math.Pi*t.freq*x) * 32767 * t.volume * math.Exp(-x*t.decay))
	}

	gap := make([]int16, int(sampleRate*t.gap))
	out := append([]int16(nil), beep...)
	for i := 0; i < t.repeat; i++ {
		out = append(out, gap...)
		out = append(out, beep...)
	}
	return out
}

// output is a platform sound sink. play may block until the sound is done.
type output interface {
	play(samples []int16)
}

// Player is safe for concurrent use; overlapping cues may cut each other off.
type Player struct {
	once             sync.Once
	out              output
	start, end, fail []int16
}

func New() *Player {
	return &Player{}
}

func (p *Player) init() {
	p.start = render(startTone)
	p.end = render(endTone)
	p.fail = render(errorTone)
	p.out = newOutput()
}

func (p *Player) play(pick func(*Player) []int16) {
	p.once.Do(p.init)
	if p.out != nil {
		p.out.play(pick(p))
	}
}

func (p *Player) PlayStart() { p.play(func(p *Player) []int16 { return p.start }) }

func (p *Player) PlayEnd() { p.play(func(p *Player) []int16 { return p.end }) }

func (p *Player) PlayError() { p.play(func(p *Player) []int16 { return p.fail }) }
