package cue

import "testing"

func peak(s []int16) int16 {
	var m int16
	for _, v := range s {
		if v > m {
			m = v
		}
	}
	return m
}

func TestRenderLength(t *testing.T) {
	tests := []struct {
		name string
		tone tone
		want int
	}{
		{"start", startTone, int(sampleRate * 0.2)},
		{"end", endTone, int(sampleRate * 0.2)},
		{"error", errorTone, 2*int(sampleRate*0.08) + int(sampleRate*0.05)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := len(render(tt.tone)); got != tt.want {
				t.Errorf("len = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestRenderEnvelope(t *testing.T) {
	s := render(startTone)
	if p := peak(s); p <= 0 || float64(p) > 32767*startTone.volume {
		t.Errorf("peak = %d, want within volume", p)
	}
	tail := s[len(s)-400:]
	if p := peak(tail); p > peak(s)/100 {
		t.Errorf("tail peak = %d, tick should have decayed", p)
	}
}

func TestRenderGapIsSilent(t *testing.T) {
	s := render(errorTone)
	beep := int(sampleRate * errorTone.duration)
	gap := s[beep : beep+int(sampleRate*errorTone.gap)]
	if p := peak(gap); p != 0 {
		t.Errorf("gap peak = %d", p)
	}
}
