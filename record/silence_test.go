package record

import (
	"encoding/binary"
	"testing"
)

func tickN(m *silenceMonitor, speech bool, n int) []SilenceEvent {
	var events []SilenceEvent
	for i := 0; i < n; i++ {
		if ev := m.Tick(speech); ev != SilenceNone {
			events = append(events, ev)
		}
	}
	return events
}

func TestSilenceWarnsAfterEightSeconds(t *testing.T) {
	m := newSilenceMonitor(false)
	if evs := tickN(m, false, 79); len(evs) != 0 {
		t.Fatalf("events before 8s: %v", evs)
	}
	if ev := m.Tick(false); ev != SilenceWarn {
		t.Fatalf("tick 80 = %v, want %v", ev, SilenceWarn)
	}
}

func TestSilenceWarningClearsOnSpeech(t *testing.T) {
	m := newSilenceMonitor(false)
	tickN(m, false, 80)
	for i := 0; i < 80; i++ {
		if m.Tick(true) == SilenceWarnClear {
			return
		}
	}
	t.Fatal("warning never cleared")
}

func TestSilenceWarningSurvivesSparseNoise(t *testing.T) {
	m := newSilenceMonitor(false)
	tickN(m, false, 80)
	for i := 0; i < 80; i++ {
		if m.Tick(i%10 == 0) == SilenceWarnClear {
			t.Fatalf("10%% speech cleared the warning at tick %d", i)
		}
	}
}

func TestSilenceWithoutAutoStop(t *testing.T) {
	m := newSilenceMonitor(false)
	evs := tickN(m, false, 400)
	if len(evs) != 1 || evs[0] != SilenceWarn {
		t.Fatalf("events = %v, want a single warning", evs)
	}
}

func TestSilenceAutoStop(t *testing.T) {
	m := newSilenceMonitor(true)
	for i := 0; i < 400; i++ {
		switch ev := m.Tick(false); ev {
		case SilenceAutoClose:
			if i+1 != 300 {
				t.Errorf("auto close at tick %d, want 300", i+1)
			}
			return
		case SilenceRepeat:
			if i >= 299 {
				t.Fatalf("repeat fired at tick %d instead of auto close", i)
			}
		}
	}
	t.Fatal("no auto close within 400 ticks")
}

func TestSilenceAutoStopRepeatsWarning(t *testing.T) {
	m := newSilenceMonitor(true)
	evs := tickN(m, false, 170)
	if len(evs) < 2 || evs[0] != SilenceWarn || evs[1] != SilenceRepeat {
		t.Fatalf("events = %v, want warn then repeat", evs)
	}
}

func TestSilenceSpeechPreventsAutoStop(t *testing.T) {
	m := newSilenceMonitor(true)
	for i := 0; i < 500; i++ {
		if m.Tick(i%10 < 7) == SilenceAutoClose {
			t.Fatalf("auto close during speech at tick %d", i)
		}
	}
}

func pcmOf(sample int16, frames int) []byte {
	b := make([]byte, frames*2)
	for i := 0; i < frames; i++ {
		s := sample
		if i%2 == 1 {
			s = -sample
		}
		binary.LittleEndian.PutUint16(b[i*2:], uint16(s))
	}
	return b
}

func TestEnergyDetector(t *testing.T) {
	d := &energyDetector{}

	d.Process(pcmOf(10, 1600))
	if d.HasSpeechTick() {
		t.Error("near-silence detected as speech")
	}

	level := d.Process(pcmOf(8000, 1600))
	if level < 0.2 {
		t.Errorf("level = %v, want about 0.24", level)
	}
	if !d.HasSpeechTick() {
		t.Error("loud audio not detected as speech")
	}
	if d.HasSpeechTick() {
		t.Error("HasSpeechTick did not reset")
	}

	// two loud frames are not enough to confirm voice
	d.Process(pcmOf(0, 320))
	d.Process(pcmOf(8000, 640))
	if d.HasSpeechTick() {
		t.Error("speech confirmed before debounce")
	}
}
