//go:build linux

package audio

import (
	"encoding/binary"
	"testing"
)

func TestPulseWrite(t *testing.T) {
	tests := []struct {
		name     string
		channels uint32
		in       []int16
		want     []int16
		frames   uint32
	}{
		{"mono", 1, []int16{1, -2, 100}, []int16{8, -16, 800}, 3},
		{"stereo", 2, []int16{1, 2, 3, 4}, []int16{8, 16, 24, 32}, 2},
		{"clipped", 1, []int16{10000, -10000}, []int16{32767, -32768}, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &pulseCapture{channels: tt.channels}
			var got []byte
			var frames uint32
			c.SetCallback(func(data []byte, n uint32) {
				got, frames = data, n
			})
			if n, err := c.write(tt.in); err != nil || n != len(tt.in) {
				t.Fatalf("write = %d, %v", n, err)
			}
			if frames != tt.frames {
				t.Errorf("frames = %d, want %d", frames, tt.frames)
			}
			for i, w := range tt.want {
				if s := int16(binary.LittleEndian.Uint16(got[i*2:])); s != w {
					t.Errorf("sample %d = %d, want %d", i, s, w)
				}
			}
		})
	}
}

func TestPulseWriteWithoutCallback(t *testing.T) {
	c := &pulseCapture{channels: 1}
	if n, err := c.write(make([]int16, 64)); n != 64 || err != nil {
		t.Errorf("write = %d, %v", n, err)
	}
	c.SetCallback(func([]byte, uint32) { t.Error("cleared callback called") })
	c.ClearCallback()
	c.write(make([]int16, 64))
	c.Stop()
	if c.DeviceName() != "system default" {
		t.Errorf("DeviceName() = %q", c.DeviceName())
	}
}
