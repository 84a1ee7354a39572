//go:build !linux

package cue

import (
	"encoding/binary"
	"sync"
	"sync/atomic"

	"github.com/gen2brain/malgo"
)

type malgoOutput struct {
	ctx    *malgo.AllocatedContext
	mu     sync.Mutex
	device *malgo.Device

	// read from the audio callback
	samples atomic.Pointer[[]byte]
	pos     atomic.Uint32
}

func newOutput() output {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil
	}
	o := &malgoOutput{ctx: ctx}
	if err := o.initDevice(); err != nil {
		ctx.Uninit()
		return nil
	}
	return o
}

func (o *malgoOutput) initDevice() error {
	config := malgo.DefaultDeviceConfig(malgo.Playback)
	config.Playback.Format = malgo.FormatS16
	config.Playback.Channels = 1
	config.SampleRate = sampleRate

	dev, err := malgo.InitDevice(o.ctx.Context, config, malgo.DeviceCallbacks{Data: o.data})
	if err != nil {
		return err
	}
	o.device = dev
	return nil
}

func (o *malgoOutput) data(out, _ []byte, frameCount uint32) {
	clear(out)
	s := o.samples.Load()
	if s == nil {
		return
	}
	pos := o.pos.Load()
	n := copy(out[:frameCount*2], (*s)[pos:])
	if n == 0 {
		o.samples.Store(nil)
		return
	}
	o.pos.Store(pos + uint32(n))
}

func (o *malgoOutput) play(samples []int16) {
	buf := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(s))
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	o.device.Stop()
	o.pos.Store(0)
	o.samples.Store(&buf)

	if err := o.device.Start(); err != nil {
		// the device can go stale across sleep/wake; rebuild once
		o.device.Uninit()
		if err := o.initDevice(); err != nil {
			o.samples.Store(nil)
			return
		}
		if err := o.device.Start(); err != nil {
			o.samples.Store(nil)
		}
	}
}
