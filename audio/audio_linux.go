//go:build linux

package audio

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/jfreymuth/pulse"
	"github.com/jfreymuth/pulse/proto"
)

const (
	// Pulse sources tend to come in quiet; whisper copes better with a boost.
	pulseGain      = 8
	pulseLatency   = 0.05
	pulseVolumeMul = 3
)

type pulseContext struct {
	client *pulse.Client
}

func NewContext() (Context, error) {
	c, err := pulse.NewClient()
	if err != nil {
		return nil, fmt.Errorf("pulse: %w", err)
	}
	return &pulseContext{client: c}, nil
}

func (p *pulseContext) Devices() ([]DeviceInfo, error) {
	sources, err := p.client.ListSources()
	if err != nil {
		return nil, fmt.Errorf("pulse list sources: %w", err)
	}
	devices := make([]DeviceInfo, 0, len(sources))
	for _, s := range sources {
		devices = append(devices, DeviceInfo{ID: s.ID(), Name: s.Name()})
	}
	return devices, nil
}

// NewCapture resolves the source up front so a missing microphone is
// reported before anyone asks to record.
func (p *pulseContext) NewCapture(device *DeviceInfo, config CaptureConfig) (CaptureDevice, error) {
	source, err := p.source(device)
	if err != nil {
		return nil, err
	}
	c := &pulseCapture{client: p.client, device: device, channels: max(config.Channels, 1)}
	c.opts = recordOptions(config, source)
	return c, nil
}

func (p *pulseContext) source(device *DeviceInfo) (*pulse.Source, error) {
	if device == nil {
		s, err := p.client.DefaultSource()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrNoInputDevice, err)
		}
		return s, nil
	}
	s, err := p.client.SourceByID(device.ID)
	if err != nil {
		return nil, fmt.Errorf("pulse source %q: %w", device.Name, err)
	}
	return s, nil
}

func recordOptions(config CaptureConfig, source *pulse.Source) []pulse.RecordOption {
	layout := pulse.RecordMono
	if config.Channels == 2 {
		layout = pulse.RecordStereo
	}
	return []pulse.RecordOption{
		layout,
		pulse.RecordSampleRate(int(config.SampleRate)),
		pulse.RecordLatency(pulseLatency),
		pulse.RecordSource(source),
		pulse.RecordRawOption(func(r *proto.CreateRecordStream) {
			r.ChannelVolumes = proto.ChannelVolumes{uint32(proto.VolumeNorm) * pulseVolumeMul}
		}),
	}
}

func (p *pulseContext) Close() {
	p.client.Close()
}

// pulseRun is one Start..Stop cycle of a record stream.
type pulseRun struct {
	stream *pulse.RecordStream
	once   sync.Once
}

func (r *pulseRun) end() {
	r.once.Do(func() {
		r.stream.Stop()
		r.stream.Close()
	})
}

type pulseCapture struct {
	client   *pulse.Client
	device   *DeviceInfo
	channels uint32
	opts     []pulse.RecordOption
	callback atomic.Pointer[DataCallback]

	mu  sync.Mutex
	run *pulseRun
}

// write receives interleaved samples from the stream.
func (c *pulseCapture) write(buf []int16) (int, error) {
	if cb := c.callback.Load(); cb != nil && len(buf) > 0 {
		(*cb)(amplify(buf, pulseGain), uint32(len(buf))/c.channels)
	}
	return len(buf), nil
}

func (c *pulseCapture) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.run != nil {
		return nil
	}
	stream, err := c.client.NewRecord(pulse.Int16Writer(c.write), c.opts...)
	if err != nil {
		return fmt.Errorf("pulse record: %w", err)
	}
	stream.Start()
	c.run = &pulseRun{stream: stream}
	return nil
}

func (c *pulseCapture) Stop() {
	c.mu.Lock()
	run := c.run
	c.run = nil
	c.mu.Unlock()
	if run != nil {
		run.end()
	}
}

func (c *pulseCapture) Close() {
	c.Stop()
}

func (c *pulseCapture) SetCallback(cb DataCallback) {
	c.callback.Store(&cb)
}

func (c *pulseCapture) ClearCallback() {
	c.callback.Store(nil)
}

func (c *pulseCapture) DeviceName() string {
	if c.device != nil {
		return c.device.Name
	}
	return "system default"
}
