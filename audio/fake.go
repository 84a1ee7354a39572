package audio

import (
	"sync"
	"time"

	"sotto/encoder"
)

const fakeFrameSize = 1024

// FakeContext replays a WAV file as if it were a microphone. After the file
// runs out it keeps delivering silence until stopped.
type FakeContext struct {
	pcm      []byte
	realtime bool
}

func NewFakeContext(wavPath string, realtime bool) (*FakeContext, error) {
	pcm, _, err := ReadWAV(wavPath)
	if err != nil {
		return nil, err
	}
	return NewFakeContextPCM(pcm, realtime), nil
}

func NewFakeContextPCM(pcm []byte, realtime bool) *FakeContext {
	return &FakeContext{pcm: pcm, realtime: realtime}
}

func (f *FakeContext) Devices() ([]DeviceInfo, error) {
	return []DeviceInfo{{ID: "fake", Name: "fake"}}, nil
}

func (f *FakeContext) Close() {}

func (f *FakeContext) NewCapture(_ *DeviceInfo, _ CaptureConfig) (CaptureDevice, error) {
	return &FakeCapture{pcm: f.pcm, realtime: f.realtime, audioDone: make(chan struct{})}, nil
}

type FakeCapture struct {
	pcm      []byte
	realtime bool

	mu        sync.Mutex
	cb        DataCallback
	audioDone chan struct{}
	stopCh    chan struct{}
	feedDone  chan struct{}
}

// AudioDone closes once the whole file has been delivered.
func (f *FakeCapture) AudioDone() <-chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.audioDone
}

func (f *FakeCapture) SetCallback(cb DataCallback) {
	f.mu.Lock()
	f.cb = cb
	f.mu.Unlock()
}

func (f *FakeCapture) ClearCallback() {
	f.mu.Lock()
	f.cb = nil
	f.mu.Unlock()
}

func (f *FakeCapture) DeviceName() string { return "fake" }

func (f *FakeCapture) callback() DataCallback {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cb
}

func (f *FakeCapture) Start() error {
	f.mu.Lock()
	f.stopCh = make(chan struct{})
	f.feedDone = make(chan struct{})
	stop, done, audioDone := f.stopCh, f.feedDone, f.audioDone
	f.mu.Unlock()

	chunkBytes := fakeFrameSize * encoder.BytesPerFrame
	interval := time.Millisecond
	if f.realtime {
		interval = time.Duration(fakeFrameSize) * time.Second / encoder.SampleRate
	}

	go func() {
		defer close(done)
		silence := make([]byte, chunkBytes)
		pos := 0
		finished := false
		for {
			select {
			case <-stop:
				return
			default:
			}

			if cb := f.callback(); cb != nil {
				if pos < len(f.pcm) {
					end := min(pos+chunkBytes, len(f.pcm))
					chunk := make([]byte, end-pos)
					copy(chunk, f.pcm[pos:end])
					cb(chunk, uint32(len(chunk)/encoder.BytesPerFrame))
					pos = end
				} else {
					if !finished {
						finished = true
						close(audioDone)
					}
					cb(silence, fakeFrameSize)
				}
			}

			select {
			case <-stop:
				return
			case <-time.After(interval):
			}
		}
	}()
	return nil
}

func (f *FakeCapture) Stop() {
	f.mu.Lock()
	stop, done := f.stopCh, f.feedDone
	f.mu.Unlock()
	if stop == nil {
		return
	}
	select {
	case <-stop:
	default:
		close(stop)
	}
	<-done

	f.mu.Lock()
	select {
	case <-f.audioDone:
		f.audioDone = make(chan struct{}) // reset for replay
	default:
	}
	f.mu.Unlock()
}

func (f *FakeCapture) Close() { f.Stop() }
