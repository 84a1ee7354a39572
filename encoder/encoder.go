package encoder

import (
	"fmt"
	"sync"
	"time"
)

// Capture and upload format. Everything recorded by sotto is 16 kHz mono PCM16.
const (
	SampleRate    = 16000
	Channels      = 1
	BitsPerSample = 16
	BytesPerFrame = Channels * BitsPerSample / 8
	BlockSize     = 4096
)

type Encoder interface {
	EncodeBlock(block []int16) error
	Close() error
	Bytes() []byte
	TotalFrames() uint64
	AddEncodeTime(d time.Duration)
	EncodeTime() time.Duration
	// Ext is the file extension the upload API expects ("flac", "wav").
	Ext() string
}

// New returns the encoder for a configured upload format.
func New(format string) (Encoder, error) {
	switch format {
	case "flac":
		return NewFlac()
	case "wav":
		return NewWav(), nil
	default:
		return nil, fmt.Errorf("unknown format %q", format)
	}
}

type encodeTimer struct {
	mu sync.Mutex
	d  time.Duration
}

func (t *encodeTimer) AddEncodeTime(d time.Duration) {
	t.mu.Lock()
	t.d += d
	t.mu.Unlock()
}

func (t *encodeTimer) EncodeTime() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.d
}

// Duration converts a frame count at SampleRate to wall time.
func Duration(frames uint64) time.Duration {
	return time.Duration(float64(frames) / float64(SampleRate) * float64(time.Second))
}
