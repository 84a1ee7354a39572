package encoder

import (
	"bytes"
	"encoding/binary"
	"sync"
)

const WAVHeaderSize = 44

// WAVHeader returns a canonical 44-byte PCM16 header for dataSize bytes of
// samples at the capture format.
func WAVHeader(dataSize uint32) []byte {
	buf := make([]byte, WAVHeaderSize)
	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], WAVHeaderSize-8+dataSize)
	copy(buf[8:12], "WAVE")
	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16)
	binary.LittleEndian.PutUint16(buf[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(buf[22:24], Channels)
	binary.LittleEndian.PutUint32(buf[24:28], SampleRate)
	binary.LittleEndian.PutUint32(buf[28:32], SampleRate*BytesPerFrame)
	binary.LittleEndian.PutUint16(buf[32:34], BytesPerFrame)
	binary.LittleEndian.PutUint16(buf[34:36], BitsPerSample)
	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], dataSize)
	return buf
}

// WavEncoder keeps uncompressed PCM in memory and prepends a header on Close.
// Used for backends that reject FLAC, and by the local whisper backend.
type WavEncoder struct {
	encodeTimer

	mu     sync.Mutex
	pcm    bytes.Buffer
	out    []byte
	frames uint64
}

func NewWav() *WavEncoder {
	return &WavEncoder{}
}

func (e *WavEncoder) EncodeBlock(block []int16) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	var b [2]byte
	for _, s := range block {
		binary.LittleEndian.PutUint16(b[:], uint16(s))
		e.pcm.Write(b[:])
	}
	e.frames += uint64(len(block))
	return nil
}

func (e *WavEncoder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.out != nil {
		return nil
	}
	e.out = append(WAVHeader(uint32(e.pcm.Len())), e.pcm.Bytes()...)
	return nil
}

func (e *WavEncoder) Bytes() []byte {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.out
}

func (e *WavEncoder) TotalFrames() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.frames
}

func (e *WavEncoder) Ext() string { return "wav" }
