package transcriber

import (
	"context"
	"encoding/binary"
	"strings"
	"sync"
	"time"

	"sotto/encoder"
)

type transcribeFunc func(ctx context.Context, audio []byte, ext, lang string) (*Result, error)

// batchSession encodes PCM on a background goroutine while recording runs,
// then uploads the whole clip on Close.
type batchSession struct {
	ctx        context.Context
	cfg        SessionConfig
	transcribe transcribeFunc
	encoder    encoder.Encoder
	updates    chan string
	blockChan  chan []int16
	encodeDone chan struct{}
	encodeErr  error

	bufMu     sync.Mutex
	sampleBuf []int16
}

func newBatchSession(ctx context.Context, cfg SessionConfig, transcribe transcribeFunc) (*batchSession, error) {
	if cfg.Format == "" {
		cfg.Format = "flac"
	}
	enc, err := encoder.New(cfg.Format)
	if err != nil {
		return nil, err
	}

	bs := &batchSession{
		ctx:        ctx,
		cfg:        cfg,
		transcribe: transcribe,
		encoder:    enc,
		updates:    make(chan string),
		blockChan:  make(chan []int16, 64),
		encodeDone: make(chan struct{}),
	}

	go func() {
		defer close(bs.encodeDone)
		for block := range bs.blockChan {
			start := time.Now()
			if err := bs.encoder.EncodeBlock(block); err != nil && bs.encodeErr == nil {
				bs.encodeErr = err
			}
			bs.encoder.AddEncodeTime(time.Since(start))
		}
	}()

	return bs, nil
}

func (bs *batchSession) Feed(pcm []byte) {
	bs.bufMu.Lock()
	for i := 0; i+1 < len(pcm); i += 2 {
		bs.sampleBuf = append(bs.sampleBuf, int16(binary.LittleEndian.Uint16(pcm[i:])))
	}
	var blocks [][]int16
	for len(bs.sampleBuf) >= encoder.BlockSize {
		block := make([]int16, encoder.BlockSize)
		copy(block, bs.sampleBuf[:encoder.BlockSize])
		bs.sampleBuf = bs.sampleBuf[encoder.BlockSize:]
		blocks = append(blocks, block)
	}
	bs.bufMu.Unlock()

	for _, block := range blocks {
		bs.blockChan <- block
	}
}

func (bs *batchSession) Updates() <-chan string {
	return bs.updates
}

func (bs *batchSession) Close() (SessionResult, error) {
	// Flush remaining samples
	bs.bufMu.Lock()
	if len(bs.sampleBuf) > 0 {
		partial := make([]int16, len(bs.sampleBuf))
		copy(partial, bs.sampleBuf)
		bs.sampleBuf = nil
		bs.blockChan <- partial
	}
	bs.bufMu.Unlock()

	close(bs.blockChan)
	<-bs.encodeDone
	close(bs.updates)

	if bs.encodeErr != nil {
		return SessionResult{}, bs.encodeErr
	}
	if err := bs.encoder.Close(); err != nil {
		return SessionResult{}, err
	}

	audioData := bs.encoder.Bytes()
	result, err := bs.transcribe(bs.ctx, audioData, bs.encoder.Ext(), bs.cfg.Language)
	if err != nil {
		return SessionResult{}, err
	}

	text := strings.TrimSpace(result.Text)
	frames := bs.encoder.TotalFrames()
	stats := &BatchStats{
		AudioLengthS:  encoder.Duration(frames).Seconds(),
		RawSizeKB:     float64(frames*encoder.BytesPerFrame) / 1024,
		EncodedSizeKB: float64(len(audioData)) / 1024,
		EncodeTimeMs:  float64(bs.encoder.EncodeTime().Milliseconds()),
	}
	if m := result.Metrics; m != nil {
		stats.DNSTimeMs = float64(m.DNS.Milliseconds())
		stats.TLSTimeMs = float64(m.TLS.Milliseconds())
		stats.TTFBMs = float64(m.TTFB.Milliseconds())
		stats.TotalTimeMs = float64(m.Sum().Milliseconds())
		stats.ConnReused = m.ConnReused
		stats.TLSProtocol = m.TLSProtocol
	}

	return SessionResult{
		Text:      text,
		NoSpeech:  text == "",
		RateLimit: result.RateLimit,
		Batch:     stats,
	}, nil
}
