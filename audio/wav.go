package audio

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"sotto/encoder"
)

var ErrUnsupportedWAV = errors.New("unsupported wav file (need 16-bit PCM)")

// WAVWriter streams PCM16 to a file in the capture format. The header is
// written with zero sizes up front and patched on Close.
type WAVWriter struct {
	f        *os.File
	w        *bufio.Writer
	dataSize uint32
	closed   bool
}

func CreateWAV(path string) (*WAVWriter, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create wav: %w", err)
	}
	w := bufio.NewWriter(f)
	if _, err := w.Write(encoder.WAVHeader(0)); err != nil {
		f.Close()
		return nil, fmt.Errorf("write wav header: %w", err)
	}
	return &WAVWriter{f: f, w: w}, nil
}

func (w *WAVWriter) Write(pcm []byte) (int, error) {
	n, err := w.w.Write(pcm)
	w.dataSize += uint32(n)
	return n, err
}

func (w *WAVWriter) Path() string { return w.f.Name() }

func (w *WAVWriter) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	if err := w.w.Flush(); err != nil {
		w.f.Close()
		return fmt.Errorf("flush wav: %w", err)
	}
	if _, err := w.f.WriteAt(encoder.WAVHeader(w.dataSize), 0); err != nil {
		w.f.Close()
		return fmt.Errorf("finalize wav header: %w", err)
	}
	return w.f.Close()
}

// WAVFormat is the subset of the fmt chunk sotto cares about.
type WAVFormat struct {
	SampleRate    uint32
	Channels      uint16
	BitsPerSample uint16
}

// ReadWAV returns the PCM payload of a RIFF/WAVE file. Chunks other than
// "fmt " and "data" are skipped.
func ReadWAV(path string) ([]byte, WAVFormat, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, WAVFormat{}, err
	}
	defer f.Close()
	return decodeWAV(bufio.NewReader(f))
}

func decodeWAV(r io.Reader) ([]byte, WAVFormat, error) {
	var riff [12]byte
	if _, err := io.ReadFull(r, riff[:]); err != nil {
		return nil, WAVFormat{}, fmt.Errorf("read riff header: %w", err)
	}
	if string(riff[0:4]) != "RIFF" || string(riff[8:12]) != "WAVE" {
		return nil, WAVFormat{}, fmt.Errorf("not a wav file: %w", ErrUnsupportedWAV)
	}

	var format WAVFormat
	var haveFmt bool
	for {
		var hdr [8]byte
		if _, err := io.ReadFull(r, hdr[:]); err != nil {
			return nil, WAVFormat{}, fmt.Errorf("missing data chunk: %w", err)
		}
		id := string(hdr[0:4])
		size := binary.LittleEndian.Uint32(hdr[4:8])

		switch id {
		case "fmt ":
			body := make([]byte, size)
			if _, err := io.ReadFull(r, body); err != nil {
				return nil, WAVFormat{}, fmt.Errorf("read fmt chunk: %w", err)
			}
			if size < 16 || binary.LittleEndian.Uint16(body[0:2]) != 1 {
				return nil, WAVFormat{}, ErrUnsupportedWAV
			}
			format = WAVFormat{
				Channels:      binary.LittleEndian.Uint16(body[2:4]),
				SampleRate:    binary.LittleEndian.Uint32(body[4:8]),
				BitsPerSample: binary.LittleEndian.Uint16(body[14:16]),
			}
			if format.BitsPerSample != 16 {
				return nil, WAVFormat{}, ErrUnsupportedWAV
			}
			haveFmt = true
		case "data":
			if !haveFmt {
				return nil, WAVFormat{}, fmt.Errorf("data before fmt: %w", ErrUnsupportedWAV)
			}
			// Streaming writers that crashed leave size 0; read to EOF then.
			var pcm []byte
			var err error
			if size == 0 {
				pcm, err = io.ReadAll(r)
			} else {
				pcm = make([]byte, size)
				_, err = io.ReadFull(r, pcm)
			}
			if err != nil {
				return nil, WAVFormat{}, fmt.Errorf("read data chunk: %w", err)
			}
			return pcm, format, nil
		default:
			if _, err := io.CopyN(io.Discard, r, int64(size)+int64(size&1)); err != nil {
				return nil, WAVFormat{}, fmt.Errorf("skip %q chunk: %w", id, err)
			}
		}
	}
}
