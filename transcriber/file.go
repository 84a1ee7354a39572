package transcriber

import (
	"context"
	"fmt"

	"sotto/audio"
	"sotto/encoder"
)

const fileFeedChunk = encoder.BlockSize * encoder.BytesPerFrame

// TranscribeFile replays a recorded WAV file through a fresh session.
func TranscribeFile(ctx context.Context, t Transcriber, path string, cfg SessionConfig) (SessionResult, error) {
	pcm, format, err := audio.ReadWAV(path)
	if err != nil {
		return SessionResult{}, fmt.Errorf("failed to create a reader for recorded audio: %w", err)
	}
	if format.SampleRate != encoder.SampleRate || format.Channels != encoder.Channels {
		return SessionResult{}, fmt.Errorf("%s: need %d Hz mono, got %d Hz x%d: %w",
			path, encoder.SampleRate, format.SampleRate, format.Channels, audio.ErrUnsupportedWAV)
	}

	sess, err := t.NewSession(ctx, cfg)
	if err != nil {
		return SessionResult{}, err
	}
	go func() {
		for range sess.Updates() {
		}
	}()
	for off := 0; off < len(pcm); off += fileFeedChunk {
		if err := ctx.Err(); err != nil {
			sess.Close()
			return SessionResult{}, err
		}
		sess.Feed(pcm[off:min(off+fileFeedChunk, len(pcm))])
	}
	return sess.Close()
}

// Writer adapts a session to io.Writer so it can sit behind io.MultiWriter
// next to the WAV file during recording.
func Writer(sess Session) *SessionWriter {
	return &SessionWriter{sess: sess}
}

type SessionWriter struct {
	sess Session
}

func (w *SessionWriter) Write(p []byte) (int, error) {
	buf := make([]byte, len(p))
	copy(buf, p)
	w.sess.Feed(buf)
	return len(p), nil
}
