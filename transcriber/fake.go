package transcriber

import (
	"context"
	"fmt"
	"sync"

	"sotto/encoder"
)

// FakeTranscriber returns a fixed transcript (or error) for any audio. It
// counts the PCM it was fed so tests can check what reached it.
type FakeTranscriber struct {
	baseTranscriber
	text string
	err  error

	mu       sync.Mutex
	fed      int
	sessions int
}

func NewFake(text string, err error) *FakeTranscriber {
	return &FakeTranscriber{text: text, err: err}
}

func (f *FakeTranscriber) Name() string { return "fake" }

// FedBytes reports the total PCM bytes fed across all sessions.
func (f *FakeTranscriber) FedBytes() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fed
}

func (f *FakeTranscriber) Sessions() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sessions
}

func (f *FakeTranscriber) NewSession(_ context.Context, _ SessionConfig) (Session, error) {
	f.mu.Lock()
	f.sessions++
	f.mu.Unlock()
	updates := make(chan string)
	close(updates)
	return &fakeSession{parent: f, updates: updates}, nil
}

type fakeSession struct {
	parent  *FakeTranscriber
	updates chan string
	fed     int
}

func (s *fakeSession) Feed(pcm []byte) {
	s.fed += len(pcm)
	s.parent.mu.Lock()
	s.parent.fed += len(pcm)
	s.parent.mu.Unlock()
}

func (s *fakeSession) Updates() <-chan string { return s.updates }

func (s *fakeSession) Close() (SessionResult, error) {
	if s.parent.err != nil {
		return SessionResult{}, fmt.Errorf("fake transcriber error: %w", s.parent.err)
	}
	frames := uint64(s.fed / encoder.BytesPerFrame)
	return SessionResult{
		Text:     s.parent.text,
		NoSpeech: s.parent.text == "",
		Batch: &BatchStats{
			AudioLengthS: encoder.Duration(frames).Seconds(),
			TotalTimeMs:  10,
		},
	}, nil
}
