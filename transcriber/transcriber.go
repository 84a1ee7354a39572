package transcriber

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"
)

var ErrMissingKey = errors.New("missing API key")

type NetworkMetrics struct {
	DNS         time.Duration
	ConnWait    time.Duration
	TCP         time.Duration
	TLS         time.Duration
	ReqHeaders  time.Duration
	ReqBody     time.Duration
	TTFB        time.Duration
	Download    time.Duration
	Total       time.Duration
	ConnReused  bool
	TLSProtocol string
}

func (m *NetworkMetrics) Sum() time.Duration {
	return m.ConnWait + m.DNS + m.TCP + m.TLS + m.ReqHeaders + m.ReqBody + m.TTFB + m.Download
}

func firstNonEmpty(h http.Header, keys ...string) string {
	for _, k := range keys {
		if v := h.Get(k); v != "" {
			return v
		}
	}
	return "?"
}

// Result is what a backend returns for one complete audio upload.
type Result struct {
	Text      string
	Metrics   *NetworkMetrics // nil for backends that never touch the network
	RateLimit string
	Duration  float64
}

type Transcriber interface {
	Name() string
	SetLanguage(lang string)
	GetLanguage() string
	NewSession(ctx context.Context, cfg SessionConfig) (Session, error)
}

// baseTranscriber holds the default language. Sessions copy it at creation
// and never write it back.
type baseTranscriber struct {
	mu   sync.RWMutex
	lang string
}

func (b *baseTranscriber) SetLanguage(lang string) {
	b.mu.Lock()
	b.lang = lang
	b.mu.Unlock()
}

func (b *baseTranscriber) GetLanguage() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lang
}

// sessionLanguage is the session's language, or the backend default when the
// session does not name one. Empty means auto-detect.
func (b *baseTranscriber) sessionLanguage(cfg SessionConfig) string {
	if cfg.Language != "" {
		return cfg.Language
	}
	return b.GetLanguage()
}

// Options selects and configures a backend.
type Options struct {
	Provider   string // "local", "groq", "openai", "fake"
	Language   string
	GroqKey    string
	OpenAIKey  string
	WhisperBin string
	ModelPath  string
	FakeText   string
	BaseURL    string // overrides the API endpoint of HTTP backends
}

func New(opts Options) (Transcriber, error) {
	var t Transcriber
	switch opts.Provider {
	case "local":
		if opts.ModelPath == "" {
			return nil, fmt.Errorf("local transcriber needs a model path")
		}
		t = NewLocal(opts.WhisperBin, opts.ModelPath)
	case "groq":
		if opts.GroqKey == "" {
			return nil, fmt.Errorf("groq: %w (set GROQ_API_KEY)", ErrMissingKey)
		}
		g := NewGroq(opts.GroqKey)
		g.setBaseURL(opts.BaseURL)
		t = g
	case "openai":
		if opts.OpenAIKey == "" {
			return nil, fmt.Errorf("openai: %w (set OPENAI_API_KEY)", ErrMissingKey)
		}
		o := NewOpenAI(opts.OpenAIKey)
		o.setBaseURL(opts.BaseURL)
		t = o
	case "fake":
		t = NewFake(opts.FakeText, nil)
	default:
		return nil, fmt.Errorf("unknown provider %q", opts.Provider)
	}
	if opts.Language != "" {
		t.SetLanguage(opts.Language)
	}
	return t, nil
}
