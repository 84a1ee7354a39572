package transcriber

type SessionConfig struct {
	Format   string // "flac"|"wav", upload encoding for HTTP backends
	Language string
}

type BatchStats struct {
	AudioLengthS  float64
	RawSizeKB     float64
	EncodedSizeKB float64
	EncodeTimeMs  float64
	DNSTimeMs     float64
	TLSTimeMs     float64
	TTFBMs        float64
	TotalTimeMs   float64
	ConnReused    bool
	TLSProtocol   string
}

type SessionResult struct {
	Text      string
	NoSpeech  bool
	RateLimit string      // "remaining/limit" or empty
	Batch     *BatchStats // nil when the backend reports nothing
}

// Session accepts PCM while recording is in progress and produces the
// transcript on Close. Feed and Close must not be called concurrently.
type Session interface {
	Feed(pcm []byte)
	Updates() <-chan string
	Close() (SessionResult, error)
}
