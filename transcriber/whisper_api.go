package transcriber

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
)

// APIError is a non-200 reply from a hosted transcription API.
type APIError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s API error %d: %s", e.Provider, e.StatusCode, e.Body)
}

// whisperAPI speaks the OpenAI-style /audio/transcriptions multipart upload
// that both Groq and OpenAI expose.
type whisperAPI struct {
	baseTranscriber
	provider string
	model    string
	respFmt  string
	apiURL   string
	apiKey   string
	client   *TracedClient
}

type whisperResponse struct {
	Text     string  `json:"text"`
	Duration float64 `json:"duration"`
}

func (w *whisperAPI) Name() string { return w.provider }

func (w *whisperAPI) setBaseURL(u string) {
	if u == "" {
		return
	}
	w.apiURL = u
	w.client = NewTracedClient(u)
}

func (w *whisperAPI) NewSession(ctx context.Context, cfg SessionConfig) (Session, error) {
	go w.client.Warm()
	cfg.Language = w.sessionLanguage(cfg)
	return newBatchSession(ctx, cfg, w.transcribe)
}

func (w *whisperAPI) transcribe(ctx context.Context, audioData []byte, ext, lang string) (*Result, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("file", "audio."+ext)
	if err != nil {
		return nil, err
	}
	if _, err := part.Write(audioData); err != nil {
		return nil, err
	}
	writer.WriteField("model", w.model)
	writer.WriteField("response_format", w.respFmt)
	if lang != "" {
		writer.WriteField("language", lang)
	}
	if err := writer.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.apiURL, &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+w.apiKey)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := w.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s request: %w", w.provider, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{Provider: w.provider, StatusCode: resp.StatusCode, Body: string(resp.Body)}
	}

	var parsed whisperResponse
	if err := json.Unmarshal(resp.Body, &parsed); err != nil {
		return nil, fmt.Errorf("%s response parse error: %w", w.provider, err)
	}

	remaining := firstNonEmpty(resp.Header, "x-ratelimit-remaining-requests")
	limit := firstNonEmpty(resp.Header, "x-ratelimit-limit-requests")

	return &Result{
		Text:      parsed.Text,
		Metrics:   resp.Metrics,
		RateLimit: remaining + "/" + limit,
		Duration:  parsed.Duration,
	}, nil
}

type Groq struct{ whisperAPI }

func NewGroq(apiKey string) *Groq {
	const apiURL = "https://api.groq.com/openai/v1/audio/transcriptions"
	return &Groq{whisperAPI{
		provider: "groq",
		model:    "whisper-large-v3-turbo",
		respFmt:  "verbose_json",
		apiURL:   apiURL,
		apiKey:   apiKey,
		client:   NewTracedClient(apiURL),
	}}
}

type OpenAI struct{ whisperAPI }

func NewOpenAI(apiKey string) *OpenAI {
	const apiURL = "https://api.openai.com/v1/audio/transcriptions"
	return &OpenAI{whisperAPI{
		provider: "openai",
		model:    "whisper-1",
		respFmt:  "json",
		apiURL:   apiURL,
		apiKey:   apiKey,
		client:   NewTracedClient(apiURL),
	}}
}
