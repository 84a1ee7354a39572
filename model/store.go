package model

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

// DefaultIndexURL is the published model index. It maps model identifiers to
// download URLs.
const DefaultIndexURL = "https://raw.githubusercontent.com/arctic-hen7/sotto/prod-index/models.json"

const (
	indexCacheFile = "model_index.json"
	indexCacheTTL  = 24 * time.Hour
)

var (
	ErrIndexIncomplete = errors.New("the model index is missing a key")
	ErrIndexInvalid    = errors.New("failed to parse the model index")
)

// StatusError is a non-2xx reply while fetching the index or a model.
type StatusError struct {
	What       string // "model index" or "model"
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("getting %s failed with http status code %d", e.What, e.StatusCode)
}

// Store keeps downloaded models in one directory.
type Store struct {
	Dir      string
	IndexURL string
	Client   *http.Client

	// Progress, when set, receives a one-line download meter.
	Progress io.Writer
}

func NewStore(dir string) *Store {
	return &Store{Dir: dir, IndexURL: DefaultIndexURL, Client: http.DefaultClient}
}

func (s *Store) Path(m Model) string {
	return filepath.Join(s.Dir, m.FileName())
}

// Get returns the model path if it has been downloaded.
func (s *Store) Get(m Model) (string, bool) {
	p := s.Path(m)
	if fi, err := os.Stat(p); err == nil && fi.Mode().IsRegular() {
		return p, true
	}
	return "", false
}

func (s *Store) GetOrDownload(ctx context.Context, m Model) (string, error) {
	if p, ok := s.Get(m); ok {
		return p, nil
	}
	return s.Download(ctx, m)
}

// Download fetches the model even if it already exists. The file only
// appears under its final name once it is complete.
func (s *Store) Download(ctx context.Context, m Model) (string, error) {
	url, err := s.resolve(ctx, m)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return "", fmt.Errorf("create model directory: %w", err)
	}

	// same directory as the target so the rename is atomic
	tmp, err := os.CreateTemp(s.Dir, "."+string(m)+"-*")
	if err != nil {
		return "", fmt.Errorf("create model file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	resp, err := s.get(ctx, url)
	if err != nil {
		tmp.Close()
		return "", fmt.Errorf("download model (are you connected to the internet?): %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		tmp.Close()
		return "", &StatusError{What: "model", StatusCode: resp.StatusCode}
	}

	src := io.Reader(resp.Body)
	if s.Progress != nil && resp.ContentLength > 0 {
		src = &progressReader{r: resp.Body, total: resp.ContentLength, w: s.Progress}
	}
	if _, err := io.Copy(tmp, src); err != nil {
		tmp.Close()
		return "", fmt.Errorf("write model: %w", err)
	}
	if s.Progress != nil && resp.ContentLength > 0 {
		fmt.Fprintln(s.Progress)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("write model: %w", err)
	}

	dst := s.Path(m)
	if err := os.Rename(tmpPath, dst); err != nil {
		return "", fmt.Errorf("install model: %w", err)
	}
	return dst, nil
}

func (s *Store) get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}
	return client.Do(req)
}

type cachedIndex struct {
	Models    map[string]string `json:"models"`
	FetchedAt int64             `json:"fetched_at"`
}

func (s *Store) cachePath() string {
	return filepath.Join(s.Dir, indexCacheFile)
}

func (s *Store) readCache() (map[string]string, bool) {
	data, err := os.ReadFile(s.cachePath())
	if err != nil {
		return nil, false
	}
	var c cachedIndex
	if json.Unmarshal(data, &c) != nil {
		return nil, false
	}
	if time.Since(time.Unix(c.FetchedAt, 0)) > indexCacheTTL {
		return nil, false
	}
	return c.Models, true
}

func (s *Store) writeCache(models map[string]string) {
	data, err := json.Marshal(cachedIndex{Models: models, FetchedAt: time.Now().Unix()})
	if err != nil {
		return
	}
	_ = os.MkdirAll(s.Dir, 0o755)
	_ = os.WriteFile(s.cachePath(), data, 0o644)
}

func (s *Store) fetchIndex(ctx context.Context) (map[string]string, error) {
	url := s.IndexURL
	if url == "" {
		url = DefaultIndexURL
	}
	resp, err := s.get(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("get model index (are you connected to the internet?): %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return nil, &StatusError{What: "model index", StatusCode: resp.StatusCode}
	}

	var models map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&models); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIndexInvalid, err)
	}
	return models, nil
}

// resolve looks the model up in the cached index first. A cached index that
// lacks the key is refreshed once before giving up.
func (s *Store) resolve(ctx context.Context, m Model) (string, error) {
	if models, ok := s.readCache(); ok {
		if url := models[string(m)]; url != "" {
			return url, nil
		}
	}
	models, err := s.fetchIndex(ctx)
	if err != nil {
		return "", err
	}
	s.writeCache(models)
	url := models[string(m)]
	if url == "" {
		return "", fmt.Errorf("%s: %w", m, ErrIndexIncomplete)
	}
	return url, nil
}

type progressReader struct {
	r     io.Reader
	w     io.Writer
	total int64
	read  int64
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	p.read += int64(n)
	pct := float64(p.read) / float64(p.total) * 100
	fmt.Fprintf(p.w, "\r  %.0f%% (%d / %d KB)", pct, p.read/1024, p.total/1024)
	return n, err
}
