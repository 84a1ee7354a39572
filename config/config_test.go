package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"sotto/model"
)

func clearEnv(t *testing.T) {
	for _, k := range []string{
		"SOTTO_SOCKET", "SOTTO_PROVIDER", "SOTTO_MODEL", "SOTTO_LANG", "SOTTO_FORMAT",
		"SOTTO_MODEL_INDEX", "SOTTO_WHISPER_BIN", "SOTTO_DEVICE", "GROQ_API_KEY", "OPENAI_API_KEY",
	} {
		t.Setenv(k, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	h := t.TempDir()
	t.Setenv("SOTTO_HOME", h)

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Home != h || cfg.Socket != filepath.Join(h, "sotto.sock") {
		t.Errorf("Home=%q Socket=%q", cfg.Home, cfg.Socket)
	}
	if cfg.Provider != "local" || cfg.Model != "whisper_base" || cfg.Format != "flac" || cfg.Language != "en" {
		t.Errorf("defaults = %+v", cfg)
	}
	if cfg.ModelIndex != model.DefaultIndexURL {
		t.Errorf("ModelIndex = %q", cfg.ModelIndex)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults invalid: %v", err)
	}
	if cfg.RecordingsDir() != filepath.Join(h, "recordings") {
		t.Errorf("RecordingsDir = %q", cfg.RecordingsDir())
	}
}

func TestLoadFileThenEnv(t *testing.T) {
	clearEnv(t)
	h := t.TempDir()
	t.Setenv("SOTTO_HOME", h)
	file := "provider: groq\nmodel: whisper_small\nformat: wav\ncues: true\nsocket: /tmp/from-file.sock\n"
	if err := os.WriteFile(filepath.Join(h, FileName), []byte(file), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("SOTTO_MODEL", "whisper_tiny")
	t.Setenv("GROQ_API_KEY", "gsk")

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Provider != "groq" || cfg.Format != "wav" || !cfg.Cues {
		t.Errorf("file values not applied: %+v", cfg)
	}
	if cfg.Model != "whisper_tiny" {
		t.Errorf("Model = %q, env should win over file", cfg.Model)
	}
	if cfg.Socket != "/tmp/from-file.sock" {
		t.Errorf("Socket = %q", cfg.Socket)
	}
	if cfg.GroqKey != "gsk" {
		t.Errorf("GroqKey = %q", cfg.GroqKey)
	}
}

func TestLoadBadFile(t *testing.T) {
	clearEnv(t)
	h := t.TempDir()
	t.Setenv("SOTTO_HOME", h)
	os.WriteFile(filepath.Join(h, FileName), []byte("provider: [unterminated"), 0o644)
	if _, err := Load(); err == nil {
		t.Error("expected parse error")
	}
}

func TestValidate(t *testing.T) {
	base := Default("/h")
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{"ok", func(*Config) {}, nil},
		{"provider", func(c *Config) { c.Provider = "whisperx" }, ErrUnknownProvider},
		{"format", func(c *Config) { c.Format = "mp3" }, ErrUnknownFormat},
		{"model", func(c *Config) { c.Model = "whisper_huge" }, model.ErrUnknownModel},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := base
			tt.mutate(&c)
			err := c.Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Fatal(err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("err = %v, want %v", err, tt.wantErr)
			}
		})
	}
}
