// Package config resolves sotto's settings: defaults, then
// $SOTTO_HOME/config.yaml, then environment variables. Command-line flags are
// applied on top by the caller.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"sotto/model"
)

var (
	ErrNoHomeDir       = errors.New("couldn't find a home directory")
	ErrUnknownProvider = errors.New("unknown provider")
	ErrUnknownFormat   = errors.New("unknown upload format")
)

const FileName = "config.yaml"

var Providers = []string{"local", "groq", "openai", "fake"}

type Config struct {
	Home       string `yaml:"-"`
	Socket     string `yaml:"socket"`
	Provider   string `yaml:"provider"`
	Model      string `yaml:"model"`
	Language   string `yaml:"language"`
	Format     string `yaml:"format"`
	ModelIndex string `yaml:"model_index"`
	WhisperBin string `yaml:"whisper_bin"`
	Device     string `yaml:"device"`
	Cues       bool   `yaml:"cues"`
	AutoStop   bool   `yaml:"auto_stop"`

	// keys are only read from the environment
	GroqKey   string `yaml:"-"`
	OpenAIKey string `yaml:"-"`
}

func home() (string, error) {
	if h := os.Getenv("SOTTO_HOME"); h != "" {
		return h, nil
	}
	dir, err := os.UserHomeDir()
	if err != nil || dir == "" {
		return "", ErrNoHomeDir
	}
	return filepath.Join(dir, ".sotto"), nil
}

// Default returns the built-in settings rooted at home.
func Default(home string) Config {
	return Config{
		Home:       home,
		Provider:   "local",
		Model:      string(model.Default),
		Language:   "en",
		Format:     "flac",
		ModelIndex: model.DefaultIndexURL,
	}
}

// Load reads the config file, if any, and applies the environment.
func Load() (Config, error) {
	h, err := home()
	if err != nil {
		return Config{}, err
	}
	cfg := Default(h)

	data, err := os.ReadFile(cfg.Path())
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("%s: %w", cfg.Path(), err)
		}
	case !errors.Is(err, os.ErrNotExist):
		return cfg, err
	}

	cfg.applyEnv()
	if cfg.Socket == "" {
		cfg.Socket = filepath.Join(cfg.Home, "sotto.sock")
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	for env, dst := range map[string]*string{
		"SOTTO_SOCKET":      &c.Socket,
		"SOTTO_PROVIDER":    &c.Provider,
		"SOTTO_MODEL":       &c.Model,
		"SOTTO_LANG":        &c.Language,
		"SOTTO_FORMAT":      &c.Format,
		"SOTTO_MODEL_INDEX": &c.ModelIndex,
		"SOTTO_WHISPER_BIN": &c.WhisperBin,
		"SOTTO_DEVICE":      &c.Device,
		"GROQ_API_KEY":      &c.GroqKey,
		"OPENAI_API_KEY":    &c.OpenAIKey,
	} {
		if v := os.Getenv(env); v != "" {
			*dst = v
		}
	}
}

// Path is the config file location.
func (c Config) Path() string { return filepath.Join(c.Home, FileName) }

// ModelsDir holds downloaded models, directly in the sotto home.
func (c Config) ModelsDir() string { return c.Home }

func (c Config) RecordingsDir() string { return filepath.Join(c.Home, "recordings") }

func (c Config) Validate() error {
	known := false
	for _, p := range Providers {
		if c.Provider == p {
			known = true
			break
		}
	}
	if !known {
		return fmt.Errorf("%q: %w", c.Provider, ErrUnknownProvider)
	}
	if c.Format != "flac" && c.Format != "wav" {
		return fmt.Errorf("%q: %w", c.Format, ErrUnknownFormat)
	}
	if _, err := model.Parse(c.Model); err != nil {
		return err
	}
	return nil
}
