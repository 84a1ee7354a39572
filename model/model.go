// Package model downloads and locates Whisper models.
package model

import (
	"errors"
	"fmt"
	"strings"
)

type Model string

const (
	WhisperTiny   Model = "whisper_tiny"
	WhisperBase   Model = "whisper_base"
	WhisperSmall  Model = "whisper_small"
	WhisperMedium Model = "whisper_medium"
	WhisperLarge  Model = "whisper_large"
)

const Default = WhisperBase

var ErrUnknownModel = errors.New("unknown model")

func All() []Model {
	return []Model{WhisperTiny, WhisperBase, WhisperSmall, WhisperMedium, WhisperLarge}
}

// Parse accepts a model identifier, with or without the "whisper_" prefix.
func Parse(s string) (Model, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if !strings.HasPrefix(s, "whisper_") {
		s = "whisper_" + s
	}
	for _, m := range All() {
		if string(m) == s {
			return m, nil
		}
	}
	return "", fmt.Errorf("%q: %w", s, ErrUnknownModel)
}

func (m Model) FileName() string {
	return string(m) + ".bin"
}

// MemoryMB is the approximate RAM whisper.cpp needs to run the model.
func (m Model) MemoryMB() int {
	switch m {
	case WhisperTiny:
		return 273
	case WhisperBase:
		return 388
	case WhisperSmall:
		return 852
	case WhisperMedium:
		return 2100
	case WhisperLarge:
		return 3900
	}
	return 0
}
