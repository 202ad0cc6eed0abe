package tts

import (
	"context"
	"errors"
	"sync"
)

var errMockFailure = errors.New("mock synthesis failed")

// MockSynthesizer is a test double that returns "mp3:<voice>:<text>".
type MockSynthesizer struct {
	Err error
	// FailFor makes synthesis of these exact texts fail.
	FailFor map[string]bool

	mu    sync.Mutex
	texts []string
}

func (m *MockSynthesizer) Synthesize(_ context.Context, text, voice string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.texts = append(m.texts, text)
	if m.Err != nil {
		return nil, m.Err
	}
	if m.FailFor[text] {
		return nil, errMockFailure
	}
	if text == "" {
		return nil, ErrEmptyText
	}
	return []byte("mp3:" + voice + ":" + text), nil
}

// Texts returns every text requested so far.
func (m *MockSynthesizer) Texts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.texts...)
}
