// Package tts turns narration text into mp3 audio.
package tts

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// ErrEmptyText is returned when there is nothing to speak.
var ErrEmptyText = errors.New("tts: empty text")

// Synthesizer converts text into mp3 bytes spoken by voice.
type Synthesizer interface {
	Synthesize(ctx context.Context, text, voice string) ([]byte, error)
}

// EncodeAudio returns the base64 form carried in JSON payloads.
func EncodeAudio(mp3 []byte) string {
	if len(mp3) == 0 {
		return ""
	}
	return base64.StdEncoding.EncodeToString(mp3)
}

// Chain tries each synthesizer in order until one succeeds.
type Chain []Synthesizer

func (c Chain) Synthesize(ctx context.Context, text, voice string) ([]byte, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyText
	}
	if len(c) == 0 {
		return nil, errors.New("tts: no synthesizer configured")
	}

	var lastErr error
	for i, s := range c {
		audio, err := s.Synthesize(ctx, text, voice)
		if err == nil {
			return audio, nil
		}
		lastErr = err
		slog.Warn("speech synthesis failed, trying next", "position", i, "voice", voice, "error", err)
		if ctx.Err() != nil {
			break
		}
	}
	return nil, fmt.Errorf("all synthesizers failed: %w", lastErr)
}
