// Package experience defines the generated lesson/quiz payload and the wire
// types exchanged with the generation endpoint.
package experience

import (
	"fmt"
	"strings"
)

// Mode selects between a question game and a short narrated lesson.
type Mode string

const (
	ModeGame  Mode = "game"
	ModeLearn Mode = "learn"
)

// ParseMode parses a mode case-insensitively.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeGame:
		return ModeGame, nil
	case ModeLearn:
		return ModeLearn, nil
	default:
		return "", fmt.Errorf("unknown mode %q", s)
	}
}

// Question is one prompt of a game.
type Question struct {
	Text            string `json:"question"`
	Answer          string `json:"answer"`
	Audio           string `json:"audio,omitempty"`
	CorrectResponse string `json:"correct_response,omitempty"`
	WrongResponse   string `json:"wrong_response,omitempty"`
}

// Experience is the generated payload for one session.
type Experience struct {
	Title string `json:"title"`

	// Game mode.
	Intro             string     `json:"intro,omitempty"`
	IntroAudio        string     `json:"intro_audio,omitempty"`
	OutroSuccess      string     `json:"outro_success,omitempty"`
	OutroSuccessAudio string     `json:"outro_success_audio,omitempty"`
	OutroRetry        string     `json:"outro_retry,omitempty"`
	OutroRetryAudio   string     `json:"outro_retry_audio,omitempty"`
	Questions         []Question `json:"questions,omitempty"`

	// Learn mode.
	Content string `json:"content,omitempty"`
	Audio   string `json:"audio,omitempty"`
}

// Outro returns the closing narration for a session that scored correct answers.
func (e *Experience) Outro(correct, threshold int) (text, audio string, success bool) {
	if correct >= threshold {
		return e.OutroSuccess, e.OutroSuccessAudio, true
	}
	return e.OutroRetry, e.OutroRetryAudio, false
}

// GenerateRequest asks the endpoint for a new experience.
type GenerateRequest struct {
	Character string `json:"character"`
	Subject   string `json:"subject"`
	Mode      Mode   `json:"mode"`
	Level     int    `json:"level"`
}

// FeedbackType is the discriminator value of a feedback request.
const FeedbackType = "feedback"

// FeedbackRequest asks the endpoint for narration of a scored answer.
type FeedbackRequest struct {
	Type         string   `json:"type"`
	Character    string   `json:"character"`
	IsCorrect    bool     `json:"is_correct"`
	QuestionData Question `json:"question_data"`
}

// FeedbackResponse carries the optional feedback narration.
type FeedbackResponse struct {
	Audio *string `json:"audio"`
}

// HasAudio reports whether the response carries narration.
func (r FeedbackResponse) HasAudio() bool {
	return r.Audio != nil && *r.Audio != ""
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
}
