// Package progress records game results per player.
package progress

import (
	"context"
	"errors"
	"strings"
	"time"
)

// Wire messages returned by the progress endpoint.
const (
	MsgMissingFields = "Missing required fields."
	MsgSaved         = "User progress saved."
	MsgInternal      = "Internal server error."
)

// ErrMissingFields is returned when a save request lacks a required field.
var ErrMissingFields = errors.New("missing required fields")

// Record is one completed game. Records are append-only.
type Record struct {
	UserID         string    `json:"userId" dynamodbav:"userId"`
	TotalQuestions int       `json:"totalQuestions" dynamodbav:"totalQuestions"`
	CorrectAnswers int       `json:"correctAnswers" dynamodbav:"correctAnswers"`
	Timestamp      time.Time `json:"timestamp" dynamodbav:"timestamp"`
}

// Request is the body of a save request. Counts are pointers so an absent
// field can be told apart from zero.
type Request struct {
	UserID         string `json:"userId"`
	TotalQuestions *int   `json:"totalQuestions"`
	CorrectAnswers *int   `json:"correctAnswers"`
}

// NewRequest builds a request from plain values.
func NewRequest(userID string, total, correct int) Request {
	return Request{UserID: userID, TotalQuestions: &total, CorrectAnswers: &correct}
}

// Validate returns ErrMissingFields unless every field is present.
func (r Request) Validate() error {
	if strings.TrimSpace(r.UserID) == "" || r.TotalQuestions == nil || r.CorrectAnswers == nil {
		return ErrMissingFields
	}
	return nil
}

// Record converts a valid request into a record stamped at now.
func (r Request) Record(now time.Time) Record {
	return Record{
		UserID:         r.UserID,
		TotalQuestions: *r.TotalQuestions,
		CorrectAnswers: *r.CorrectAnswers,
		Timestamp:      now.UTC(),
	}
}

// Store persists progress records.
type Store interface {
	Append(ctx context.Context, rec Record) error
	// ListByUser returns a player's records oldest first.
	ListByUser(ctx context.Context, userID string) ([]Record, error)
}

// Reporter is how a finished session reports its result.
type Reporter interface {
	Report(ctx context.Context, req Request) error
}
