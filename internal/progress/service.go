package progress

import (
	"context"
	"log/slog"
	"time"

	"github.com/p-n-ai/buzzle/internal/platform/observe"
)

// Service validates and stores progress. It is the in-process Reporter.
type Service struct {
	store     Store
	storeName string
	metrics   *observe.Metrics
	now       func() time.Time
}

// NewService creates a service over store. name labels metrics ("memory",
// "postgres", "dynamodb").
func NewService(store Store, name string, metrics *observe.Metrics) *Service {
	return &Service{store: store, storeName: name, metrics: metrics, now: time.Now}
}

// Report validates req and appends a record stamped with the current time.
func (s *Service) Report(ctx context.Context, req Request) error {
	if err := req.Validate(); err != nil {
		return err
	}
	rec := req.Record(s.now())
	err := s.store.Append(ctx, rec)
	s.metrics.RecordProgressWrite(ctx, s.storeName, err)
	if err != nil {
		slog.Error("failed to save progress", "user_id", rec.UserID, "store", s.storeName, "error", err)
		return err
	}
	slog.Info("progress saved",
		"user_id", rec.UserID,
		"total_questions", rec.TotalQuestions,
		"correct_answers", rec.CorrectAnswers,
	)
	return nil
}

// History returns a player's records oldest first.
func (s *Service) History(ctx context.Context, userID string) ([]Record, error) {
	return s.store.ListByUser(ctx, userID)
}
