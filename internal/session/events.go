package session

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/p-n-ai/buzzle/internal/platform/database"
)

const dbTimeout = 5 * time.Second

// Session event types.
const (
	EventSessionStarted   = "session_started"
	EventGenerationFailed = "generation_failed"
	EventAnswerScored     = "answer_scored"
	EventSessionCompleted = "session_completed"
	EventSessionAbandoned = "session_abandoned"
)

// Event is an analytics event persisted to the session_events table.
type Event struct {
	SessionID string
	UserID    string
	EventType string
	Data      map[string]any
	CreatedAt time.Time
}

// EventLogger defines event logging behavior.
type EventLogger interface {
	LogEvent(event Event) error
}

// NopEventLogger ignores all events.
type NopEventLogger struct{}

func (NopEventLogger) LogEvent(Event) error {
	return nil
}

// MemoryEventLogger stores events in memory for tests.
type MemoryEventLogger struct {
	mu     sync.Mutex
	events []Event
}

func NewMemoryEventLogger() *MemoryEventLogger {
	return &MemoryEventLogger{
		events: []Event{},
	}
}

func (l *MemoryEventLogger) LogEvent(event Event) error {
	if event.EventType == "" {
		return fmt.Errorf("event_type is required")
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	l.mu.Lock()
	l.events = append(l.events, event)
	l.mu.Unlock()

	return nil
}

func (l *MemoryEventLogger) Events() []Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Event{}, l.events...)
}

// Types returns the event types in logging order.
func (l *MemoryEventLogger) Types() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, len(l.events))
	for i, e := range l.events {
		out[i] = e.EventType
	}
	return out
}

// PostgresEventLogger inserts events into the session_events table.
type PostgresEventLogger struct {
	db database.Execer
}

func NewPostgresEventLogger(db database.Execer) *PostgresEventLogger {
	return &PostgresEventLogger{db: db}
}

func (l *PostgresEventLogger) LogEvent(event Event) error {
	if l == nil || l.db == nil {
		return fmt.Errorf("event logger db is nil")
	}
	if event.EventType == "" {
		return fmt.Errorf("event_type is required")
	}
	if event.SessionID == "" {
		return fmt.Errorf("session_id is required")
	}

	payload := event.Data
	if payload == nil {
		payload = map[string]any{}
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal event data: %w", err)
	}

	createdAt := event.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	ctx, cancel := context.WithTimeout(context.Background(), dbTimeout)
	defer cancel()

	_, err = l.db.Exec(ctx,
		`INSERT INTO session_events (session_id, user_id, event_type, data, created_at)
		 VALUES ($1::uuid, $2, $3, $4::jsonb, $5)`,
		event.SessionID,
		event.UserID,
		event.EventType,
		string(data),
		createdAt,
	)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}

	slog.Debug("event logged",
		"type", event.EventType,
		"session_id", event.SessionID,
		"user_id", event.UserID,
	)
	return nil
}
