package progress

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const dbTimeout = 5 * time.Second

// DB is satisfied by *pgxpool.Pool and *pgx.Conn.
type DB interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PostgresStore keeps records in the user_progress table.
type PostgresStore struct {
	db DB
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore creates a store on db. The schema comes from database.Migrate.
func NewPostgresStore(db DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Append(ctx context.Context, rec Record) error {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	ts := rec.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	_, err := s.db.Exec(ctx,
		`INSERT INTO user_progress (user_id, total_questions, correct_answers, recorded_at)
		 VALUES ($1, $2, $3, $4)`,
		rec.UserID,
		rec.TotalQuestions,
		rec.CorrectAnswers,
		ts,
	)
	if err != nil {
		return fmt.Errorf("insert progress: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListByUser(ctx context.Context, userID string) ([]Record, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	rows, err := s.db.Query(ctx,
		`SELECT user_id, total_questions, correct_answers, recorded_at
		 FROM user_progress
		 WHERE user_id = $1
		 ORDER BY recorded_at ASC, id ASC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("query progress: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.UserID, &rec.TotalQuestions, &rec.CorrectAnswers, &rec.Timestamp); err != nil {
			return nil, fmt.Errorf("scan progress: %w", err)
		}
		rec.Timestamp = rec.Timestamp.UTC()
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate progress: %w", err)
	}
	return out, nil
}
