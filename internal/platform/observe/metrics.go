// Package observe holds the OpenTelemetry metric instruments, the Prometheus
// exporter bridge, HTTP middleware and logger construction.
//
// Tests should build their own Metrics with NewMetrics and a ManualReader
// instead of touching DefaultMetrics.
package observe

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/p-n-ai/buzzle"

// Metrics holds all metric instruments. A nil *Metrics records nothing.
type Metrics struct {
	// GenerationDuration tracks generation endpoint latency, including narration.
	GenerationDuration metric.Float64Histogram
	// Generations counts generation attempts by mode and status.
	Generations metric.Int64Counter
	// SpeechClips counts synthesized clips by kind and status.
	SpeechClips metric.Int64Counter
	// Answers counts scored answers by result.
	Answers metric.Int64Counter
	// SessionsCompleted counts finished games by outcome (success, retry).
	SessionsCompleted metric.Int64Counter
	// ProgressWrites counts progress saves by store and status.
	ProgressWrites metric.Int64Counter
	// ActivePlayers tracks connected play bridges.
	ActivePlayers metric.Int64UpDownCounter
	// HTTPRequestDuration tracks request latency by method, route and status.
	HTTPRequestDuration metric.Float64Histogram
}

var latencyBuckets = []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 40}

// NewMetrics creates every instrument from mp.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.GenerationDuration, err = m.Float64Histogram("buzzle.generation.duration",
		metric.WithDescription("Latency of experience generation including narration."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.Generations, err = m.Int64Counter("buzzle.generations",
		metric.WithDescription("Experience generations by mode and status."),
	); err != nil {
		return nil, err
	}
	if met.SpeechClips, err = m.Int64Counter("buzzle.speech.clips",
		metric.WithDescription("Synthesized narration clips by kind and status."),
	); err != nil {
		return nil, err
	}
	if met.Answers, err = m.Int64Counter("buzzle.answers",
		metric.WithDescription("Scored answers by result."),
	); err != nil {
		return nil, err
	}
	if met.SessionsCompleted, err = m.Int64Counter("buzzle.sessions.completed",
		metric.WithDescription("Completed games by outcome."),
	); err != nil {
		return nil, err
	}
	if met.ProgressWrites, err = m.Int64Counter("buzzle.progress.writes",
		metric.WithDescription("Progress record writes by store and status."),
	); err != nil {
		return nil, err
	}
	if met.ActivePlayers, err = m.Int64UpDownCounter("buzzle.active_players",
		metric.WithDescription("Connected play bridges."),
	); err != nil {
		return nil, err
	}
	if met.HTTPRequestDuration, err = m.Float64Histogram("buzzle.http.request.duration",
		metric.WithDescription("HTTP request latency by method, route and status."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the process-wide instance built on the global
// meter provider. Call InitProvider first so it exports.
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// RecordGeneration records one generation attempt.
func (m *Metrics) RecordGeneration(ctx context.Context, mode string, elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("mode", mode),
		attribute.String("status", status(err)),
	)
	m.Generations.Add(ctx, 1, attrs)
	m.GenerationDuration.Record(ctx, elapsed.Seconds(), attrs)
}

// RecordClip records one narration synthesis.
func (m *Metrics) RecordClip(ctx context.Context, kind string, err error) {
	if m == nil {
		return
	}
	m.SpeechClips.Add(ctx, 1, metric.WithAttributes(
		attribute.String("kind", kind),
		attribute.String("status", status(err)),
	))
}

// RecordAnswer records one scored answer.
func (m *Metrics) RecordAnswer(ctx context.Context, correct bool) {
	if m == nil {
		return
	}
	result := "wrong"
	if correct {
		result = "correct"
	}
	m.Answers.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
}

// RecordCompletion records a finished game.
func (m *Metrics) RecordCompletion(ctx context.Context, success bool) {
	if m == nil {
		return
	}
	outcome := "retry"
	if success {
		outcome = "success"
	}
	m.SessionsCompleted.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

// RecordProgressWrite records a progress save.
func (m *Metrics) RecordProgressWrite(ctx context.Context, store string, err error) {
	if m == nil {
		return
	}
	m.ProgressWrites.Add(ctx, 1, metric.WithAttributes(
		attribute.String("store", store),
		attribute.String("status", status(err)),
	))
}

// PlayerConnected adjusts the active player gauge by delta.
func (m *Metrics) PlayerConnected(ctx context.Context, delta int64) {
	if m == nil {
		return
	}
	m.ActivePlayers.Add(ctx, delta)
}
