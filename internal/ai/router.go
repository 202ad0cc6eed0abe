package ai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// ErrNoProvider is returned when the router has nothing to try.
var ErrNoProvider = errors.New("no AI provider registered")

// Router selects a provider based on task type and availability.
type Router struct {
	providers map[string]Provider
	fallback  []string            // ordered fallback chain
	preferred map[TaskType]string // provider tried first for a task
	mu        sync.RWMutex
}

// NewRouter creates a new AI router.
func NewRouter() *Router {
	return &Router{
		providers: make(map[string]Provider),
		preferred: make(map[TaskType]string),
	}
}

// Register adds a provider to the router.
func (r *Router) Register(name string, provider Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.providers[name]; !exists {
		r.fallback = append(r.fallback, name)
	}
	r.providers[name] = provider
}

// Prefer makes the named provider the first choice for task.
func (r *Router) Prefer(task TaskType, name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.preferred[task] = name
}

// Complete routes a request to the best available provider.
func (r *Router) Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error) {
	r.mu.RLock()
	order := r.order(req.Task)
	providers := make([]Provider, len(order))
	for i, name := range order {
		providers[i] = r.providers[name]
	}
	r.mu.RUnlock()

	if len(order) == 0 {
		return CompletionResponse{}, ErrNoProvider
	}

	var lastErr error
	for i, name := range order {
		resp, err := providers[i].Complete(ctx, req)
		if err != nil {
			lastErr = err
			slog.Warn("AI provider failed, trying next",
				"provider", name,
				"task", req.Task.String(),
				"error", err,
			)
			if ctx.Err() != nil {
				break
			}
			continue
		}

		resp.Provider = name
		slog.Debug("AI request completed",
			"provider", name,
			"task", req.Task.String(),
			"model", resp.Model,
			"input_tokens", resp.InputTokens,
			"output_tokens", resp.OutputTokens,
		)
		return resp, nil
	}

	return CompletionResponse{}, fmt.Errorf("all AI providers failed: %w", lastErr)
}

// order returns provider names in the order they should be tried for task.
// Callers must hold r.mu.
func (r *Router) order(task TaskType) []string {
	first, ok := r.preferred[task]
	if _, registered := r.providers[first]; !ok || !registered {
		return append([]string(nil), r.fallback...)
	}
	out := make([]string, 0, len(r.fallback))
	out = append(out, first)
	for _, name := range r.fallback {
		if name != first {
			out = append(out, name)
		}
	}
	return out
}

// HasProvider returns true if at least one provider is registered.
func (r *Router) HasProvider() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.providers) > 0
}

// HealthCheck reports healthy when any registered provider is healthy.
func (r *Router) HealthCheck(ctx context.Context) error {
	r.mu.RLock()
	names := append([]string(nil), r.fallback...)
	r.mu.RUnlock()

	if len(names) == 0 {
		return ErrNoProvider
	}
	var errs []error
	for _, name := range names {
		r.mu.RLock()
		p := r.providers[name]
		r.mu.RUnlock()
		err := p.HealthCheck(ctx)
		if err == nil {
			return nil
		}
		errs = append(errs, fmt.Errorf("%s: %w", name, err))
	}
	return errors.Join(errs...)
}
