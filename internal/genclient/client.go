// Package genclient calls the generation endpoint over HTTP.
package genclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/p-n-ai/buzzle/internal/experience"
)

// Error is returned for transport failures and non-2xx responses.
type Error struct {
	// StatusCode is zero when no response was received.
	StatusCode int
	Message    string
	Err        error
}

func (e *Error) Error() string {
	if e.StatusCode == 0 {
		return "generation service unreachable: " + e.Message
	}
	return fmt.Sprintf("generation service error (status %d): %s", e.StatusCode, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Client talks to a single generation endpoint.
type Client struct {
	url    string
	client *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the HTTP client. The default has no timeout: generation
// with narration can take tens of seconds.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.client = hc
	}
}

// New creates a client for the endpoint at url.
func New(url string, opts ...Option) *Client {
	c := &Client{url: url, client: &http.Client{}}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Generate requests a new experience.
func (c *Client) Generate(ctx context.Context, req experience.GenerateRequest) (*experience.Experience, error) {
	var exp experience.Experience
	if err := c.post(ctx, req, &exp); err != nil {
		return nil, err
	}
	return &exp, nil
}

// Feedback requests narration for a scored answer.
func (c *Client) Feedback(ctx context.Context, req experience.FeedbackRequest) (experience.FeedbackResponse, error) {
	req.Type = experience.FeedbackType
	var resp experience.FeedbackResponse
	if err := c.post(ctx, req, &resp); err != nil {
		return experience.FeedbackResponse{}, err
	}
	return resp, nil
}

func (c *Client) post(ctx context.Context, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return &Error{Message: err.Error(), Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return &Error{StatusCode: resp.StatusCode, Message: "reading response: " + err.Error(), Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := http.StatusText(resp.StatusCode)
		var e experience.ErrorResponse
		if json.Unmarshal(raw, &e) == nil && e.Error != "" {
			msg = e.Error
		}
		return &Error{StatusCode: resp.StatusCode, Message: msg}
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return &Error{StatusCode: resp.StatusCode, Message: "decoding response: " + err.Error(), Err: err}
	}
	return nil
}
