package progress

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const defaultClientTimeout = 10 * time.Second

// ClientError is a non-2xx reply from the progress endpoint.
type ClientError struct {
	StatusCode int
	Message    string
}

func (e *ClientError) Error() string {
	return fmt.Sprintf("progress endpoint error (status %d): %s", e.StatusCode, e.Message)
}

// Client reports progress to a remote endpoint.
type Client struct {
	url    string
	client *http.Client
}

// NewClient creates a reporter for the endpoint at url.
func NewClient(url string) *Client {
	return &Client{url: url, client: &http.Client{Timeout: defaultClientTimeout}}
}

type reply struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

// Report sends req. The request is validated locally first.
func (c *Client) Report(ctx context.Context, req Request) error {
	if err := req.Validate(); err != nil {
		return err
	}

	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal progress: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("send progress: %w", err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var r reply
		msg := http.StatusText(resp.StatusCode)
		if json.Unmarshal(raw, &r) == nil && r.Error != "" {
			msg = r.Error
		}
		return &ClientError{StatusCode: resp.StatusCode, Message: msg}
	}
	return nil
}
