// Package callback implements the outward HTTP callback contract spec.md
// §6 names: POST JSON {experiment, event, status, report_url?, error?,
// timestamp} with retry count R and linear backoff (attempt-number
// seconds), per-attempt timeout τ. Success is any 2xx; anything else
// (including a transport error) counts as a failed attempt.
//
// Grounded on original_source/src/server/callback.rs's CallbackEvent enum
// and its attempt-as-u64-seconds linear backoff; the original's
// reqwest::blocking client maps directly onto net/http.Client, which is
// the only library stdlib or third-party a fire-and-retry JSON POST
// needs — see DESIGN.md's Callback entry.
package callback

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Event is one of the snake_case event names spec.md §6 fixes.
type Event string

const (
	ExperimentStarted   Event = "experiment_started"
	ExperimentCompleted Event = "experiment_completed"
	ExperimentFailed    Event = "experiment_failed"
	ExperimentAborted   Event = "experiment_aborted"
)

// Payload is the exact JSON body POSTed to the experiment's callback_url.
type Payload struct {
	Experiment string `json:"experiment"`
	Event      Event  `json:"event"`
	Status     string `json:"status"`
	ReportURL  string `json:"report_url,omitempty"`
	Error      string `json:"error,omitempty"`
	Timestamp  string `json:"timestamp"`
}

// Policy is the retry/timeout configuration, sourced from
// server.callback.{timeout-secs,retry-count}.
type Policy struct {
	RetryCount  int
	TimeoutSecs int
}

// DefaultPolicy matches spec.md §6's defaults: R=3, τ=30s.
func DefaultPolicy() Policy { return Policy{RetryCount: 3, TimeoutSecs: 30} }

// Client posts lifecycle callbacks with linear backoff retry.
type Client struct {
	httpClient *http.Client
	policy     Policy
}

func NewClient(policy Policy) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: time.Duration(policy.TimeoutSecs) * time.Second},
		policy:     policy,
	}
}

// Send posts payload to url, making up to policy.RetryCount attempts in
// all with linear backoff (attempt N waits N seconds before the next one).
// Returns the last attempt's error, wrapped, once all attempts are
// exhausted, or nil on any 2xx.
func (c *Client) Send(ctx context.Context, url string, payload Payload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("callback: marshal payload: %w", err)
	}

	var lastErr error
	for attempt := 1; attempt <= c.policy.RetryCount; attempt++ {
		if err := c.attempt(ctx, url, body); err != nil {
			lastErr = err
			if attempt < c.policy.RetryCount {
				select {
				case <-time.After(time.Duration(attempt) * time.Second):
				case <-ctx.Done():
					return ctx.Err()
				}
			}
			continue
		}
		return nil
	}
	return fmt.Errorf("callback: %s: exhausted %d attempts: %w", url, c.policy.RetryCount, lastErr)
}

func (c *Client) attempt(ctx context.Context, url string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("callback: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("callback: post %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("callback: %s returned status %d", url, resp.StatusCode)
	}
	return nil
}
