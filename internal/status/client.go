// Package status polls the external status API that reports whether the
// room is open.
package status

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ErrFetch wraps every failure to obtain a usable status reading.
var ErrFetch = errors.New("status fetch failed")

// Client provides access to the status API
type Client struct {
	url        string
	httpClient *http.Client
}

// Response is the status API payload
type Response struct {
	Open *bool `json:"open"`
}

// NewClient creates a new status client. The timeout bounds each poll.
func NewClient(url string, timeout time.Duration) *Client {
	return &Client{
		url: url,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Poll fetches the current state. It does not retry; the caller's next
// scheduled poll is the retry.
func (c *Client) Poll(ctx context.Context) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrFetch, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrFetch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return false, fmt.Errorf("%w: unexpected status code %d", ErrFetch, resp.StatusCode)
	}

	var body Response
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return false, fmt.Errorf("%w: failed to decode response: %v", ErrFetch, err)
	}
	if body.Open == nil {
		return false, fmt.Errorf("%w: response has no open field", ErrFetch)
	}

	return *body.Open, nil
}
