package snapshot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// StatePath is the backend endpoint serving the snapshot.
const StatePath = "/api/get_state"

// maxBodyBytes bounds one snapshot body.
const maxBodyBytes = 8 << 20

// ErrFetch wraps every failed fetch so callers can tell a transport or
// response failure from other cycle faults.
var ErrFetch = errors.New("fetch state")

// StatusError reports a non-2xx response.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("unexpected status %d", e.StatusCode)
	}
	return fmt.Sprintf("unexpected status %d: %s", e.StatusCode, e.Body)
}

// Doer sends an HTTP request. *http.Client satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Fetcher performs one read-only GET of the backend state per call.
type Fetcher struct {
	url    string
	client Doer
}

// NewFetcher returns a Fetcher for the backend at baseURL. A nil client
// means an *http.Client with the given timeout (0 leaves it unbounded).
func NewFetcher(baseURL string, client Doer, timeout time.Duration) *Fetcher {
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}
	return &Fetcher{
		url:    strings.TrimRight(baseURL, "/") + StatePath,
		client: client,
	}
}

// URL returns the endpoint being polled.
func (f *Fetcher) URL() string { return f.url }

// Fetch retrieves and decodes one snapshot. It never retries.
func (f *Fetcher) Fetch(ctx context.Context) (*Snapshot, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", ErrFetch, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFetch, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %w", ErrFetch, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: %w", ErrFetch, &StatusError{
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(truncate(string(body), 200)),
		})
	}

	snap, err := Decode(body)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFetch, err)
	}
	return snap, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
