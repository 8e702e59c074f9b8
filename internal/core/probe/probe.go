// Package probe provides a best-effort network reachability check. The engine
// uses it to decide whether an ambiguous transport failure was a genuine
// outage or server-side throttling with a swallowed status code.
package probe

import (
	"context"
	"net/http"
	"time"
)

// Prober reports whether basic network connectivity appears to be working.
type Prober interface {
	IsReachable(ctx context.Context) bool
}

// DefaultURL is a stable connectivity-check endpoint that returns 204.
const DefaultURL = "https://www.gstatic.com/generate_204"

// HTTPProber checks reachability with a single lightweight GET.
type HTTPProber struct {
	Client *http.Client
	URL    string
}

// IsReachable returns true when the probe URL answers with any status below
// 500. The check is deliberately forgiving: it only has to distinguish "the
// network works" from "the network is down".
func (p *HTTPProber) IsReachable(ctx context.Context) bool {
	if ctx == nil {
		ctx = context.Background()
	}

	target := DefaultURL
	if p != nil && p.URL != "" {
		target = p.URL
	}

	client := &http.Client{Timeout: 3 * time.Second}
	if p != nil && p.Client != nil {
		client = p.Client
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return false
	}

	resp, err := client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close() // nolint:errcheck // best-effort cleanup on HTTP response body

	return resp.StatusCode < 500
}
