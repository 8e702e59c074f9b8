// Package anilist is the GraphQL transport for the AniList API. It issues the
// read operations the quiz needs and normalizes every failure into the typed
// taxonomy in errors.go. Rate-limit policy lives in the engine, not here.
package anilist

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"
)

// DefaultEndpoint is the public AniList GraphQL endpoint.
const DefaultEndpoint = "https://graphql.anilist.co"

// ResponseMeta carries the HTTP-level metadata the governor reads after a
// successful call.
type ResponseMeta struct {
	Status int
	Header http.Header
}

// HeaderValue returns the first value for a header key, or "".
func (m *ResponseMeta) HeaderValue(key string) string {
	if m == nil || m.Header == nil {
		return ""
	}
	return m.Header.Get(key)
}

// Client issues GraphQL queries against AniList.
type Client struct {
	HTTPClient *http.Client
	Endpoint   string
	UserAgent  string
}

type graphqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type graphqlError struct {
	Message string `json:"message"`
	Status  int    `json:"status"`
}

type graphqlEnvelope struct {
	Data   json.RawMessage `json:"data"`
	Errors []graphqlError  `json:"errors"`
}

func (c *Client) endpoint() string {
	if c != nil && strings.TrimSpace(c.Endpoint) != "" {
		return c.Endpoint
	}
	return DefaultEndpoint
}

func (c *Client) httpClient() *http.Client {
	if c != nil && c.HTTPClient != nil {
		return c.HTTPClient
	}
	return &http.Client{Timeout: 15 * time.Second}
}

// do posts a query and decodes the data payload into out.
func (c *Client) do(ctx context.Context, query string, variables map[string]any, out any) (*ResponseMeta, error) {
	if c == nil {
		return nil, errors.New("anilist client is not configured")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	body, err := json.Marshal(graphqlRequest{Query: query, Variables: variables})
	if err != nil {
		return nil, &DecodeError{Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(), bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if ua := strings.TrimSpace(c.UserAgent); ua != "" {
		req.Header.Set("User-Agent", ua)
	}

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	defer resp.Body.Close() // nolint:errcheck // best-effort cleanup on HTTP response body

	meta := &ResponseMeta{Status: resp.StatusCode, Header: resp.Header}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, &TransportError{Err: err}
	}

	if resp.StatusCode >= 400 {
		message := ""
		var envelope graphqlEnvelope
		if json.Unmarshal(raw, &envelope) == nil && len(envelope.Errors) > 0 {
			message = envelope.Errors[0].Message
		}
		return meta, &HTTPError{Status: resp.StatusCode, Message: message, Header: resp.Header}
	}

	var envelope graphqlEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return meta, &DecodeError{Err: err}
	}
	if len(envelope.Errors) > 0 {
		status := envelope.Errors[0].Status
		if status == 0 {
			status = resp.StatusCode
		}
		return meta, &HTTPError{Status: status, Message: envelope.Errors[0].Message, Header: resp.Header}
	}
	if len(envelope.Data) == 0 {
		return meta, &DecodeError{Err: errors.New("empty data payload")}
	}

	if out != nil {
		if err := json.Unmarshal(envelope.Data, out); err != nil {
			return meta, &DecodeError{Err: err}
		}
	}

	return meta, nil
}
