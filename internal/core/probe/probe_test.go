package probe

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIsReachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	p := &HTTPProber{URL: srv.URL}
	require.True(t, p.IsReachable(context.Background()))
}

func TestIsReachableToleratesClientErrors(t *testing.T) {
	// 4xx still proves the network path works.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	p := &HTTPProber{URL: srv.URL}
	require.True(t, p.IsReachable(context.Background()))
}

func TestIsReachableServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	p := &HTTPProber{URL: srv.URL}
	require.False(t, p.IsReachable(context.Background()))
}

func TestIsReachableConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	p := &HTTPProber{URL: srv.URL}
	require.False(t, p.IsReachable(context.Background()))
}
