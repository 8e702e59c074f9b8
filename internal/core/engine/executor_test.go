package engine

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/aniquiz/aniquiz/internal/anilist"
	"github.com/aniquiz/aniquiz/internal/core"
)

type stubTransport struct {
	pool      *anilist.PoolPage
	meta      *anilist.ResponseMeta
	err       error
	poolCalls int
}

func (s *stubTransport) RankedPoolPage(ctx context.Context, page, perPage, yearFrom, yearTo int) (*anilist.PoolPage, *anilist.ResponseMeta, error) {
	s.poolCalls++
	return s.pool, s.meta, s.err
}

func (s *stubTransport) GenrePoolPage(ctx context.Context, page, perPage int, genres []string) (*anilist.PoolPage, *anilist.ResponseMeta, error) {
	s.poolCalls++
	return s.pool, s.meta, s.err
}

func (s *stubTransport) CharactersByMedia(ctx context.Context, ids []int) (map[int][]core.Character, *anilist.ResponseMeta, error) {
	return nil, s.meta, s.err
}

func (s *stubTransport) TitlesByMedia(ctx context.Context, ids []int) (map[int]core.MediaTitle, *anilist.ResponseMeta, error) {
	return nil, s.meta, s.err
}

func (s *stubTransport) MediaDetail(ctx context.Context, id int) (*core.MediaDetail, *anilist.ResponseMeta, error) {
	return nil, s.meta, s.err
}

func TestExecutorSuccessUpdatesGovernor(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	g := &Governor{Clock: func() time.Time { return now }}
	defer g.Stop()

	transport := &stubTransport{
		pool: &anilist.PoolPage{IDs: []int{1, 2, 3}},
		meta: successMeta(80),
	}
	e := &Executor{Transport: transport, Governor: g}

	page, err := e.RankedPoolPage(context.Background(), 1, 50, 1990, 2026)
	require.NoError(t, err)
	require.Equal(t, []int{1, 2, 3}, page.IDs)
	require.Equal(t, 1, transport.poolCalls)

	// 80 reported, 60 offset, minus the completed call.
	require.Equal(t, 19, g.Snapshot().Remaining)
}

func TestExecutorClassifiesThrottle(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	g := &Governor{Clock: func() time.Time { return now }}
	defer g.Stop()

	header := http.Header{}
	header.Set("Retry-After", "30")
	transport := &stubTransport{
		err: &anilist.HTTPError{Status: http.StatusTooManyRequests, Header: header},
	}
	e := &Executor{Transport: transport, Governor: g}

	_, err := e.MediaDetail(context.Background(), 42)

	var throttled *anilist.ThrottleError
	require.ErrorAs(t, err, &throttled)
	require.Equal(t, 30, throttled.RetryAfterSeconds)
	require.True(t, g.Snapshot().PauseActive(now))
}

func TestExecutorPassesThroughOtherErrors(t *testing.T) {
	g := &Governor{}
	defer g.Stop()

	original := &anilist.HTTPError{Status: http.StatusBadGateway}
	transport := &stubTransport{err: original}
	e := &Executor{Transport: transport, Governor: g}

	_, err := e.TitlesByMedia(context.Background(), []int{1})
	require.Equal(t, original, err)
}

func TestExecutorWithoutGovernor(t *testing.T) {
	transport := &stubTransport{
		pool: &anilist.PoolPage{IDs: []int{7}},
		meta: &anilist.ResponseMeta{Status: http.StatusOK},
	}
	e := &Executor{Transport: transport}

	page, err := e.GenrePoolPage(context.Background(), 1, 50, []string{"Action"})
	require.NoError(t, err)
	require.Equal(t, []int{7}, page.IDs)
}
