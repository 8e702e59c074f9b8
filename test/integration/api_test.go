package integration

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aniquiz/aniquiz/internal/anilist"
	"github.com/aniquiz/aniquiz/internal/core"
	"github.com/aniquiz/aniquiz/internal/core/engine"
	"github.com/aniquiz/aniquiz/internal/core/fetch"
	"github.com/aniquiz/aniquiz/internal/observability"
	"github.com/aniquiz/aniquiz/internal/server"
	"github.com/aniquiz/aniquiz/internal/server/handlers"
)

// stubTransport plays the AniList API for the full pipeline: 12 candidate
// media, two characters each. Responses carry the degraded-mode remaining
// header (reported runs 60 above the enforced budget).
type stubTransport struct {
	poolErr error
}

func (s *stubTransport) meta() *anilist.ResponseMeta {
	header := http.Header{}
	header.Set("X-RateLimit-Remaining", "85")
	return &anilist.ResponseMeta{Status: http.StatusOK, Header: header}
}

func (s *stubTransport) RankedPoolPage(ctx context.Context, page, perPage, yearFrom, yearTo int) (*anilist.PoolPage, *anilist.ResponseMeta, error) {
	if s.poolErr != nil {
		return nil, nil, s.poolErr
	}
	ids := make([]int, 0, 12)
	for i := 1; i <= 12; i++ {
		ids = append(ids, i)
	}
	return &anilist.PoolPage{IDs: ids, HasNext: false}, s.meta(), nil
}

func (s *stubTransport) GenrePoolPage(ctx context.Context, page, perPage int, genres []string) (*anilist.PoolPage, *anilist.ResponseMeta, error) {
	return s.RankedPoolPage(ctx, page, perPage, 0, 0)
}

func (s *stubTransport) CharactersByMedia(ctx context.Context, ids []int) (map[int][]core.Character, *anilist.ResponseMeta, error) {
	grouped := make(map[int][]core.Character, len(ids))
	for _, id := range ids {
		grouped[id] = []core.Character{
			{ID: id*10 + 1, Name: fmt.Sprintf("Character %d-1", id), ImageURL: fmt.Sprintf("https://img.example/%d-1.png", id)},
			{ID: id*10 + 2, Name: fmt.Sprintf("Character %d-2", id), ImageURL: fmt.Sprintf("https://img.example/%d-2.png", id)},
		}
	}
	return grouped, s.meta(), nil
}

func (s *stubTransport) TitlesByMedia(ctx context.Context, ids []int) (map[int]core.MediaTitle, *anilist.ResponseMeta, error) {
	titles := make(map[int]core.MediaTitle, len(ids))
	for _, id := range ids {
		titles[id] = core.MediaTitle{Romaji: fmt.Sprintf("Series %d", id)}
	}
	return titles, s.meta(), nil
}

func (s *stubTransport) MediaDetail(ctx context.Context, id int) (*core.MediaDetail, *anilist.ResponseMeta, error) {
	detail := &core.MediaDetail{
		ID:         id,
		Title:      core.MediaTitle{Romaji: fmt.Sprintf("Series %d", id)},
		SeasonYear: 2013,
		Genres:     []string{"Action"},
	}
	return detail, s.meta(), nil
}

type passingChecker struct{}

func (passingChecker) CheckHealth(ctx context.Context) error { return nil }

// isPermissionError normalizes OS-specific permission errors so we can
// gracefully skip when loopback sockets are blocked.
func isPermissionError(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, os.ErrPermission) || errors.Is(err, syscall.EACCES) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, fragment := range []string{"permission denied", "operation not permitted", "not permitted"} {
		if strings.Contains(msg, fragment) {
			return true
		}
	}

	return false
}

// newAPIServer wires the full pipeline (governor, executor, fetch, assembler)
// behind the real router and binds to IPv4 loopback explicitly.
func newAPIServer(t *testing.T, transport engine.Transport) (*httptest.Server, *http.Client, *engine.Governor) {
	t.Helper()

	observability.InitCLILogger("test", false)
	observability.InitServerLogger("test", "info")

	governor := &engine.Governor{
		Budget: engine.Budget{
			MaxPerMinute: 30,
			LowWaterMark: 5,
			Window:       time.Minute,
			HeaderOffset: 60,
			ResetBuffer:  2 * time.Second,
		},
	}
	t.Cleanup(governor.Stop)

	executor := &engine.Executor{Transport: transport, Governor: governor}
	fetchSvc := &fetch.Service{Executor: executor}

	quiz := &handlers.QuizHandler{
		Assembler: &engine.Assembler{Fetcher: fetchSvc},
		Fetch:     fetchSvc,
		Governor:  governor,
	}

	hm := handlers.NewHealthManager("test")
	hm.RegisterChecker("pipeline", passingChecker{})

	srv := server.New("127.0.0.1", 0, quiz, hm)

	listener, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		if isPermissionError(err) {
			t.Skipf("skipping API server setup: %v", err)
		}
		require.NoError(t, err)
	}

	ts := &httptest.Server{
		Listener: listener,
		Config:   &http.Server{Handler: srv.Handler()},
	}
	ts.Start()
	t.Cleanup(ts.Close)
	return ts, ts.Client(), governor
}

func TestRoundBuildEndToEnd(t *testing.T) {
	ts, client, _ := newAPIServer(t, &stubTransport{})

	resp, err := client.Post(ts.URL+"/api/v1/round", "application/json",
		strings.NewReader(`{"round": 2, "difficulty": "hard"}`))
	require.NoError(t, err)
	defer resp.Body.Close() // nolint:errcheck // best-effort cleanup

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))

	var round core.QuizRound
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&round))
	assert.Equal(t, 2, round.Round)
	assert.Equal(t, core.DifficultyHard, round.Difficulty)
	assert.Len(t, round.Options, core.OptionCount)
	assert.NotEmpty(t, round.RoundID)
}

func TestRatelimitReflectsPipelineTraffic(t *testing.T) {
	ts, client, _ := newAPIServer(t, &stubTransport{})

	resp, err := client.Post(ts.URL+"/api/v1/round", "application/json",
		strings.NewReader(`{"round": 0}`))
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = client.Get(ts.URL + "/api/v1/ratelimit")
	require.NoError(t, err)
	defer resp.Body.Close() // nolint:errcheck // best-effort cleanup
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var state struct {
		Remaining   *int `json:"remaining"`
		PauseActive bool `json:"pause_active"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&state))

	// Every stub response reports 85 remaining; corrected by the 60 offset
	// and decremented that leaves 24 after the last call of the round.
	require.NotNil(t, state.Remaining)
	assert.Equal(t, 24, *state.Remaining)
	assert.False(t, state.PauseActive)
}

func TestThrottledRoundReturns429(t *testing.T) {
	header := http.Header{}
	header.Set("Retry-After", "42")
	transport := &stubTransport{
		poolErr: &anilist.HTTPError{Status: http.StatusTooManyRequests, Header: header},
	}
	ts, client, governor := newAPIServer(t, transport)

	resp, err := client.Post(ts.URL+"/api/v1/round", "application/json",
		strings.NewReader(`{"round": 0}`))
	require.NoError(t, err)
	defer resp.Body.Close() // nolint:errcheck // best-effort cleanup

	require.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, "42", resp.Header.Get("Retry-After"))

	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "RATE_LIMITED", body.Error.Code)

	assert.True(t, governor.Snapshot().PauseActive(time.Now().UTC()))
}

func TestMediaDetailRoute(t *testing.T) {
	ts, client, _ := newAPIServer(t, &stubTransport{})

	resp, err := client.Get(ts.URL + "/api/v1/media/42")
	require.NoError(t, err)
	defer resp.Body.Close() // nolint:errcheck // best-effort cleanup

	require.Equal(t, http.StatusOK, resp.StatusCode)

	var detail core.MediaDetail
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&detail))
	assert.Equal(t, 42, detail.ID)
	assert.Equal(t, "Series 42", detail.Title.Romaji)
}

func TestUnknownRouteReturnsEnvelope(t *testing.T) {
	ts, client, _ := newAPIServer(t, &stubTransport{})

	resp, err := client.Get(ts.URL + "/api/v1/nope")
	require.NoError(t, err)
	defer resp.Body.Close() // nolint:errcheck // best-effort cleanup

	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	var body struct {
		Error struct {
			Code      string `json:"code"`
			RequestID string `json:"request_id"`
		} `json:"error"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "NOT_FOUND", body.Error.Code)
	assert.NotEmpty(t, body.Error.RequestID)
}

func TestMethodNotAllowedReturnsEnvelope(t *testing.T) {
	ts, client, _ := newAPIServer(t, &stubTransport{})

	resp, err := client.Get(ts.URL + "/api/v1/round")
	require.NoError(t, err)
	defer resp.Body.Close() // nolint:errcheck // best-effort cleanup

	require.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)

	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "METHOD_NOT_ALLOWED", body.Error.Code)
}

func TestHealthAndVersionRoutes(t *testing.T) {
	ts, client, _ := newAPIServer(t, &stubTransport{})

	resp, err := client.Get(ts.URL + "/health")
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = client.Get(ts.URL + "/version")
	require.NoError(t, err)
	defer resp.Body.Close() // nolint:errcheck // best-effort cleanup
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
