package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/aniquiz/aniquiz/internal/anilist"
	"github.com/aniquiz/aniquiz/internal/core"
	"github.com/aniquiz/aniquiz/internal/core/engine"
)

// quizStubFetcher serves media 1..12, two characters each. It records the
// filters of the last pool request.
type quizStubFetcher struct {
	poolErr     error
	lastFilters core.PoolFilters
}

func (f *quizStubFetcher) Pool(ctx context.Context, count int, filters core.PoolFilters) ([]int, error) {
	f.lastFilters = filters
	if f.poolErr != nil {
		return nil, f.poolErr
	}
	ids := make([]int, 0, 12)
	for i := 1; i <= 12; i++ {
		ids = append(ids, i)
	}
	return ids, nil
}

func (f *quizStubFetcher) CharactersByMedia(ctx context.Context, ids []int) (map[int][]core.Character, error) {
	grouped := make(map[int][]core.Character, len(ids))
	for _, id := range ids {
		grouped[id] = []core.Character{
			{ID: id*10 + 1, Name: fmt.Sprintf("Character %d-1", id), ImageURL: fmt.Sprintf("https://img.example/%d-1.png", id)},
			{ID: id*10 + 2, Name: fmt.Sprintf("Character %d-2", id), ImageURL: fmt.Sprintf("https://img.example/%d-2.png", id)},
		}
	}
	return grouped, nil
}

func (f *quizStubFetcher) TitlesByMedia(ctx context.Context, ids []int) (map[int]core.MediaTitle, error) {
	titles := make(map[int]core.MediaTitle, len(ids))
	for _, id := range ids {
		titles[id] = core.MediaTitle{Romaji: fmt.Sprintf("Series %d", id)}
	}
	return titles, nil
}

func newQuizHandler(fetcher engine.Fetcher) *QuizHandler {
	return &QuizHandler{
		Assembler: &engine.Assembler{
			Fetcher: fetcher,
			Rand:    rand.New(rand.NewPCG(7, 11)),
		},
		DefaultYearFrom: 1990,
		DefaultYearTo:   2026,
	}
}

func TestBuildRoundReturnsAssembledRound(t *testing.T) {
	handler := newQuizHandler(&quizStubFetcher{})

	body := strings.NewReader(`{"round": 3, "difficulty": "easy"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/round", body)
	rec := httptest.NewRecorder()

	handler.BuildRound(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var round core.QuizRound
	if err := json.NewDecoder(rec.Body).Decode(&round); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if round.RoundID == "" {
		t.Fatal("expected a round id")
	}
	if round.Round != 3 {
		t.Fatalf("expected round 3, got %d", round.Round)
	}
	if round.Difficulty != core.DifficultyEasy {
		t.Fatalf("expected easy difficulty, got %s", round.Difficulty)
	}
	if len(round.Options) != core.OptionCount {
		t.Fatalf("expected %d options, got %d", core.OptionCount, len(round.Options))
	}

	found := false
	for _, option := range round.Options {
		if option.Character.ID == round.CorrectCharacterID {
			found = true
			if option.MediaID != round.CorrectMediaID {
				t.Fatalf("correct media mismatch: option %d, round %d", option.MediaID, round.CorrectMediaID)
			}
		}
	}
	if !found {
		t.Fatalf("correct character %d not among options", round.CorrectCharacterID)
	}
}

func TestBuildRoundAppliesDefaultYearRange(t *testing.T) {
	fetcher := &quizStubFetcher{}
	handler := newQuizHandler(fetcher)

	body := strings.NewReader(`{"round": 0}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/round", body)
	rec := httptest.NewRecorder()

	handler.BuildRound(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}

	if fetcher.lastFilters.YearFrom != 1990 || fetcher.lastFilters.YearTo != 2026 {
		t.Fatalf("expected default year range 1990-2026, got %d-%d", fetcher.lastFilters.YearFrom, fetcher.lastFilters.YearTo)
	}
}

func TestBuildRoundRejectsInvalidDifficulty(t *testing.T) {
	handler := newQuizHandler(&quizStubFetcher{})

	body := strings.NewReader(`{"round": 1, "difficulty": "nightmare"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/round", body)
	rec := httptest.NewRecorder()

	handler.BuildRound(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rec.Code)
	}

	if code := decodeErrorCode(t, rec); code != "INVALID_INPUT" {
		t.Fatalf("expected INVALID_INPUT error code, got %s", code)
	}
}

func TestBuildRoundRejectsMalformedBody(t *testing.T) {
	handler := newQuizHandler(&quizStubFetcher{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/round", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()

	handler.BuildRound(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rec.Code)
	}
}

func TestBuildRoundReportsThrottleWithRetryAfter(t *testing.T) {
	fetcher := &quizStubFetcher{
		poolErr: &anilist.ThrottleError{
			RetryAfterSeconds: 30,
			ResetAt:           time.Now().Add(30 * time.Second),
		},
	}
	handler := newQuizHandler(fetcher)

	body := strings.NewReader(`{"round": 1}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/round", body)
	rec := httptest.NewRecorder()

	handler.BuildRound(rec, req)

	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected status 429, got %d", rec.Code)
	}

	if retryAfter := rec.Header().Get("Retry-After"); retryAfter != "30" {
		t.Fatalf("expected Retry-After 30, got %q", retryAfter)
	}

	if code := decodeErrorCode(t, rec); code != "RATE_LIMITED" {
		t.Fatalf("expected RATE_LIMITED error code, got %s", code)
	}
}

func TestMediaDetailRejectsNonNumericID(t *testing.T) {
	handler := newQuizHandler(&quizStubFetcher{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/media/abc", nil)
	routeCtx := chi.NewRouteContext()
	routeCtx.URLParams.Add("id", "abc")
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx))
	rec := httptest.NewRecorder()

	handler.MediaDetail(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rec.Code)
	}
}

func TestRatelimitReportsFreshBudget(t *testing.T) {
	governor := &engine.Governor{Budget: engine.Budget{MaxPerMinute: 30, LowWaterMark: 5, Window: time.Minute}}
	defer governor.Stop()

	handler := &QuizHandler{Governor: governor}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/ratelimit", nil)
	rec := httptest.NewRecorder()

	handler.Ratelimit(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}

	var resp RatelimitResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if resp.Remaining == nil || *resp.Remaining != 30 {
		t.Fatalf("expected remaining 30, got %v", resp.Remaining)
	}
	if resp.PauseActive {
		t.Fatal("expected no active pause on a fresh budget")
	}
}

func TestRatelimitReportsActivePause(t *testing.T) {
	governor := &engine.Governor{Budget: engine.Budget{MaxPerMinute: 30, LowWaterMark: 5, Window: time.Minute}}
	defer governor.Stop()

	governor.OnThrottled(90*time.Second, time.Now().Add(90*time.Second))

	handler := &QuizHandler{Governor: governor}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/ratelimit", nil)
	rec := httptest.NewRecorder()

	handler.Ratelimit(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}

	var resp RatelimitResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if !resp.PauseActive {
		t.Fatal("expected an active pause after throttling")
	}
	if resp.PauseUntil == nil {
		t.Fatal("expected a pause_until timestamp")
	}
	if resp.RetryAfterSeconds <= 0 {
		t.Fatalf("expected positive retry_after_seconds, got %d", resp.RetryAfterSeconds)
	}
}

func decodeErrorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()

	var resp struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}
	return resp.Error.Code
}
