package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/aniquiz/aniquiz/internal/core"
	"github.com/aniquiz/aniquiz/internal/core/engine"
	"github.com/aniquiz/aniquiz/internal/core/fetch"
	apperrors "github.com/aniquiz/aniquiz/internal/errors"
	"github.com/aniquiz/aniquiz/internal/metrics"
)

// QuizHandler serves the round-building API on top of the assembly engine.
type QuizHandler struct {
	Assembler *engine.Assembler
	Fetch     *fetch.Service
	Governor  *engine.Governor

	// Default year range applied when the request omits filters.
	DefaultYearFrom int
	DefaultYearTo   int
}

// RoundRequest is the body for POST /api/v1/round.
type RoundRequest struct {
	Round      int      `json:"round"`
	Difficulty string   `json:"difficulty"`
	Genres     []string `json:"genres,omitempty"`
	YearFrom   int      `json:"year_from,omitempty"`
	YearTo     int      `json:"year_to,omitempty"`
}

// RatelimitResponse is the governor snapshot for display.
type RatelimitResponse struct {
	Remaining         *int       `json:"remaining"`
	PauseUntil        *time.Time `json:"pause_until,omitempty"`
	PauseActive       bool       `json:"pause_active"`
	RetryAfterSeconds int        `json:"retry_after_seconds,omitempty"`
}

// BuildRound handles POST /api/v1/round.
func (h *QuizHandler) BuildRound(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.Assembler == nil {
		respondWithError(w, r, apperrors.NewInternalError("quiz engine is not initialized"))
		return
	}

	var req RoundRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, r, apperrors.NewInvalidInputError("invalid round request body"))
		return
	}

	if req.Round < 0 {
		respondWithError(w, r, apperrors.NewInvalidInputError("round must not be negative"))
		return
	}

	difficulty, ok := parseDifficulty(req.Difficulty)
	if !ok {
		respondWithError(w, r, apperrors.NewInvalidInputError("difficulty must be easy, medium or hard"))
		return
	}

	filters := core.PoolFilters{
		Genres:   req.Genres,
		YearFrom: req.YearFrom,
		YearTo:   req.YearTo,
	}
	if filters.YearFrom == 0 {
		filters.YearFrom = h.DefaultYearFrom
	}
	if filters.YearTo == 0 {
		filters.YearTo = h.DefaultYearTo
	}

	round, err := h.Assembler.BuildRound(r.Context(), req.Round, filters, difficulty)
	if err != nil {
		respondWithError(w, r, apperrors.FromDomainError(r.Context(), err))
		return
	}

	metrics.RecordRoundBuilt(string(round.Difficulty), round.Attempts)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(round)
}

// MediaDetail handles GET /api/v1/media/{id}.
func (h *QuizHandler) MediaDetail(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.Fetch == nil {
		respondWithError(w, r, apperrors.NewInternalError("quiz engine is not initialized"))
		return
	}

	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil || id <= 0 {
		respondWithError(w, r, apperrors.NewInvalidInputError("media id must be a positive integer"))
		return
	}

	detail, err := h.Fetch.MediaDetail(r.Context(), id)
	if err != nil {
		respondWithError(w, r, apperrors.FromDomainError(r.Context(), err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(detail)
}

// Ratelimit handles GET /api/v1/ratelimit.
func (h *QuizHandler) Ratelimit(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.Governor == nil {
		respondWithError(w, r, apperrors.NewInternalError("quiz engine is not initialized"))
		return
	}

	state := h.Governor.Snapshot()
	now := time.Now().UTC()

	response := RatelimitResponse{PauseActive: state.PauseActive(now)}
	if state.RemainingKnown {
		remaining := state.Remaining
		response.Remaining = &remaining
	}
	if !state.PauseUntil.IsZero() {
		pauseUntil := state.PauseUntil
		response.PauseUntil = &pauseUntil
		if response.PauseActive {
			response.RetryAfterSeconds = int(state.PauseUntil.Sub(now)/time.Second) + 1
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(response)
}

func parseDifficulty(value string) (core.Difficulty, bool) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "medium":
		return core.DifficultyMedium, true
	case "easy":
		return core.DifficultyEasy, true
	case "hard":
		return core.DifficultyHard, true
	default:
		return "", false
	}
}
