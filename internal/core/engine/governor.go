// Package engine holds the rate-governed request path and the round assembly
// pipeline. The governor owns all mutation of the shared rate-limit state;
// other packages read it through snapshots only.
package engine

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/aniquiz/aniquiz/internal/anilist"
	"github.com/aniquiz/aniquiz/internal/core"
	"github.com/aniquiz/aniquiz/internal/core/probe"
)

// AniList rate-limit response headers.
const (
	headerRateLimitRemaining = "X-RateLimit-Remaining"
	headerRateLimitReset     = "X-RateLimit-Reset"
	headerRetryAfter         = "Retry-After"
)

// Budget is the fixed per-minute request budget configuration.
type Budget struct {
	// MaxPerMinute is the enforced request ceiling per window.
	MaxPerMinute int
	// LowWaterMark is the remaining count under which callers may choose to
	// back off proactively. The governor itself never blocks on it.
	LowWaterMark int
	// Window is the rolling budget window.
	Window time.Duration
	// HeaderOffset corrects the server-reported remaining count. AniList
	// advertises a 90/min ceiling in its headers but enforces 30/min, so
	// the reported value runs 60 higher than reality.
	HeaderOffset int
	// ResetBuffer pads the scheduled post-pause reset so the reset fires
	// slightly after the server-side window has actually rolled over.
	ResetBuffer time.Duration
}

func (b Budget) withDefaults() Budget {
	if b.MaxPerMinute <= 0 {
		b.MaxPerMinute = 30
	}
	if b.LowWaterMark <= 0 {
		b.LowWaterMark = 5
	}
	if b.Window <= 0 {
		b.Window = time.Minute
	}
	if b.HeaderOffset <= 0 {
		b.HeaderOffset = 60
	}
	if b.ResetBuffer <= 0 {
		b.ResetBuffer = 2 * time.Second
	}
	return b
}

// Governor tracks the AniList request budget and classifies failures as
// throttling or not. It is advisory: admission is always granted, and only an
// actual 429 (or a throttling-shaped transport failure) arms a pause.
type Governor struct {
	Budget Budget
	Prober probe.Prober
	Clock  func() time.Time

	mu         sync.Mutex
	state      core.RateState
	inited     bool
	resetTimer *time.Timer
}

// OnAttemptStart records the start of a fresh burst window when the budget is
// still at its maximum. Called before every outbound request.
func (g *Governor) OnAttemptStart() {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.ensureInitLocked()
	if g.state.RemainingKnown && g.state.Remaining == g.budget().MaxPerMinute {
		g.state.WindowStart = g.now()
	}
}

// OnSuccess updates the budget from response headers and accounts for the
// just-completed call. It also (re)arms the fallback window reset unless a
// pause is active.
func (g *Governor) OnSuccess(meta *anilist.ResponseMeta) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.ensureInitLocked()

	if value := meta.HeaderValue(headerRateLimitRemaining); value != "" {
		if reported, err := strconv.Atoi(value); err == nil {
			corrected := reported - g.budget().HeaderOffset
			if corrected < 0 {
				corrected = 0
			}
			g.state.Remaining = corrected
			g.state.RemainingKnown = true
		}
	}

	if g.state.PauseUntil.IsZero() {
		g.scheduleResetLocked(g.budget().Window)
	}

	if g.state.Remaining > 0 {
		g.state.Remaining--
	}
}

// OnThrottled arms a pause window and schedules the budget reset for slightly
// after it elapses. Returns the throttling signal for the caller to surface.
func (g *Governor) OnThrottled(retryAfter time.Duration, resetAt time.Time) *anilist.ThrottleError {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.ensureInitLocked()

	if retryAfter < time.Second {
		retryAfter = time.Second
	}

	now := g.now()
	g.state.PauseUntil = now.Add(retryAfter)
	g.scheduleResetLocked(retryAfter + g.budget().ResetBuffer)

	return &anilist.ThrottleError{
		RetryAfterSeconds: int(retryAfter / time.Second),
		ResetAt:           resetAt,
	}
}

// ClassifyFailure normalizes a request failure. 429s and throttling-shaped
// transport failures come back as *anilist.ThrottleError with the pause
// already armed; everything else is returned unchanged.
func (g *Governor) ClassifyFailure(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}

	var httpErr *anilist.HTTPError
	if errors.As(err, &httpErr) {
		if httpErr.Status == http.StatusTooManyRequests {
			retryAfter, resetAt := g.throttleTiming(httpErr)
			return g.OnThrottled(retryAfter, resetAt)
		}
		return err
	}

	var transportErr *anilist.TransportError
	if errors.As(err, &transportErr) {
		g.mu.Lock()
		bursting := g.state.RemainingKnown && !g.state.WindowStart.IsZero()
		windowStart := g.state.WindowStart
		g.mu.Unlock()

		// Some environments swallow the real 429 and surface a bare
		// network failure instead. When we know we were bursting and the
		// network itself is reachable, assume throttling and synthesize
		// the signal from the burst window. Best-effort heuristic, not a
		// protocol guarantee.
		if bursting && g.prober().IsReachable(ctx) {
			resetAt := windowStart.Add(g.budget().Window)
			retryAfter := resetAt.Sub(g.now())
			if retryAfter < time.Second {
				retryAfter = time.Second
			}
			return g.OnThrottled(retryAfter, resetAt)
		}
		return err
	}

	return err
}

// Snapshot returns a copy of the current rate state.
func (g *Governor) Snapshot() core.RateState {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.ensureInitLocked()
	return g.state
}

// BelowLowWater reports whether the believed remaining budget has dropped
// under the proactive-backoff threshold.
func (g *Governor) BelowLowWater() bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.ensureInitLocked()
	return g.state.RemainingKnown && g.state.Remaining < g.budget().LowWaterMark
}

// Stop cancels any pending reset timer.
func (g *Governor) Stop() {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.resetTimer != nil {
		g.resetTimer.Stop()
		g.resetTimer = nil
	}
}

func (g *Governor) throttleTiming(httpErr *anilist.HTTPError) (time.Duration, time.Time) {
	now := g.now()

	if value := httpErr.HeaderValue(headerRateLimitReset); value != "" {
		if resetUnix, err := strconv.ParseInt(value, 10, 64); err == nil {
			resetAt := time.Unix(resetUnix, 0).UTC()
			retryAfter := resetAt.Sub(now)
			if retryAfter < time.Second {
				retryAfter = time.Second
			}
			return retryAfter, resetAt
		}
	}

	if value := httpErr.HeaderValue(headerRetryAfter); value != "" {
		if seconds, err := strconv.Atoi(value); err == nil && seconds > 0 {
			retryAfter := time.Duration(seconds) * time.Second
			return retryAfter, now.Add(retryAfter)
		}
	}

	return time.Minute, now.Add(time.Minute)
}

// scheduleResetLocked replaces any pending reset timer with a new one. A
// stale timer armed before a newer pause or success update must never fire
// over the newer schedule.
func (g *Governor) scheduleResetLocked(d time.Duration) {
	if g.resetTimer != nil {
		g.resetTimer.Stop()
	}
	g.resetTimer = time.AfterFunc(d, g.resetBudget)
}

func (g *Governor) resetBudget() {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.state.Remaining = g.budget().MaxPerMinute
	g.state.RemainingKnown = true
	g.state.PauseUntil = time.Time{}
	g.state.WindowStart = time.Time{}
}

func (g *Governor) ensureInitLocked() {
	if g.inited {
		return
	}
	g.state.Remaining = g.budget().MaxPerMinute
	g.state.RemainingKnown = true
	g.inited = true
}

func (g *Governor) budget() Budget {
	return g.Budget.withDefaults()
}

func (g *Governor) prober() probe.Prober {
	if g.Prober != nil {
		return g.Prober
	}
	return &probe.HTTPProber{}
}

func (g *Governor) now() time.Time {
	if g.Clock != nil {
		return g.Clock()
	}
	return time.Now().UTC()
}
