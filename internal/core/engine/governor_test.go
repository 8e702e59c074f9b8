package engine

import (
	"context"
	"net/http"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/aniquiz/aniquiz/internal/anilist"
)

type stubProber struct {
	reachable bool
	called    bool
}

func (p *stubProber) IsReachable(ctx context.Context) bool {
	p.called = true
	return p.reachable
}

func successMeta(remaining int) *anilist.ResponseMeta {
	header := http.Header{}
	header.Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
	return &anilist.ResponseMeta{Status: http.StatusOK, Header: header}
}

func TestGovernorInitialBudget(t *testing.T) {
	g := &Governor{}
	defer g.Stop()

	state := g.Snapshot()
	require.True(t, state.RemainingKnown)
	require.Equal(t, 30, state.Remaining)
	require.False(t, state.PauseActive(time.Now()))
}

func TestGovernorHeaderCorrection(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	g := &Governor{Clock: func() time.Time { return now }}
	defer g.Stop()

	// AniList reports 90-scale values; 65 reported means 5 real, minus the
	// call that just completed.
	g.OnSuccess(successMeta(65))

	state := g.Snapshot()
	require.True(t, state.RemainingKnown)
	require.Equal(t, 4, state.Remaining)
}

func TestGovernorRemainingNeverNegative(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	g := &Governor{Clock: func() time.Time { return now }}
	defer g.Stop()

	// Reported value below the correction offset clamps to zero.
	g.OnSuccess(successMeta(40))
	require.Equal(t, 0, g.Snapshot().Remaining)

	// Further successes without header info must not underflow.
	g.OnSuccess(&anilist.ResponseMeta{Status: http.StatusOK})
	require.Equal(t, 0, g.Snapshot().Remaining)
}

func TestGovernorWindowStartOnFreshBudget(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	g := &Governor{Clock: func() time.Time { return now }}
	defer g.Stop()

	g.OnAttemptStart()
	require.Equal(t, now, g.Snapshot().WindowStart)

	g.OnSuccess(successMeta(89))

	// Budget is no longer at max, so a later attempt keeps the window start.
	later := now.Add(5 * time.Second)
	g.Clock = func() time.Time { return later }
	g.OnAttemptStart()
	require.Equal(t, now, g.Snapshot().WindowStart)
}

func TestGovernorThrottleFromResetHeader(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	g := &Governor{Clock: func() time.Time { return now }}
	defer g.Stop()

	resetAt := now.Add(42 * time.Second)
	header := http.Header{}
	header.Set("X-RateLimit-Reset", strconv.FormatInt(resetAt.Unix(), 10))

	err := g.ClassifyFailure(context.Background(), &anilist.HTTPError{
		Status: http.StatusTooManyRequests,
		Header: header,
	})

	var throttled *anilist.ThrottleError
	require.ErrorAs(t, err, &throttled)
	require.Equal(t, 42, throttled.RetryAfterSeconds)
	require.Equal(t, resetAt, throttled.ResetAt)

	state := g.Snapshot()
	require.True(t, state.PauseActive(now))
	require.Equal(t, resetAt, state.PauseUntil)
}

func TestGovernorThrottleFromRetryAfter(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	g := &Governor{Clock: func() time.Time { return now }}
	defer g.Stop()

	header := http.Header{}
	header.Set("Retry-After", "45")

	err := g.ClassifyFailure(context.Background(), &anilist.HTTPError{
		Status: http.StatusTooManyRequests,
		Header: header,
	})

	var throttled *anilist.ThrottleError
	require.ErrorAs(t, err, &throttled)
	require.Equal(t, 45, throttled.RetryAfterSeconds)
	require.Equal(t, now.Add(45*time.Second), throttled.ResetAt)
}

func TestGovernorThrottleDefaultTiming(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	g := &Governor{Clock: func() time.Time { return now }}
	defer g.Stop()

	err := g.ClassifyFailure(context.Background(), &anilist.HTTPError{
		Status: http.StatusTooManyRequests,
	})

	var throttled *anilist.ThrottleError
	require.ErrorAs(t, err, &throttled)
	require.Equal(t, 60, throttled.RetryAfterSeconds)
}

func TestGovernorThrottleMinimumPause(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	g := &Governor{Clock: func() time.Time { return now }}
	defer g.Stop()

	// Reset timestamp already in the past still produces a real pause.
	header := http.Header{}
	header.Set("X-RateLimit-Reset", strconv.FormatInt(now.Add(-10*time.Second).Unix(), 10))

	err := g.ClassifyFailure(context.Background(), &anilist.HTTPError{
		Status: http.StatusTooManyRequests,
		Header: header,
	})

	var throttled *anilist.ThrottleError
	require.ErrorAs(t, err, &throttled)
	require.Equal(t, 1, throttled.RetryAfterSeconds)
}

func TestGovernorNonThrottleHTTPErrorPassesThrough(t *testing.T) {
	g := &Governor{}
	defer g.Stop()

	original := &anilist.HTTPError{Status: http.StatusInternalServerError}
	err := g.ClassifyFailure(context.Background(), original)
	require.Equal(t, original, err)
	require.False(t, g.Snapshot().PauseActive(time.Now()))
}

func TestGovernorBurstHeuristicSynthesizesThrottle(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	prober := &stubProber{reachable: true}
	g := &Governor{Prober: prober, Clock: func() time.Time { return now }}
	defer g.Stop()

	g.OnAttemptStart() // marks the burst window start

	later := now.Add(20 * time.Second)
	g.Clock = func() time.Time { return later }

	err := g.ClassifyFailure(context.Background(), &anilist.TransportError{Err: context.DeadlineExceeded})

	var throttled *anilist.ThrottleError
	require.ErrorAs(t, err, &throttled)
	require.True(t, prober.called)
	require.Equal(t, now.Add(time.Minute), throttled.ResetAt)
	require.Equal(t, 40, throttled.RetryAfterSeconds)
}

func TestGovernorBurstHeuristicRequiresReachability(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	prober := &stubProber{reachable: false}
	g := &Governor{Prober: prober, Clock: func() time.Time { return now }}
	defer g.Stop()

	g.OnAttemptStart()

	original := &anilist.TransportError{Err: context.DeadlineExceeded}
	err := g.ClassifyFailure(context.Background(), original)
	require.Equal(t, original, err)
	require.True(t, prober.called)
}

func TestGovernorTransportErrorWithoutBurst(t *testing.T) {
	prober := &stubProber{reachable: true}
	g := &Governor{Prober: prober}
	defer g.Stop()

	// No attempt started, so no burst window exists. The heuristic must not
	// fire and the prober must not even be consulted.
	original := &anilist.TransportError{Err: context.DeadlineExceeded}
	err := g.ClassifyFailure(context.Background(), original)
	require.Equal(t, original, err)
	require.False(t, prober.called)
}

func TestGovernorResetRestoresBudget(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	g := &Governor{Clock: func() time.Time { return now }}
	defer g.Stop()

	g.OnSuccess(successMeta(62))
	_ = g.OnThrottled(30*time.Second, now.Add(30*time.Second))
	require.True(t, g.Snapshot().PauseActive(now))

	g.resetBudget()

	state := g.Snapshot()
	require.Equal(t, 30, state.Remaining)
	require.False(t, state.PauseActive(now))
	require.True(t, state.WindowStart.IsZero())
}

func TestGovernorBelowLowWater(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	g := &Governor{Clock: func() time.Time { return now }}
	defer g.Stop()

	require.False(t, g.BelowLowWater())

	g.OnSuccess(successMeta(63)) // corrected 3, then decremented to 2
	require.True(t, g.BelowLowWater())
}
