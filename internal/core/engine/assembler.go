package engine

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/fulmenhq/gofulmen/logging"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aniquiz/aniquiz/internal/anilist"
	"github.com/aniquiz/aniquiz/internal/core"
)

// Recoverable assembly failures. Each consumes one build attempt.
var (
	ErrEmptyPool              = errors.New("no candidates in pool")
	ErrInsufficientCharacters = errors.New("insufficient unique character selections")
)

// BuildError is the terminal failure after all build attempts are exhausted.
type BuildError struct {
	Attempts int
	Err      error
}

func (e *BuildError) Error() string {
	return fmt.Sprintf("unable to build round after %d attempts: %v", e.Attempts, e.Err)
}

func (e *BuildError) Unwrap() error { return e.Err }

// DifficultyTier controls pool sizing: size = base + floor(round/5)*increment,
// capped at MaxPoolSize.
type DifficultyTier struct {
	Base      int
	Increment int
}

// MaxPoolSize caps the candidate pool regardless of round and difficulty.
const MaxPoolSize = 500

const defaultMaxAttempts = 3

// DefaultTiers is the built-in difficulty sizing.
var DefaultTiers = map[core.Difficulty]DifficultyTier{
	core.DifficultyEasy:   {Base: 50, Increment: 25},
	core.DifficultyMedium: {Base: 150, Increment: 50},
	core.DifficultyHard:   {Base: 300, Increment: 50},
}

// Fetcher is the read surface the assembler builds rounds from. Satisfied by
// *fetch.Service.
type Fetcher interface {
	Pool(ctx context.Context, count int, filters core.PoolFilters) ([]int, error)
	CharactersByMedia(ctx context.Context, ids []int) (map[int][]core.Character, error)
	TitlesByMedia(ctx context.Context, ids []int) (map[int]core.MediaTitle, error)
}

// Assembler builds validated quiz rounds. Recoverable failures restart the
// whole pipeline up to MaxAttempts; throttling signals bypass the retry loop
// and propagate immediately so the caller can pause and resume.
type Assembler struct {
	Fetcher     Fetcher
	Tiers       map[core.Difficulty]DifficultyTier
	MaxAttempts int
	// Rand seeds selection deterministically in tests. Leave nil in
	// production; a fresh source is drawn per build.
	Rand   *rand.Rand
	Clock  func() time.Time
	Logger *logging.Logger
}

// PoolSize returns the candidate pool size for a round at a difficulty.
func (a *Assembler) PoolSize(round int, difficulty core.Difficulty) int {
	tiers := a.Tiers
	if tiers == nil {
		tiers = DefaultTiers
	}

	tier, ok := tiers[difficulty]
	if !ok {
		tier = tiers[core.DifficultyMedium]
	}
	if tier.Base <= 0 {
		tier = DefaultTiers[core.DifficultyMedium]
	}

	size := tier.Base + (round/5)*tier.Increment
	if size > MaxPoolSize {
		size = MaxPoolSize
	}
	return size
}

// BuildRound assembles one quiz round.
func (a *Assembler) BuildRound(ctx context.Context, round int, filters core.PoolFilters, difficulty core.Difficulty) (*core.QuizRound, error) {
	if a == nil || a.Fetcher == nil {
		return nil, errors.New("assembler is not configured")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	maxAttempts := a.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}

	rng := a.rng()

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		result, err := a.buildOnce(ctx, rng, round, filters, difficulty)
		if err == nil {
			result.Attempts = attempt
			return result, nil
		}

		var throttled *anilist.ThrottleError
		if errors.As(err, &throttled) {
			// Throttling needs a cross-cutting pause, not a local retry.
			return nil, err
		}

		if a.Logger != nil {
			a.Logger.Warn("round build attempt failed",
				zap.Int("round", round),
				zap.Int("attempt", attempt),
				zap.Error(err))
		}
		lastErr = err
	}

	return nil, &BuildError{Attempts: maxAttempts, Err: lastErr}
}

func (a *Assembler) buildOnce(ctx context.Context, rng *rand.Rand, round int, filters core.PoolFilters, difficulty core.Difficulty) (*core.QuizRound, error) {
	poolSize := a.PoolSize(round, difficulty)

	pool, err := a.Fetcher.Pool(ctx, poolSize, filters)
	if err != nil {
		return nil, err
	}
	if len(pool) == 0 {
		return nil, ErrEmptyPool
	}

	sampled := core.SampleIDs(rng, pool, core.OptionCount)
	if sampled == nil {
		return nil, ErrEmptyPool
	}

	grouped, err := a.Fetcher.CharactersByMedia(ctx, sampled)
	if err != nil {
		return nil, err
	}

	type pick struct {
		mediaID   int
		character core.Character
	}

	usedCharacters := make(map[int]bool, core.OptionCount)
	picks := make([]pick, 0, core.OptionCount)

	for _, mediaID := range sampled {
		eligible := make([]core.Character, 0, len(grouped[mediaID]))
		for _, character := range grouped[mediaID] {
			if character.ImageURL == "" || usedCharacters[character.ID] {
				continue
			}
			eligible = append(eligible, character)
		}
		if len(eligible) == 0 {
			continue
		}

		chosen := eligible[core.PickIndex(rng, len(eligible))]
		usedCharacters[chosen.ID] = true
		picks = append(picks, pick{mediaID: mediaID, character: chosen})
		if len(picks) == core.OptionCount {
			break
		}
	}

	if len(picks) < core.OptionCount {
		return nil, ErrInsufficientCharacters
	}

	titleIDs := make([]int, 0, len(picks))
	for _, p := range picks {
		titleIDs = append(titleIDs, p.mediaID)
	}

	titles, err := a.Fetcher.TitlesByMedia(ctx, titleIDs)
	if err != nil {
		return nil, err
	}

	options := make([]core.QuizOption, 0, len(picks))
	for _, p := range picks {
		option := core.QuizOption{Character: p.character, MediaID: p.mediaID}
		if title, ok := titles[p.mediaID]; ok {
			value := title
			option.Title = &value
		}
		options = append(options, option)
	}

	correct := options[core.PickIndex(rng, len(options))]

	return &core.QuizRound{
		RoundID:            uuid.New().String(),
		Round:              round,
		Difficulty:         difficulty,
		Options:            options,
		CorrectCharacterID: correct.Character.ID,
		CorrectMediaID:     correct.MediaID,
		BuiltAt:            a.now(),
	}, nil
}

func (a *Assembler) rng() *rand.Rand {
	if a.Rand != nil {
		return a.Rand
	}
	return rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), rand.Uint64())) // #nosec G404 // selection randomness, not security
}

func (a *Assembler) now() time.Time {
	if a.Clock != nil {
		return a.Clock()
	}
	return time.Now().UTC()
}
