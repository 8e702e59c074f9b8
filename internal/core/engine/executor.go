package engine

import (
	"context"
	"errors"

	"github.com/fulmenhq/gofulmen/logging"
	"go.uber.org/zap"

	"github.com/aniquiz/aniquiz/internal/anilist"
	"github.com/aniquiz/aniquiz/internal/core"
	"github.com/aniquiz/aniquiz/internal/metrics"
)

// Transport issues the AniList read operations. Satisfied by
// *anilist.Client; test doubles stand in for it in unit tests.
type Transport interface {
	RankedPoolPage(ctx context.Context, page, perPage, yearFrom, yearTo int) (*anilist.PoolPage, *anilist.ResponseMeta, error)
	GenrePoolPage(ctx context.Context, page, perPage int, genres []string) (*anilist.PoolPage, *anilist.ResponseMeta, error)
	CharactersByMedia(ctx context.Context, ids []int) (map[int][]core.Character, *anilist.ResponseMeta, error)
	TitlesByMedia(ctx context.Context, ids []int) (map[int]core.MediaTitle, *anilist.ResponseMeta, error)
	MediaDetail(ctx context.Context, id int) (*core.MediaDetail, *anilist.ResponseMeta, error)
}

// Executor is the single chokepoint for outbound AniList calls. Every call
// notifies the governor before and after, and every failure leaves here
// already classified: *anilist.ThrottleError for throttling, the original
// typed error otherwise.
type Executor struct {
	Transport Transport
	Governor  *Governor
	Logger    *logging.Logger
}

// RankedPoolPage executes the ranked pool listing through the governor.
func (e *Executor) RankedPoolPage(ctx context.Context, page, perPage, yearFrom, yearTo int) (*anilist.PoolPage, error) {
	var result *anilist.PoolPage
	err := e.run(ctx, "ranked_pool", func() (*anilist.ResponseMeta, error) {
		var meta *anilist.ResponseMeta
		var err error
		result, meta, err = e.Transport.RankedPoolPage(ctx, page, perPage, yearFrom, yearTo)
		return meta, err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// GenrePoolPage executes the genre-filtered pool listing through the governor.
func (e *Executor) GenrePoolPage(ctx context.Context, page, perPage int, genres []string) (*anilist.PoolPage, error) {
	var result *anilist.PoolPage
	err := e.run(ctx, "genre_pool", func() (*anilist.ResponseMeta, error) {
		var meta *anilist.ResponseMeta
		var err error
		result, meta, err = e.Transport.GenrePoolPage(ctx, page, perPage, genres)
		return meta, err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// CharactersByMedia executes the batched character fetch through the governor.
func (e *Executor) CharactersByMedia(ctx context.Context, ids []int) (map[int][]core.Character, error) {
	var result map[int][]core.Character
	err := e.run(ctx, "characters_by_media", func() (*anilist.ResponseMeta, error) {
		var meta *anilist.ResponseMeta
		var err error
		result, meta, err = e.Transport.CharactersByMedia(ctx, ids)
		return meta, err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// TitlesByMedia executes the batched title fetch through the governor.
func (e *Executor) TitlesByMedia(ctx context.Context, ids []int) (map[int]core.MediaTitle, error) {
	var result map[int]core.MediaTitle
	err := e.run(ctx, "titles_by_media", func() (*anilist.ResponseMeta, error) {
		var meta *anilist.ResponseMeta
		var err error
		result, meta, err = e.Transport.TitlesByMedia(ctx, ids)
		return meta, err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// MediaDetail executes the single-media detail fetch through the governor.
func (e *Executor) MediaDetail(ctx context.Context, id int) (*core.MediaDetail, error) {
	var result *core.MediaDetail
	err := e.run(ctx, "media_detail", func() (*anilist.ResponseMeta, error) {
		var meta *anilist.ResponseMeta
		var err error
		result, meta, err = e.Transport.MediaDetail(ctx, id)
		return meta, err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (e *Executor) run(ctx context.Context, operation string, call func() (*anilist.ResponseMeta, error)) error {
	if e == nil || e.Transport == nil {
		return errors.New("executor is not configured")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	if e.Governor != nil {
		e.Governor.OnAttemptStart()
	}

	meta, err := call()
	if err != nil {
		if e.Governor != nil {
			err = e.Governor.ClassifyFailure(ctx, err)
		}

		var throttled *anilist.ThrottleError
		if errors.As(err, &throttled) {
			metrics.RecordThrottleEvent(operation)
			if e.Logger != nil {
				e.Logger.Warn("AniList call throttled",
					zap.String("operation", operation),
					zap.Int("retry_after_seconds", throttled.RetryAfterSeconds),
					zap.Time("reset_at", throttled.ResetAt))
			}
		} else if e.Logger != nil {
			e.Logger.Warn("AniList call failed",
				zap.String("operation", operation),
				zap.Error(err))
		}
		return err
	}

	if e.Governor != nil {
		e.Governor.OnSuccess(meta)
	}

	if e.Logger != nil {
		e.Logger.Debug("AniList call completed",
			zap.String("operation", operation),
			zap.Int("status", meta.Status))
	}

	return nil
}
