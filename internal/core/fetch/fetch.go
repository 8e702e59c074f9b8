// Package fetch provides the cache-checking read operations on top of the
// executor. Pool listings and media details are cached; the per-round batch
// reads are ephemeral and intentionally are not.
package fetch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/fulmenhq/gofulmen/logging"
	"go.uber.org/zap"

	"github.com/aniquiz/aniquiz/internal/anilist"
	"github.com/aniquiz/aniquiz/internal/core"
	"github.com/aniquiz/aniquiz/internal/core/engine"
	"github.com/aniquiz/aniquiz/internal/metrics"
)

// Cache is the persistent key-value collaborator. Entries are immutable once
// written; shape changes are handled by bumping the version tag embedded in
// the namespace name, which orphans old entries instead of invalidating them.
type Cache interface {
	Get(ctx context.Context, namespace, key string) ([]byte, bool, error)
	Set(ctx context.Context, namespace, key string, value []byte) error
}

// Cache namespaces. The _v2 suffix is the version tag.
const (
	NamespacePool        = "pool_v2"
	NamespaceMediaDetail = "media_detail_v2"
)

// maxPoolPages bounds the paging loop for one pool fetch (10 pages of 50
// covers the 500-id pool ceiling).
const maxPoolPages = 10

// Service funnels all reads through the executor, consulting the cache first
// where the operation is cacheable. A cache hit never touches the network or
// the governor. Throttling signals pass through uncached and unmodified.
type Service struct {
	Executor *engine.Executor
	Cache    Cache
	Logger   *logging.Logger
}

// Pool returns up to count candidate media ids. Genre filters select the
// genre listing; otherwise the popularity ranking restricted to the year
// range is used. The full pool result is cached under its parameter key.
func (s *Service) Pool(ctx context.Context, count int, filters core.PoolFilters) ([]int, error) {
	if s == nil || s.Executor == nil {
		return nil, errors.New("fetch service is not configured")
	}

	key := poolKey(count, filters)

	if cached, ok := s.cacheGet(ctx, NamespacePool, key); ok {
		var ids []int
		if err := json.Unmarshal(cached, &ids); err == nil {
			return ids, nil
		}
		// Undecodable entry: fall through to a fresh fetch.
	}

	ids, err := s.fetchPool(ctx, count, filters)
	if err != nil {
		return nil, err
	}

	// An empty pool is a retryable condition upstream; memoizing it would
	// pin every later attempt to the empty result.
	if len(ids) > 0 {
		s.cacheSet(ctx, NamespacePool, key, ids)
	}
	return ids, nil
}

// MediaDetail returns the detail payload for one media id, cached by id.
func (s *Service) MediaDetail(ctx context.Context, id int) (*core.MediaDetail, error) {
	if s == nil || s.Executor == nil {
		return nil, errors.New("fetch service is not configured")
	}

	key := strconv.Itoa(id)

	if cached, ok := s.cacheGet(ctx, NamespaceMediaDetail, key); ok {
		var detail core.MediaDetail
		if err := json.Unmarshal(cached, &detail); err == nil {
			return &detail, nil
		}
	}

	detail, err := s.Executor.MediaDetail(ctx, id)
	if err != nil {
		return nil, err
	}

	s.cacheSet(ctx, NamespaceMediaDetail, key, detail)
	return detail, nil
}

// CharactersByMedia is a pass-through batch read; results are per-round and
// never cached.
func (s *Service) CharactersByMedia(ctx context.Context, ids []int) (map[int][]core.Character, error) {
	if s == nil || s.Executor == nil {
		return nil, errors.New("fetch service is not configured")
	}
	return s.Executor.CharactersByMedia(ctx, ids)
}

// TitlesByMedia is a pass-through batch read; results are per-round and never
// cached.
func (s *Service) TitlesByMedia(ctx context.Context, ids []int) (map[int]core.MediaTitle, error) {
	if s == nil || s.Executor == nil {
		return nil, errors.New("fetch service is not configured")
	}
	return s.Executor.TitlesByMedia(ctx, ids)
}

func (s *Service) fetchPool(ctx context.Context, count int, filters core.PoolFilters) ([]int, error) {
	ids := make([]int, 0, count)

	for page := 1; page <= maxPoolPages && len(ids) < count; page++ {
		perPage := count - len(ids)
		if perPage > anilist.MaxPerPage {
			perPage = anilist.MaxPerPage
		}

		var result *anilist.PoolPage
		var err error
		if len(filters.Genres) > 0 {
			result, err = s.Executor.GenrePoolPage(ctx, page, perPage, filters.Genres)
		} else {
			result, err = s.Executor.RankedPoolPage(ctx, page, perPage, filters.YearFrom, filters.YearTo)
		}
		if err != nil {
			return nil, err
		}

		ids = append(ids, result.IDs...)
		if !result.HasNext {
			break
		}
	}

	return ids, nil
}

func (s *Service) cacheGet(ctx context.Context, namespace, key string) ([]byte, bool) {
	if s.Cache == nil {
		return nil, false
	}

	value, ok, err := s.Cache.Get(ctx, namespace, key)
	if err != nil {
		if s.Logger != nil {
			s.Logger.Warn("cache read failed",
				zap.String("namespace", namespace),
				zap.String("key", key),
				zap.Error(err))
		}
		return nil, false
	}

	metrics.RecordCacheLookup(namespace, ok)
	return value, ok
}

func (s *Service) cacheSet(ctx context.Context, namespace, key string, value any) {
	if s.Cache == nil {
		return
	}

	encoded, err := json.Marshal(value)
	if err != nil {
		return
	}

	if err := s.Cache.Set(ctx, namespace, key, encoded); err != nil && s.Logger != nil {
		s.Logger.Warn("cache write failed",
			zap.String("namespace", namespace),
			zap.String("key", key),
			zap.Error(err))
	}
}

func poolKey(count int, filters core.PoolFilters) string {
	if len(filters.Genres) > 0 {
		genres := make([]string, 0, len(filters.Genres))
		for _, genre := range filters.Genres {
			genres = append(genres, strings.ToLower(strings.TrimSpace(genre)))
		}
		return fmt.Sprintf("genre:%d:%s", count, strings.Join(genres, ","))
	}
	return fmt.Sprintf("ranked:%d:%d:%d", count, filters.YearFrom, filters.YearTo)
}
