package anilist

import (
	"context"
	"strings"

	"github.com/aniquiz/aniquiz/internal/core"
)

// MaxPerPage is the page-size ceiling AniList enforces on Page queries.
const MaxPerPage = 50

// PoolPage is one page of a candidate id listing.
type PoolPage struct {
	IDs     []int
	HasNext bool
}

const rankedPoolQuery = `
query ($page: Int, $perPage: Int, $startAfter: FuzzyDateInt, $startBefore: FuzzyDateInt) {
  Page(page: $page, perPage: $perPage) {
    pageInfo { hasNextPage }
    media(type: ANIME, sort: POPULARITY_DESC, startDate_greater: $startAfter, startDate_lesser: $startBefore) {
      id
    }
  }
}`

const genrePoolQuery = `
query ($page: Int, $perPage: Int, $genres: [String]) {
  Page(page: $page, perPage: $perPage) {
    pageInfo { hasNextPage }
    media(type: ANIME, sort: POPULARITY_DESC, genre_in: $genres) {
      id
    }
  }
}`

const charactersQuery = `
query ($ids: [Int]) {
  Page(page: 1, perPage: 50) {
    media(id_in: $ids, type: ANIME) {
      id
      characters(sort: FAVOURITES_DESC, perPage: 25) {
        nodes {
          id
          name { full }
          image { large medium }
        }
      }
    }
  }
}`

const titlesQuery = `
query ($ids: [Int]) {
  Page(page: 1, perPage: 50) {
    media(id_in: $ids, type: ANIME) {
      id
      title { romaji english }
    }
  }
}`

const mediaDetailQuery = `
query ($id: Int) {
  Media(id: $id, type: ANIME) {
    id
    title { romaji english }
    coverImage { large }
    season
    seasonYear
    genres
    popularity
  }
}`

type pagePayload struct {
	Page struct {
		PageInfo struct {
			HasNextPage bool `json:"hasNextPage"`
		} `json:"pageInfo"`
		Media []mediaNode `json:"media"`
	} `json:"Page"`
}

type mediaNode struct {
	ID    int `json:"id"`
	Title struct {
		Romaji  string `json:"romaji"`
		English string `json:"english"`
	} `json:"title"`
	Characters struct {
		Nodes []characterNode `json:"nodes"`
	} `json:"characters"`
}

type characterNode struct {
	ID   int `json:"id"`
	Name struct {
		Full string `json:"full"`
	} `json:"name"`
	Image struct {
		Large  string `json:"large"`
		Medium string `json:"medium"`
	} `json:"image"`
}

type mediaDetailPayload struct {
	Media struct {
		ID    int `json:"id"`
		Title struct {
			Romaji  string `json:"romaji"`
			English string `json:"english"`
		} `json:"title"`
		CoverImage struct {
			Large string `json:"large"`
		} `json:"coverImage"`
		Season     string   `json:"season"`
		SeasonYear int      `json:"seasonYear"`
		Genres     []string `json:"genres"`
		Popularity int      `json:"popularity"`
	} `json:"Media"`
}

// RankedPoolPage fetches one page of popularity-ranked anime ids restricted
// to a start-year range. Years map to AniList fuzzy date ints (YYYYMMDD).
func (c *Client) RankedPoolPage(ctx context.Context, page, perPage, yearFrom, yearTo int) (*PoolPage, *ResponseMeta, error) {
	if perPage <= 0 || perPage > MaxPerPage {
		perPage = MaxPerPage
	}

	var payload pagePayload
	meta, err := c.do(ctx, rankedPoolQuery, map[string]any{
		"page":        page,
		"perPage":     perPage,
		"startAfter":  yearFrom * 10000,
		"startBefore": (yearTo + 1) * 10000,
	}, &payload)
	if err != nil {
		return nil, meta, err
	}

	return poolPageFromPayload(&payload), meta, nil
}

// GenrePoolPage fetches one page of genre-filtered anime ids.
func (c *Client) GenrePoolPage(ctx context.Context, page, perPage int, genres []string) (*PoolPage, *ResponseMeta, error) {
	if perPage <= 0 || perPage > MaxPerPage {
		perPage = MaxPerPage
	}

	cleaned := make([]string, 0, len(genres))
	for _, genre := range genres {
		if value := strings.TrimSpace(genre); value != "" {
			cleaned = append(cleaned, value)
		}
	}

	var payload pagePayload
	meta, err := c.do(ctx, genrePoolQuery, map[string]any{
		"page":    page,
		"perPage": perPage,
		"genres":  cleaned,
	}, &payload)
	if err != nil {
		return nil, meta, err
	}

	return poolPageFromPayload(&payload), meta, nil
}

// CharactersByMedia fetches the character listings for the given media ids in
// one batched call, grouped by media id. Characters without an image URL are
// dropped here so downstream selection only sees displayable candidates.
func (c *Client) CharactersByMedia(ctx context.Context, ids []int) (map[int][]core.Character, *ResponseMeta, error) {
	var payload pagePayload
	meta, err := c.do(ctx, charactersQuery, map[string]any{"ids": ids}, &payload)
	if err != nil {
		return nil, meta, err
	}

	grouped := make(map[int][]core.Character, len(payload.Page.Media))
	for _, media := range payload.Page.Media {
		characters := make([]core.Character, 0, len(media.Characters.Nodes))
		for _, node := range media.Characters.Nodes {
			image := node.Image.Large
			if image == "" {
				image = node.Image.Medium
			}
			if image == "" {
				continue
			}
			characters = append(characters, core.Character{
				ID:       node.ID,
				Name:     node.Name.Full,
				ImageURL: image,
			})
		}
		grouped[media.ID] = characters
	}

	return grouped, meta, nil
}

// TitlesByMedia fetches titles for the given media ids in one batched call.
func (c *Client) TitlesByMedia(ctx context.Context, ids []int) (map[int]core.MediaTitle, *ResponseMeta, error) {
	var payload pagePayload
	meta, err := c.do(ctx, titlesQuery, map[string]any{"ids": ids}, &payload)
	if err != nil {
		return nil, meta, err
	}

	titles := make(map[int]core.MediaTitle, len(payload.Page.Media))
	for _, media := range payload.Page.Media {
		titles[media.ID] = core.MediaTitle{
			Romaji:  media.Title.Romaji,
			English: media.Title.English,
		}
	}

	return titles, meta, nil
}

// MediaDetail fetches the detail payload for one media entry.
func (c *Client) MediaDetail(ctx context.Context, id int) (*core.MediaDetail, *ResponseMeta, error) {
	var payload mediaDetailPayload
	meta, err := c.do(ctx, mediaDetailQuery, map[string]any{"id": id}, &payload)
	if err != nil {
		return nil, meta, err
	}

	detail := &core.MediaDetail{
		ID: payload.Media.ID,
		Title: core.MediaTitle{
			Romaji:  payload.Media.Title.Romaji,
			English: payload.Media.Title.English,
		},
		CoverImage: payload.Media.CoverImage.Large,
		Season:     payload.Media.Season,
		SeasonYear: payload.Media.SeasonYear,
		Genres:     payload.Media.Genres,
		Popularity: payload.Media.Popularity,
	}

	return detail, meta, nil
}

func poolPageFromPayload(payload *pagePayload) *PoolPage {
	ids := make([]int, 0, len(payload.Page.Media))
	for _, media := range payload.Page.Media {
		if media.ID > 0 {
			ids = append(ids, media.ID)
		}
	}
	return &PoolPage{IDs: ids, HasNext: payload.Page.PageInfo.HasNextPage}
}
