package core

import "time"

// Difficulty selects the candidate pool sizing tier for a round.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// PoolFilters narrows the candidate media pool for a round. When Genres is
// non-empty the pool is drawn from a genre-filtered listing; otherwise a
// popularity-ranked listing restricted to [YearFrom, YearTo] is used.
type PoolFilters struct {
	Genres   []string `json:"genres,omitempty"`
	YearFrom int      `json:"year_from,omitempty"`
	YearTo   int      `json:"year_to,omitempty"`
}

// Character is a quiz-eligible character belonging to exactly one media.
// Characters without a usable image are filtered out before selection.
type Character struct {
	ID       int    `json:"id"`
	Name     string `json:"name"`
	ImageURL string `json:"image_url"`
}

// MediaTitle carries the display titles for a media entry.
type MediaTitle struct {
	Romaji  string `json:"romaji"`
	English string `json:"english,omitempty"`
}

// MediaDetail is the full detail payload for a single media entry.
type MediaDetail struct {
	ID         int        `json:"id"`
	Title      MediaTitle `json:"title"`
	CoverImage string     `json:"cover_image,omitempty"`
	Season     string     `json:"season,omitempty"`
	SeasonYear int        `json:"season_year,omitempty"`
	Genres     []string   `json:"genres,omitempty"`
	Popularity int        `json:"popularity,omitempty"`
}

// QuizOption pairs a character with the title of the media it came from.
// Title is nil when the title batch omitted the media.
type QuizOption struct {
	Character Character   `json:"character"`
	MediaID   int         `json:"media_id"`
	Title     *MediaTitle `json:"title,omitempty"`
}

// QuizRound is one assembled question: four options from four distinct media,
// with one option marked correct.
type QuizRound struct {
	RoundID            string       `json:"round_id"`
	Round              int          `json:"round"`
	Difficulty         Difficulty   `json:"difficulty"`
	Options            []QuizOption `json:"options"`
	CorrectCharacterID int          `json:"correct_character_id"`
	CorrectMediaID     int          `json:"correct_media_id"`
	BuiltAt            time.Time    `json:"built_at"`
	Attempts           int          `json:"attempts"`
}

// OptionCount is the number of options in an assembled round.
const OptionCount = 4
