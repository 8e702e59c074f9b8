package output

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/aniquiz/aniquiz/internal/core"
)

func TestParseFormat(t *testing.T) {
	format, err := ParseFormat("table")
	require.NoError(t, err)
	require.Equal(t, FormatTable, format)

	format, err = ParseFormat("JSON")
	require.NoError(t, err)
	require.Equal(t, FormatJSON, format)

	format, err = ParseFormat("")
	require.NoError(t, err)
	require.Equal(t, FormatTable, format)

	_, err = ParseFormat("csv")
	require.Error(t, err)
}

func sampleRound() *core.QuizRound {
	return &core.QuizRound{
		RoundID:    "4f4e7f2a-8a70-4a57-b6ce-2c8a5f9e1b00",
		Round:      7,
		Difficulty: core.DifficultyHard,
		Options: []core.QuizOption{
			{Character: core.Character{ID: 11, Name: "Spike Spiegel"}, MediaID: 1, Title: &core.MediaTitle{Romaji: "Cowboy Bebop"}},
			{Character: core.Character{ID: 21, Name: "Edward Elric"}, MediaID: 2, Title: &core.MediaTitle{Romaji: "Hagane no Renkinjutsushi", English: "Fullmetal Alchemist"}},
			{Character: core.Character{ID: 31, Name: "Gintoki Sakata"}, MediaID: 3, Title: &core.MediaTitle{Romaji: "Gintama"}},
			{Character: core.Character{ID: 41, Name: "Unnamed | Lead"}, MediaID: 4, Title: nil},
		},
		CorrectCharacterID: 21,
		CorrectMediaID:     2,
		BuiltAt:            time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
		Attempts:           2,
	}
}

func TestFormatRound(t *testing.T) {
	round := sampleRound()

	tableRendered, err := (&TableFormatter{RevealAnswer: true}).FormatRound(round)
	require.NoError(t, err)
	require.Contains(t, tableRendered, "CHARACTER")
	require.Contains(t, tableRendered, "Spike Spiegel")
	require.Contains(t, tableRendered, "Fullmetal Alchemist")
	require.Contains(t, tableRendered, "(untitled)")
	require.Contains(t, tableRendered, "correct")
	require.Contains(t, tableRendered, "ROUND 7, HARD")

	jsonRendered, err := NewFormatter(FormatJSON).FormatRound(round)
	require.NoError(t, err)
	var decoded core.QuizRound
	require.NoError(t, json.Unmarshal([]byte(jsonRendered), &decoded))
	require.Equal(t, round.CorrectCharacterID, decoded.CorrectCharacterID)
	require.Len(t, decoded.Options, 4)

	markdownRendered, err := (&MarkdownFormatter{RevealAnswer: true}).FormatRound(round)
	require.NoError(t, err)
	require.Contains(t, markdownRendered, "## Round 7 (hard)")
	require.Contains(t, markdownRendered, "| # | Character | Series | Answer |")
	require.Contains(t, markdownRendered, "Unnamed \\| Lead")
	require.Contains(t, markdownRendered, "| 2 | Edward Elric | Fullmetal Alchemist | correct |")
}

func TestFormatRoundHidesAnswerByDefault(t *testing.T) {
	rendered, err := (&TableFormatter{}).FormatRound(sampleRound())
	require.NoError(t, err)
	require.NotContains(t, rendered, "correct")
}

func TestFormatMedia(t *testing.T) {
	detail := &core.MediaDetail{
		ID:         101,
		Title:      core.MediaTitle{Romaji: "Shingeki no Kyojin", English: "Attack on Titan"},
		SeasonYear: 2013,
		Genres:     []string{"Action", "Drama"},
		CoverImage: "https://img.example/101.png",
	}

	tableRendered, err := NewFormatter(FormatTable).FormatMedia(detail)
	require.NoError(t, err)
	require.Contains(t, tableRendered, "Shingeki no Kyojin")
	require.Contains(t, tableRendered, "Action, Drama")
	require.Contains(t, tableRendered, "2013")

	markdownRendered, err := NewFormatter(FormatMarkdown).FormatMedia(detail)
	require.NoError(t, err)
	require.Contains(t, markdownRendered, "## Media 101")
	require.Contains(t, markdownRendered, "| English | Attack on Titan |")
}

func TestFormatRateState(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	state := core.RateState{
		Remaining:      3,
		RemainingKnown: true,
		WindowStart:    now.Add(-20 * time.Second),
		PauseUntil:     now.Add(40 * time.Second),
	}

	tableRendered, err := NewFormatter(FormatTable).FormatRateState(state, now)
	require.NoError(t, err)
	require.Contains(t, tableRendered, "3")
	require.Contains(t, tableRendered, "40s")

	jsonRendered, err := NewFormatter(FormatJSON).FormatRateState(state, now)
	require.NoError(t, err)
	require.Contains(t, jsonRendered, "\"remaining\": 3")
	require.Contains(t, jsonRendered, "\"pause_active\": true")

	unknown := core.RateState{}
	rendered, err := NewFormatter(FormatMarkdown).FormatRateState(unknown, now)
	require.NoError(t, err)
	require.Contains(t, rendered, "| Remaining | unknown |")
	require.Contains(t, rendered, "| Pause | none |")
}
