package output

import (
	"fmt"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/aniquiz/aniquiz/internal/core"
)

// TableFormatter renders results as an ASCII table.
type TableFormatter struct {
	// RevealAnswer marks the correct option in the rendered table.
	RevealAnswer bool
}

// FormatRound renders a quiz round as a table.
func (f *TableFormatter) FormatRound(round *core.QuizRound) (string, error) {
	if round == nil {
		return "", nil
	}

	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"#", "Character", "Series", "Answer"})

	for i, option := range round.Options {
		answer := ""
		if f.RevealAnswer && option.Character.ID == round.CorrectCharacterID {
			answer = "correct"
		}
		t.AppendRow(table.Row{
			i + 1,
			option.Character.Name,
			optionTitle(option),
			answer,
		})
	}

	t.AppendFooter(table.Row{
		"",
		"",
		fmt.Sprintf("round %d, %s", round.Round, round.Difficulty),
		fmt.Sprintf("attempt %d", round.Attempts),
	})

	return t.Render(), nil
}

// FormatMedia renders a media detail as a table.
func (f *TableFormatter) FormatMedia(detail *core.MediaDetail) (string, error) {
	if detail == nil {
		return "", nil
	}

	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Field", "Value"})
	t.AppendRow(table.Row{"ID", detail.ID})
	t.AppendRow(table.Row{"Romaji", detail.Title.Romaji})
	t.AppendRow(table.Row{"English", detail.Title.English})
	if detail.SeasonYear > 0 {
		t.AppendRow(table.Row{"Year", detail.SeasonYear})
	}
	if len(detail.Genres) > 0 {
		t.AppendRow(table.Row{"Genres", strings.Join(detail.Genres, ", ")})
	}
	if detail.CoverImage != "" {
		t.AppendRow(table.Row{"Cover", detail.CoverImage})
	}

	return t.Render(), nil
}

// FormatRateState renders the governor state as a table.
func (f *TableFormatter) FormatRateState(state core.RateState, now time.Time) (string, error) {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Field", "Value"})
	t.AppendRow(table.Row{"Remaining", rateRemaining(state)})
	t.AppendRow(table.Row{"Pause", ratePause(state, now)})
	if !state.WindowStart.IsZero() {
		t.AppendRow(table.Row{"Window start", state.WindowStart.Format(time.RFC3339)})
	}

	return t.Render(), nil
}
