package output

import (
	"fmt"
	"strings"
	"time"

	"github.com/aniquiz/aniquiz/internal/core"
)

// MarkdownFormatter renders results as a markdown table.
type MarkdownFormatter struct {
	// RevealAnswer marks the correct option in the rendered table.
	RevealAnswer bool
}

// FormatRound renders a quiz round as Markdown.
func (f *MarkdownFormatter) FormatRound(round *core.QuizRound) (string, error) {
	if round == nil {
		return "", nil
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("## Round %d (%s)\n\n", round.Round, round.Difficulty))
	sb.WriteString("| # | Character | Series | Answer |\n")
	sb.WriteString("|---|-----------|--------|--------|\n")

	for i, option := range round.Options {
		answer := ""
		if f.RevealAnswer && option.Character.ID == round.CorrectCharacterID {
			answer = "correct"
		}
		sb.WriteString(fmt.Sprintf("| %d | %s | %s | %s |\n",
			i+1,
			escapeMarkdownCell(option.Character.Name),
			escapeMarkdownCell(optionTitle(option)),
			answer,
		))
	}

	sb.WriteString(fmt.Sprintf("\n**Built**: %s (attempt %d)\n",
		round.BuiltAt.Format(time.RFC3339), round.Attempts))
	return sb.String(), nil
}

// FormatMedia renders a media detail as Markdown.
func (f *MarkdownFormatter) FormatMedia(detail *core.MediaDetail) (string, error) {
	if detail == nil {
		return "", nil
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("## Media %d\n\n", detail.ID))
	sb.WriteString("| Field | Value |\n")
	sb.WriteString("|-------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Romaji | %s |\n", escapeMarkdownCell(detail.Title.Romaji)))
	if detail.Title.English != "" {
		sb.WriteString(fmt.Sprintf("| English | %s |\n", escapeMarkdownCell(detail.Title.English)))
	}
	if detail.SeasonYear > 0 {
		sb.WriteString(fmt.Sprintf("| Year | %d |\n", detail.SeasonYear))
	}
	if len(detail.Genres) > 0 {
		sb.WriteString(fmt.Sprintf("| Genres | %s |\n", escapeMarkdownCell(strings.Join(detail.Genres, ", "))))
	}

	return sb.String(), nil
}

// FormatRateState renders the governor state as Markdown.
func (f *MarkdownFormatter) FormatRateState(state core.RateState, now time.Time) (string, error) {
	var sb strings.Builder
	sb.WriteString("## Rate limit\n\n")
	sb.WriteString("| Field | Value |\n")
	sb.WriteString("|-------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Remaining | %s |\n", rateRemaining(state)))
	sb.WriteString(fmt.Sprintf("| Pause | %s |\n", escapeMarkdownCell(ratePause(state, now))))
	return sb.String(), nil
}

func escapeMarkdownCell(value string) string {
	escaped := strings.ReplaceAll(value, "|", "\\|")
	return strings.ReplaceAll(escaped, "\n", " ")
}
