package output

import (
	"fmt"
	"strings"
	"time"

	"github.com/aniquiz/aniquiz/internal/core"
)

// Format represents an output format.
type Format string

const (
	FormatTable    Format = "table"
	FormatJSON     Format = "json"
	FormatMarkdown Format = "markdown"
)

// Formatter renders quiz rounds and related results.
type Formatter interface {
	FormatRound(round *core.QuizRound) (string, error)
	FormatMedia(detail *core.MediaDetail) (string, error)
	FormatRateState(state core.RateState, now time.Time) (string, error)
}

// ParseFormat validates and normalizes a format string.
func ParseFormat(value string) (Format, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	switch normalized {
	case "", string(FormatTable):
		return FormatTable, nil
	case string(FormatJSON):
		return FormatJSON, nil
	case string(FormatMarkdown):
		return FormatMarkdown, nil
	default:
		return "", fmt.Errorf("unsupported output format: %s", value)
	}
}

// NewFormatter returns a formatter for the requested format.
func NewFormatter(format Format) Formatter {
	switch format {
	case FormatJSON:
		return &JSONFormatter{Indent: true}
	case FormatMarkdown:
		return &MarkdownFormatter{}
	default:
		return &TableFormatter{}
	}
}

func optionTitle(option core.QuizOption) string {
	if option.Title == nil {
		return "(untitled)"
	}
	if option.Title.English != "" {
		return option.Title.English
	}
	if option.Title.Romaji != "" {
		return option.Title.Romaji
	}
	return "(untitled)"
}

func rateRemaining(state core.RateState) string {
	if !state.RemainingKnown {
		return "unknown"
	}
	return fmt.Sprintf("%d", state.Remaining)
}

func ratePause(state core.RateState, now time.Time) string {
	if !state.PauseActive(now) {
		return "none"
	}
	return fmt.Sprintf("%s (until %s)",
		state.PauseUntil.Sub(now).Round(time.Second),
		state.PauseUntil.Format(time.RFC3339))
}
