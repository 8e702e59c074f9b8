package output

import (
	"encoding/json"
	"time"

	"github.com/aniquiz/aniquiz/internal/core"
)

// JSONFormatter renders results as JSON.
type JSONFormatter struct {
	Indent bool
}

// FormatRound renders a quiz round as JSON.
func (f *JSONFormatter) FormatRound(round *core.QuizRound) (string, error) {
	if round == nil {
		return "", nil
	}
	return f.marshal(round)
}

// FormatMedia renders a media detail as JSON.
func (f *JSONFormatter) FormatMedia(detail *core.MediaDetail) (string, error) {
	if detail == nil {
		return "", nil
	}
	return f.marshal(detail)
}

// FormatRateState renders the governor state as JSON.
func (f *JSONFormatter) FormatRateState(state core.RateState, now time.Time) (string, error) {
	payload := struct {
		Remaining      int       `json:"remaining"`
		RemainingKnown bool      `json:"remaining_known"`
		WindowStart    time.Time `json:"window_start,omitempty"`
		PauseUntil     time.Time `json:"pause_until,omitempty"`
		PauseActive    bool      `json:"pause_active"`
	}{
		Remaining:      state.Remaining,
		RemainingKnown: state.RemainingKnown,
		WindowStart:    state.WindowStart,
		PauseUntil:     state.PauseUntil,
		PauseActive:    state.PauseActive(now),
	}
	return f.marshal(payload)
}

func (f *JSONFormatter) marshal(value interface{}) (string, error) {
	var (
		data []byte
		err  error
	)

	if f.Indent {
		data, err = json.MarshalIndent(value, "", "  ")
	} else {
		data, err = json.Marshal(value)
	}
	if err != nil {
		return "", err
	}

	return string(data), nil
}
