package cmd

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/aniquiz/aniquiz/internal/core"
	"github.com/aniquiz/aniquiz/internal/output"
)

var rateLimitCmd = &cobra.Command{
	Use:   "rate-limit",
	Short: "Inspect the AniList request budget",
}

var (
	rateLimitStatusServer string
	rateLimitStatusOutput string
)

var rateLimitStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the governor state of a running server",
	Long:  "Query a running aniquiz server for its current AniList budget state.",
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := output.ParseFormat(rateLimitStatusOutput)
		if err != nil {
			return err
		}

		url := fmt.Sprintf("%s/api/v1/ratelimit", rateLimitStatusServer)
		req, err := http.NewRequestWithContext(cmd.Context(), http.MethodGet, url, nil)
		if err != nil {
			return err
		}

		client := &http.Client{Timeout: 5 * time.Second}
		resp, err := client.Do(req)
		if err != nil {
			return fmt.Errorf("query %s: %w", url, err)
		}
		defer resp.Body.Close() // nolint:errcheck // best-effort cleanup

		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("server returned %s for %s", resp.Status, url)
		}

		var payload struct {
			Remaining   *int       `json:"remaining"`
			PauseUntil  *time.Time `json:"pause_until"`
			PauseActive bool       `json:"pause_active"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
			return fmt.Errorf("decode ratelimit response: %w", err)
		}

		state := core.RateState{}
		if payload.Remaining != nil {
			state.Remaining = *payload.Remaining
			state.RemainingKnown = true
		}
		if payload.PauseUntil != nil {
			state.PauseUntil = *payload.PauseUntil
		}

		rendered, err := output.NewFormatter(format).FormatRateState(state, time.Now().UTC())
		if err != nil {
			return err
		}
		if rendered != "" {
			fmt.Println(rendered)
		}
		return nil
	},
}

func init() {
	rateLimitStatusCmd.Flags().StringVar(&rateLimitStatusServer, "server", "http://localhost:8080", "Base URL of the running server")
	rateLimitStatusCmd.Flags().StringVar(&rateLimitStatusOutput, "output", string(output.FormatTable), "Output format: table, json, markdown")

	rateLimitCmd.AddCommand(rateLimitStatusCmd)
	rootCmd.AddCommand(rateLimitCmd)
}
