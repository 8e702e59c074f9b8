package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/aniquiz/aniquiz/internal/anilist"
	"github.com/aniquiz/aniquiz/internal/config"
	"github.com/aniquiz/aniquiz/internal/core"
	"github.com/aniquiz/aniquiz/internal/observability"
	"github.com/aniquiz/aniquiz/internal/output"
)

var roundCmd = &cobra.Command{
	Use:   "round",
	Short: "Build a quiz round",
	Long:  "Build a four-option character quiz round from AniList data.",
	RunE:  runRound,
}

func init() {
	rootCmd.AddCommand(roundCmd)

	roundCmd.Flags().Int("round", 0, "Round number (grows the candidate pool)")
	roundCmd.Flags().String("difficulty", "medium", "Difficulty: easy, medium, hard")
	roundCmd.Flags().StringSlice("genres", nil, "Genres to draw the pool from (comma-separated)")
	roundCmd.Flags().Int("year-from", 0, "Earliest media year (defaults from config)")
	roundCmd.Flags().Int("year-to", 0, "Latest media year (defaults from config)")
	roundCmd.Flags().String("output", "table", "Output format: table, json, markdown")
	roundCmd.Flags().Bool("no-cache", false, "Skip cache lookup")
	roundCmd.Flags().Bool("reveal", false, "Mark the correct option in the output")
}

func runRound(cmd *cobra.Command, args []string) error {
	roundNum, err := cmd.Flags().GetInt("round")
	if err != nil {
		return err
	}
	if roundNum < 0 {
		return errors.New("--round must not be negative")
	}

	difficultyValue, err := cmd.Flags().GetString("difficulty")
	if err != nil {
		return err
	}
	difficulty, ok := parseDifficulty(difficultyValue)
	if !ok {
		return fmt.Errorf("unsupported difficulty: %s", difficultyValue)
	}

	genres, err := cmd.Flags().GetStringSlice("genres")
	if err != nil {
		return err
	}
	yearFrom, err := cmd.Flags().GetInt("year-from")
	if err != nil {
		return err
	}
	yearTo, err := cmd.Flags().GetInt("year-to")
	if err != nil {
		return err
	}
	noCache, err := cmd.Flags().GetBool("no-cache")
	if err != nil {
		return err
	}
	reveal, err := cmd.Flags().GetBool("reveal")
	if err != nil {
		return err
	}

	formatValue, err := cmd.Flags().GetString("output")
	if err != nil {
		return err
	}
	format, err := output.ParseFormat(formatValue)
	if err != nil {
		return err
	}

	cfg, err := config.Get()
	if err != nil {
		return err
	}

	filters := core.PoolFilters{Genres: genres, YearFrom: yearFrom, YearTo: yearTo}
	if filters.YearFrom == 0 {
		filters.YearFrom = cfg.Quiz.YearFrom
	}
	if filters.YearTo == 0 {
		filters.YearTo = cfg.Quiz.YearTo
	}

	ctx := cmd.Context()
	startedAt := time.Now()

	stack, err := buildQuizStack(ctx, cfg, observability.CLILogger, !noCache)
	if err != nil {
		return err
	}
	defer stack.Close()

	round, err := stack.Assembler.BuildRound(ctx, roundNum, filters, difficulty)
	if err != nil {
		var throttle *anilist.ThrottleError
		if errors.As(err, &throttle) {
			return fmt.Errorf("AniList is throttling requests, retry in %ds", throttle.RetryAfterSeconds)
		}
		return err
	}

	rendered, err := renderRound(format, round, reveal)
	if err != nil {
		return err
	}
	if rendered != "" {
		fmt.Println(rendered)
	}

	if format != output.FormatJSON {
		observability.CLILogger.Debug("Round built",
			zap.String("round_id", round.RoundID),
			zap.Int("attempts", round.Attempts),
			zap.Duration("elapsed", time.Since(startedAt)))
	}
	return nil
}

func renderRound(format output.Format, round *core.QuizRound, reveal bool) (string, error) {
	switch format {
	case output.FormatJSON:
		return (&output.JSONFormatter{Indent: true}).FormatRound(round)
	case output.FormatMarkdown:
		return (&output.MarkdownFormatter{RevealAnswer: reveal}).FormatRound(round)
	default:
		return (&output.TableFormatter{RevealAnswer: reveal}).FormatRound(round)
	}
}

// parseDifficulty mirrors the server-side difficulty parsing.
func parseDifficulty(value string) (core.Difficulty, bool) {
	switch value {
	case "", "medium":
		return core.DifficultyMedium, true
	case "easy":
		return core.DifficultyEasy, true
	case "hard":
		return core.DifficultyHard, true
	default:
		return "", false
	}
}
