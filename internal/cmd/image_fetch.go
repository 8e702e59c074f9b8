package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/aniquiz/aniquiz/internal/config"
	"github.com/aniquiz/aniquiz/internal/core"
	"github.com/aniquiz/aniquiz/internal/observability"
)

var imageFetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Download option images for a quiz round",
	Long:  "Build a round and download the character image for each option.",
	RunE:  runImageFetch,
}

func init() {
	imageCmd.AddCommand(imageFetchCmd)

	imageFetchCmd.Flags().Int("round", 0, "Round number")
	imageFetchCmd.Flags().String("difficulty", "medium", "Difficulty: easy, medium, hard")
	imageFetchCmd.Flags().StringSlice("genres", nil, "Genres to draw the pool from")
	imageFetchCmd.Flags().String("out-dir", "", "Output directory for images (required)")
	imageFetchCmd.Flags().Bool("no-cache", false, "Skip cache lookup")
}

func runImageFetch(cmd *cobra.Command, _ []string) error {
	roundNum, _ := cmd.Flags().GetInt("round")
	difficultyValue, _ := cmd.Flags().GetString("difficulty")
	genres, _ := cmd.Flags().GetStringSlice("genres")
	outDir, _ := cmd.Flags().GetString("out-dir")
	noCache, _ := cmd.Flags().GetBool("no-cache")

	if strings.TrimSpace(outDir) == "" {
		return errors.New("--out-dir is required")
	}
	difficulty, ok := parseDifficulty(difficultyValue)
	if !ok {
		return fmt.Errorf("unsupported difficulty: %s", difficultyValue)
	}

	absOut, err := ensureOutDir(outDir)
	if err != nil {
		return err
	}

	cfg, err := config.Get()
	if err != nil {
		return err
	}

	filters := core.PoolFilters{
		Genres:   genres,
		YearFrom: cfg.Quiz.YearFrom,
		YearTo:   cfg.Quiz.YearTo,
	}

	ctx := cmd.Context()
	stack, err := buildQuizStack(ctx, cfg, observability.CLILogger, !noCache)
	if err != nil {
		return err
	}
	defer stack.Close()

	round, err := stack.Assembler.BuildRound(ctx, roundNum, filters, difficulty)
	if err != nil {
		return err
	}

	client := &http.Client{Timeout: 30 * time.Second}
	for _, option := range round.Options {
		path := filepath.Join(absOut, imageFilename(option.Character))
		if err := downloadImage(ctx, client, option.Character.ImageURL, path); err != nil {
			return fmt.Errorf("download image for %s: %w", option.Character.Name, err)
		}
		observability.CLILogger.Debug("Downloaded character image",
			zap.String("character", option.Character.Name),
			zap.String("path", path))
	}

	fmt.Printf("Downloaded %d images to %s\n", len(round.Options), absOut)
	return nil
}

var nonFilename = regexp.MustCompile(`[^a-z0-9._-]+`)

func imageFilename(character core.Character) string {
	name := strings.ToLower(strings.TrimSpace(character.Name))
	name = nonFilename.ReplaceAllString(name, "-")
	name = strings.Trim(name, "-.")
	if name == "" {
		name = "character"
	}

	ext := strings.ToLower(filepath.Ext(character.ImageURL))
	if ext != ".png" && ext != ".jpg" && ext != ".jpeg" {
		ext = ".jpg"
	}
	return fmt.Sprintf("%d-%s%s", character.ID, name, ext)
}

func downloadImage(ctx context.Context, client *http.Client, url, path string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close() // nolint:errcheck // best-effort cleanup

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %s", resp.Status)
	}

	out, err := os.Create(path)
	if err != nil {
		return err
	}
	defer out.Close() // nolint:errcheck

	_, err = io.Copy(out, resp.Body)
	return err
}

func ensureOutDir(dir string) (string, error) {
	clean := strings.TrimSpace(dir)
	if clean == "" {
		return "", nil
	}
	if err := os.MkdirAll(clean, 0755); err != nil {
		return "", fmt.Errorf("create output directory: %w", err)
	}
	if err := verifyDirWritable(clean); err != nil {
		return "", err
	}
	abs, err := filepath.Abs(clean)
	if err != nil {
		return clean, nil
	}
	return abs, nil
}

func verifyDirWritable(dir string) error {
	probe := filepath.Join(dir, ".aniquiz-write-test")
	f, err := os.OpenFile(probe, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("output directory not writable: %w", err)
	}
	if err := f.Close(); err != nil {
		return err
	}
	_ = os.Remove(probe)
	return nil
}
