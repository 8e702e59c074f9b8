package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/aniquiz/aniquiz/internal/config"
	"github.com/aniquiz/aniquiz/internal/core"
	"github.com/aniquiz/aniquiz/internal/observability"
	"github.com/aniquiz/aniquiz/internal/output"
)

var mediaCmd = &cobra.Command{
	Use:   "media <id>",
	Short: "Show media details",
	Long:  "Fetch and display the detail record for a single AniList media entry.",
	Args:  cobra.ExactArgs(1),
	RunE:  runMedia,
}

func init() {
	rootCmd.AddCommand(mediaCmd)

	mediaCmd.Flags().String("output", "table", "Output format: table, json, markdown")
	mediaCmd.Flags().Bool("no-cache", false, "Skip cache lookup")
}

func runMedia(cmd *cobra.Command, args []string) error {
	id, err := strconv.Atoi(args[0])
	if err != nil || id <= 0 {
		return fmt.Errorf("media id must be a positive integer, got %q", args[0])
	}

	formatValue, err := cmd.Flags().GetString("output")
	if err != nil {
		return err
	}
	format, err := output.ParseFormat(formatValue)
	if err != nil {
		return err
	}

	noCache, err := cmd.Flags().GetBool("no-cache")
	if err != nil {
		return err
	}

	cfg, err := config.Get()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	stack, err := buildQuizStack(ctx, cfg, observability.CLILogger, !noCache)
	if err != nil {
		return err
	}
	defer stack.Close()

	detail, err := stack.Fetch.MediaDetail(ctx, id)
	if err != nil {
		return err
	}

	rendered, err := renderMedia(format, detail)
	if err != nil {
		return err
	}
	if rendered != "" {
		fmt.Println(rendered)
	}
	return nil
}

func renderMedia(format output.Format, detail *core.MediaDetail) (string, error) {
	switch format {
	case output.FormatJSON:
		return (&output.JSONFormatter{Indent: true}).FormatMedia(detail)
	case output.FormatMarkdown:
		return (&output.MarkdownFormatter{}).FormatMedia(detail)
	default:
		return (&output.TableFormatter{}).FormatMedia(detail)
	}
}
