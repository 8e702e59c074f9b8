package cmd

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/aniquiz/aniquiz/internal/config"
	"github.com/aniquiz/aniquiz/internal/core/store"
	"github.com/aniquiz/aniquiz/internal/output"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the AniList response cache",
}

var cacheStatsOutput string

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show cached entry counts per namespace",
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := output.ParseFormat(cacheStatsOutput)
		if err != nil {
			return err
		}
		if format != output.FormatJSON && format != output.FormatTable {
			return fmt.Errorf("unsupported output format: %s", format)
		}

		db, err := openCacheStore(cmd)
		if err != nil {
			return err
		}
		defer db.Close() // nolint:errcheck // best-effort cleanup

		counts, err := db.NamespaceCount(cmd.Context())
		if err != nil {
			return err
		}

		if format == output.FormatJSON {
			payload, err := json.MarshalIndent(counts, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(payload))
			return nil
		}

		namespaces := make([]string, 0, len(counts))
		for ns := range counts {
			namespaces = append(namespaces, ns)
		}
		sort.Strings(namespaces)

		t := table.NewWriter()
		t.SetStyle(table.StyleRounded)
		t.AppendHeader(table.Row{"Namespace", "Entries"})
		for _, ns := range namespaces {
			t.AppendRow(table.Row{ns, counts[ns]})
		}
		fmt.Println(t.Render())
		return nil
	},
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear [namespace]",
	Short: "Clear cached entries",
	Long:  "Clear cached entries for one namespace, or all namespaces when omitted.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		namespace := ""
		if len(args) == 1 {
			namespace = args[0]
		}

		db, err := openCacheStore(cmd)
		if err != nil {
			return err
		}
		defer db.Close() // nolint:errcheck // best-effort cleanup

		removed, err := db.Clear(cmd.Context(), namespace)
		if err != nil {
			return err
		}

		if namespace == "" {
			fmt.Printf("Cleared %d cached entries\n", removed)
		} else {
			fmt.Printf("Cleared %d cached entries from %s\n", removed, namespace)
		}
		return nil
	},
}

// openCacheStore opens the libsql store for cache administration. Redis
// deployments manage cached entries with redis tooling directly.
func openCacheStore(cmd *cobra.Command) (*store.Store, error) {
	cfg, err := config.Get()
	if err != nil {
		return nil, err
	}
	if cfg.Store.Driver == store.DriverRedis {
		return nil, fmt.Errorf("cache administration requires the libsql store driver")
	}
	return openStore(cmd.Context(), cfg)
}

func init() {
	cacheStatsCmd.Flags().StringVar(&cacheStatsOutput, "output", string(output.FormatTable), "Output format: table|json")

	cacheCmd.AddCommand(cacheStatsCmd)
	cacheCmd.AddCommand(cacheClearCmd)
	rootCmd.AddCommand(cacheCmd)
}
