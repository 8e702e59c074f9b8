package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/aniquiz/aniquiz/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	Long:  "Show the merged configuration after defaults, config file and environment overrides.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Get()
		if err != nil {
			return err
		}

		// Secrets stay out of the rendered output.
		redacted := *cfg
		if redacted.Store.AuthToken != "" {
			redacted.Store.AuthToken = "[redacted]"
		}
		if redacted.Store.RedisPassword != "" {
			redacted.Store.RedisPassword = "[redacted]"
		}

		payload, err := yaml.Marshal(&redacted)
		if err != nil {
			return fmt.Errorf("render config: %w", err)
		}

		if used := config.FileUsed(); used != "" {
			fmt.Printf("# config file: %s\n", used)
		}
		fmt.Print(string(payload))
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	rootCmd.AddCommand(configCmd)
}
