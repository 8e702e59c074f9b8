package cmd

import "github.com/spf13/cobra"

var imageCmd = &cobra.Command{
	Use:   "image",
	Short: "Work with character images",
}

func init() {
	rootCmd.AddCommand(imageCmd)
}
