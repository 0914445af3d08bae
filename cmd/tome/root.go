package main

import (
	"github.com/spf13/cobra"

	"github.com/tomehq/tome/internal/api"
	"github.com/tomehq/tome/version"
)

var (
	cfgFile      string
	homePath     string
	outputFormat string
)

var rootCmd = &cobra.Command{
	Use:   "tome",
	Short: "Reading pipeline that turns long-form works into linked notes",
	Long: `Tome ingests long-form works (books, transcripts, articles), splits
them into chapters, and runs a staged AI pipeline over each one.

The pipeline includes:
  - Chapter overviews streamed as they generate
  - Structured analysis merged into per-chapter summaries
  - Atomic notes with embeddings and a knowledge graph
  - Work-level synthesis once every chapter lands
  - Folder organization across the whole note collection

State lives in DefraDB; jobs ride RabbitMQ between the API process
(tome serve) and one or more workers (tome worker).`,
	Version: version.GitRelease,
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile, "config", "", "config file (default: ./config.yaml or ~/.tome/config.yaml)",
	)
	rootCmd.PersistentFlags().StringVar(
		&homePath, "home", "", "tome home directory (default: ~/.tome)",
	)
	rootCmd.PersistentFlags().StringVarP(
		&outputFormat, "output", "o", "yaml", "output format: yaml or json",
	)

	// Set output format before any command runs
	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		api.SetOutputFormat(outputFormat)
	}

	rootCmd.AddCommand(versionCmd)
}
