package main

import (
	"github.com/spf13/cobra"

	"github.com/tomehq/tome/internal/server/endpoints"
)

var serverURL string

var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "Commands that call the running server",
	Long: `API commands call the running Tome server via HTTP.

These commands require a running server (tome serve).
Use --server to specify a custom server URL.

Examples:
  tome api health                 # Check server health
  tome api works list             # List all works
  tome api works events <id>      # Follow pipeline events for a work`,
}

var worksCmd = &cobra.Command{
	Use:   "works",
	Short: "Work management commands",
}

var chaptersCmd = &cobra.Command{
	Use:   "chapters",
	Short: "Chapter and stage commands",
}

var notesCmd = &cobra.Command{
	Use:   "notes",
	Short: "Note browsing commands",
}

var graphCmd = &cobra.Command{
	Use:   "graph",
	Short: "Note graph commands",
}

var foldersCmd = &cobra.Command{
	Use:   "folders",
	Short: "Folder tree commands",
}

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Job record commands",
}

var metricsCmd = &cobra.Command{
	Use:   "metrics",
	Short: "Model call metrics commands",
}

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Configuration settings commands",
}

// getServerURL returns the server URL at runtime (after flag parsing).
func getServerURL() string {
	return serverURL
}

func init() {
	// Add --server flag to api command (persistent so all subcommands inherit it)
	apiCmd.PersistentFlags().StringVar(
		&serverURL, "server", "http://localhost:4242", "Server URL",
	)

	// Health endpoints at top level of api
	apiCmd.AddCommand((&endpoints.HealthEndpoint{}).Command(getServerURL))
	apiCmd.AddCommand((&endpoints.ReadyEndpoint{}).Command(getServerURL))
	apiCmd.AddCommand((&endpoints.StatusEndpoint{}).Command(getServerURL))
	apiCmd.AddCommand((&endpoints.VersionEndpoint{}).Command(getServerURL))
	apiCmd.AddCommand((&endpoints.SwaggerEndpoint{}).Command(getServerURL))
	apiCmd.AddCommand((&endpoints.SwaggerUIEndpoint{}).Command(getServerURL))

	// Works as subcommand group
	worksCmd.AddCommand((&endpoints.IngestWorkEndpoint{}).Command(getServerURL))
	worksCmd.AddCommand((&endpoints.ListWorksEndpoint{}).Command(getServerURL))
	worksCmd.AddCommand((&endpoints.GetWorkEndpoint{}).Command(getServerURL))
	worksCmd.AddCommand((&endpoints.DeleteWorkEndpoint{}).Command(getServerURL))
	worksCmd.AddCommand((&endpoints.RegenerateWorkEndpoint{}).Command(getServerURL))
	worksCmd.AddCommand((&endpoints.WorkEventsEndpoint{}).Command(getServerURL))
	worksCmd.AddCommand((&endpoints.ListChaptersEndpoint{}).Command(getServerURL))
	worksCmd.AddCommand((&endpoints.GetAnalysisEndpoint{}).Command(getServerURL))
	worksCmd.AddCommand((&endpoints.RegenerateAnalysisEndpoint{}).Command(getServerURL))

	// Chapters as subcommand group
	chaptersCmd.AddCommand((&endpoints.GetChapterEndpoint{}).Command(getServerURL))
	chaptersCmd.AddCommand((&endpoints.GenerateStageEndpoint{}).Command(getServerURL))
	chaptersCmd.AddCommand((&endpoints.SkipStageEndpoint{}).Command(getServerURL))

	// Notes as subcommand group
	notesCmd.AddCommand((&endpoints.ListNotesEndpoint{}).Command(getServerURL))
	notesCmd.AddCommand((&endpoints.GetNoteEndpoint{}).Command(getServerURL))

	// Graph as subcommand group
	graphCmd.AddCommand((&endpoints.GetGraphEndpoint{}).Command(getServerURL))
	graphCmd.AddCommand((&endpoints.AddEdgeEndpoint{}).Command(getServerURL))
	graphCmd.AddCommand((&endpoints.RemoveEdgeEndpoint{}).Command(getServerURL))

	// Folders as subcommand group
	foldersCmd.AddCommand((&endpoints.GetFoldersEndpoint{}).Command(getServerURL))
	foldersCmd.AddCommand((&endpoints.OrganizeFoldersEndpoint{}).Command(getServerURL))

	// Jobs as subcommand group
	jobsCmd.AddCommand((&endpoints.ListJobsEndpoint{}).Command(getServerURL))

	// Metrics as subcommand group
	metricsCmd.AddCommand((&endpoints.MetricsSummaryEndpoint{}).Command(getServerURL))

	// Settings as subcommand group
	settingsCmd.AddCommand((&endpoints.GetSettingsEndpoint{}).Command(getServerURL))
	settingsCmd.AddCommand((&endpoints.UpdateSettingEndpoint{}).Command(getServerURL))

	apiCmd.AddCommand(worksCmd)
	apiCmd.AddCommand(chaptersCmd)
	apiCmd.AddCommand(notesCmd)
	apiCmd.AddCommand(graphCmd)
	apiCmd.AddCommand(foldersCmd)
	apiCmd.AddCommand(jobsCmd)
	apiCmd.AddCommand(metricsCmd)
	apiCmd.AddCommand(settingsCmd)
	rootCmd.AddCommand(apiCmd)
}
