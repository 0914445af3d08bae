package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tomehq/tome/internal/ingest"
)

var (
	ingestTitle string
	ingestKind  string
	ingestStart bool
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <file>",
	Short: "Ingest a work directly into the store",
	Long: `Ingest a long-form work (.txt, .md, or .pdf) directly into DefraDB.

The file is split into chapters and stored with every stage pending.
This talks to the store directly; use 'tome api works ingest' to upload
through a running server instead. Pass --start to enqueue the first
pipeline stage for every chapter (requires the broker).`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		services, cleanup, err := buildServices(ctx, bootstrapOptions{needBroker: ingestStart})
		if err != nil {
			return err
		}
		defer cleanup()

		res, err := ingest.Ingest(ctx, services.Store, ingest.Request{
			Path:   args[0],
			Title:  ingestTitle,
			Kind:   ingestKind,
			Logger: services.Logger,
		})
		if err != nil {
			return err
		}

		// Archive the source under ~/.tome/sources so the original
		// survives renames and deletion of the input file.
		if data, err := os.ReadFile(args[0]); err == nil {
			ext := strings.ToLower(filepath.Ext(args[0]))
			dst := services.Home.SourcePath(res.WorkID, ext)
			if err := os.WriteFile(dst, data, 0o644); err != nil {
				services.Logger.Warn("failed to archive source", "path", dst, "error", err)
			}
		}

		fmt.Printf("Ingested %q as work %s (%d chapters)\n", res.Title, res.WorkID, res.Chapters)

		if ingestStart {
			if err := services.Commands.StartWork(ctx, res.WorkID); err != nil {
				return fmt.Errorf("failed to start pipeline: %w", err)
			}
			fmt.Println("Pipeline started")
		}
		return nil
	},
}

func init() {
	ingestCmd.Flags().StringVar(&ingestTitle, "title", "", "Override the title derived from the filename")
	ingestCmd.Flags().StringVar(&ingestKind, "kind", "", "Work kind: fiction or nonfiction")
	ingestCmd.Flags().BoolVar(&ingestStart, "start", false, "Enqueue the first stage for every chapter after ingest")

	rootCmd.AddCommand(ingestCmd)
}
