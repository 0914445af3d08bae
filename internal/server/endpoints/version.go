package endpoints

import (
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/tomehq/tome/internal/api"
	"github.com/tomehq/tome/version"
)

// VersionResponse reports the server build.
type VersionResponse struct {
	Version string `json:"version"`
	Commit  string `json:"commit"`
	Date    string `json:"date"`
	Go      string `json:"go"`
}

// VersionEndpoint handles GET /api/v1/version.
type VersionEndpoint struct{}

var _ api.Endpoint = (*VersionEndpoint)(nil)

func (e *VersionEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/v1/version", e.handler
}

func (e *VersionEndpoint) RequiresInit() bool { return false }

// handler godoc
//
//	@Summary		Server version
//	@Description	Get the server build version
//	@Tags			health
//	@Produce		json
//	@Success		200	{object}	VersionResponse
//	@Router			/api/v1/version [get]
func (e *VersionEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, VersionResponse{
		Version: version.GitRelease,
		Commit:  version.GitCommit,
		Date:    version.GitCommitDate,
		Go:      version.GoInfo,
	})
}

func (e *VersionEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show the server version",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			client := api.NewClient(getServerURL())
			var resp VersionResponse
			if err := client.Get(ctx, "/api/v1/version", &resp); err != nil {
				return err
			}
			fmt.Printf("tome %s\n", resp.Version)
			fmt.Printf("  Go:     %s\n", resp.Go)
			fmt.Printf("  Commit: %s\n", resp.Commit)
			fmt.Printf("  Date:   %s\n", resp.Date)
			return nil
		},
	}
}
