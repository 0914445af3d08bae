package endpoints

import (
	"net/http"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/tomehq/tome/internal/api"
	"github.com/tomehq/tome/internal/svcctx"
	"github.com/tomehq/tome/internal/types"
)

// ListJobsResponse is the response for listing job records.
type ListJobsResponse struct {
	Jobs []types.JobRecord `json:"jobs"`
}

// ListJobsEndpoint handles GET /api/v1/jobs. Records are observability
// only; the broker remains the source of truth for delivery.
type ListJobsEndpoint struct{}

var _ api.Endpoint = (*ListJobsEndpoint)(nil)

func (e *ListJobsEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/v1/jobs", e.handler
}

func (e *ListJobsEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		List jobs
//	@Description	List recent job records, newest first
//	@Tags			jobs
//	@Produce		json
//	@Param			limit	query		int	false	"Max records (default 100)"
//	@Success		200	{object}	ListJobsResponse
//	@Failure		500	{object}	ErrorResponse
//	@Failure		503	{object}	ErrorResponse
//	@Router			/api/v1/jobs [get]
func (e *ListJobsEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	st := svcctx.StoreFrom(r.Context())
	if st == nil {
		writeError(w, http.StatusServiceUnavailable, "store not initialized")
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	jobs, err := st.ListJobRecords(r.Context(), limit)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if jobs == nil {
		jobs = []types.JobRecord{}
	}

	writeJSON(w, http.StatusOK, ListJobsResponse{Jobs: jobs})
}

func (e *ListJobsEndpoint) Command(getServerURL func() string) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			client := api.NewClient(getServerURL())
			var resp ListJobsResponse
			if err := client.Get(ctx, "/api/v1/jobs?limit="+strconv.Itoa(limit), &resp); err != nil {
				return err
			}
			return api.Output(resp.Jobs)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 100, "Max records")
	return cmd
}
