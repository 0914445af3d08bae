package endpoints

import (
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/tomehq/tome/internal/api"
	"github.com/tomehq/tome/internal/svcctx"
	"github.com/tomehq/tome/internal/types"
)

// GetAnalysisEndpoint handles GET /api/v1/works/{id}/analysis.
type GetAnalysisEndpoint struct{}

var _ api.Endpoint = (*GetAnalysisEndpoint)(nil)

func (e *GetAnalysisEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/v1/works/{id}/analysis", e.handler
}

func (e *GetAnalysisEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Get work analysis
//	@Description	Get the work-level synthesis written after all chapters complete
//	@Tags			works
//	@Produce		json
//	@Param			id	path		string	true	"Work ID"
//	@Success		200	{object}	types.Analysis
//	@Failure		404	{object}	ErrorResponse
//	@Failure		500	{object}	ErrorResponse
//	@Failure		503	{object}	ErrorResponse
//	@Router			/api/v1/works/{id}/analysis [get]
func (e *GetAnalysisEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	st := svcctx.StoreFrom(r.Context())
	if st == nil {
		writeError(w, http.StatusServiceUnavailable, "store not initialized")
		return
	}

	a, err := st.GetAnalysis(r.Context(), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, a)
}

func (e *GetAnalysisEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "analysis <work-id>",
		Short: "Get a work's overall analysis",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			client := api.NewClient(getServerURL())
			var a types.Analysis
			if err := client.Get(ctx, "/api/v1/works/"+args[0]+"/analysis", &a); err != nil {
				return err
			}
			return api.Output(a)
		},
	}
}

// RegenerateAnalysisEndpoint handles POST /api/v1/works/{id}/analysis/regenerate.
type RegenerateAnalysisEndpoint struct{}

var _ api.Endpoint = (*RegenerateAnalysisEndpoint)(nil)

func (e *RegenerateAnalysisEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/v1/works/{id}/analysis/regenerate", e.handler
}

func (e *RegenerateAnalysisEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Regenerate work analysis
//	@Description	Queue a forced work-level synthesis, skipping the all-chapters gate
//	@Tags			works
//	@Produce		json
//	@Param			id	path		string	true	"Work ID"
//	@Success		202	{object}	EnqueuedResponse
//	@Failure		404	{object}	ErrorResponse
//	@Failure		500	{object}	ErrorResponse
//	@Failure		503	{object}	ErrorResponse
//	@Router			/api/v1/works/{id}/analysis/regenerate [post]
func (e *RegenerateAnalysisEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	cmds := svcctx.CommandsFrom(r.Context())
	if cmds == nil {
		writeError(w, http.StatusServiceUnavailable, "commands not initialized")
		return
	}

	if err := cmds.RegenerateAnalysis(r.Context(), r.PathValue("id")); err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, EnqueuedResponse{Status: "queued"})
}

func (e *RegenerateAnalysisEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "regenerate-analysis <work-id>",
		Short: "Re-run the work-level synthesis",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			client := api.NewClient(getServerURL())
			var resp EnqueuedResponse
			if err := client.Post(ctx, "/api/v1/works/"+args[0]+"/analysis/regenerate", nil, &resp); err != nil {
				return err
			}
			fmt.Printf("analysis regeneration %s\n", resp.Status)
			return nil
		},
	}
}
