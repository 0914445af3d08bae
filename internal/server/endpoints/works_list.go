package endpoints

import (
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/tomehq/tome/internal/api"
	"github.com/tomehq/tome/internal/svcctx"
	"github.com/tomehq/tome/internal/types"
)

// ListWorksResponse is the response for listing works.
type ListWorksResponse struct {
	Works []types.Work `json:"works"`
}

// ListWorksEndpoint handles GET /api/v1/works.
type ListWorksEndpoint struct{}

var _ api.Endpoint = (*ListWorksEndpoint)(nil)

func (e *ListWorksEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/v1/works", e.handler
}

func (e *ListWorksEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		List works
//	@Description	List every ingested work with its pipeline status
//	@Tags			works
//	@Produce		json
//	@Success		200	{object}	ListWorksResponse
//	@Failure		500	{object}	ErrorResponse
//	@Failure		503	{object}	ErrorResponse
//	@Router			/api/v1/works [get]
func (e *ListWorksEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	st := svcctx.StoreFrom(r.Context())
	if st == nil {
		writeError(w, http.StatusServiceUnavailable, "store not initialized")
		return
	}

	works, err := st.ListWorks(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if works == nil {
		works = []types.Work{}
	}

	writeJSON(w, http.StatusOK, ListWorksResponse{Works: works})
}

func (e *ListWorksEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all works",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			client := api.NewClient(getServerURL())
			var resp ListWorksResponse
			if err := client.Get(ctx, "/api/v1/works", &resp); err != nil {
				return err
			}
			return api.Output(resp.Works)
		},
	}
}

// WorkDetail is a work with its chapters.
type WorkDetail struct {
	Work     types.Work      `json:"work"`
	Chapters []types.Chapter `json:"chapters"`
}

// GetWorkEndpoint handles GET /api/v1/works/{id}.
type GetWorkEndpoint struct{}

var _ api.Endpoint = (*GetWorkEndpoint)(nil)

func (e *GetWorkEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/v1/works/{id}", e.handler
}

func (e *GetWorkEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Get work by ID
//	@Description	Get a work and its chapters with per-stage statuses
//	@Tags			works
//	@Produce		json
//	@Param			id	path		string	true	"Work ID"
//	@Success		200	{object}	WorkDetail
//	@Failure		404	{object}	ErrorResponse
//	@Failure		500	{object}	ErrorResponse
//	@Failure		503	{object}	ErrorResponse
//	@Router			/api/v1/works/{id} [get]
func (e *GetWorkEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	st := svcctx.StoreFrom(r.Context())
	if st == nil {
		writeError(w, http.StatusServiceUnavailable, "store not initialized")
		return
	}

	work, err := st.GetWork(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	chapters, err := st.ListChaptersByWork(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if chapters == nil {
		chapters = []types.Chapter{}
	}

	writeJSON(w, http.StatusOK, WorkDetail{Work: *work, Chapters: chapters})
}

func (e *GetWorkEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Get a work by ID",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			client := api.NewClient(getServerURL())
			var detail WorkDetail
			if err := client.Get(ctx, "/api/v1/works/"+args[0], &detail); err != nil {
				return err
			}
			return api.Output(detail)
		},
	}
}

// DeleteWorkEndpoint handles DELETE /api/v1/works/{id}. Deleting a work is
// also how in-flight processing is canceled: handlers observe the absence
// and drop their jobs.
type DeleteWorkEndpoint struct{}

var _ api.Endpoint = (*DeleteWorkEndpoint)(nil)

func (e *DeleteWorkEndpoint) Route() (string, string, http.HandlerFunc) {
	return "DELETE", "/api/v1/works/{id}", e.handler
}

func (e *DeleteWorkEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Delete work
//	@Description	Delete a work and everything derived from it; cancels in-flight jobs
//	@Tags			works
//	@Produce		json
//	@Param			id	path	string	true	"Work ID"
//	@Success		204
//	@Failure		404	{object}	ErrorResponse
//	@Failure		500	{object}	ErrorResponse
//	@Failure		503	{object}	ErrorResponse
//	@Router			/api/v1/works/{id} [delete]
func (e *DeleteWorkEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	st := svcctx.StoreFrom(r.Context())
	if st == nil {
		writeError(w, http.StatusServiceUnavailable, "store not initialized")
		return
	}

	if err := st.DeleteWork(r.Context(), id); err != nil {
		writeDomainError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (e *DeleteWorkEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a work (cancels any in-flight processing)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			client := api.NewClient(getServerURL())
			if err := client.Delete(ctx, "/api/v1/works/"+args[0]); err != nil {
				return err
			}
			fmt.Printf("work %s deleted\n", args[0])
			return nil
		},
	}
}
