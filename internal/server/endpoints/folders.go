package endpoints

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/tomehq/tome/internal/api"
	"github.com/tomehq/tome/internal/store"
	"github.com/tomehq/tome/internal/svcctx"
	"github.com/tomehq/tome/internal/types"
)

// GetFoldersEndpoint handles GET /api/v1/folders.
type GetFoldersEndpoint struct{}

var _ api.Endpoint = (*GetFoldersEndpoint)(nil)

func (e *GetFoldersEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/v1/folders", e.handler
}

func (e *GetFoldersEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Get folders
//	@Description	Get the note folder taxonomy and assignments
//	@Tags			folders
//	@Produce		json
//	@Success		200	{object}	types.FolderSet
//	@Failure		500	{object}	ErrorResponse
//	@Failure		503	{object}	ErrorResponse
//	@Router			/api/v1/folders [get]
func (e *GetFoldersEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	st := svcctx.StoreFrom(r.Context())
	if st == nil {
		writeError(w, http.StatusServiceUnavailable, "store not initialized")
		return
	}

	fs, err := st.GetFolders(r.Context())
	switch {
	case errors.Is(err, store.ErrNotFound):
		fs = &types.FolderSet{}
	case err != nil:
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, fs)
}

func (e *GetFoldersEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Show folders and their notes",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			client := api.NewClient(getServerURL())
			var fs types.FolderSet
			if err := client.Get(ctx, "/api/v1/folders", &fs); err != nil {
				return err
			}
			return api.Output(fs)
		},
	}
}

// EnqueuedResponse acknowledges a queued command.
type EnqueuedResponse struct {
	Status string `json:"status"`
}

// OrganizeFoldersEndpoint handles POST /api/v1/folders/organize.
type OrganizeFoldersEndpoint struct{}

var _ api.Endpoint = (*OrganizeFoldersEndpoint)(nil)

func (e *OrganizeFoldersEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/v1/folders/organize", e.handler
}

func (e *OrganizeFoldersEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Organize notes into folders
//	@Description	Queue a folder organization run over all unassigned notes
//	@Tags			folders
//	@Produce		json
//	@Success		202	{object}	EnqueuedResponse
//	@Failure		500	{object}	ErrorResponse
//	@Failure		503	{object}	ErrorResponse
//	@Router			/api/v1/folders/organize [post]
func (e *OrganizeFoldersEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	cmds := svcctx.CommandsFrom(r.Context())
	if cmds == nil {
		writeError(w, http.StatusServiceUnavailable, "commands not initialized")
		return
	}

	if err := cmds.OrganizeFolders(r.Context()); err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, EnqueuedResponse{Status: "queued"})
}

func (e *OrganizeFoldersEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "organize",
		Short: "Organize all notes into folders",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			client := api.NewClient(getServerURL())
			var resp EnqueuedResponse
			if err := client.Post(ctx, "/api/v1/folders/organize", nil, &resp); err != nil {
				return err
			}
			fmt.Printf("folder organization %s\n", resp.Status)
			return nil
		},
	}
}
