package endpoints

import (
	"errors"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/tomehq/tome/internal/api"
	"github.com/tomehq/tome/internal/store"
	"github.com/tomehq/tome/internal/svcctx"
	"github.com/tomehq/tome/internal/types"
)

// ListChaptersResponse is the response for listing a work's chapters.
type ListChaptersResponse struct {
	Chapters []types.Chapter `json:"chapters"`
}

// ListChaptersEndpoint handles GET /api/v1/works/{id}/chapters.
type ListChaptersEndpoint struct{}

var _ api.Endpoint = (*ListChaptersEndpoint)(nil)

func (e *ListChaptersEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/v1/works/{id}/chapters", e.handler
}

func (e *ListChaptersEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		List chapters
//	@Description	List a work's chapters in reading order with stage statuses
//	@Tags			chapters
//	@Produce		json
//	@Param			id	path		string	true	"Work ID"
//	@Success		200	{object}	ListChaptersResponse
//	@Failure		404	{object}	ErrorResponse
//	@Failure		500	{object}	ErrorResponse
//	@Failure		503	{object}	ErrorResponse
//	@Router			/api/v1/works/{id}/chapters [get]
func (e *ListChaptersEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	st := svcctx.StoreFrom(r.Context())
	if st == nil {
		writeError(w, http.StatusServiceUnavailable, "store not initialized")
		return
	}

	workID := r.PathValue("id")
	if _, err := st.GetWork(r.Context(), workID); err != nil {
		writeDomainError(w, err)
		return
	}

	chapters, err := st.ListChaptersByWork(r.Context(), workID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if chapters == nil {
		chapters = []types.Chapter{}
	}

	writeJSON(w, http.StatusOK, ListChaptersResponse{Chapters: chapters})
}

func (e *ListChaptersEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "chapters <work-id>",
		Short: "List a work's chapters",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			client := api.NewClient(getServerURL())
			var resp ListChaptersResponse
			if err := client.Get(ctx, "/api/v1/works/"+args[0]+"/chapters", &resp); err != nil {
				return err
			}
			return api.Output(resp.Chapters)
		},
	}
}

// ChapterDetail is a chapter together with its summary document, when one
// exists.
type ChapterDetail struct {
	Chapter types.Chapter  `json:"chapter"`
	Summary *types.Summary `json:"summary,omitempty"`
}

// GetChapterEndpoint handles GET /api/v1/chapters/{id}.
type GetChapterEndpoint struct{}

var _ api.Endpoint = (*GetChapterEndpoint)(nil)

func (e *GetChapterEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/v1/chapters/{id}", e.handler
}

func (e *GetChapterEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Get chapter by ID
//	@Description	Get a chapter with its stage statuses and summary
//	@Tags			chapters
//	@Produce		json
//	@Param			id	path		string	true	"Chapter ID"
//	@Success		200	{object}	ChapterDetail
//	@Failure		404	{object}	ErrorResponse
//	@Failure		500	{object}	ErrorResponse
//	@Failure		503	{object}	ErrorResponse
//	@Router			/api/v1/chapters/{id} [get]
func (e *GetChapterEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	st := svcctx.StoreFrom(r.Context())
	if st == nil {
		writeError(w, http.StatusServiceUnavailable, "store not initialized")
		return
	}

	ch, err := st.GetChapter(r.Context(), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	detail := ChapterDetail{Chapter: *ch}
	sum, err := st.GetSummaryByChapter(r.Context(), ch.ID)
	switch {
	case err == nil:
		detail.Summary = sum
	case !errors.Is(err, store.ErrNotFound):
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, detail)
}

func (e *GetChapterEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Get a chapter by ID",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			client := api.NewClient(getServerURL())
			var detail ChapterDetail
			if err := client.Get(ctx, "/api/v1/chapters/"+args[0], &detail); err != nil {
				return err
			}
			return api.Output(detail)
		},
	}
}
