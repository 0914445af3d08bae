package endpoints

import (
	"net/http"
	"net/url"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/tomehq/tome/internal/api"
	"github.com/tomehq/tome/internal/graph"
	"github.com/tomehq/tome/internal/svcctx"
	"github.com/tomehq/tome/internal/types"
)

// ListNotesEndpoint handles GET /api/v1/notes.
type ListNotesEndpoint struct{}

var _ api.Endpoint = (*ListNotesEndpoint)(nil)

func (e *ListNotesEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/v1/notes", e.handler
}

func (e *ListNotesEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		List notes
//	@Description	Page through atomic notes, newest first, with optional substring search
//	@Tags			notes
//	@Produce		json
//	@Param			page	query		int		false	"Page number (1-based)"
//	@Param			limit	query		int		false	"Page size (default 50)"
//	@Param			search	query		string	false	"Case-insensitive title/content substring"
//	@Success		200	{object}	store.NotesPage
//	@Failure		500	{object}	ErrorResponse
//	@Failure		503	{object}	ErrorResponse
//	@Router			/api/v1/notes [get]
func (e *ListNotesEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	st := svcctx.StoreFrom(r.Context())
	if st == nil {
		writeError(w, http.StatusServiceUnavailable, "store not initialized")
		return
	}

	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	search := r.URL.Query().Get("search")

	notes, err := st.ListNotes(r.Context(), page, limit, search)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, notes)
}

func (e *ListNotesEndpoint) Command(getServerURL func() string) *cobra.Command {
	var (
		page   int
		limit  int
		search string
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List atomic notes",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			client := api.NewClient(getServerURL())

			path := "/api/v1/notes?page=" + strconv.Itoa(page) + "&limit=" + strconv.Itoa(limit)
			if search != "" {
				path += "&search=" + url.QueryEscape(search)
			}

			var resp map[string]any
			if err := client.Get(ctx, path, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
	cmd.Flags().IntVar(&page, "page", 1, "Page number")
	cmd.Flags().IntVar(&limit, "limit", 50, "Page size")
	cmd.Flags().StringVar(&search, "search", "", "Title/content substring filter")
	return cmd
}

// NoteDetail is a note together with its graph links.
type NoteDetail struct {
	Note  types.Note   `json:"note"`
	Links *graph.Links `json:"links,omitempty"`
}

// GetNoteEndpoint handles GET /api/v1/notes/{id}.
type GetNoteEndpoint struct{}

var _ api.Endpoint = (*GetNoteEndpoint)(nil)

func (e *GetNoteEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/v1/notes/{id}", e.handler
}

func (e *GetNoteEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Get note by ID
//	@Description	Get an atomic note with its incoming and outgoing graph links
//	@Tags			notes
//	@Produce		json
//	@Param			id	path		string	true	"Note ID"
//	@Success		200	{object}	NoteDetail
//	@Failure		404	{object}	ErrorResponse
//	@Failure		500	{object}	ErrorResponse
//	@Failure		503	{object}	ErrorResponse
//	@Router			/api/v1/notes/{id} [get]
func (e *GetNoteEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	st := svcctx.StoreFrom(r.Context())
	if st == nil {
		writeError(w, http.StatusServiceUnavailable, "store not initialized")
		return
	}

	note, err := st.GetNote(r.Context(), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	detail := NoteDetail{Note: *note}
	links, err := graph.NewService(st).LinksOf(r.Context(), note.ID)
	if err == nil {
		detail.Links = links
	}

	writeJSON(w, http.StatusOK, detail)
}

func (e *GetNoteEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Get a note and its links",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			client := api.NewClient(getServerURL())
			var detail NoteDetail
			if err := client.Get(ctx, "/api/v1/notes/"+args[0], &detail); err != nil {
				return err
			}
			return api.Output(detail)
		},
	}
}
