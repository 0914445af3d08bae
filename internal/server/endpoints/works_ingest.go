package endpoints

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tomehq/tome/internal/api"
	"github.com/tomehq/tome/internal/ingest"
	"github.com/tomehq/tome/internal/svcctx"
)

// IngestResponse reports the work created by an upload.
type IngestResponse struct {
	WorkID   string `json:"workId"`
	Title    string `json:"title"`
	Chapters int    `json:"chapters"`
	Started  bool   `json:"started"`
}

// IngestWorkEndpoint handles POST /api/v1/works with a multipart upload.
type IngestWorkEndpoint struct{}

var _ api.Endpoint = (*IngestWorkEndpoint)(nil)

func (e *IngestWorkEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/v1/works", e.handler
}

func (e *IngestWorkEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Ingest a work
//	@Description	Upload a .txt, .md, or .pdf file, chapterize it, and optionally start processing
//	@Tags			works
//	@Accept			mpfd
//	@Produce		json
//	@Param			file	formData	file	true	"Source file (.txt, .md, .pdf)"
//	@Param			title	formData	string	false	"Title (derived from filename if empty)"
//	@Param			kind	formData	string	false	"fiction or nonfiction"
//	@Param			start	formData	bool	false	"Enqueue overview jobs for every chapter"
//	@Success		202	{object}	IngestResponse
//	@Failure		400	{object}	ErrorResponse
//	@Failure		409	{object}	ErrorResponse
//	@Failure		500	{object}	ErrorResponse
//	@Failure		503	{object}	ErrorResponse
//	@Router			/api/v1/works [post]
func (e *IngestWorkEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	const maxMemory = 64 << 20 // 64MB
	if err := r.ParseMultipartForm(maxMemory); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("failed to parse form: %v", err))
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file field is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to read upload: %v", err))
		return
	}

	st := svcctx.StoreFrom(r.Context())
	cmds := svcctx.CommandsFrom(r.Context())
	if st == nil || cmds == nil {
		writeError(w, http.StatusServiceUnavailable, "services not initialized")
		return
	}

	res, err := ingest.IngestData(r.Context(), st, header.Filename, data, ingest.Request{
		Title:  r.FormValue("title"),
		Kind:   r.FormValue("kind"),
		Logger: svcctx.LoggerFrom(r.Context()),
	})
	if err != nil {
		switch {
		case errors.Is(err, ingest.ErrDuplicate):
			writeError(w, http.StatusConflict, err.Error())
		case errors.Is(err, ingest.ErrUnsupported):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	// Archive the upload under ~/.tome/sources; losing the copy only
	// costs traceability, so a failed write is not a failed ingest.
	if h := svcctx.HomeFrom(r.Context()); h != nil {
		dst := h.SourcePath(res.WorkID, strings.ToLower(filepath.Ext(header.Filename)))
		if err := os.WriteFile(dst, data, 0o644); err != nil {
			if logger := svcctx.LoggerFrom(r.Context()); logger != nil {
				logger.Warn("failed to archive source", "path", dst, "error", err)
			}
		}
	}

	resp := IngestResponse{WorkID: res.WorkID, Title: res.Title, Chapters: res.Chapters}
	if r.FormValue("start") == "true" {
		if err := cmds.StartWork(r.Context(), res.WorkID); err != nil {
			// The work is stored either way; surface the enqueue failure in
			// the log and let the caller retry via the regenerate command.
			if logger := svcctx.LoggerFrom(r.Context()); logger != nil {
				logger.Warn("ingest stored work but start failed", "work_id", res.WorkID, "error", err)
			}
		} else {
			resp.Started = true
		}
	}

	writeJSON(w, http.StatusAccepted, resp)
}

func (e *IngestWorkEndpoint) Command(getServerURL func() string) *cobra.Command {
	var (
		title string
		kind  string
		start bool
	)
	cmd := &cobra.Command{
		Use:   "ingest <file>",
		Short: "Upload and chapterize a source file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", args[0], err)
			}

			fields := map[string]string{"title": title, "kind": kind}
			if start {
				fields["start"] = "true"
			}

			client := api.NewClient(getServerURL())
			var resp IngestResponse
			if err := client.PostFile(ctx, "/api/v1/works", "file", filepath.Base(args[0]), data, fields, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "Work title (derived from filename if empty)")
	cmd.Flags().StringVar(&kind, "kind", "nonfiction", "Work kind: fiction or nonfiction")
	cmd.Flags().BoolVar(&start, "start", false, "Start processing immediately")
	return cmd
}
