package endpoints

import (
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/tomehq/tome/internal/api"
	"github.com/tomehq/tome/internal/svcctx"
	"github.com/tomehq/tome/internal/types"
)

// StageRequest names the stage a chapter command applies to.
type StageRequest struct {
	Stage string `json:"stage"`
}

func parseStage(s string) (types.Stage, bool) {
	switch types.Stage(s) {
	case types.StageOverview, types.StageAnalysis, types.StageNotes:
		return types.Stage(s), true
	}
	return "", false
}

// GenerateStageEndpoint handles POST /api/v1/chapters/{id}/generate.
type GenerateStageEndpoint struct{}

var _ api.Endpoint = (*GenerateStageEndpoint)(nil)

func (e *GenerateStageEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/v1/chapters/{id}/generate", e.handler
}

func (e *GenerateStageEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Generate a stage
//	@Description	Mark the stage processing and queue its job; also the retry verb for failed stages
//	@Tags			chapters
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string			true	"Chapter ID"
//	@Param			stage	body		StageRequest	true	"Stage to run"
//	@Success		202	{object}	EnqueuedResponse
//	@Failure		400	{object}	ErrorResponse
//	@Failure		404	{object}	ErrorResponse
//	@Failure		500	{object}	ErrorResponse
//	@Failure		503	{object}	ErrorResponse
//	@Router			/api/v1/chapters/{id}/generate [post]
func (e *GenerateStageEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	var req StageRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	stage, ok := parseStage(req.Stage)
	if !ok {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown stage %q", req.Stage))
		return
	}

	cmds := svcctx.CommandsFrom(r.Context())
	if cmds == nil {
		writeError(w, http.StatusServiceUnavailable, "commands not initialized")
		return
	}

	if err := cmds.Generate(r.Context(), r.PathValue("id"), stage); err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, EnqueuedResponse{Status: "queued"})
}

func (e *GenerateStageEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "generate <chapter-id> <stage>",
		Short: "Run a stage for a chapter (overview, analysis, notes)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			client := api.NewClient(getServerURL())
			var resp EnqueuedResponse
			if err := client.Post(ctx, "/api/v1/chapters/"+args[0]+"/generate", StageRequest{Stage: args[1]}, &resp); err != nil {
				return err
			}
			fmt.Printf("%s %s\n", args[1], resp.Status)
			return nil
		},
	}
}

// SkipStageEndpoint handles POST /api/v1/chapters/{id}/skip.
type SkipStageEndpoint struct{}

var _ api.Endpoint = (*SkipStageEndpoint)(nil)

func (e *SkipStageEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/v1/chapters/{id}/skip", e.handler
}

func (e *SkipStageEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Skip a stage
//	@Description	Mark the stage skipped so downstream stages may proceed; no job is queued
//	@Tags			chapters
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string			true	"Chapter ID"
//	@Param			stage	body		StageRequest	true	"Stage to skip"
//	@Success		200	{object}	EnqueuedResponse
//	@Failure		400	{object}	ErrorResponse
//	@Failure		404	{object}	ErrorResponse
//	@Failure		500	{object}	ErrorResponse
//	@Failure		503	{object}	ErrorResponse
//	@Router			/api/v1/chapters/{id}/skip [post]
func (e *SkipStageEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	var req StageRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	stage, ok := parseStage(req.Stage)
	if !ok {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown stage %q", req.Stage))
		return
	}

	cmds := svcctx.CommandsFrom(r.Context())
	if cmds == nil {
		writeError(w, http.StatusServiceUnavailable, "commands not initialized")
		return
	}

	if err := cmds.Skip(r.Context(), r.PathValue("id"), stage); err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, EnqueuedResponse{Status: "skipped"})
}

func (e *SkipStageEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "skip <chapter-id> <stage>",
		Short: "Skip a stage so later stages can run",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			client := api.NewClient(getServerURL())
			var resp EnqueuedResponse
			if err := client.Post(ctx, "/api/v1/chapters/"+args[0]+"/skip", StageRequest{Stage: args[1]}, &resp); err != nil {
				return err
			}
			fmt.Printf("%s %s\n", args[1], resp.Status)
			return nil
		},
	}
}

// RegenerateWorkEndpoint handles POST /api/v1/works/{id}/regenerate.
type RegenerateWorkEndpoint struct{}

var _ api.Endpoint = (*RegenerateWorkEndpoint)(nil)

func (e *RegenerateWorkEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/v1/works/{id}/regenerate", e.handler
}

func (e *RegenerateWorkEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Regenerate a work
//	@Description	Reset every chapter to pending and queue overview jobs for all of them
//	@Tags			works
//	@Produce		json
//	@Param			id	path		string	true	"Work ID"
//	@Success		202	{object}	EnqueuedResponse
//	@Failure		404	{object}	ErrorResponse
//	@Failure		500	{object}	ErrorResponse
//	@Failure		503	{object}	ErrorResponse
//	@Router			/api/v1/works/{id}/regenerate [post]
func (e *RegenerateWorkEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	cmds := svcctx.CommandsFrom(r.Context())
	if cmds == nil {
		writeError(w, http.StatusServiceUnavailable, "commands not initialized")
		return
	}

	if err := cmds.RegenerateWork(r.Context(), r.PathValue("id")); err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, EnqueuedResponse{Status: "queued"})
}

func (e *RegenerateWorkEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "regenerate <work-id>",
		Short: "Re-run the whole pipeline for a work",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			client := api.NewClient(getServerURL())
			var resp EnqueuedResponse
			if err := client.Post(ctx, "/api/v1/works/"+args[0]+"/regenerate", nil, &resp); err != nil {
				return err
			}
			fmt.Printf("regeneration %s\n", resp.Status)
			return nil
		},
	}
}
