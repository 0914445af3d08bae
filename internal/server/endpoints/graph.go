package endpoints

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/spf13/cobra"

	"github.com/tomehq/tome/internal/api"
	"github.com/tomehq/tome/internal/graph"
	"github.com/tomehq/tome/internal/store"
	"github.com/tomehq/tome/internal/svcctx"
	"github.com/tomehq/tome/internal/types"
)

// GetGraphEndpoint handles GET /api/v1/graph.
type GetGraphEndpoint struct{}

var _ api.Endpoint = (*GetGraphEndpoint)(nil)

func (e *GetGraphEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/v1/graph", e.handler
}

func (e *GetGraphEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Get knowledge graph
//	@Description	Get the full note graph: nodes and edges with reasons and confidences
//	@Tags			graph
//	@Produce		json
//	@Success		200	{object}	types.GraphData
//	@Failure		500	{object}	ErrorResponse
//	@Failure		503	{object}	ErrorResponse
//	@Router			/api/v1/graph [get]
func (e *GetGraphEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	st := svcctx.StoreFrom(r.Context())
	if st == nil {
		writeError(w, http.StatusServiceUnavailable, "store not initialized")
		return
	}

	g, err := st.GetGraph(r.Context())
	switch {
	case errors.Is(err, store.ErrNotFound):
		// An untouched library has no graph document yet; serve it empty.
		g = types.NewGraphData()
	case err != nil:
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, g)
}

func (e *GetGraphEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "get",
		Short: "Get the full note graph",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			client := api.NewClient(getServerURL())
			var g types.GraphData
			if err := client.Get(ctx, "/api/v1/graph", &g); err != nil {
				return err
			}
			return api.Output(g)
		},
	}
}

// AddEdgeRequest is the request body for creating a manual edge.
type AddEdgeRequest struct {
	From      string `json:"from"`
	To        string `json:"to"`
	Reason    string `json:"reason,omitempty"`
	Direction string `json:"direction,omitempty"` // directed|bidirectional, default bidirectional
}

// AddEdgeEndpoint handles POST /api/v1/graph/edges.
type AddEdgeEndpoint struct{}

var _ api.Endpoint = (*AddEdgeEndpoint)(nil)

func (e *AddEdgeEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/v1/graph/edges", e.handler
}

func (e *AddEdgeEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Link two notes
//	@Description	Create a manual edge between two notes; duplicate edges collapse
//	@Tags			graph
//	@Accept			json
//	@Produce		json
//	@Param			edge	body		AddEdgeRequest	true	"Edge to create"
//	@Success		201	{object}	types.GraphEdge
//	@Failure		400	{object}	ErrorResponse
//	@Failure		404	{object}	ErrorResponse
//	@Failure		500	{object}	ErrorResponse
//	@Failure		503	{object}	ErrorResponse
//	@Router			/api/v1/graph/edges [post]
func (e *AddEdgeEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	var req AddEdgeRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.From == "" || req.To == "" || req.From == req.To {
		writeError(w, http.StatusBadRequest, "from and to must be two distinct note ids")
		return
	}

	st := svcctx.StoreFrom(r.Context())
	if st == nil {
		writeError(w, http.StatusServiceUnavailable, "store not initialized")
		return
	}

	// Both endpoints must exist; edges to deleted notes would dangle.
	if _, err := st.GetNote(r.Context(), req.From); err != nil {
		writeDomainError(w, err)
		return
	}
	if _, err := st.GetNote(r.Context(), req.To); err != nil {
		writeDomainError(w, err)
		return
	}

	direction := types.Bidirectional
	if req.Direction == string(types.Directed) {
		direction = types.Directed
	}

	edge := types.GraphEdge{
		From:       req.From,
		To:         req.To,
		Reason:     req.Reason,
		CreatedBy:  types.EdgeManual,
		Confidence: 1,
		Direction:  direction,
	}
	if err := graph.NewService(st).AddEdge(r.Context(), edge); err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, edge)
}

func (e *AddEdgeEndpoint) Command(getServerURL func() string) *cobra.Command {
	var (
		reason    string
		direction string
	)
	cmd := &cobra.Command{
		Use:   "link <from-note-id> <to-note-id>",
		Short: "Link two notes",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			client := api.NewClient(getServerURL())
			req := AddEdgeRequest{From: args[0], To: args[1], Reason: reason, Direction: direction}
			var edge types.GraphEdge
			if err := client.Post(ctx, "/api/v1/graph/edges", req, &edge); err != nil {
				return err
			}
			return api.Output(edge)
		},
	}
	cmd.Flags().StringVar(&reason, "reason", "", "Why the notes relate")
	cmd.Flags().StringVar(&direction, "direction", "bidirectional", "directed or bidirectional")
	return cmd
}

// RemoveEdgeEndpoint handles DELETE /api/v1/graph/edges.
type RemoveEdgeEndpoint struct{}

var _ api.Endpoint = (*RemoveEdgeEndpoint)(nil)

func (e *RemoveEdgeEndpoint) Route() (string, string, http.HandlerFunc) {
	return "DELETE", "/api/v1/graph/edges", e.handler
}

func (e *RemoveEdgeEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Unlink two notes
//	@Description	Remove the edge between two notes in either stored orientation
//	@Tags			graph
//	@Produce		json
//	@Param			from	query	string	true	"Source note ID"
//	@Param			to		query	string	true	"Target note ID"
//	@Success		204
//	@Failure		400	{object}	ErrorResponse
//	@Failure		500	{object}	ErrorResponse
//	@Failure		503	{object}	ErrorResponse
//	@Router			/api/v1/graph/edges [delete]
func (e *RemoveEdgeEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	from := r.URL.Query().Get("from")
	to := r.URL.Query().Get("to")
	if from == "" || to == "" {
		writeError(w, http.StatusBadRequest, "from and to query parameters are required")
		return
	}

	st := svcctx.StoreFrom(r.Context())
	if st == nil {
		writeError(w, http.StatusServiceUnavailable, "store not initialized")
		return
	}

	if err := graph.NewService(st).RemoveEdge(r.Context(), from, to); err != nil {
		writeDomainError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (e *RemoveEdgeEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "unlink <from-note-id> <to-note-id>",
		Short: "Remove the link between two notes",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			client := api.NewClient(getServerURL())
			path := fmt.Sprintf("/api/v1/graph/edges?from=%s&to=%s", url.QueryEscape(args[0]), url.QueryEscape(args[1]))
			if err := client.Delete(ctx, path); err != nil {
				return err
			}
			fmt.Println("edge removed")
			return nil
		},
	}
}
