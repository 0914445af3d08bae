package endpoints

import (
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/tomehq/tome/internal/api"
	"github.com/tomehq/tome/internal/svcctx"
)

// heartbeatInterval keeps idle SSE connections alive through proxies.
const heartbeatInterval = 15 * time.Second

// WorkEventsEndpoint handles GET /api/v1/works/{id}/events, streaming the
// work's pipeline events as server-sent events. Global events (folder
// organize progress) ride along on every stream.
type WorkEventsEndpoint struct{}

var _ api.Endpoint = (*WorkEventsEndpoint)(nil)

func (e *WorkEventsEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/v1/works/{id}/events", e.handler
}

func (e *WorkEventsEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Stream work events
//	@Description	Server-sent events for one work: stage transitions, overview tokens, completion
//	@Tags			works
//	@Produce		text/event-stream
//	@Param			id	path	string	true	"Work ID"
//	@Success		200	{string}	string	"event stream"
//	@Failure		404	{object}	ErrorResponse
//	@Failure		500	{object}	ErrorResponse
//	@Failure		503	{object}	ErrorResponse
//	@Router			/api/v1/works/{id}/events [get]
func (e *WorkEventsEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	st := svcctx.StoreFrom(r.Context())
	hub := svcctx.HubFrom(r.Context())
	if st == nil || hub == nil {
		writeError(w, http.StatusServiceUnavailable, "services not initialized")
		return
	}

	workID := r.PathValue("id")
	if _, err := st.GetWork(r.Context(), workID); err != nil {
		writeDomainError(w, err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	ch, cancel := hub.Subscribe(workID)
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			fmt.Fprint(w, ": heartbeat\n\n")
			flusher.Flush()
		case ev, open := <-ch:
			if !open {
				return
			}
			data, err := ev.Encode()
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, data)
			flusher.Flush()
		}
	}
}

func (e *WorkEventsEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "events <work-id>",
		Short: "Stream a work's pipeline events",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			client := api.NewClient(getServerURL())
			return client.Stream(ctx, "/api/v1/works/"+args[0]+"/events", func(line string) {
				fmt.Println(line)
			})
		},
	}
}
