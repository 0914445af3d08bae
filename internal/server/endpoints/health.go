package endpoints

import (
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/tomehq/tome/internal/api"
	"github.com/tomehq/tome/internal/svcctx"
)

// HealthResponse is the response for health check endpoints.
type HealthResponse struct {
	Status string `json:"status"`
	Defra  string `json:"defra,omitempty"`
	Broker string `json:"broker,omitempty"`
}

// HealthEndpoint handles GET /health.
type HealthEndpoint struct{}

var _ api.Endpoint = (*HealthEndpoint)(nil)

func (e *HealthEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/health", e.handler
}

func (e *HealthEndpoint) RequiresInit() bool { return false }

func (e *HealthEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

func (e *HealthEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check server health",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			client := api.NewClient(getServerURL())
			var resp HealthResponse
			if err := client.Get(ctx, "/health", &resp); err != nil {
				return err
			}
			fmt.Printf("Status: %s\n", resp.Status)
			return nil
		},
	}
}

// ReadyEndpoint handles GET /ready. Ready means both backends answer:
// DefraDB for reads and the broker for enqueues.
type ReadyEndpoint struct{}

var _ api.Endpoint = (*ReadyEndpoint)(nil)

func (e *ReadyEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/ready", e.handler
}

func (e *ReadyEndpoint) RequiresInit() bool { return false }

func (e *ReadyEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{Status: "ok", Defra: "ok", Broker: "ok"}
	status := http.StatusOK

	if client := svcctx.DefraClientFrom(r.Context()); client != nil {
		if err := client.HealthCheck(r.Context()); err != nil {
			resp.Status = "degraded"
			resp.Defra = "unhealthy"
			status = http.StatusServiceUnavailable
		}
	} else {
		resp.Status = "degraded"
		resp.Defra = "not_initialized"
		status = http.StatusServiceUnavailable
	}

	if br := svcctx.BrokerFrom(r.Context()); br != nil {
		if err := br.Ping(r.Context()); err != nil {
			resp.Status = "degraded"
			resp.Broker = "unhealthy"
			status = http.StatusServiceUnavailable
		}
	} else {
		resp.Status = "degraded"
		resp.Broker = "not_initialized"
		status = http.StatusServiceUnavailable
	}

	writeJSON(w, status, resp)
}

func (e *ReadyEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "ready",
		Short: "Check server readiness (includes DefraDB and the broker)",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			client := api.NewClient(getServerURL())
			var resp HealthResponse
			if err := client.Get(ctx, "/ready", &resp); err != nil {
				return err
			}
			fmt.Printf("Status: %s\n", resp.Status)
			if resp.Defra != "" {
				fmt.Printf("Defra:  %s\n", resp.Defra)
			}
			if resp.Broker != "" {
				fmt.Printf("Broker: %s\n", resp.Broker)
			}
			return nil
		},
	}
}

// StatusResponse is the detailed status response.
type StatusResponse struct {
	Server string       `json:"server"`
	Defra  DefraStatus  `json:"defra"`
	Broker BrokerStatus `json:"broker"`
	Events EventsStatus `json:"events"`
}

// DefraStatus shows DefraDB container and health status.
type DefraStatus struct {
	Container string `json:"container"`
	Health    string `json:"health"`
	URL       string `json:"url,omitempty"`
}

// BrokerStatus shows broker health and the configured topology.
type BrokerStatus struct {
	Health         string `json:"health"`
	JobsQueue      string `json:"jobs_queue,omitempty"`
	EventsExchange string `json:"events_exchange,omitempty"`
}

// EventsStatus shows live SSE fan-out state.
type EventsStatus struct {
	Subscribers int `json:"subscribers"`
}

// StatusEndpoint handles GET /api/v1/status.
type StatusEndpoint struct{}

var _ api.Endpoint = (*StatusEndpoint)(nil)

func (e *StatusEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/v1/status", e.handler
}

func (e *StatusEndpoint) RequiresInit() bool { return false }

// handler godoc
//
//	@Summary		Server status
//	@Description	Detailed status of the store, broker, and event fan-out
//	@Tags			health
//	@Produce		json
//	@Success		200	{object}	StatusResponse
//	@Router			/api/v1/status [get]
func (e *StatusEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	resp := StatusResponse{Server: "running"}

	// Container state is only known when serve manages the container.
	if dm := svcctx.DefraManagerFrom(r.Context()); dm != nil {
		status, err := dm.Status(r.Context())
		if err != nil {
			resp.Defra.Container = "error"
		} else {
			resp.Defra.Container = string(status)
		}
		resp.Defra.URL = dm.URL()
	} else {
		resp.Defra.Container = "unmanaged"
	}

	if client := svcctx.DefraClientFrom(r.Context()); client != nil {
		if err := client.HealthCheck(r.Context()); err != nil {
			resp.Defra.Health = "unhealthy"
		} else {
			resp.Defra.Health = "healthy"
		}
	} else {
		resp.Defra.Health = "not_initialized"
	}

	if br := svcctx.BrokerFrom(r.Context()); br != nil {
		if err := br.Ping(r.Context()); err != nil {
			resp.Broker.Health = "unhealthy"
		} else {
			resp.Broker.Health = "healthy"
		}
	} else {
		resp.Broker.Health = "not_initialized"
	}
	if cm := svcctx.ConfigFrom(r.Context()); cm != nil {
		cfg := cm.Get()
		resp.Broker.JobsQueue = cfg.Broker.JobsQueue
		resp.Broker.EventsExchange = cfg.Broker.EventsExchange
	}

	if hub := svcctx.HubFrom(r.Context()); hub != nil {
		resp.Events.Subscribers = hub.SubscriberCount()
	}

	writeJSON(w, http.StatusOK, resp)
}

func (e *StatusEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Get detailed server status",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			client := api.NewClient(getServerURL())
			var resp StatusResponse
			if err := client.Get(ctx, "/api/v1/status", &resp); err != nil {
				return err
			}
			fmt.Printf("Server: %s\n", resp.Server)
			fmt.Printf("Defra:\n")
			fmt.Printf("  Container: %s\n", resp.Defra.Container)
			fmt.Printf("  Health:    %s\n", resp.Defra.Health)
			if resp.Defra.URL != "" {
				fmt.Printf("  URL:       %s\n", resp.Defra.URL)
			}
			fmt.Printf("Broker:\n")
			fmt.Printf("  Health:    %s\n", resp.Broker.Health)
			fmt.Printf("  Jobs:      %s\n", resp.Broker.JobsQueue)
			fmt.Printf("  Events:    %s\n", resp.Broker.EventsExchange)
			fmt.Printf("Subscribers: %d\n", resp.Events.Subscribers)
			return nil
		},
	}
}
