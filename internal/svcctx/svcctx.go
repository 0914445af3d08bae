// Package svcctx provides service context for dependency injection via context.
// This package is separate from server to avoid import cycles with endpoints.
package svcctx

import (
	"context"
	"log/slog"

	"github.com/tomehq/tome/internal/broker"
	"github.com/tomehq/tome/internal/config"
	"github.com/tomehq/tome/internal/defra"
	"github.com/tomehq/tome/internal/events"
	"github.com/tomehq/tome/internal/gateway"
	"github.com/tomehq/tome/internal/home"
	"github.com/tomehq/tome/internal/metrics"
	"github.com/tomehq/tome/internal/pipeline"
	"github.com/tomehq/tome/internal/store"
)

// Services holds all core services that flow through context.
// Components extract what they need via the individual extractors.
type Services struct {
	Config       *config.Manager
	Logger       *slog.Logger
	Home         *home.Dir
	Store        store.Store
	DefraClient  *defra.Client
	DefraSink    *defra.Sink
	DefraManager *defra.DockerManager // nil when the container is unmanaged
	Broker       broker.Broker
	Gateway      gateway.Gateway
	Hub          *events.Hub
	Commands     *pipeline.Commands
	MetricsQuery *metrics.Query
}

type servicesKey struct{}

// WithServices returns a new context with services attached.
func WithServices(ctx context.Context, s *Services) context.Context {
	return context.WithValue(ctx, servicesKey{}, s)
}

// ServicesFrom extracts the full Services struct from context.
// Returns nil if not present.
func ServicesFrom(ctx context.Context) *Services {
	s, _ := ctx.Value(servicesKey{}).(*Services)
	return s
}

// ConfigFrom extracts the config manager from context.
func ConfigFrom(ctx context.Context) *config.Manager {
	if s := ServicesFrom(ctx); s != nil {
		return s.Config
	}
	return nil
}

// LoggerFrom extracts the logger from context.
func LoggerFrom(ctx context.Context) *slog.Logger {
	if s := ServicesFrom(ctx); s != nil {
		return s.Logger
	}
	return nil
}

// HomeFrom extracts the home directory from context.
func HomeFrom(ctx context.Context) *home.Dir {
	if s := ServicesFrom(ctx); s != nil {
		return s.Home
	}
	return nil
}

// StoreFrom extracts the document store from context.
func StoreFrom(ctx context.Context) store.Store {
	if s := ServicesFrom(ctx); s != nil {
		return s.Store
	}
	return nil
}

// DefraClientFrom extracts the DefraDB client from context.
func DefraClientFrom(ctx context.Context) *defra.Client {
	if s := ServicesFrom(ctx); s != nil {
		return s.DefraClient
	}
	return nil
}

// DefraSinkFrom extracts the DefraDB write sink from context.
func DefraSinkFrom(ctx context.Context) *defra.Sink {
	if s := ServicesFrom(ctx); s != nil {
		return s.DefraSink
	}
	return nil
}

// DefraManagerFrom extracts the DefraDB container manager from context.
func DefraManagerFrom(ctx context.Context) *defra.DockerManager {
	if s := ServicesFrom(ctx); s != nil {
		return s.DefraManager
	}
	return nil
}

// BrokerFrom extracts the message broker from context.
func BrokerFrom(ctx context.Context) broker.Broker {
	if s := ServicesFrom(ctx); s != nil {
		return s.Broker
	}
	return nil
}

// GatewayFrom extracts the model gateway from context.
func GatewayFrom(ctx context.Context) gateway.Gateway {
	if s := ServicesFrom(ctx); s != nil {
		return s.Gateway
	}
	return nil
}

// HubFrom extracts the event hub from context.
func HubFrom(ctx context.Context) *events.Hub {
	if s := ServicesFrom(ctx); s != nil {
		return s.Hub
	}
	return nil
}

// CommandsFrom extracts the pipeline command surface from context.
func CommandsFrom(ctx context.Context) *pipeline.Commands {
	if s := ServicesFrom(ctx); s != nil {
		return s.Commands
	}
	return nil
}

// MetricsQueryFrom extracts the metrics query helper from context.
func MetricsQueryFrom(ctx context.Context) *metrics.Query {
	if s := ServicesFrom(ctx); s != nil {
		return s.MetricsQuery
	}
	return nil
}
