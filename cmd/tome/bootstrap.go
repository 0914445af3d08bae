package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/tomehq/tome/internal/broker"
	"github.com/tomehq/tome/internal/config"
	"github.com/tomehq/tome/internal/defra"
	"github.com/tomehq/tome/internal/events"
	"github.com/tomehq/tome/internal/gateway"
	"github.com/tomehq/tome/internal/home"
	"github.com/tomehq/tome/internal/metrics"
	"github.com/tomehq/tome/internal/pipeline"
	"github.com/tomehq/tome/internal/schema"
	"github.com/tomehq/tome/internal/store"
	"github.com/tomehq/tome/internal/svcctx"
)

// bootstrapOptions selects which backends a process wires. serve and
// worker share everything up to the gateway; only the worker calls
// models, and one-shot commands skip the broker when they have nothing
// to enqueue.
type bootstrapOptions struct {
	// needBroker dials RabbitMQ and wires the pipeline commands.
	needBroker bool
	// needGateway wires the model gateway and its call recorder.
	needGateway bool
	// manageDefra starts the DefraDB container when defra.manage is true
	// and stops it again on cleanup.
	manageDefra bool
}

// buildServices assembles the full service set from configuration. The
// returned cleanup tears down everything that was started, in reverse
// order; it is safe to call after a partial failure has already been
// returned as an error.
func buildServices(ctx context.Context, opts bootstrapOptions) (*svcctx.Services, func(), error) {
	cm, err := config.NewManager(cfgFile)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	cfg := cm.Get()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.LogLevel(),
	}))

	h, err := home.New(homePath)
	if err != nil {
		return nil, nil, err
	}
	if err := h.EnsureExists(); err != nil {
		return nil, nil, fmt.Errorf("failed to create home directory: %w", err)
	}

	services := &svcctx.Services{
		Config: cm,
		Logger: logger,
		Home:   h,
	}

	var cleanups []func()
	cleanup := func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}
	fail := func(err error) (*svcctx.Services, func(), error) {
		cleanup()
		return nil, nil, err
	}

	if opts.manageDefra && cfg.Defra.Manage {
		mgr, err := defra.NewDockerManager(defra.DockerConfig{
			ContainerName: cfg.Defra.ContainerName,
			Image:         cfg.Defra.Image,
			DataPath:      h.DefraPath(),
			HostPort:      cfg.Defra.Port,
		})
		if err != nil {
			return fail(fmt.Errorf("failed to create defra manager: %w", err))
		}
		cleanups = append(cleanups, func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			logger.Info("stopping DefraDB")
			if err := mgr.Stop(stopCtx); err != nil {
				logger.Error("DefraDB stop error", "error", err)
			}
			if err := mgr.Close(); err != nil {
				logger.Error("DefraDB manager close error", "error", err)
			}
		})

		if err := mgr.ValidateExisting(ctx); err != nil {
			return fail(fmt.Errorf("existing DefraDB container incompatible: %w", err))
		}
		logger.Info("starting DefraDB")
		if err := mgr.Start(ctx); err != nil {
			return fail(fmt.Errorf("failed to start DefraDB: %w", err))
		}
		services.DefraManager = mgr
	}

	client := defra.NewClient(cfg.Defra.URL())
	if err := client.HealthCheck(ctx); err != nil {
		return fail(fmt.Errorf("DefraDB health check failed (is it running? try 'tome store start'): %w", err))
	}
	logger.Info("DefraDB is ready", "url", cfg.Defra.URL())

	if err := schema.Initialize(ctx, client, logger); err != nil {
		return fail(fmt.Errorf("schema initialization failed: %w", err))
	}
	services.DefraClient = client
	services.Store = store.NewDefra(client, logger)

	sink := defra.NewSink(defra.SinkConfig{Client: client, Logger: logger})
	sink.Start(ctx)
	cleanups = append(cleanups, sink.Stop)
	services.DefraSink = sink

	if opts.needBroker {
		br, err := broker.NewAMQP(ctx, cfg.Broker, logger)
		if err != nil {
			return fail(fmt.Errorf("failed to connect to broker: %w", err))
		}
		cleanups = append(cleanups, func() {
			if err := br.Close(); err != nil {
				logger.Error("broker close error", "error", err)
			}
		})
		services.Broker = br
		services.Commands = pipeline.NewCommands(services.Store, br, logger)
	}

	services.Hub = events.NewHub()
	services.MetricsQuery = metrics.NewQuery(client)

	if opts.needGateway {
		services.Gateway = gateway.NewClient(cfg.Gateway, metrics.NewRecorder(sink), logger)
	}

	return services, cleanup, nil
}
