package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tomehq/tome/internal/home"
	"github.com/tomehq/tome/internal/server"
	"github.com/tomehq/tome/internal/server/endpoints"
)

var (
	serveHost string
	servePort int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the tome API server",
	Long: `Start the tome HTTP API server.

The API process serves reads, accepts commands, and streams pipeline
events over SSE. It never calls models itself; stage execution happens
in 'tome worker' processes connected to the same broker.

When defra.manage is true the DefraDB container is started with the
server and stopped on shutdown (Ctrl+C or SIGTERM).

Examples:
  tome serve                     # Start on the configured port (default 4242)
  tome serve --port 3000         # Start on a custom port
  tome serve --host 0.0.0.0      # Bind to all interfaces`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		services, cleanup, err := buildServices(ctx, bootstrapOptions{needBroker: true, manageDefra: true})
		if err != nil {
			return err
		}
		defer cleanup()

		// One API process per home directory; two would fight over the
		// container and the port.
		pidPath := services.Home.PidPath("serve")
		if pid, err := home.ReadPidFile(pidPath); err == nil && home.IsProcessAlive(pid) {
			return fmt.Errorf("another tome serve appears to be running (pid %d); stop it or remove %s", pid, pidPath)
		}
		if err := home.WritePidFile(pidPath); err != nil {
			return fmt.Errorf("failed to write pid file: %w", err)
		}
		defer home.RemovePidFile(pidPath)

		cfg := services.Config.Get()
		host := serveHost
		if host == "" {
			host = cfg.Server.Host
		}
		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv, err := server.New(server.Config{
			Host:            host,
			Port:            port,
			Services:        services,
			SwaggerSpecPath: endpoints.GetSwaggerSpecPath(),
		})
		if err != nil {
			return err
		}

		// Blocks until shutdown.
		return srv.Start(ctx)
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveHost, "host", "", "Host to bind to (default from config)")
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Port to listen on (default from config)")

	rootCmd.AddCommand(serveCmd)
}
