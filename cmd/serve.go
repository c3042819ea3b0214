package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/SankrityaT/Navia-sub000/api"
	"github.com/SankrityaT/Navia-sub000/core/config"
	"github.com/spf13/cobra"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Long: `Serve POST /api/query, GET /healthz and GET /metrics.

Config files are watched while the server runs; a change to logging.level
takes effect immediately. Other settings apply on the next start.

Examples:
  navia serve
  navia serve --addr :9090
  navia serve --provider scripted`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from server.addr)")
}

func runServe(cmd *cobra.Command, _ []string) error {
	manager, dirs, err := loadConfig()
	if err != nil {
		return err
	}
	defer manager.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := manager.Get()
	a, err := buildApp(ctx, cfg, dirs, nil)
	if err != nil {
		return err
	}
	defer a.Close()

	manager.OnChange(func(next *config.Config) {
		logLevel.Set(parseLevel(next.Logging.Level))
	})
	if err := manager.Watch(ctx); err != nil {
		a.logger.Warn("config watch unavailable", "error", err)
	}

	server := api.NewServer(a.orchestrator, api.Config{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		RequestTimeout: cfg.Server.RequestTimeout,
		Store:          a.store,
		Metrics:        a.metrics.Handler(),
		Logger:         a.logger,
	})

	addr := serveAddr
	if addr == "" {
		addr = cfg.Server.Addr
	}
	return server.ListenAndServe(ctx, addr)
}
