// Command instrumentd serves the configured instrument bench over HTTP.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/hashicorp/go-hclog"
	"github.com/urfave/cli/v2"

	"github.com/vik-s/pymeasure/internal/api"
	"github.com/vik-s/pymeasure/internal/audit"
	"github.com/vik-s/pymeasure/internal/auth"
	"github.com/vik-s/pymeasure/internal/bench"
	"github.com/vik-s/pymeasure/internal/command"
	"github.com/vik-s/pymeasure/internal/config"
	"github.com/vik-s/pymeasure/internal/logging"
	"github.com/vik-s/pymeasure/internal/metrics"
	"github.com/vik-s/pymeasure/internal/telemetry"
)

func main() {
	app := &cli.App{
		Name:    "instrumentd",
		Usage:   "Serve SCPI instruments over an HTTP API",
		Version: api.Version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Configuration file",
				EnvVars: []string{"PYMEASURE_CONFIG"},
			},
			&cli.StringFlag{
				Name:  "listen",
				Usage: "Override api.listen",
			},
		},
		Action: run,
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "instrumentd: %v\n", err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return err
	}
	if c.IsSet("listen") {
		cfg.API.Listen = c.String("listen")
	}

	logger, logCloser := logging.New("instrumentd", cfg.Log, os.Stderr)
	defer logCloser.Close()
	logger.Info("starting", "version", api.Version, "instruments", len(cfg.Instruments))

	m := metrics.New()
	opener := &bench.Opener{GPIB: cfg.GPIB, Logger: logger, Observer: m}
	orchOpts := []command.Option{command.WithMetrics(m), command.WithLogger(logger.Named("command"))}

	var auditLogger *audit.Logger
	if cfg.Audit.Path != "" {
		auditLogger, err = audit.NewLogger(cfg.Audit)
		if err != nil {
			return err
		}
		defer auditLogger.Close()
		opener.Transcript = auditLogger
		orchOpts = append(orchOpts, command.WithAudit(auditLogger))
		logger.Info("audit log enabled", "path", auditLogger.Path())
	}

	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	b, err := bench.Load(ctx, cfg.Instruments, opener)
	if err != nil {
		return err
	}
	defer b.Close()
	m.Instruments.Set(float64(b.Len()))
	b.IdentifyAll(ctx, cfg.API.CommandTimeout)

	hub := telemetry.NewHub(cfg.Telemetry,
		telemetry.WithSnapshot(func() interface{} { return b.List() }),
		telemetry.WithLogger(logger.Named("telemetry")),
	)
	defer hub.Close()
	orchOpts = append(orchOpts, command.WithNotifier(hub))

	orchestrator := command.NewOrchestrator(b, cfg.API.CommandTimeout, orchOpts...)

	mw := auth.NewMiddleware(nil)
	if cfg.Auth.Enabled {
		v, err := auth.NewVerifierFromConfig(cfg.Auth)
		if err != nil {
			return err
		}
		mw = auth.NewMiddleware(v)
	}

	server := api.NewServer(cfg.API, orchestrator, b,
		api.WithAuth(mw),
		api.WithMetrics(m.Handler()),
		api.WithTelemetry(hub),
		api.WithLogger(logger.Named("api")),
	)

	serverErr := make(chan error, 1)
	go func() { serverErr <- server.Start() }()

	go rotateOnHangup(ctx, auditLogger, logger)

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-serverErr:
		if err != nil {
			return err
		}
	}

	// Event streams never go idle on their own.
	hub.Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.API.ShutdownTimeout)
	defer cancel()
	if err := server.Stop(shutdownCtx); err != nil {
		logger.Error("failed to stop api server", "error", err)
	}
	logger.Info("shutdown complete")
	return nil
}

// rotateOnHangup reopens the audit file on SIGHUP.
func rotateOnHangup(ctx context.Context, l *audit.Logger, logger hclog.Logger) {
	if l == nil {
		return
	}
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)
	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
			if err := l.Rotate(); err != nil {
				logger.Error("audit rotation failed", "error", err)
			}
		}
	}
}
