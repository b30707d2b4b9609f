// Command server runs the anreicher prompt-enrichment gateway.
//
// Configuration is read from a YAML file (-config, ANREICHER_CONFIG,
// ./config.yaml or /etc/anreicher/config.yaml) and ANREICHER_* environment
// variables. Without any configuration the server listens on :8080 and
// forwards to a local Ollama at http://localhost:11434.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rhuss/anreicher/pkg/app"
	"github.com/rhuss/anreicher/pkg/config"
	"github.com/rhuss/anreicher/pkg/debug"
)

var version = "dev"

func main() {
	if err := run(); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "path to the YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	debug.Init(cfg.Logging.Debug, cfg.Logging.Level, cfg.Logging.Format)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.Build(ctx, cfg, app.WithLogger(slog.Default()), app.WithVersion(version))
	if err != nil {
		return fmt.Errorf("building gateway: %w", err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		a.Close(closeCtx)
	}()

	slog.Info("anreicher starting",
		"version", version,
		"port", cfg.Server.Port,
		"default_engine", cfg.Pipeline.DefaultEngine,
		"default_model", cfg.Pipeline.DefaultModel,
		"default_template", cfg.Pipeline.DefaultTemplate,
	)
	return a.Server.ListenAndServe(ctx)
}
