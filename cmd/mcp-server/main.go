// Command mcp-server exposes the enrichment pipeline as Model Context
// Protocol tools: run_pipeline and list_models. It reads the same
// configuration as the gateway server.
//
// Usage:
//
//	mcp-server [-config path] [-transport http|stdio] [-addr :8081]
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/rhuss/anreicher/pkg/app"
	"github.com/rhuss/anreicher/pkg/config"
	"github.com/rhuss/anreicher/pkg/debug"
)

var version = "dev"

func main() {
	if err := run(); err != nil {
		slog.Error("mcp server failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "path to the YAML config file")
	transportName := flag.String("transport", "http", "MCP transport: http or stdio")
	addr := flag.String("addr", ":8081", "listen address for the http transport")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	debug.Init(cfg.Logging.Debug, cfg.Logging.Level, cfg.Logging.Format)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.Build(ctx, cfg, app.WithVersion(version))
	if err != nil {
		return fmt.Errorf("building gateway: %w", err)
	}
	defer a.Close(context.Background())

	server := newMCPServer(a.Engine, version)

	switch *transportName {
	case "stdio":
		slog.Info("mcp server serving on stdio")
		return server.Run(ctx, &mcp.StdioTransport{})
	case "http":
		return serveHTTP(ctx, server, *addr)
	default:
		return fmt.Errorf("unknown transport %q", *transportName)
	}
}

// serveHTTP serves the streamable HTTP transport on /mcp until ctx is done.
func serveHTTP(ctx context.Context, server *mcp.Server, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/mcp", mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
		return server
	}, nil))
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("ok\n"))
	})

	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	errCh := make(chan error, 1)
	go func() {
		slog.Info("mcp server starting", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
