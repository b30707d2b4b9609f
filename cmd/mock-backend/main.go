// Command mock-backend runs a deterministic Ollama-compatible server for
// demos and integration testing. It answers the auxiliary prompts of the
// built-in enrichers with well-formed JSON and every other prompt with a
// predictable generated text.
//
// Configuration:
//
//	MOCK_PORT   - Listen port (default: 11434)
//	MOCK_MODELS - Comma-separated model names served by /api/tags
//	              (default: mistral:latest,llama3:latest)
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rhuss/anreicher/pkg/gateway/ollama/ollamatest"
)

func main() {
	port := os.Getenv("MOCK_PORT")
	if port == "" {
		port = "11434"
	}

	var models []string
	for _, m := range strings.Split(os.Getenv("MOCK_MODELS"), ",") {
		if m = strings.TrimSpace(m); m != "" {
			models = append(models, m)
		}
	}

	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           ollamatest.NewHandler(logRequests(ollamatest.Classify), models...),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		slog.Info("mock backend starting", "port", port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("mock backend failed", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	slog.Info("mock backend shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	srv.Shutdown(shutdownCtx)
}

// logRequests wraps r with a debug line per generate request.
func logRequests(r ollamatest.Responder) ollamatest.Responder {
	return func(req ollamatest.GenerateRequest) ollamatest.Reply {
		reply := r(req)
		slog.Debug("generate", "model", req.Model, "stream", req.Stream, "prompt_len", len(req.Prompt), "status", reply.Status)
		return reply
	}
}
