// Command streamproxy starts the stream proxy API server. It drives a real
// Chrome instance to resolve iframe-nesting pages into playable video URLs.
// Usage: go run ./cmd/streamproxy [addr]
// Default addr: :5000
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rhuertas/streamproxy/internal/app"
	"github.com/rhuertas/streamproxy/internal/extractor"
	"github.com/rhuertas/streamproxy/internal/logging"
	"github.com/rhuertas/streamproxy/internal/server"
)

func main() {
	extractor.RegisterDefaultBackends()

	cfg := app.DefaultConfig()

	// Optional: custom listen address from command line
	if len(os.Args) > 1 {
		cfg.ListenAddr = os.Args[1]
	}

	logger := logging.NewZerologLogger(os.Stdout, "streamproxy")

	srv, err := server.NewServer(server.Config{
		ListenAddr: cfg.ListenAddr,
		AppConfig:  cfg,
		Logger:     logger,
	})
	if err != nil {
		log.Fatalf("creating server: %v", err)
	}
	defer srv.Close()

	logger.Info("starting stream proxy server",
		logging.Field{Key: "addr", Value: cfg.ListenAddr},
		logging.Field{Key: "backend", Value: string(cfg.ExtractorCfg.Backend)},
		logging.Field{Key: "timeout", Value: cfg.ExtractorCfg.Timeout.String()})

	httpSrv := srv.HTTPServer()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server error: %v", err)
		}
	case <-ctx.Done():
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown", logging.Field{Key: "error", Value: err.Error()})
		}
	}
}
