package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/kaya3/incognita-socket-server/internal/v1/config"
	"github.com/kaya3/incognita-socket-server/internal/v1/dispatch"
	"github.com/kaya3/incognita-socket-server/internal/v1/health"
	"github.com/kaya3/incognita-socket-server/internal/v1/logging"
	"github.com/kaya3/incognita-socket-server/internal/v1/ops"
	"github.com/kaya3/incognita-socket-server/internal/v1/server"
	"github.com/kaya3/incognita-socket-server/internal/v1/state"
)

// version is overridden at build time via -ldflags.
var version = "0.1.0"

func main() {
	os.Exit(run())
}

func run() int {
	// Load .env for local development; absence is fine.
	_ = godotenv.Load()

	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}

	if cfg.ShowVersion {
		fmt.Printf("incognita-socket-server version %s\n", version)
		return 0
	}

	if err := logging.Initialize(cfg.Development); err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logging: %v\n", err)
		return 1
	}
	ctx := context.Background()

	listener, err := net.Listen("tcp", cfg.ListenAddr())
	if err != nil {
		logging.Error(ctx, "failed to bind", zap.String("addr", cfg.ListenAddr()), zap.Error(err))
		return 1
	}
	defer func() {
		_ = listener.Close()
	}()

	core := state.New(cfg.MaxConnections)
	dispatcher := dispatch.New(core, cfg.MaxFrameBytes)
	tcpServer := server.New(dispatcher)

	if cfg.MetricsAddr != "" {
		router := ops.NewRouter(health.NewHandler(dispatcher))
		go func() {
			logging.Info(ctx, "ops endpoint starting", zap.String("addr", cfg.MetricsAddr))
			if err := http.ListenAndServe(cfg.MetricsAddr, router); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logging.Error(ctx, "ops endpoint failed", zap.Error(err))
			}
		}()
	}

	rootCtx, stopSignals := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	go func() {
		<-rootCtx.Done()

		const shutdownTimeout = 5 * time.Second
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := tcpServer.Shutdown(shutdownCtx); err != nil {
			logging.Warn(ctx, "shutdown incomplete", zap.Error(err))
		}
	}()

	logging.Info(ctx, "starting",
		zap.String("version", version),
		zap.Int("max_connections", cfg.MaxConnections))

	serveErr := tcpServer.Serve(listener)
	if serveErr == nil || errors.Is(serveErr, net.ErrClosed) {
		logging.Info(ctx, "server stopped")
		return 0
	}

	logging.Error(ctx, "server failed", zap.Error(serveErr))
	return 1
}
