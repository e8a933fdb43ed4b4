// Command httpwsserver is a worked example standing up the HTTP CRUD and
// WebSocket echo end-to-end scenarios side by side: a plain-HTTP key/value
// store on one listener, a WebSocket echo endpoint on another. It carries
// no invariants of its own; see spec.md §1.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/nvremote/netflux/config"
	"github.com/nvremote/netflux/kvstore"
	"github.com/nvremote/netflux/server"
	"github.com/nvremote/netflux/session"
	"github.com/nvremote/netflux/wscodec"
)

func main() {
	configPath := flag.String("config", "", "path to config file (default: netflux.yaml)")
	flag.Parse()

	initLogger("info")

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	initLogger(cfg.LogLevel)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg); err != nil {
		slog.Error("httpwsserver exited with error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	store := kvstore.New()
	httpSrv := server.New("tcp", cfg.HTTPAddr, func(net.Addr) session.Handler {
		return kvstore.NewHandler(store, slog.Default())
	}, server.WithOptions(cfg.SessionOptions()), server.WithLogger(slog.Default()))

	if err := httpSrv.Start(ctx); err != nil {
		return fmt.Errorf("starting HTTP server: %w", err)
	}
	slog.Info("HTTP CRUD server listening", "addr", httpSrv.Addr().String())

	wsSrv := server.New("tcp", cfg.WSAddr, func(net.Addr) session.Handler {
		return wscodec.NewServerCodec(newWSEchoHandler(slog.Default()))
	}, server.WithOptions(cfg.SessionOptions()), server.WithLogger(slog.Default()))

	if err := wsSrv.Start(ctx); err != nil {
		_ = httpSrv.Stop()
		return fmt.Errorf("starting WebSocket server: %w", err)
	}
	slog.Info("WebSocket echo server listening", "addr", wsSrv.Addr().String())

	<-ctx.Done()
	slog.Info("httpwsserver shutting down")

	var stopErr error
	if err := httpSrv.Stop(); err != nil {
		stopErr = err
	}
	if err := wsSrv.Stop(); err != nil && stopErr == nil {
		stopErr = err
	}
	return stopErr
}

func initLogger(level string) {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})))
}
