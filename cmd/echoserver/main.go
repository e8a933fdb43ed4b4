// Command echoserver is a worked example wiring server.Server into a
// TCP/TLS/Unix echo service, optionally installable as an OS service via
// kardianos/service. It carries no invariants of its own; see spec.md §1.
package main

import (
	"context"
	"crypto/tls"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/kardianos/service"

	"github.com/nvremote/netflux/config"
	"github.com/nvremote/netflux/server"
	"github.com/nvremote/netflux/session"
)

const (
	serviceName        = "NetfluxEchoServer"
	serviceDisplayName = "Netflux Echo Server"
	serviceDescription = "Worked example TCP/TLS/Unix echo server built on the netflux session library"
)

func main() {
	var (
		configPath  = flag.String("config", "", "path to config file (default: netflux.yaml)")
		doInstall   = flag.Bool("install", false, "install as an OS service")
		doUninstall = flag.Bool("uninstall", false, "uninstall the OS service")
	)
	flag.Parse()

	initLogger("info")

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	initLogger(cfg.LogLevel)

	svcConfig := &service.Config{
		Name:        serviceName,
		DisplayName: serviceDisplayName,
		Description: serviceDescription,
	}

	svc, err := service.New(&echoService{cfg: cfg}, svcConfig)
	if err != nil {
		slog.Error("failed to create service", "error", err)
		os.Exit(1)
	}

	switch {
	case *doInstall:
		if err := svc.Install(); err != nil {
			slog.Error("failed to install service", "error", err)
			os.Exit(1)
		}
		fmt.Println("service installed:", serviceName)
	case *doUninstall:
		if err := svc.Uninstall(); err != nil {
			slog.Error("failed to uninstall service", "error", err)
			os.Exit(1)
		}
		fmt.Println("service uninstalled:", serviceName)
	case service.Interactive():
		ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()
		if err := runEchoServer(ctx, cfg); err != nil {
			slog.Error("echo server exited with error", "error", err)
			os.Exit(1)
		}
	default:
		if err := svc.Run(); err != nil {
			slog.Error("service run failed", "error", err)
			os.Exit(1)
		}
	}
}

func runEchoServer(ctx context.Context, cfg *config.Config) error {
	opts := []server.Option{
		server.WithOptions(cfg.SessionOptions()),
		server.WithLogger(slog.Default()),
	}

	if cfg.HasTLS() {
		cert, err := tls.LoadX509KeyPair(cfg.TLSCertFile, cfg.TLSKeyFile)
		if err != nil {
			return fmt.Errorf("loading TLS keypair: %w", err)
		}
		opts = append(opts, server.WithTLS(&tls.Config{Certificates: []tls.Certificate{cert}}))
	}
	if cfg.AdminAddr != "" {
		opts = append(opts, server.WithAdmin(cfg.AdminAddr))
	}

	srv := server.New(cfg.Network, cfg.Addr, func(peer net.Addr) session.Handler {
		return newEchoHandler(peer, slog.Default())
	}, opts...)

	if err := srv.Start(ctx); err != nil {
		return fmt.Errorf("starting echo server: %w", err)
	}
	slog.Info("echo server listening", "network", cfg.Network, "addr", srv.Addr().String())

	<-ctx.Done()
	slog.Info("echo server shutting down")
	return srv.Stop()
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
