package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/kardianos/service"

	"github.com/nvremote/netflux/config"
)

// echoService implements kardianos/service.Interface so the demo can be
// installed and run as an OS service, mirroring the teacher agent's
// foreground/service dual-mode bootstrap.
type echoService struct {
	cfg    *config.Config
	cancel context.CancelFunc
}

func (s *echoService) Start(svc service.Service) error {
	go s.run()
	return nil
}

func (s *echoService) Stop(svc service.Service) error {
	slog.Info("service stop requested")
	if s.cancel != nil {
		s.cancel()
	}
	return nil
}

func (s *echoService) run() {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	defer cancel()

	if err := runEchoServer(ctx, s.cfg); err != nil {
		slog.Error("echo server exited with error", "error", err)
		os.Exit(1)
	}
}
