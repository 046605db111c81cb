package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/HerbHall/tpminsight/internal/server"
	"github.com/HerbHall/tpminsight/internal/version"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newServeCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the insight and alert schedulers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, *configPath)
		},
	}
}

func runServe(ctx context.Context, configPath string) error {
	a, err := newApp(ctx, configPath)
	if err != nil {
		return err
	}
	defer a.Close()
	logger := a.logger

	logger.Info("tpminsight starting", zap.String("version", version.Short()))

	sched := a.newScheduler()
	sched.Start(ctx)

	srvCfg := server.DefaultConfig()
	if err := a.cfg.Sub("server").Unmarshal(&srvCfg); err != nil {
		return fmt.Errorf("decode server config: %w", err)
	}
	ready := server.ReadinessChecker(func(ctx context.Context) error {
		return a.db.Ready(ctx, schemaModules()...)
	})
	srv := server.New(srvCfg, logger.Named("server"), ready, a.api())

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()
	logger.Info("tpminsight ready", zap.String("addr", srvCfg.Addr()))

	select {
	case <-ctx.Done():
		logger.Info("received shutdown signal")
	case err = <-errCh:
		if err != nil {
			logger.Error("server error", zap.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	sched.Stop()
	if serr := srv.Shutdown(shutdownCtx); serr != nil {
		logger.Error("server shutdown error", zap.Error(serr))
	}
	logger.Info("tpminsight stopped")
	return err
}
