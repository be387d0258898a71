package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"PortfolioLens/internal/catalog"
	"PortfolioLens/internal/model"
	"PortfolioLens/internal/recorder"
	"PortfolioLens/internal/scheduler"
	"PortfolioLens/internal/server"
)

func newServeCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API with catalog hot reload",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup()
			if err != nil {
				return err
			}
			if addr != "" {
				a.cfg.Server.Addr = addr
			}
			return serve(a)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address, overrides server.addr")
	return cmd
}

func serve(a *app) error {
	a.log.Info().Str("version", version).Str("catalog", a.engine.Catalog().Version).Msg("PortfolioLens starting")

	var rec recorder.Recorder
	if a.cfg.Database.SQLitePath != "" {
		sr, err := openRecorder(a)
		if err != nil {
			a.log.Warn().Err(err).Msg("init sqlite recorder failed, using noop")
			rec = recorder.NewNoopRecorder()
		} else {
			rec = sr
			defer sr.Close()
		}
	} else {
		rec = recorder.NewNoopRecorder()
	}

	// Context for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if a.cfg.Catalog.Path != "" && a.cfg.Catalog.ReloadCron != "" {
		path := a.cfg.Catalog.Path
		sched := scheduler.NewScheduler(a.engine, func() (*model.Catalog, error) {
			return catalog.LoadFile(path)
		}, a.metrics, a.log)
		if err := sched.Register(a.cfg.Catalog.ReloadCron); err != nil {
			return err
		}
		sched.Start()
		defer sched.Stop()
	}

	srv := server.New(server.Config{
		Addr:      a.cfg.Server.Addr,
		Log:       a.log,
		Engine:    a.engine,
		Recorder:  rec,
		Metrics:   a.metrics,
		RateLimit: a.cfg.Server.RateLimit,
		RateBurst: a.cfg.Server.RateBurst,
	})

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	a.log.Info().Msg("PortfolioLens is running. Press Ctrl+C to stop.")

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	a.log.Info().Msg("shutdown signal received, stopping...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	a.log.Info().Msg("PortfolioLens stopped")
	return nil
}
