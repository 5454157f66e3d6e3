package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xaenox/astro-bot/internal/api"
	"github.com/xaenox/astro-bot/internal/bot"
	"github.com/xaenox/astro-bot/internal/scheduler"
	"github.com/xaenox/astro-bot/internal/storage"
)

const shutdownTimeout = 10 * time.Second

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer logger.Sync()

	store, err := storage.Open(cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer closeStore(store, logger)

	svc, err := buildService(cfg, store, logger)
	if err != nil {
		return err
	}

	var tg *bot.Bot
	if cfg.Telegram.Enabled {
		tg, err = bot.New(cfg.Telegram.Token, cfg.Telegram.Debug, svc, logger)
		if err != nil {
			return err
		}
	} else {
		logger.Info("Telegram transport disabled")
	}

	sched, err := scheduler.New(logger)
	if err != nil {
		return err
	}
	if err := sched.AddSweep(cfg.Consultation.SweepInterval, cfg.Consultation.SessionTTL, svc); err != nil {
		_ = sched.Stop()
		return err
	}

	srv := &http.Server{
		Addr:        cfg.Server.Addr,
		Handler:     api.NewRouter(svc, cfg.Server.AllowedOrigins, logger),
		ReadTimeout: cfg.Server.ReadTimeout,
		IdleTimeout: cfg.Server.IdleTimeout,
	}

	g, ctx := errgroup.WithContext(cmd.Context())

	g.Go(func() error {
		logger.Info("Server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		logger.Info("Shutting down gracefully")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server forced to shutdown: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		return sched.Run(ctx)
	})

	if tg != nil {
		g.Go(func() error {
			return tg.Start(ctx)
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("Server stopped")
	return nil
}
