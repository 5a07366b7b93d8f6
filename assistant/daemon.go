package assistant

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"
)

// RunDaemon runs pass every interval until the context is cancelled or a
// shutdown signal arrives. A failing pass is logged and retried on the
// next tick; cancellation between passes leaves no partial side effects
// because each message is fully resolved before any effect is emitted.
func RunDaemon(ctx context.Context, interval time.Duration, logger *slog.Logger, pass func(context.Context) error) error {
	if logger == nil {
		logger = slog.Default()
	}

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			logger.Info("received shutdown signal", slog.String("signal", sig.String()))
			return context.Canceled
		case <-gCtx.Done():
			return nil
		}
	})

	g.Go(func() error {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		logger.Info("daemon started", slog.Duration("interval", interval))
		for {
			if err := pass(gCtx); err != nil {
				logger.Error("pass failed", slog.String("error", err.Error()))
			}
			select {
			case <-ticker.C:
			case <-gCtx.Done():
				logger.Info("daemon stopping")
				return nil
			}
		}
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
