package main

import (
	"context"

	"github.com/septivank/meter-readings/internal/config"
	"github.com/septivank/meter-readings/internal/logging"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// newLogger builds the service logger, routes the standard library logger
// (used by net/http for server errors) through it and flushes it on stop
func newLogger(lc fx.Lifecycle, cfg *config.Config) (*zap.Logger, error) {
	logger, err := logging.NewLogger(cfg.ServiceName, cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	restoreStdLog := zap.RedirectStdLog(logger)

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			restoreStdLog()
			// Sync returns EINVAL for stderr on Linux
			_ = logger.Sync()
			return nil
		},
	})

	return logger, nil
}
