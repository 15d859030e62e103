package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/septivank/meter-readings/internal/config"
	"github.com/septivank/meter-readings/internal/db"
	"github.com/septivank/meter-readings/internal/domain"
	"github.com/septivank/meter-readings/internal/ingest"
	"github.com/septivank/meter-readings/internal/mq"
	"github.com/septivank/meter-readings/internal/repository"
	"github.com/septivank/meter-readings/internal/service"
	"github.com/septivank/meter-readings/internal/validator"
	"github.com/septivank/meter-readings/internal/web"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// ProvideStore creates the reading store selected by STORAGE_DRIVER
func ProvideStore(lc fx.Lifecycle, logger *zap.Logger, cfg *config.Config) (service.Store, error) {
	switch cfg.Storage.Driver {
	case config.DriverMemory:
		accounts := make([]domain.Account, len(cfg.Storage.MemoryAccountIDs))
		for i, id := range cfg.Storage.MemoryAccountIDs {
			accounts[i] = domain.Account{ID: int64(i + 1), AccountID: id}
		}
		logger.Info("using in-memory store", zap.Int("accounts", len(accounts)))
		return repository.NewMemoryStore(accounts...), nil
	case config.DriverPostgres:
		pool, err := db.NewPool(lc, logger, db.Options{
			URL:          cfg.Database.URL,
			EnsureSchema: cfg.Database.EnsureSchema,
		})
		if err != nil {
			return nil, err
		}
		return repository.NewRepository(pool), nil
	}
	return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
}

// ProvideValidator creates a new validator instance
func ProvideValidator() *validator.Validator {
	return validator.NewValidator()
}

// ProvideMQConnection connects to RabbitMQ. It returns nil when messaging is disabled.
func ProvideMQConnection(lc fx.Lifecycle, logger *zap.Logger, cfg *config.Config) (*mq.Connection, error) {
	if !cfg.RabbitMQ.Enabled {
		logger.Info("rabbitmq disabled, queue consumer and events are off")
		return nil, nil
	}
	return mq.NewConnection(lc, logger, cfg.RabbitMQ.URL, cfg.ServiceName)
}

// ProvidePublisher creates the accepted-reading event publisher
func ProvidePublisher(lc fx.Lifecycle, conn *mq.Connection, cfg *config.Config, logger *zap.Logger) (service.EventPublisher, error) {
	if conn == nil {
		return service.NopPublisher{}, nil
	}

	publisher, err := mq.NewPublisher(conn, cfg.RabbitMQ.EventsExchange, cfg.RabbitMQ.EventsRoutingKey, logger)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return publisher.Close()
		},
	})
	return publisher, nil
}

// ProvideCoordinator creates a new persistence coordinator
func ProvideCoordinator(store service.Store, publisher service.EventPublisher, logger *zap.Logger) *service.Coordinator {
	return service.NewCoordinator(store, publisher, logger)
}

// ProvidePipeline creates a new ingestion pipeline
func ProvidePipeline(v *validator.Validator, coordinator *service.Coordinator, logger *zap.Logger) *ingest.Pipeline {
	return ingest.NewPipeline(v, coordinator, logger)
}

// ProvideReadingsService creates a new readings service
func ProvideReadingsService(store service.Store, cfg *config.Config) *service.ReadingsService {
	return service.NewReadingsService(store, cfg.HTTP.PageSizeMax)
}

// ProvideHTTPServer creates the API server
func ProvideHTTPServer(cfg *config.Config, pipeline *ingest.Pipeline, readings *service.ReadingsService, logger *zap.Logger) *web.Server {
	return web.NewServer(web.Config{
		Addr:           fmt.Sprintf(":%d", cfg.ServicePort),
		MaxUploadBytes: cfg.HTTP.UploadMaxBytes,
		RequestTimeout: cfg.HTTP.RequestTimeout,
	}, pipeline, readings, logger)
}

func startHTTPServer(lc fx.Lifecycle, server *web.Server, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Error("http server stopped", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if err := server.Shutdown(ctx); err != nil {
				logger.Error("failed to shut down http server", zap.Error(err))
				return err
			}
			logger.Info("http server stopped gracefully")
			return nil
		},
	})
}

func startWorker(
	lc fx.Lifecycle,
	conn *mq.Connection,
	cfg *config.Config,
	logger *zap.Logger,
	pipeline *ingest.Pipeline,
) error {
	if conn == nil {
		return nil
	}

	// Create context for consumer that will be cancelled on shutdown
	ctx, cancel := context.WithCancel(context.Background())

	consumer, err := mq.NewConsumer(mq.ConsumerConfig{
		Connection:     conn,
		Queue:          cfg.RabbitMQ.IngestQueue,
		DLQQueue:       cfg.RabbitMQ.DLQQueue,
		Exchange:       cfg.RabbitMQ.IngestExchange,
		RoutingKey:     cfg.RabbitMQ.IngestRoutingKey,
		PrefetchCount:  cfg.RabbitMQ.PrefetchCount,
		HandlerTimeout: cfg.HTTP.RequestTimeout,
		Logger:         logger,
		Handler:        pipeline.HandleMessage,
	})
	if err != nil {
		cancel()
		return err
	}

	lc.Append(fx.Hook{
		OnStart: func(startCtx context.Context) error {
			return consumer.Start(ctx)
		},
		OnStop: func(stopCtx context.Context) error {
			cancel()
			if err := consumer.Close(); err != nil {
				logger.Error("failed to close consumer", zap.Error(err))
				return err
			}
			logger.Info("submission consumer stopped gracefully")
			return nil
		},
	})

	return nil
}
