package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/epw80/channel-chat/pkg/access"
	"github.com/epw80/channel-chat/pkg/api"
	"github.com/epw80/channel-chat/pkg/auth"
	"github.com/epw80/channel-chat/pkg/config"
	"github.com/epw80/channel-chat/pkg/hub"
	"github.com/epw80/channel-chat/pkg/service"
	"github.com/epw80/channel-chat/pkg/storage"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 30 * time.Second

func newLogger(level string) *slog.Logger {
	logLevel := slog.LevelInfo
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	}

	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
}

func newGateway(ctx context.Context, cfg *config.Config, logger *slog.Logger) (storage.Gateway, error) {
	switch cfg.StorageDriver {
	case config.DriverDynamoDB:
		return storage.NewDynamoDBGateway(ctx, cfg, logger)
	case config.DriverMemory:
		logger.Warn("using in-memory storage, data is lost on exit")
		return storage.NewMemoryGateway(), nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.StorageDriver)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	if cfg.Environment == "production" && cfg.JWTSecret == "secret" {
		return errors.New("JWT_SECRET must be set in production")
	}

	store, err := newGateway(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer store.Close()

	if cfg.TokenTTL > auth.DefaultTokenTTL {
		logger.Warn("TOKEN_TTL exceeds the maximum, using the maximum",
			slog.Duration("requested", cfg.TokenTTL),
			slog.Duration("max", auth.DefaultTokenTTL))
	}

	issuer, err := auth.NewIssuer(cfg.JWTSecret, auth.WithTTL(cfg.TokenTTL))
	if err != nil {
		return err
	}

	h := hub.New(logger)
	decider := access.NewDecider(store)

	srv := api.NewServer(api.Deps{
		Users:          service.NewUsers(store, issuer, logger),
		Channels:       service.NewChannels(store, logger),
		Messages:       service.NewChannelMessages(store, decider, logger, service.WithPublisher(h)),
		DirectMessages: service.NewDirectMessages(store, logger, service.WithPublisher(h)),
		Decider:        decider,
		Hub:            h,
		Issuer:         issuer,
		Store:          store,
		AllowedOrigins: cfg.AllowedOrigins,
		Logger:         logger,
	})

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		h.Run()
		return nil
	})

	g.Go(func() error {
		logger.Info("starting server", slog.String("port", cfg.Port))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		err := httpServer.Shutdown(shutdownCtx)
		h.Shutdown()
		if err != nil {
			return fmt.Errorf("server forced to shutdown: %w", err)
		}
		return nil
	})

	return g.Wait()
}

func main() {
	cfg := config.Load()
	logger := newLogger(cfg.LogLevel)

	logger.Info("loaded configuration",
		slog.String("env", cfg.Environment),
		slog.String("port", cfg.Port),
		slog.String("storage_driver", cfg.StorageDriver),
		slog.String("dynamodb_endpoint", cfg.DynamoDBEndpoint),
		slog.String("dynamodb_region", cfg.DynamoDBRegion),
		slog.String("dynamodb_table", cfg.DynamoDBTable),
		slog.String("log_level", cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server exited with error", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger.Info("server exited")
}
