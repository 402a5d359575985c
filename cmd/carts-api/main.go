package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/fjod/go_cart/cart-sync/internal/cartsapi"
	"github.com/fjod/go_cart/cart-sync/internal/config"
	"github.com/fjod/go_cart/cart-sync/internal/publisher"
	"github.com/fjod/go_cart/cart-sync/internal/repository"
	"github.com/fjod/go_cart/cart-sync/pkg/logger"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/errgroup"
)

const serviceName = "carts-api"

func main() {
	cfg, err := config.Load(serviceName, "")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	lg, err := logger.New(cfg.LoggerOptions(serviceName))
	if err != nil {
		log.Fatalf("Failed to set up logger: %v", err)
	}

	if err := run(cfg, lg); err != nil {
		lg.Error("carts-api stopped with error", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, lg *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	repo, err := openRepository(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := repo.Close(context.Background()); err != nil {
			lg.Warn("failed to close carts store", "error", err)
		}
	}()

	var pub publisher.EventPublisher = publisher.NopPublisher{}
	if len(cfg.Kafka.Brokers) > 0 {
		pub = publisher.NewKafkaPublisher(cfg.Kafka.Topic, lg, cfg.Kafka.Brokers...)
		lg.Info("publishing cart events", "brokers", cfg.Kafka.Brokers, "topic", cfg.Kafka.Topic)
	}
	defer pub.Close()

	handler := cartsapi.NewCartsHandler(cartsapi.NewCartsService(repo, pub, lg), lg)
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler: otelhttp.NewHandler(cartsapi.NewRouter(handler, cfg.HTTP.RequestTimeout), serviceName),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		lg.Info("carts api listening", "port", cfg.HTTP.Port, "store", cfg.Carts.Store)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		lg.Info("shutting down carts api")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func openRepository(ctx context.Context, cfg *config.Config) (repository.CartRecordRepository, error) {
	switch cfg.Carts.Store {
	case "mongo":
		db, err := repository.ConnectMongoDB(ctx, cfg.Mongo.URI, cfg.Mongo.Database)
		if err != nil {
			return nil, err
		}
		repo, err := repository.OpenMongoRepository(ctx, db)
		if err != nil {
			_ = db.Client().Disconnect(ctx)
			return nil, err
		}
		return repo, nil
	case "postgres":
		creds := &repository.Credentials{
			Host:              cfg.Postgres.Host,
			Port:              cfg.Postgres.Port,
			User:              cfg.Postgres.User,
			Password:          cfg.Postgres.Password,
			DBName:            cfg.Postgres.DBName,
			SSLMode:           cfg.Postgres.SSLMode,
			MigrationsDirPath: cfg.Postgres.MigrationsPath,
		}
		repo, err := repository.NewPostgresRepository(ctx, creds)
		if err != nil {
			return nil, err
		}
		if err := repo.RunMigrations(creds); err != nil {
			_ = repo.Close(ctx)
			return nil, err
		}
		return repo, nil
	default:
		return repository.NewMemoryRepository(), nil
	}
}
