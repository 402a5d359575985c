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

	"github.com/fjod/go_cart/cart-sync/internal/config"
	carthttp "github.com/fjod/go_cart/cart-sync/internal/http"
	"github.com/fjod/go_cart/cart-sync/internal/persistence"
	"github.com/fjod/go_cart/cart-sync/internal/remote"
	"github.com/fjod/go_cart/cart-sync/internal/session"
	"github.com/fjod/go_cart/cart-sync/internal/store"
	"github.com/fjod/go_cart/cart-sync/pkg/logger"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/errgroup"
)

const serviceName = "cartd"

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
		lg.Error("cartd stopped with error", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, lg *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	snapshots, closeSnapshots, err := openSnapshotStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeSnapshots()

	adapter := persistence.NewAdapter(snapshots, cfg.Persistence.Timeout, lg)
	writer := persistence.NewWriter(adapter)

	client := remote.NewClient(remote.Config{
		BaseURL: cfg.Remote.BaseURL,
		Timeout: cfg.Remote.Timeout,
		Breaker: cfg.BreakerSettings("carts-remote"),
	}, remote.WithLogger(lg))

	cart := store.New(client, store.WithLogger(lg))
	if snap, ok := adapter.Load(ctx); ok {
		cart.Restore(snap)
		lg.Info("restored persisted cart", "items", len(snap.Items), "total_items", snap.TotalItems)
	}
	unsubscribe := cart.Subscribe(writer.Enqueue)
	stopWriter := startWriter(writer)
	defer stopWriter()

	sess := session.New(cart,
		session.WithSyncTimeout(cfg.Session.SyncTimeout),
		session.WithLogger(lg),
	)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler: otelhttp.NewHandler(carthttp.NewRouter(sess, cfg.HTTP.RequestTimeout, lg), serviceName),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		lg.Info("cart daemon listening", "port", cfg.HTTP.Port, "persistence", cfg.Persistence.Backend, "remote", cfg.Remote.BaseURL)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		lg.Info("shutting down cart daemon")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		return drain(shutdownCtx, srv, sess, unsubscribe, stopWriter)
	})

	return g.Wait()
}

// startWriter runs w on its own context so that a shutdown signal does not
// stop persistence. stop cancels it and blocks until the final flush is done.
func startWriter(w *persistence.Writer) (stop func()) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		w.Run(ctx)
	}()
	return func() {
		cancel()
		<-done
	}
}

// drain stops the daemon in dependency order. Requests still being served
// may mutate the cart, so the writer is stopped only after the server and
// the background syncs are done and the writer has been unsubscribed.
func drain(ctx context.Context, srv interface{ Shutdown(context.Context) error }, sess interface{ Close() }, unsubscribe, stopWriter func()) error {
	err := srv.Shutdown(ctx)
	sess.Close()
	unsubscribe()
	stopWriter()
	return err
}

func openSnapshotStore(ctx context.Context, cfg *config.Config) (persistence.SnapshotStore, func(), error) {
	switch cfg.Persistence.Backend {
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Persistence.Redis.Addr,
			Password: cfg.Persistence.Redis.Password,
			DB:       cfg.Persistence.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("redis connection failed: %w", err)
		}
		return persistence.NewRedisStore(client, cfg.Persistence.Key, cfg.Persistence.TTL), func() { _ = client.Close() }, nil
	case "memory":
		return persistence.NewMemoryStore(), func() {}, nil
	default:
		return persistence.NewFileStore(cfg.Persistence.FilePath), func() {}, nil
	}
}
