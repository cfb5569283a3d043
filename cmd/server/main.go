package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/eternalApril/objectdb/internal/config"
	"github.com/eternalApril/objectdb/internal/database"
	"github.com/eternalApril/objectdb/internal/docstore"
	"github.com/eternalApril/objectdb/internal/logger"
	"github.com/eternalApril/objectdb/internal/objectcache"
	"github.com/eternalApril/objectdb/internal/server"
)

const shutdownTimeout = 5 * time.Second

func main() {
	cfg, err := config.Load(".")
	if err != nil {
		fmt.Fprintln(os.Stderr, "load config:", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		fmt.Fprintln(os.Stderr, "init logger:", err)
		os.Exit(1)
	}
	defer log.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("objectdb stopped with error", zap.Error(err))
		return
	}
	log.Info("objectdb stopped")
}

// openStore builds the configured collection and a function releasing it
func openStore(ctx context.Context, cfg config.StoreConfig, log *zap.Logger) (docstore.Collection, func(context.Context) error, error) {
	switch cfg.Backend {
	case config.BackendMongo:
		m, err := docstore.DialMongo(ctx, docstore.MongoOptions{
			URI:            cfg.Mongo.URI,
			Database:       cfg.Mongo.Database,
			Collection:     cfg.Mongo.Collection,
			ConnectTimeout: cfg.Mongo.ConnectTimeout,
		}, log)
		if err != nil {
			return nil, nil, err
		}
		if err := m.EnsureIndexes(ctx); err != nil {
			m.Close(ctx) //nolint:errcheck
			return nil, nil, err
		}
		return m, m.Close, nil
	default:
		m, err := docstore.NewMemory(cfg.Shards)
		if err != nil {
			return nil, nil, err
		}
		return m, func(context.Context) error { return nil }, nil
	}
}

func run(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	log.Info("objectdb starting",
		zap.String("port", cfg.Server.Port),
		zap.String("backend", cfg.Store.Backend),
	)

	store, closeStore, err := openStore(ctx, cfg.Store, log)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := closeStore(closeCtx); err != nil {
			log.Warn("close store failed", zap.Error(err))
		}
	}()

	var cache database.ObjectCache = objectcache.Nop{}
	if cfg.Cache.Enabled {
		lru, err := objectcache.New(cfg.Cache.Size,
			objectcache.WithRegisterer(prometheus.DefaultRegisterer),
			objectcache.WithName(cfg.Store.Mongo.Collection))
		if err != nil {
			return fmt.Errorf("init cache: %w", err)
		}
		cache = lru
	}

	engine, err := server.NewEngine(database.New(store, cache, log), store, cfg, log,
		server.WithRegisterer(prometheus.DefaultRegisterer))
	if err != nil {
		return fmt.Errorf("init engine: %w", err)
	}
	defer engine.Shutdown()

	address := net.JoinHostPort(cfg.Server.Host, cfg.Server.Port)
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return server.NewServer(engine, log).Serve(gctx, listener)
	})

	if cfg.Metrics.Enabled {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		metricsSrv := &http.Server{Addr: cfg.Metrics.Addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

		g.Go(func() error {
			log.Info("serving metrics", zap.String("address", cfg.Metrics.Addr))
			if err := metricsSrv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})

		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return metricsSrv.Shutdown(shutdownCtx)
		})
	}

	<-gctx.Done()
	log.Info("shutting down")

	return g.Wait()
}
