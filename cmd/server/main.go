package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/DoyleJ11/monkey-rooms-backend/internal/config"
	"github.com/DoyleJ11/monkey-rooms-backend/internal/httpapi"
	"github.com/DoyleJ11/monkey-rooms-backend/internal/hub"
	"github.com/DoyleJ11/monkey-rooms-backend/internal/rooms"
	"github.com/DoyleJ11/monkey-rooms-backend/internal/scores"
	"github.com/DoyleJ11/monkey-rooms-backend/internal/store"
)

const shutdownTimeout = 10 * time.Second

type backing struct {
	rooms   store.Store
	sweeper store.Sweeper
	scores  scores.Repository
	closers []func() error
}

func (b backing) Close() error {
	var err error
	for _, c := range b.closers {
		err = multierr.Append(err, c())
	}
	return err
}

func main() {
	cfg := config.Load()

	logger, err := newLogger(cfg)
	if err != nil {
		log.Fatalf("build logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Error("server exited", zap.Error(err))
		os.Exit(1)
	}
}

func newLogger(cfg config.Config) (*zap.Logger, error) {
	if cfg.Development() {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func openBacking(ctx context.Context, cfg config.Config) (backing, error) {
	switch cfg.StoreDriver {
	case "postgres":
		if cfg.DatabaseURL == "" {
			return backing{}, errors.New("STORE_DRIVER=postgres needs DATABASE_URL")
		}
		pg, err := store.NewPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			return backing{}, err
		}
		repo, err := scores.NewGormRepository(cfg.DatabaseURL)
		if err != nil {
			_ = pg.Close()
			return backing{}, err
		}
		return backing{
			rooms:   pg,
			sweeper: pg,
			scores:  repo,
			closers: []func() error{repo.Close, pg.Close},
		}, nil
	case "sqlite":
		lite, err := store.NewSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			return backing{}, err
		}
		return backing{
			rooms:   lite,
			sweeper: lite,
			scores:  scores.NewSQLRepository(lite.DB()),
			closers: []func() error{lite.Close},
		}, nil
	default:
		mem := store.NewMemory()
		return backing{rooms: mem, sweeper: mem, scores: scores.NewMemoryRepository()}, nil
	}
}

func run(cfg config.Config, logger *zap.Logger) (err error) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	b, err := openBacking(ctx, cfg)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() { err = multierr.Append(err, b.Close()) }()

	roomSvc := rooms.NewService(b.rooms, logger.Named("rooms"), rooms.WithTTL(cfg.RoomTTL))
	scoreSvc := scores.NewService(b.scores, logger.Named("scores"))

	g, gctx := errgroup.WithContext(ctx)

	h := hub.NewHub(gctx, roomSvc, cfg.WatchInterval, cfg.StoreTimeout, logger.Named("hub"))

	handler := httpapi.SetupRoutes(h, httpapi.Deps{
		Rooms:    roomSvc,
		Scores:   scoreSvc,
		Notifier: h,
		Timeout:  cfg.StoreTimeout,
		Logger:   logger.Named("http"),
	}, httpapi.RouteConfig{
		AllowedOrigins: cfg.AllowedOrigins,
		RateLimitRPS:   cfg.RateLimitRPS,
		RateLimitBurst: cfg.RateLimitBurst,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g.Go(func() error {
		logger.Info("listening", zap.String("addr", srv.Addr), zap.String("store", cfg.StoreDriver))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		return store.RunSweeper(gctx, b.sweeper, cfg.SweepInterval, logger.Named("sweeper"))
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		h.Send(hub.ShutdownHub{})

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
