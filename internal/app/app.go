// Package app assembles the store, directory and reservation engine from
// configuration. Both binaries start from here.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/coordinate-system/meeting-system/internal/config"
	"github.com/coordinate-system/meeting-system/internal/directory"
	"github.com/coordinate-system/meeting-system/internal/handler"
	"github.com/coordinate-system/meeting-system/internal/logger"
	"github.com/coordinate-system/meeting-system/internal/mq"
	"github.com/coordinate-system/meeting-system/internal/policy"
	"github.com/coordinate-system/meeting-system/internal/reservation"
	"github.com/coordinate-system/meeting-system/internal/store"
	"github.com/gin-gonic/gin"
)

type App struct {
	config    *config.Config
	features  *config.FeatureConfig
	clock     policy.Clock
	logger    *logger.Logger
	store     store.Store
	engine    *reservation.Engine
	directory *directory.Service
	closers   []func() error
}

func New(cfg *config.Config, features *config.FeatureConfig, log *logger.Logger) *App {
	if log == nil {
		log = logger.Discard()
	}
	if features == nil {
		features = config.DefaultFeatureConfig()
	}
	return &App{
		config:   cfg,
		features: features,
		clock:    policy.RealClock{},
		logger:   log,
	}
}

// WithClock replaces the wall clock, for tests.
func (a *App) WithClock(c policy.Clock) *App {
	a.clock = c
	return a
}

// Initialize opens the store, seeds the catalog and directory and builds the
// engine. On error everything opened so far is closed again.
func (a *App) Initialize(ctx context.Context) (err error) {
	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()

	st, err := OpenStore(a.config)
	if err != nil {
		return fmt.Errorf("failed to open %s store: %w", a.config.DBDriver, err)
	}
	a.store = st
	a.closers = append(a.closers, st.Close)
	a.logger.Info("Store opened", logger.Driver(a.config.DBDriver))

	revoked, err := a.revocations(ctx)
	if err != nil {
		return err
	}

	loc, err := a.features.Location()
	if err != nil {
		return err
	}
	a.engine = reservation.NewEngine(st, policy.NewCalendar(a.clock, loc), a.logger, reservation.Options{
		UsageTolerance:         a.features.UsageTolerance(),
		ApproveRechecksPending: a.features.Reservation.ApproveRechecksPending,
	})
	a.directory = directory.NewService(st, a.config.JWTSecret, a.config.TokenTTL, revoked, a.logger)

	if err := a.seed(ctx); err != nil {
		return err
	}
	return nil
}

// OpenStore picks the backend named by DB_DRIVER.
func OpenStore(cfg *config.Config) (store.Store, error) {
	switch cfg.DBDriver {
	case config.DriverSQLite, "":
		return store.NewSQLiteStore(cfg.DBPath)
	case config.DriverPostgres:
		return store.NewPostgresStore(cfg.DatabaseURL)
	case config.DriverMemory:
		return store.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.DBDriver)
	}
}

func (a *App) revocations(ctx context.Context) (directory.Revocations, error) {
	if a.config.RedisURL == "" {
		return directory.NewMemoryRevocations(), nil
	}
	client, err := directory.NewRedisClient(a.config.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
	}
	a.closers = append(a.closers, client.Close)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to reach redis: %w", err)
	}
	a.logger.Info("Token revocation backed by redis")
	return directory.NewRedisRevocations(client), nil
}

func (a *App) seed(ctx context.Context) error {
	rooms := a.features.SeedRooms()
	for i := range rooms {
		if err := a.store.SaveRoom(ctx, &rooms[i]); err != nil {
			return fmt.Errorf("failed to seed room %d: %w", rooms[i].ID, err)
		}
	}
	if err := a.directory.Seed(ctx, a.features.SeedUsers()); err != nil {
		return fmt.Errorf("failed to seed users: %w", err)
	}
	if _, err := a.directory.EnsureAdmin(ctx); err != nil {
		return fmt.Errorf("failed to create bootstrap administrator: %w", err)
	}
	a.logger.Info("Catalog seeded", logger.Count(len(rooms)))
	return nil
}

func (a *App) Router() (*gin.Engine, error) {
	if a.engine == nil {
		return nil, errors.New("app not initialized")
	}
	h := handler.New(a.engine, a.directory, a.store, a.config.MediaBaseURL, a.logger)
	return handler.NewRouter(h, a.config.AllowedOrigins), nil
}

func (a *App) Dispatcher() (*mq.Dispatcher, error) {
	if a.engine == nil {
		return nil, errors.New("app not initialized")
	}
	return mq.NewDispatcher(a.engine, a.directory, a.logger), nil
}

// Close releases everything Initialize opened, newest first.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
