package bootstrap

import (
	"context"
	"fmt"

	"github.com/ArowuTest/study-profile-backend/internal/config"
	"github.com/ArowuTest/study-profile-backend/internal/metrics"
	"github.com/ArowuTest/study-profile-backend/internal/repositories"
	"github.com/ArowuTest/study-profile-backend/internal/repositories/memory"
	mongorepo "github.com/ArowuTest/study-profile-backend/internal/repositories/mongodb"
	redisrepo "github.com/ArowuTest/study-profile-backend/internal/repositories/redis"
	"github.com/ArowuTest/study-profile-backend/internal/services"
	"github.com/ArowuTest/study-profile-backend/pkg/mongodb"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// CleanupFn releases the store connection
type CleanupFn func(context.Context)

// Store is the opened document store plus a health probe for it
type Store struct {
	repositories.DocumentStore
	// Ping is nil for the in-process store
	Ping func(ctx context.Context) error
}

// OpenStore connects the backend selected by cfg.Store.Driver
func OpenStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Store, CleanupFn, error) {
	switch cfg.Store.Driver {
	case config.DriverMongoDB:
		client, err := mongodb.NewClient(ctx, cfg.MongoDB.URI, cfg.MongoDB.Timeout)
		if err != nil {
			return nil, nil, err
		}
		store := mongorepo.NewDocumentStore(client.Database(cfg.MongoDB.Database), cfg.MongoDB.Collection)
		if err := store.EnsureIndexes(ctx); err != nil {
			// Cosmos DB accounts can refuse index changes
			logger.Warn("could not ensure indexes", zap.Error(err))
		}
		logger.Info("connected to MongoDB",
			zap.String("database", cfg.MongoDB.Database),
			zap.String("collection", cfg.MongoDB.Collection))
		return &Store{DocumentStore: store, Ping: client.Ping}, func(ctx context.Context) {
			if err := client.Disconnect(ctx); err != nil {
				logger.Error("error disconnecting from MongoDB", zap.Error(err))
			}
		}, nil

	case config.DriverRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("ping redis: %w", err)
		}
		logger.Info("connected to Redis", zap.String("addr", cfg.Redis.Addr))
		ping := func(ctx context.Context) error { return client.Ping(ctx).Err() }
		return &Store{DocumentStore: redisrepo.NewDocumentStore(client, cfg.Redis.Prefix), Ping: ping}, func(context.Context) {
			if err := client.Close(); err != nil {
				logger.Error("error closing Redis client", zap.Error(err))
			}
		}, nil

	case config.DriverMemory:
		logger.Warn("using in-memory store, profiles are lost on restart")
		return &Store{DocumentStore: memory.NewDocumentStore()}, func(context.Context) {}, nil
	}
	return nil, nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
}

// Study bundles the services built on top of a store
type Study struct {
	Profiles  *repositories.ProfileRepository
	Service   services.StudyService
	Migration services.MigrationService
}

// NewStudy wires the repositories and services with the configured tuning,
// reporting store and login events to Prometheus
func NewStudy(cfg *config.Config, store repositories.DocumentStore, logger *zap.Logger) *Study {
	recorder := metrics.NewRecorder()
	writer := repositories.NewRetryingWriter(store,
		repositories.WithMaxAttempts(cfg.Study.MaxWriteAttempts),
		repositories.WithBaseBackoff(cfg.Study.BaseBackoff),
		repositories.WithObserver(recorder),
		repositories.WithLogger(logger.Named("store")),
	)
	profiles := repositories.NewProfileRepository(store, writer, nil)
	return &Study{
		Profiles: profiles,
		Service: services.NewStudyService(profiles,
			services.WithSessionWindow(cfg.Study.SessionWindow),
			services.WithLogger(logger.Named("study")),
			services.WithLoginRecorder(recorder),
		),
		Migration: services.NewMigrationService(profiles,
			repositories.NewLegacyMetadataRepository(store), nil, logger.Named("migration")),
	}
}
