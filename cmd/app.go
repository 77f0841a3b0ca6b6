package cmd

import (
	"context"
	"errors"
	"fmt"

	"gamedata-sync/core/config"
	"gamedata-sync/core/database"
	"gamedata-sync/core/logger"
	"gamedata-sync/core/manifest"
	"gamedata-sync/core/persist"
	"gamedata-sync/core/schema"
	"gamedata-sync/core/snapshot"
	"gamedata-sync/core/storage"
	"gamedata-sync/core/synchronizer"
	"gamedata-sync/core/upstream"
	"gamedata-sync/feature/history"
	"gamedata-sync/feature/integrity"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// app holds the components shared by the commands.
type app struct {
	cfg    *config.Config
	logger *zap.Logger

	client    storage.Client
	cache     persist.Store
	templates persist.Store
	registry  *schema.Registry

	db        *gorm.DB
	manifest  *manifest.Manifest
	snapshots *snapshot.Cache
	syncer    *synchronizer.Synchronizer
}

// bootstrap loads the configuration and builds the logger.
func bootstrap() (*app, error) {
	cfg, err := config.LoadConfig(".")
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logg, err := logger.New(&cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	zap.ReplaceGlobals(logg)

	return &app{cfg: cfg, logger: logg}, nil
}

// openStores opens the cache and template stores, connecting to object storage when
// the s3 backend is selected.
func (a *app) openStores(ctx context.Context) error {
	if a.cfg.Cache.Backend == persist.BackendS3 {
		client, err := storage.NewClient(a.cfg.Storage)
		if err != nil {
			return fmt.Errorf("failed to create storage client: %w", err)
		}
		if err := storage.EnsureBucket(ctx, client, a.cfg.Storage.Bucket, a.cfg.Storage.Region); err != nil {
			return fmt.Errorf("failed to prepare bucket: %w", err)
		}
		a.client = client
	}

	cache, err := persist.Open(a.cfg.Cache.Backend, a.cfg.Cache.Dir, a.client, a.cfg.Storage.Bucket)
	if err != nil {
		return fmt.Errorf("failed to open cache: %w", err)
	}
	templates, err := persist.Open(a.cfg.Cache.Backend, a.cfg.Cache.TemplateDir, a.client, a.cfg.Storage.Bucket)
	if err != nil {
		return fmt.Errorf("failed to open template store: %w", err)
	}

	a.cache = cache
	a.templates = templates
	a.registry = schema.NewRegistry(templates, a.logger)
	return nil
}

// connectDatabase opens the optional history database. Failures only disable history.
func (a *app) connectDatabase() {
	db, err := database.Connect(a.cfg.Database)
	switch {
	case errors.Is(err, database.ErrDisabled):
		a.logger.Info("No database configured; sync history is disabled")
	case err != nil:
		a.logger.Warn("Optional database connection failed", zap.Error(err))
	default:
		a.db = db
		a.logger.Info("Connected to history database", zap.String("driver", a.cfg.Database.Driver))
	}
}

// newApp builds every component up to the synchronizer.
func newApp(ctx context.Context) (*app, error) {
	a, err := bootstrap()
	if err != nil {
		return nil, err
	}
	if err := a.openStores(ctx); err != nil {
		return nil, err
	}

	m, err := manifest.Load(a.cfg.Sync.Manifest)
	if err != nil {
		return nil, err
	}
	a.manifest = m

	a.connectDatabase()

	var opts []synchronizer.Option
	if a.db != nil {
		repo := history.NewRepository(a.db)
		if err := repo.Migrate(); err != nil {
			a.logger.Warn("Failed to migrate history table; runs will not be recorded", zap.Error(err))
		} else {
			opts = append(opts, synchronizer.WithRecorder(repo))
		}
	}

	a.snapshots = snapshot.NewCache()
	a.syncer = synchronizer.New(
		a.cfg.Sync,
		m,
		upstream.New(a.cfg.Upstream, a.logger),
		a.cache,
		a.registry,
		a.snapshots,
		a.logger,
		opts...,
	)
	return a, nil
}

// integrityService builds the integrity checks over the app's components.
func (a *app) integrityService() *integrity.Service {
	var bucket *integrity.Bucket
	if a.client != nil {
		bucket = &integrity.Bucket{
			Client:   a.client,
			Name:     a.cfg.Storage.Bucket,
			Prefixes: []string{a.cfg.Cache.Dir, a.cfg.Cache.TemplateDir},
		}
	}
	return integrity.NewService(a.syncer, a.templates, a.manifest, bucket, a.db, a.logger)
}

// defaultLanguage is the language used when a request names none.
func (a *app) defaultLanguage() string {
	if len(a.cfg.Sync.Languages) == 0 {
		return "EN"
	}
	return a.cfg.Sync.Languages[0]
}
