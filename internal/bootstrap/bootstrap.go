// Package bootstrap assembles the file service from configuration. It is
// shared by the API server and vaultctl.
package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"docvault/internal/blobstore"
	"docvault/internal/cache"
	"docvault/internal/classify"
	"docvault/internal/config"
	"docvault/internal/database"
	"docvault/internal/database/migration"
	"docvault/internal/extract"
	"docvault/internal/lock"
	"docvault/internal/repository"
	"docvault/internal/repository/memory"
	"docvault/internal/repository/postgres"
	"docvault/internal/service"
	"docvault/internal/storage"
)

type Options struct {
	// Memory keeps blobs, metadata and content in process. No database,
	// object store or redis is contacted.
	Memory bool
	// Migrate runs the schema migrations after connecting.
	Migrate bool
	// Registerer receives the service metrics; nil disables them.
	Registerer prometheus.Registerer
}

// App is the assembled service plus the resources it holds.
type App struct {
	Service service.FileService
	// DB is nil in memory mode.
	DB *sql.DB

	closers []func() error
}

// New wires storage, repositories, lock, classifier, extractor and cache into
// a FileService. On error every resource opened so far is released.
func New(ctx context.Context, cfg *config.AppConfig, log *slog.Logger, opts Options) (_ *App, err error) {
	a := &App{}
	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()

	classifier := classify.Default()
	if cfg.Ingest.ClassificationFile != "" {
		if classifier, err = classify.LoadFile(cfg.Ingest.ClassificationFile); err != nil {
			return nil, err
		}
	}

	extractor, err := extract.New(cfg.Ingest.DefaultTextEncoding)
	if err != nil {
		return nil, err
	}

	var (
		objects  storage.Storage
		blobs    repository.BlobRepository
		contents repository.ContentRepository
	)
	if opts.Memory {
		objects = storage.NewMemory()
		blobs = memory.NewBlobRepository()
		contents = memory.NewContentRepository()
	} else {
		db, err := database.NewPostgres(ctx, cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("connect database: %w", err)
		}
		a.DB = db
		a.closers = append(a.closers, db.Close)

		if opts.Migrate {
			if err := migration.EnsureMigrated(ctx, db, log); err != nil {
				return nil, err
			}
		}

		if objects, err = storage.New(cfg.Storage); err != nil {
			return nil, fmt.Errorf("initialize object storage: %w", err)
		}
		blobs = postgres.NewBlobPostgres(db)
		contents = postgres.NewContentPostgres(db)
	}

	locker, err := a.newLocker(ctx, cfg.Redis, log, opts.Memory)
	if err != nil {
		return nil, err
	}

	var metrics *service.Metrics
	if opts.Registerer != nil {
		if metrics, err = service.NewMetrics(opts.Registerer); err != nil {
			return nil, fmt.Errorf("register metrics: %w", err)
		}
	}

	a.Service = service.NewFileService(service.Deps{
		Blobs:           blobstore.New(objects, blobs),
		Contents:        contents,
		Classifier:      classifier,
		Extractor:       extractor,
		Locker:          locker,
		Cache:           cache.New(cfg.Ingest.ContentCacheSize, time.Duration(cfg.Ingest.ContentCacheTTLSec)*time.Second),
		Metrics:         metrics,
		Logger:          log,
		MaxPayloadBytes: cfg.Ingest.MaxPayloadBytes,
		AllowedTypes:    cfg.Ingest.AllowedTypes,
	})
	return a, nil
}

// newLocker returns the redis lock when REDIS_ADDR is set, the in-process one otherwise.
func (a *App) newLocker(ctx context.Context, cfg config.RedisConfig, log *slog.Logger, memoryMode bool) (lock.Locker, error) {
	if cfg.Addr == "" || memoryMode {
		return lock.NewLocal(), nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	a.closers = append(a.closers, rdb.Close)

	rl := lock.NewRedis(rdb, time.Duration(cfg.LockTTLSec)*time.Second, log)
	if err := rl.Ping(ctx); err != nil {
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	log.InfoContext(ctx, "distributed lock enabled", "redis_addr", cfg.Addr)
	return rl, nil
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	return errors.Join(errs...)
}
