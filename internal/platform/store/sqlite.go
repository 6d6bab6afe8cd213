package store

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/fatflowers/paywall/internal/models"
	cfgpkg "github.com/fatflowers/paywall/pkg/config"
	gormzap "github.com/fatflowers/paywall/pkg/gormlog"
)

// NewDB opens the on-device sqlite store used for the catalog cache and the
// reconciliation audit log.
func NewDB(l *zap.SugaredLogger, cfg *cfgpkg.Config) (*gorm.DB, error) {
	path := cfg.Cache.Path
	if path == "" {
		l.Error("cache store path is empty")
		return nil, gorm.ErrInvalidDB
	}
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{Logger: gormzap.New(l)})
	if err != nil {
		l.Errorf("failed to open cache store: %v", err)
		return nil, err
	}
	l.Infow("opened sqlite cache store", "path", path)
	return db, nil
}

// AutoMigrate runs GORM migrations on startup
func AutoMigrate(l *zap.SugaredLogger, db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.CacheEntry{},
		&models.ReconcileLog{},
	); err != nil {
		l.Errorf("automigrate failed: %v", err)
		return err
	}
	return nil
}

// registerDBClose ensures the underlying *sql.DB is closed on shutdown
func registerDBClose(lc fx.Lifecycle, l *zap.SugaredLogger, gdb *gorm.DB) {
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			sqlDB, err := gdb.DB()
			if err != nil {
				l.Warnw("gorm: get sql.DB failed", "err", err)
				return nil
			}
			l.Infow("closing cache store")
			return sqlDB.Close()
		},
	})
}

var Module = fx.Options(
	fx.Provide(NewDB),
	fx.Invoke(AutoMigrate),
	fx.Invoke(registerDBClose),
)
