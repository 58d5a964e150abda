// persistence/interface.go
package persistence

import (
	"context"
	"fmt"

	"github.com/wfunc/snakesladders/config"
	"github.com/wfunc/snakesladders/models"
)

const (
	DriverMemory   = ""
	DriverGorm     = "gorm"
	DriverPostgres = "postgres"
)

// Store 数据库接口. Records finished games and answers per-player statistics.
type Store interface {
	SaveGameRecord(ctx context.Context, record *models.GameRecord) error
	GetPlayerStats(ctx context.Context, identityKey string) (*models.PlayerStats, error)
	Close() error
}

// 错误定义
var (
	ErrUnknownDriver = fmt.Errorf("unknown database driver")
	ErrEmptyKey      = fmt.Errorf("identity key is required")
)

// Open picks the store named by cfg.Driver.
func Open(cfg config.DatabaseConfig) (Store, error) {
	var (
		store Store
		err   error
	)
	switch cfg.Driver {
	case DriverMemory:
		return NewMemoryStore(), nil
	case DriverGorm:
		store, err = NewGormPostgreSQL(cfg.Postgres.DSN())
	case DriverPostgres:
		store, err = NewPostgreSQL(cfg.Postgres.DSN())
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, cfg.Driver)
	}
	if err != nil {
		return nil, err
	}
	return store, nil
}
