// persistence/gorm_postgresql.go
package persistence

import (
	"context"
	"encoding/json"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/wfunc/snakesladders/logger"
	"github.com/wfunc/snakesladders/models"
)

// GormPostgreSQL 使用GORM的PostgreSQL实现
type GormPostgreSQL struct {
	db *gorm.DB
}

const gormStatsQuery = `
    SELECT
        COUNT(*),
        COUNT(*) FILTER (WHERE winner_key = ?),
        COUNT(*) FILTER (WHERE winner_key = ? AND forfeit)
    FROM game_records
    WHERE players @> ?::jsonb`

// zapWriter routes gorm's log lines into the application logger.
type zapWriter struct{}

func (zapWriter) Printf(format string, args ...interface{}) {
	logger.Log.Debugf(format, args...)
}

// NewGormPostgreSQL 创建GORM PostgreSQL数据库连接
func NewGormPostgreSQL(dsn string) (*GormPostgreSQL, error) {
	gormLogger := gormlogger.New(zapWriter{}, gormlogger.Config{
		SlowThreshold: time.Second,
		LogLevel:      gormlogger.Warn,
		Colorful:      false,
	})

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormLogger,
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	// 设置连接池
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := db.AutoMigrate(&models.GormGameRecord{}); err != nil {
		return nil, err
	}

	return &GormPostgreSQL{db: db}, nil
}

// SaveGameRecord 保存游戏记录
func (p *GormPostgreSQL) SaveGameRecord(ctx context.Context, record *models.GameRecord) error {
	return p.db.WithContext(ctx).Create(models.NewGormGameRecord(record)).Error
}

// GetPlayerStats counts the games whose players array contains identityKey.
func (p *GormPostgreSQL) GetPlayerStats(ctx context.Context, identityKey string) (*models.PlayerStats, error) {
	if identityKey == "" {
		return nil, ErrEmptyKey
	}
	containment, err := json.Marshal([]map[string]string{{"identity_key": identityKey}})
	if err != nil {
		return nil, err
	}

	stats := models.PlayerStats{IdentityKey: identityKey}
	err = p.db.WithContext(ctx).Raw(gormStatsQuery, identityKey, identityKey, string(containment)).
		Row().Scan(&stats.TotalGames, &stats.Wins, &stats.ForfeitWins)
	if err != nil {
		return nil, err
	}
	stats.Losses = stats.TotalGames - stats.Wins
	return &stats, nil
}

// Close 关闭数据库连接
func (p *GormPostgreSQL) Close() error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
