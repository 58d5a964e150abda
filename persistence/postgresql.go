// persistence/postgresql.go
package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	_ "github.com/lib/pq" // PostgreSQL 驱动

	"github.com/wfunc/snakesladders/models"
)

// statsQuery takes the identity key twice and a jsonb containment document.
const statsQuery = `
    SELECT
        COUNT(*),
        COUNT(*) FILTER (WHERE winner_key = $1),
        COUNT(*) FILTER (WHERE winner_key = $2 AND forfeit)
    FROM game_records
    WHERE players @> $3::jsonb`

// PostgreSQL 数据库实现
type PostgreSQL struct {
	db *sql.DB
}

// NewPostgreSQL 创建 PostgreSQL 数据库连接
func NewPostgreSQL(dsn string) (*PostgreSQL, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}

	// 设置连接池参数
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := initTables(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	return &PostgreSQL{db: db}, nil
}

// initTables creates the same game_records layout gorm migrates to.
func initTables(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
        CREATE TABLE IF NOT EXISTS game_records (
            id BIGSERIAL PRIMARY KEY,
            room_code TEXT NOT NULL,
            capacity BIGINT NOT NULL,
            players JSONB NOT NULL,
            winner_seat BIGINT NOT NULL,
            winner_key TEXT,
            forfeit BOOLEAN DEFAULT false,
            started_at TIMESTAMPTZ,
            finished_at TIMESTAMPTZ,
            duration_seconds BIGINT DEFAULT 0,
            created_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP
        )
    `)
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, `
        CREATE INDEX IF NOT EXISTS idx_game_records_room_code ON game_records(room_code);
        CREATE INDEX IF NOT EXISTS idx_game_records_winner_key ON game_records(winner_key);
        CREATE INDEX IF NOT EXISTS idx_game_records_finished_at ON game_records(finished_at);
    `)
	return err
}

// SaveGameRecord 保存游戏记录
func (p *PostgreSQL) SaveGameRecord(ctx context.Context, record *models.GameRecord) error {
	players, err := json.Marshal(record.Players)
	if err != nil {
		return err
	}

	query := `
        INSERT INTO game_records
            (room_code, capacity, players, winner_seat, winner_key, forfeit, started_at, finished_at, duration_seconds)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
    `
	_, err = p.db.ExecContext(ctx, query,
		record.RoomCode,
		record.Capacity,
		players,
		record.WinnerSeat,
		record.WinnerKey,
		record.Forfeit,
		record.StartedAt,
		record.FinishedAt,
		int(record.Duration().Seconds()))
	return err
}

func (p *PostgreSQL) GetPlayerStats(ctx context.Context, identityKey string) (*models.PlayerStats, error) {
	if identityKey == "" {
		return nil, ErrEmptyKey
	}
	containment, err := json.Marshal([]map[string]string{{"identity_key": identityKey}})
	if err != nil {
		return nil, err
	}

	stats := models.PlayerStats{IdentityKey: identityKey}
	err = p.db.QueryRowContext(ctx, statsQuery, identityKey, identityKey, string(containment)).
		Scan(&stats.TotalGames, &stats.Wins, &stats.ForfeitWins)
	if err != nil {
		return nil, err
	}
	stats.Losses = stats.TotalGames - stats.Wins
	return &stats, nil
}

// Close 关闭数据库连接
func (p *PostgreSQL) Close() error {
	return p.db.Close()
}
