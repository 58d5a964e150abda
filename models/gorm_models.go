// models/gorm_models.go
package models

import (
	"time"
)

// GormGameRecord is the game_records row. The lib/pq store writes the same table.
type GormGameRecord struct {
	ID              uint         `gorm:"primaryKey"`
	RoomCode        string       `gorm:"index;not null"`
	Capacity        int          `gorm:"not null"`
	Players         []PlayerInfo `gorm:"type:jsonb;serializer:json;not null"`
	WinnerSeat      int          `gorm:"not null"`
	WinnerKey       string       `gorm:"index"`
	Forfeit         bool         `gorm:"default:false"`
	StartedAt       time.Time
	FinishedAt      time.Time `gorm:"index"`
	DurationSeconds int       `gorm:"default:0"` // 游戏时长(秒)
	CreatedAt       time.Time
}

func (GormGameRecord) TableName() string {
	return "game_records"
}

func NewGormGameRecord(r *GameRecord) *GormGameRecord {
	return &GormGameRecord{
		RoomCode:        r.RoomCode,
		Capacity:        r.Capacity,
		Players:         r.Players,
		WinnerSeat:      r.WinnerSeat,
		WinnerKey:       r.WinnerKey,
		Forfeit:         r.Forfeit,
		StartedAt:       r.StartedAt,
		FinishedAt:      r.FinishedAt,
		DurationSeconds: int(r.Duration().Seconds()),
	}
}
