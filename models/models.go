// models/models.go
package models

import (
	"time"
)

const (
	OutcomeWin  = "win"
	OutcomeLose = "lose"
)

// GameRecord 游戏记录模型. One is written per finished game.
type GameRecord struct {
	RoomCode   string       `json:"room_code"`
	Capacity   int          `json:"capacity"`
	Players    []PlayerInfo `json:"players"`
	WinnerSeat int          `json:"winner_seat"`
	WinnerKey  string       `json:"winner_key"`
	Forfeit    bool         `json:"forfeit"`
	StartedAt  time.Time    `json:"started_at"`
	FinishedAt time.Time    `json:"finished_at"`
}

// PlayerInfo 玩家信息（用于游戏记录）
type PlayerInfo struct {
	Seat        int    `json:"seat"`
	IdentityKey string `json:"identity_key"`
	Outcome     string `json:"outcome"` // win/lose
}

func (r *GameRecord) Duration() time.Duration {
	if r.StartedAt.IsZero() || r.FinishedAt.Before(r.StartedAt) {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// PlayerStats 玩家统计信息
type PlayerStats struct {
	IdentityKey string `json:"identity_key"`
	TotalGames  int    `json:"total_games"`
	Wins        int    `json:"wins"`
	Losses      int    `json:"losses"`
	ForfeitWins int    `json:"forfeit_wins"`
}
