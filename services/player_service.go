// services/player_service.go
package services

import (
	"context"

	"github.com/wfunc/snakesladders/models"
	"github.com/wfunc/snakesladders/persistence"
)

type PlayerService struct {
	store persistence.Store
}

func NewPlayerService(store persistence.Store) *PlayerService {
	return &PlayerService{store: store}
}

// GetPlayerStats 获取玩家统计
func (s *PlayerService) GetPlayerStats(ctx context.Context, identityKey string) (*models.PlayerStats, error) {
	return s.store.GetPlayerStats(ctx, identityKey)
}
