package persistence

import (
	"context"
	"sync"

	"github.com/wfunc/snakesladders/models"
)

// MemoryStore keeps running per-player totals only; individual records are not retained.
type MemoryStore struct {
	mutex sync.RWMutex
	stats map[string]*models.PlayerStats
	games int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{stats: make(map[string]*models.PlayerStats)}
}

func (m *MemoryStore) SaveGameRecord(_ context.Context, record *models.GameRecord) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.games++
	for _, p := range record.Players {
		if p.IdentityKey == "" {
			continue
		}
		s, ok := m.stats[p.IdentityKey]
		if !ok {
			s = &models.PlayerStats{IdentityKey: p.IdentityKey}
			m.stats[p.IdentityKey] = s
		}
		s.TotalGames++
		if p.Outcome == models.OutcomeWin {
			s.Wins++
			if record.Forfeit {
				s.ForfeitWins++
			}
		} else {
			s.Losses++
		}
	}
	return nil
}

func (m *MemoryStore) GetPlayerStats(_ context.Context, identityKey string) (*models.PlayerStats, error) {
	if identityKey == "" {
		return nil, ErrEmptyKey
	}
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	if s, ok := m.stats[identityKey]; ok {
		copied := *s
		return &copied, nil
	}
	return &models.PlayerStats{IdentityKey: identityKey}, nil
}

// Games is the number of records saved.
func (m *MemoryStore) Games() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return m.games
}

func (m *MemoryStore) Close() error { return nil }
