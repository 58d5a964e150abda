package services

import (
	"context"
	"sync"
	"time"

	"github.com/wfunc/snakesladders/logger"
	"github.com/wfunc/snakesladders/models"
	"github.com/wfunc/snakesladders/monitor"
	"github.com/wfunc/snakesladders/persistence"
	"github.com/wfunc/snakesladders/room"
)

const (
	FinishWin     = "win"
	FinishForfeit = "forfeit"
)

// payer is the part of PayoutClient settlement needs.
type payer interface {
	PayWinner(ctx context.Context, wallet string) error
}

// SettlementService handles everything that happens after a game is decided. It runs off
// the room lock and its outcome never feeds back into a room.
type SettlementService struct {
	store   persistence.Store
	payout  payer
	monitor *monitor.Monitor
	timeout time.Duration

	mu      sync.Mutex
	wg      sync.WaitGroup
	drained bool
}

// NewSettlementService builds the service. payout may be nil to skip payouts.
func NewSettlementService(store persistence.Store, payout *PayoutClient, m *monitor.Monitor, timeout time.Duration) *SettlementService {
	s := &SettlementService{store: store, monitor: m, timeout: timeout}
	if payout != nil {
		s.payout = payout
	}
	return s
}

// Settle records the game and pays the winner in the background. A nil settlement is
// ignored. After Drain it runs on the caller's goroutine instead.
func (s *SettlementService) Settle(settlement *room.Settlement) {
	if settlement == nil {
		return
	}
	reason := FinishWin
	if settlement.Forfeit {
		reason = FinishForfeit
	}
	s.monitor.IncGamesFinished(reason)

	s.mu.Lock()
	if s.drained {
		s.mu.Unlock()
		s.settle(settlement)
		return
	}
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		s.settle(settlement)
	}()
}

func (s *SettlementService) settle(settlement *room.Settlement) {
	ctx, cancel := s.context()
	defer cancel()

	record := NewGameRecord(settlement)
	if err := s.store.SaveGameRecord(ctx, record); err != nil {
		logger.Log.Errorw("save game record failed", "room", settlement.RoomCode, "error", err)
	}

	if s.payout == nil {
		return
	}
	if settlement.WinnerKey == "" {
		logger.Log.Warnw("winner has no wallet, skipping payout", "room", settlement.RoomCode, "seat", settlement.WinnerSeat)
		return
	}
	if err := s.payout.PayWinner(ctx, settlement.WinnerKey); err != nil {
		logger.Log.Errorw("payout failed", "room", settlement.RoomCode, "wallet", settlement.WinnerKey, "error", err)
		return
	}
	logger.Log.Infow("winner paid", "room", settlement.RoomCode, "wallet", settlement.WinnerKey)
}

// AnnounceWinnerAddress takes a client's claim of the wallet to pay for a game. It is
// recorded only; payouts use the identity key captured at join time.
func (s *SettlementService) AnnounceWinnerAddress(gameCode, publicKey string) {
	logger.Log.Infow("winner address announced", "room", gameCode, "publicKey", publicKey)
}

// Wait blocks until every settlement started so far has finished. Settle must not run
// concurrently with it; use Drain for that.
func (s *SettlementService) Wait() {
	s.wg.Wait()
}

// Drain stops background settlement and waits for the ones in flight.
func (s *SettlementService) Drain() {
	s.mu.Lock()
	s.drained = true
	s.mu.Unlock()
	s.wg.Wait()
}

func (s *SettlementService) context() (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(context.Background())
	}
	return context.WithTimeout(context.Background(), s.timeout)
}

// NewGameRecord converts a settlement into the stored record.
func NewGameRecord(settlement *room.Settlement) *models.GameRecord {
	record := &models.GameRecord{
		RoomCode:   settlement.RoomCode,
		Capacity:   settlement.Capacity,
		WinnerSeat: settlement.WinnerSeat,
		WinnerKey:  settlement.WinnerKey,
		Forfeit:    settlement.Forfeit,
		StartedAt:  settlement.StartedAt,
		FinishedAt: settlement.FinishedAt,
	}
	for seat, key := range settlement.IdentityKeys {
		outcome := models.OutcomeLose
		if seat == settlement.WinnerSeat {
			outcome = models.OutcomeWin
		}
		record.Players = append(record.Players, models.PlayerInfo{Seat: seat, IdentityKey: key, Outcome: outcome})
	}
	return record
}
