// room/room.go
package room

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/wfunc/snakesladders/board"
	"github.com/wfunc/snakesladders/logger"
	"github.com/wfunc/snakesladders/network"
	"github.com/wfunc/snakesladders/session"
	"github.com/wfunc/snakesladders/state"
)

var (
	ErrInvalidRoom   = errors.New("invalid game code or player count")
	ErrRoomExists    = errors.New("room already exists")
	ErrRoomNotFound  = errors.New("room not found")
	ErrRoomFull      = errors.New("room is full")
	ErrAlreadyInRoom = errors.New("connection is already in a room")
	ErrNotMember     = errors.New("connection is not a member of this room")
	ErrNotActive     = errors.New("game has not started")
	ErrNotYourTurn   = errors.New("it's not your turn")
	ErrRollRejected  = errors.New("move does not match the pending roll")
)

// Colors are assigned by seat index.
var Colors = [board.MaxSeats]string{"blue", "yellow", "green", "red"}

// Member is one seat. Once the game is active a departed member stays in place with
// Left set, so seat indexes never shift under the board.
type Member struct {
	Session     *session.Session
	IdentityKey string
	Seat        int
	Left        bool
}

// Settlement describes a finished game. It is produced under the room lock and
// consumed after it is released.
type Settlement struct {
	RoomCode     string
	Capacity     int
	WinnerSeat   int
	WinnerKey    string
	Forfeit      bool
	IdentityKeys []string
	StartedAt    time.Time
	FinishedAt   time.Time
}

// Snapshot is a read-only copy of a room's state.
type Snapshot struct {
	Code        string
	Capacity    int
	Phase       string
	Members     int
	Turn        int
	Positions   [board.MaxSeats]int
	PendingRoll int
}

// Room 是游戏房间的核心结构. Every field below mu is guarded by it.
type Room struct {
	Code      string
	Capacity  int
	CreatedAt time.Time

	mu          sync.Mutex
	manager     *Manager
	members     []*Member
	machine     *state.BaseStateMachine
	phases      *state.Phases
	board       *board.Game
	pendingRoll int
	startedAt   time.Time
	lastActive  time.Time
	retired     bool
}

func newRoom(m *Manager, code string, capacity int, game *board.Game) *Room {
	now := m.now()
	r := &Room{
		Code:       code,
		Capacity:   capacity,
		CreatedAt:  now,
		manager:    m,
		board:      game,
		lastActive: now,
	}
	r.machine, r.phases = state.NewPhaseMachine(code, func() bool {
		return len(r.members) == r.Capacity
	})
	return r
}

// Roll draws a dice value for the member holding the turn and broadcasts it. While a
// value is pending, repeated requests re-announce it instead of drawing again.
func (r *Room) Roll(s *session.Session) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	member, err := r.activeMemberLocked(s)
	if err != nil {
		return 0, err
	}
	turn := r.board.Turn()
	if member.Seat != turn {
		return 0, fmt.Errorf("%w: seat %d, turn %d", ErrNotYourTurn, member.Seat, turn)
	}

	if r.pendingRoll == 0 {
		r.pendingRoll = r.manager.roll()
	}
	r.lastActive = r.manager.now()

	r.manager.broadcaster.Broadcast(r.sessionsLocked(), network.DiceRolled{
		Type:      network.MsgDiceRoll,
		DiceValue: r.pendingRoll,
		Turn:      turn,
	})
	return r.pendingRoll, nil
}

// Move consumes the pending roll for player. The claimed seat must be the sender's and
// the claimed value must equal the pending roll; otherwise nothing changes and
// ErrRollRejected is returned. A winning move returns the game's settlement.
func (r *Room) Move(s *session.Session, player, diceValue int) (*Settlement, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	member, err := r.activeMemberLocked(s)
	if err != nil {
		return nil, err
	}
	if r.pendingRoll == 0 || diceValue != r.pendingRoll || player != member.Seat || player != r.board.Turn() {
		return nil, ErrRollRejected
	}

	// The roll stays pending if the board refuses the move.
	result, err := r.board.ResolveMove(diceValue, player)
	if err != nil {
		return nil, err
	}
	r.pendingRoll = 0
	r.lastActive = r.manager.now()

	sessions := r.sessionsLocked()
	r.manager.broadcaster.Broadcast(sessions, network.PieceMoved{
		Type:       network.MsgMovePiece,
		Result:     result,
		GamePlayer: player,
		DiceValue:  diceValue,
	})

	if !result.HasWon {
		return nil, nil
	}
	r.manager.broadcaster.Broadcast(sessions, network.PlayerWon{Type: network.MsgPlayerWon, Player: player})
	return r.finishLocked(player, false), nil
}

// DebugMove places a piece without applying any rule.
func (r *Room) DebugMove(s *session.Session, player, position int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, err := r.activeMemberLocked(s); err != nil {
		return err
	}
	if err := r.board.SetPosition(player, position); err != nil {
		return err
	}
	r.lastActive = r.manager.now()

	r.manager.broadcaster.Broadcast(r.sessionsLocked(), network.PiecePlaced{
		Type:     network.MsgMovePieceTest,
		Player:   player,
		Position: position,
	})
	return nil
}

func (r *Room) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	return Snapshot{
		Code:        r.Code,
		Capacity:    r.Capacity,
		Phase:       r.phaseLocked(),
		Members:     len(r.sessionsLocked()),
		Turn:        r.board.Turn(),
		Positions:   r.board.Positions(),
		PendingRoll: r.pendingRoll,
	}
}

// join seats s at the next free index. The joiner hears game_joined, the current members
// hear player_joined before the seat is added, and a full room starts.
func (r *Room) join(s *session.Session, identityKey string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.retired {
		return ErrRoomNotFound
	}
	if r.phaseLocked() != state.PhaseFilling || len(r.members) >= r.Capacity {
		return ErrRoomFull
	}

	b := r.manager.broadcaster
	seat := len(r.members)
	if err := b.Send(s, network.GameJoined{
		Type:       network.MsgGameJoined,
		GameCode:   r.Code,
		NumPlayers: seat + 1,
		MaxPlayers: r.Capacity,
	}); err != nil {
		logger.Log.Warnw("game_joined not delivered", "room", r.Code, "session", s.GetID(), "error", err)
	}
	b.Broadcast(r.sessionsLocked(), network.NewGameCodeMessage(network.MsgPlayerJoined, r.Code))

	r.members = append(r.members, &Member{Session: s, IdentityKey: identityKey, Seat: seat})
	s.SetRoomCode(r.Code)
	r.lastActive = r.manager.now()

	if len(r.members) < r.Capacity {
		return nil
	}
	if err := r.machine.ChangeState(r.phases.Active); err != nil {
		return fmt.Errorf("start room %s: %w", r.Code, err)
	}
	r.startedAt = r.lastActive
	for _, m := range r.members {
		_ = b.Send(m.Session, network.StartGame{
			Type:       network.MsgStartGame,
			GameCode:   r.Code,
			Color:      Colors[m.Seat],
			NumPlayers: len(r.members),
			MaxPlayers: r.Capacity,
		})
	}
	logger.Log.Infow("game started", "room", r.Code, "players", len(r.members))
	return nil
}

// leave removes s from the room. While filling, later seats shift down; once active the
// seat is frozen as forfeited. Returns a settlement when the departure ends the game.
func (r *Room) leave(s *session.Session) *Settlement {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.retired {
		return nil
	}
	idx := -1
	for i, m := range r.members {
		if !m.Left && m.Session == s {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil
	}

	member := r.members[idx]
	s.SetRoomCode("")
	r.lastActive = r.manager.now()
	notice := network.PlayerLeft{Type: network.MsgPlayerLeft, GameCode: r.Code, Player: member.Seat}

	active := r.phaseLocked() == state.PhaseActive
	if active {
		member.Left = true
		if r.board.Turn() == member.Seat {
			r.pendingRoll = 0
		}
		if _, err := r.board.Forfeit(member.Seat); err != nil {
			logger.Log.Errorw("forfeit failed", "room", r.Code, "seat", member.Seat, "error", err)
		}
		turn := r.board.Turn()
		notice.Turn = &turn
	} else {
		r.members = append(r.members[:idx], r.members[idx+1:]...)
		for i, m := range r.members {
			m.Seat = i
		}
	}

	remaining := r.sessionsLocked()
	r.manager.broadcaster.Broadcast(remaining, notice)
	logger.Log.Infow("player left", "room", r.Code, "seat", member.Seat, "remaining", len(remaining))

	switch {
	case len(remaining) == 0:
		r.retireLocked()
		return nil
	case active && len(remaining) == 1:
		r.manager.broadcaster.Broadcast(remaining, network.PlayerWon{Type: network.MsgPlayerWon, Player: network.ForfeitWinner})
		return r.finishLocked(r.connectedLocked()[0].Seat, true)
	}
	return nil
}

// expire retires an idle room, telling whoever is still seated.
func (r *Room) expire(ttl time.Duration, now time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.retired || now.Sub(r.lastActive) <= ttl {
		return false
	}
	r.manager.broadcaster.Broadcast(r.sessionsLocked(),
		network.NewError(network.ErrTypeGameExpired, "game closed after inactivity"))
	r.retireLocked()
	return true
}

func (r *Room) activeMemberLocked(s *session.Session) (*Member, error) {
	if r.retired {
		return nil, ErrRoomNotFound
	}
	var member *Member
	for _, m := range r.members {
		if !m.Left && m.Session == s {
			member = m
			break
		}
	}
	if member == nil {
		return nil, ErrNotMember
	}
	if r.phaseLocked() != state.PhaseActive {
		return nil, ErrNotActive
	}
	return member, nil
}

func (r *Room) finishLocked(winnerSeat int, forfeit bool) *Settlement {
	if err := r.machine.ChangeState(r.phases.Finished); err != nil {
		logger.Log.Errorw("finish room", "room", r.Code, "error", err)
	}

	keys := make([]string, len(r.members))
	for i, m := range r.members {
		keys[i] = m.IdentityKey
	}
	settlement := &Settlement{
		RoomCode:     r.Code,
		Capacity:     r.Capacity,
		WinnerSeat:   winnerSeat,
		WinnerKey:    keys[winnerSeat],
		Forfeit:      forfeit,
		IdentityKeys: keys,
		StartedAt:    r.startedAt,
		FinishedAt:   r.manager.now(),
	}
	logger.Log.Infow("game finished", "room", r.Code, "winner", winnerSeat, "forfeit", forfeit)

	r.retireLocked()
	return settlement
}

// retireLocked frees the remaining sessions and drops the room from the registry.
func (r *Room) retireLocked() {
	r.retired = true
	r.pendingRoll = 0
	for _, m := range r.members {
		if !m.Left {
			m.Session.SetRoomCode("")
		}
	}
	r.manager.remove(r)
}

func (r *Room) phaseLocked() string {
	return r.machine.GetCurrentState().GetID()
}

func (r *Room) connectedLocked() []*Member {
	members := make([]*Member, 0, len(r.members))
	for _, m := range r.members {
		if !m.Left {
			members = append(members, m)
		}
	}
	return members
}

func (r *Room) sessionsLocked() []*session.Session {
	sessions := make([]*session.Session, 0, len(r.members))
	for _, m := range r.members {
		if !m.Left {
			sessions = append(sessions, m.Session)
		}
	}
	return sessions
}
