package room

import (
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/wfunc/snakesladders/board"
	"github.com/wfunc/snakesladders/logger"
	"github.com/wfunc/snakesladders/network"
	"github.com/wfunc/snakesladders/session"
)

// Manager is the registry of live rooms keyed by game code. Its lock only guards the map;
// a room lock may be held while taking it, never the other way round.
type Manager struct {
	rooms       map[string]*Room
	mutex       sync.RWMutex
	broadcaster Broadcaster
	table       *board.Table
	roll        func() int
	now         func() time.Time
}

type Option func(*Manager)

// WithTable plays every new room on t instead of board.DefaultTable.
func WithTable(t *board.Table) Option {
	return func(m *Manager) { m.table = t }
}

// WithRoller replaces the dice source. roll must return 1..6.
func WithRoller(roll func() int) Option {
	return func(m *Manager) { m.roll = roll }
}

func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

func NewRoomManager(b Broadcaster, opts ...Option) *Manager {
	m := &Manager{
		rooms:       make(map[string]*Room),
		broadcaster: b,
		table:       board.DefaultTable,
		roll:        func() int { return rand.Intn(6) + 1 },
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// CreateRoom registers a room under code with s in seat 0 and tells s game_created.
func (m *Manager) CreateRoom(s *session.Session, code string, capacity int, identityKey string) (*Room, error) {
	if code == "" {
		return nil, fmt.Errorf("%w: empty game code", ErrInvalidRoom)
	}
	if s.RoomCode() != "" {
		return nil, ErrAlreadyInRoom
	}
	game, err := board.New(capacity, m.table)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRoom, err)
	}

	room := newRoom(m, code, capacity, game)
	room.mu.Lock()
	defer room.mu.Unlock()

	m.mutex.Lock()
	if _, exists := m.rooms[code]; exists {
		m.mutex.Unlock()
		return nil, ErrRoomExists
	}
	m.rooms[code] = room
	m.mutex.Unlock()

	room.members = append(room.members, &Member{Session: s, IdentityKey: identityKey, Seat: 0})
	s.SetRoomCode(code)
	if err := m.broadcaster.Send(s, network.NewGameCodeMessage(network.MsgGameCreated, code)); err != nil {
		logger.Log.Warnw("game_created not delivered", "room", code, "session", s.GetID(), "error", err)
	}

	logger.Log.Infow("room created", "room", code, "capacity", capacity, "session", s.GetID())
	return room, nil
}

// JoinRoom seats s in the room registered under code. Filling the last seat starts the game.
func (m *Manager) JoinRoom(s *session.Session, code, identityKey string) (*Room, error) {
	if s.RoomCode() != "" {
		return nil, ErrAlreadyInRoom
	}
	room, ok := m.GetRoom(code)
	if !ok {
		return nil, ErrRoomNotFound
	}
	if err := room.join(s, identityKey); err != nil {
		return nil, err
	}
	return room, nil
}

func (m *Manager) GetRoom(code string) (*Room, bool) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	room, ok := m.rooms[code]
	return room, ok
}

// Leave detaches s from whatever room it sits in. It is a no-op for a session without a
// room. The returned settlement is non-nil when the departure ended an active game.
func (m *Manager) Leave(s *session.Session) *Settlement {
	code := s.RoomCode()
	if code == "" {
		return nil
	}
	room, ok := m.GetRoom(code)
	if !ok {
		s.SetRoomCode("")
		return nil
	}
	return room.leave(s)
}

func (m *Manager) Count() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return len(m.rooms)
}

// Snapshots copies the state of every live room.
func (m *Manager) Snapshots() []Snapshot {
	rooms := m.list()
	snapshots := make([]Snapshot, 0, len(rooms))
	for _, room := range rooms {
		snapshots = append(snapshots, room.Snapshot())
	}
	return snapshots
}

// EvictIdle retires every room with no activity for longer than ttl and returns how many
// were dropped. A non-positive ttl disables eviction.
func (m *Manager) EvictIdle(ttl time.Duration) int {
	if ttl <= 0 {
		return 0
	}
	now := m.now()
	evicted := 0
	for _, room := range m.list() {
		if room.expire(ttl, now) {
			evicted++
			logger.Log.Infow("idle room evicted", "room", room.Code)
		}
	}
	return evicted
}

func (m *Manager) list() []*Room {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	rooms := make([]*Room, 0, len(m.rooms))
	for _, room := range m.rooms {
		rooms = append(rooms, room)
	}
	return rooms
}

// remove drops r only if the code still maps to r itself.
func (m *Manager) remove(r *Room) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if current, ok := m.rooms[r.Code]; ok && current == r {
		delete(m.rooms, r.Code)
	}
}
