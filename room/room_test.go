package room

import (
	"encoding/json"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wfunc/snakesladders/board"
	"github.com/wfunc/snakesladders/broadcast"
	"github.com/wfunc/snakesladders/session"
	"github.com/wfunc/snakesladders/state"
)

// recordingConn is a network.Connection that keeps every frame it is given.
type recordingConn struct {
	mu     sync.Mutex
	frames [][]byte
}

func (c *recordingConn) Send(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames = append(c.frames, data)
	return nil
}

func (c *recordingConn) Close() error         { return nil }
func (c *recordingConn) RemoteAddr() net.Addr { return &net.TCPAddr{} }

func (c *recordingConn) messages(t *testing.T) []map[string]any {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]map[string]any, 0, len(c.frames))
	for _, f := range c.frames {
		var msg map[string]any
		require.NoError(t, json.Unmarshal(f, &msg))
		out = append(out, msg)
	}
	return out
}

func (c *recordingConn) types(t *testing.T) []string {
	t.Helper()
	var out []string
	for _, msg := range c.messages(t) {
		out = append(out, msg["type"].(string))
	}
	return out
}

func (c *recordingConn) last(t *testing.T) map[string]any {
	t.Helper()
	msgs := c.messages(t)
	require.NotEmpty(t, msgs)
	return msgs[len(msgs)-1]
}

func (c *recordingConn) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames = nil
}

type player struct {
	s    *session.Session
	conn *recordingConn
}

func newPlayer(id string) *player {
	conn := &recordingConn{}
	return &player{s: session.NewSession(id, conn), conn: conn}
}

func rolls(values ...int) func() int {
	i := 0
	return func() int {
		v := values[i%len(values)]
		i++
		return v
	}
}

func newTestManager(opts ...Option) *Manager {
	return NewRoomManager(broadcast.NewSessionBroadcaster(nil), opts...)
}

// startedRoom creates code with n players and returns them in seat order.
func startedRoom(t *testing.T, m *Manager, code string, n int) (*Room, []*player) {
	t.Helper()
	players := make([]*player, n)
	for i := range players {
		players[i] = newPlayer(code + "-" + string(rune('a'+i)))
	}
	room, err := m.CreateRoom(players[0].s, code, n, "key-0")
	require.NoError(t, err)
	for i := 1; i < n; i++ {
		_, err := m.JoinRoom(players[i].s, code, "key-"+string(rune('0'+i)))
		require.NoError(t, err)
	}
	require.Equal(t, state.PhaseActive, room.Snapshot().Phase)
	for _, p := range players {
		p.conn.reset()
	}
	return room, players
}

func TestRoomManager_CreateAndGetRoom(t *testing.T) {
	m := newTestManager()
	a := newPlayer("a")

	room, err := m.CreateRoom(a.s, "X", 2, "pk-a")
	require.NoError(t, err)

	got, ok := m.GetRoom("X")
	require.True(t, ok)
	assert.Same(t, room, got)
	assert.Equal(t, "X", a.s.RoomCode())
	assert.Equal(t, 1, m.Count())
	assert.Equal(t, map[string]any{"type": "game_created", "gameCode": "X"}, a.conn.last(t))
}

func TestRoomManager_CreateRejects(t *testing.T) {
	m := newTestManager()
	a, b := newPlayer("a"), newPlayer("b")

	_, err := m.CreateRoom(a.s, "X", 2, "")
	require.NoError(t, err)

	_, err = m.CreateRoom(b.s, "X", 3, "")
	assert.ErrorIs(t, err, ErrRoomExists)
	assert.Empty(t, b.s.RoomCode())

	_, err = m.CreateRoom(b.s, "Y", 5, "")
	assert.ErrorIs(t, err, ErrInvalidRoom)
	_, err = m.CreateRoom(b.s, "Y", 1, "")
	assert.ErrorIs(t, err, ErrInvalidRoom)
	_, err = m.CreateRoom(b.s, "", 2, "")
	assert.ErrorIs(t, err, ErrInvalidRoom)

	_, err = m.CreateRoom(a.s, "Z", 2, "")
	assert.ErrorIs(t, err, ErrAlreadyInRoom)
	assert.Equal(t, 1, m.Count())
}

func TestRoom_JoinNotifiesAndStarts(t *testing.T) {
	m := newTestManager()
	a, b, c := newPlayer("a"), newPlayer("b"), newPlayer("c")

	_, err := m.CreateRoom(a.s, "X", 3, "")
	require.NoError(t, err)
	a.conn.reset()

	room, err := m.JoinRoom(b.s, "X", "")
	require.NoError(t, err)
	assert.Equal(t, []string{"game_joined"}, b.conn.types(t))
	assert.Equal(t, float64(2), b.conn.last(t)["numPlayers"])
	assert.Equal(t, float64(3), b.conn.last(t)["maxPlayers"])
	assert.Equal(t, []string{"player_joined"}, a.conn.types(t))
	assert.Equal(t, state.PhaseFilling, room.Snapshot().Phase)

	_, err = m.JoinRoom(c.s, "X", "")
	require.NoError(t, err)
	assert.Equal(t, state.PhaseActive, room.Snapshot().Phase)

	for i, p := range []*player{a, b, c} {
		start := p.conn.last(t)
		assert.Equal(t, "start_game", start["type"])
		assert.Equal(t, Colors[i], start["color"])
		assert.Equal(t, float64(3), start["numPlayers"])
	}
	assert.Equal(t, []string{"game_joined", "start_game"}, c.conn.types(t))
}

func TestRoom_JoinRejects(t *testing.T) {
	m := newTestManager()
	_, players := startedRoom(t, m, "X", 2)
	c := newPlayer("c")

	_, err := m.JoinRoom(c.s, "X", "")
	assert.ErrorIs(t, err, ErrRoomFull)
	_, err = m.JoinRoom(c.s, "nope", "")
	assert.ErrorIs(t, err, ErrRoomNotFound)
	_, err = m.JoinRoom(players[0].s, "X", "")
	assert.ErrorIs(t, err, ErrAlreadyInRoom)

	assert.Empty(t, c.s.RoomCode())
	assert.Empty(t, players[0].conn.messages(t))
}

func TestRoom_RollOnlyForTurnHolder(t *testing.T) {
	m := newTestManager(WithRoller(rolls(3, 5)))
	room, players := startedRoom(t, m, "X", 2)

	_, err := room.Roll(players[1].s)
	assert.ErrorIs(t, err, ErrNotYourTurn)
	assert.Zero(t, room.Snapshot().PendingRoll)

	v, err := room.Roll(players[0].s)
	require.NoError(t, err)
	assert.Equal(t, 3, v)

	// A second request re-announces the same value.
	v, err = room.Roll(players[0].s)
	require.NoError(t, err)
	assert.Equal(t, 3, v)

	for _, p := range players {
		msgs := p.conn.messages(t)
		require.Len(t, msgs, 2)
		for _, msg := range msgs {
			assert.Equal(t, "dice_roll", msg["type"])
			assert.Equal(t, float64(3), msg["diceValue"])
			assert.Equal(t, float64(0), msg["turn"])
		}
	}
}

func TestRoom_RollBeforeStart(t *testing.T) {
	m := newTestManager()
	a := newPlayer("a")
	room, err := m.CreateRoom(a.s, "X", 2, "")
	require.NoError(t, err)

	_, err = room.Roll(a.s)
	assert.ErrorIs(t, err, ErrNotActive)

	stranger := newPlayer("s")
	_, err = room.Roll(stranger.s)
	assert.ErrorIs(t, err, ErrNotMember)
}

func TestRoom_MoveMustMatchPendingRoll(t *testing.T) {
	m := newTestManager(WithRoller(rolls(2)))
	room, players := startedRoom(t, m, "X", 2)

	// Nothing rolled yet.
	_, err := room.Move(players[0].s, 0, 2)
	assert.ErrorIs(t, err, ErrRollRejected)

	_, err = room.Roll(players[0].s)
	require.NoError(t, err)

	_, err = room.Move(players[0].s, 0, 6)
	assert.ErrorIs(t, err, ErrRollRejected)
	_, err = room.Move(players[0].s, 1, 2)
	assert.ErrorIs(t, err, ErrRollRejected)
	_, err = room.Move(players[1].s, 1, 2)
	assert.ErrorIs(t, err, ErrRollRejected)
	assert.Equal(t, 2, room.Snapshot().PendingRoll)

	players[0].conn.reset()
	players[1].conn.reset()

	settlement, err := room.Move(players[0].s, 0, 2)
	require.NoError(t, err)
	assert.Nil(t, settlement)

	snap := room.Snapshot()
	assert.Zero(t, snap.PendingRoll)
	assert.Equal(t, 1, snap.Turn)
	assert.Equal(t, 2, snap.Positions[0])

	moved := players[1].conn.last(t)
	assert.Equal(t, "move_piece", moved["type"])
	assert.Equal(t, float64(0), moved["game_player"])
	assert.Equal(t, float64(2), moved["diceValue"])
	result := moved["result"].(map[string]any)
	assert.Equal(t, true, result["isValid"])
	assert.Equal(t, float64(2), result["position"])

	// The roll is spent.
	_, err = room.Move(players[0].s, 0, 2)
	assert.ErrorIs(t, err, ErrRollRejected)
}

func TestRoom_MoveOutOfTurnKeepsPendingRoll(t *testing.T) {
	m := newTestManager(WithRoller(rolls(4, 6)))
	room, players := startedRoom(t, m, "X", 2)

	_, err := room.Roll(players[0].s)
	require.NoError(t, err)
	players[0].conn.reset()
	players[1].conn.reset()

	// Seat 1 claims its own seat with seat 0's value.
	_, err = room.Move(players[1].s, 1, 4)
	assert.ErrorIs(t, err, ErrRollRejected)

	snap := room.Snapshot()
	assert.Equal(t, 4, snap.PendingRoll)
	assert.Equal(t, 0, snap.Turn)
	assert.Zero(t, snap.Positions[1])
	assert.Empty(t, players[0].conn.types(t))
	assert.Empty(t, players[1].conn.types(t))

	// Seat 0 still gets the value it rolled.
	value, err := room.Roll(players[0].s)
	require.NoError(t, err)
	assert.Equal(t, 4, value)

	_, err = room.Move(players[0].s, 0, 4)
	require.NoError(t, err)
	assert.Equal(t, 4, room.Snapshot().Positions[0])
}

func TestRoom_BoardErrorKeepsPendingRoll(t *testing.T) {
	m := newTestManager(WithRoller(rolls(3)))
	room, players := startedRoom(t, m, "X", 2)

	decided, err := board.New(2, nil)
	require.NoError(t, err)
	require.NoError(t, decided.SetPosition(0, 99))
	_, err = decided.ResolveMove(1, 0)
	require.NoError(t, err)
	room.mu.Lock()
	room.board = decided
	room.mu.Unlock()

	_, err = room.Roll(players[0].s)
	require.NoError(t, err)
	players[1].conn.reset()

	_, err = room.Move(players[0].s, 0, 3)
	assert.ErrorIs(t, err, board.ErrGameOver)
	assert.Equal(t, 3, room.Snapshot().PendingRoll)
	assert.Empty(t, players[1].conn.types(t))
}

func TestRoom_LadderChainInBroadcast(t *testing.T) {
	m := newTestManager(WithRoller(rolls(5)))
	room, players := startedRoom(t, m, "X", 2)

	_, err := room.Roll(players[0].s)
	require.NoError(t, err)
	_, err = room.Move(players[0].s, 0, 5)
	require.NoError(t, err)

	result := players[0].conn.last(t)["result"].(map[string]any)
	moves := result["moves"].([]any)
	require.Len(t, moves, 2)
	assert.Equal(t, "ladder", moves[1].(map[string]any)["type"])
	assert.Equal(t, float64(58), result["position"])
}

func TestRoom_PendingRollsAreIndependent(t *testing.T) {
	m := newTestManager(WithRoller(rolls(4, 1)))
	x, xp := startedRoom(t, m, "X", 2)
	y, yp := startedRoom(t, m, "Y", 2)

	_, err := x.Roll(xp[0].s)
	require.NoError(t, err)
	_, err = y.Roll(yp[0].s)
	require.NoError(t, err)

	assert.Equal(t, 4, x.Snapshot().PendingRoll)
	assert.Equal(t, 1, y.Snapshot().PendingRoll)

	_, err = y.Move(yp[0].s, 0, 4)
	assert.ErrorIs(t, err, ErrRollRejected)
	_, err = x.Move(xp[0].s, 0, 4)
	require.NoError(t, err)
	assert.Equal(t, 1, y.Snapshot().PendingRoll)
}

func TestRoom_WinRetiresRoom(t *testing.T) {
	m := newTestManager(WithRoller(rolls(3)))
	room, players := startedRoom(t, m, "X", 2)

	require.NoError(t, room.DebugMove(players[0].s, 0, 97))
	assert.Equal(t, "move_piece_test", players[1].conn.last(t)["type"])

	_, err := room.Roll(players[0].s)
	require.NoError(t, err)
	settlement, err := room.Move(players[0].s, 0, 3)
	require.NoError(t, err)
	require.NotNil(t, settlement)

	assert.Equal(t, "X", settlement.RoomCode)
	assert.Equal(t, 0, settlement.WinnerSeat)
	assert.Equal(t, "key-0", settlement.WinnerKey)
	assert.False(t, settlement.Forfeit)
	assert.Equal(t, []string{"key-0", "key-1"}, settlement.IdentityKeys)

	for _, p := range players {
		assert.Equal(t, []string{"move_piece_test", "dice_roll", "move_piece", "player_won"}, p.conn.types(t))
		assert.Equal(t, float64(0), p.conn.last(t)["player"])
		assert.Empty(t, p.s.RoomCode())
	}

	_, ok := m.GetRoom("X")
	assert.False(t, ok)
	_, err = room.Roll(players[1].s)
	assert.ErrorIs(t, err, ErrRoomNotFound)

	// The code is free again.
	_, err = m.CreateRoom(players[1].s, "X", 2, "")
	assert.NoError(t, err)
}

func TestRoom_DebugMoveRejectsBadPosition(t *testing.T) {
	m := newTestManager()
	room, players := startedRoom(t, m, "X", 2)

	assert.Error(t, room.DebugMove(players[0].s, 0, 101))
	assert.Error(t, room.DebugMove(players[0].s, 3, 10))
	assert.Empty(t, players[1].conn.messages(t))
}

func TestLeave_WhileFillingCompactsSeats(t *testing.T) {
	m := newTestManager()
	a, b, c, d := newPlayer("a"), newPlayer("b"), newPlayer("c"), newPlayer("d")

	room, err := m.CreateRoom(a.s, "X", 4, "ka")
	require.NoError(t, err)
	_, err = m.JoinRoom(b.s, "X", "kb")
	require.NoError(t, err)
	_, err = m.JoinRoom(c.s, "X", "kc")
	require.NoError(t, err)
	a.conn.reset()
	c.conn.reset()

	assert.Nil(t, m.Leave(b.s))
	assert.Empty(t, b.s.RoomCode())

	left := a.conn.last(t)
	assert.Equal(t, "player_left", left["type"])
	assert.Equal(t, float64(1), left["player"])
	assert.NotContains(t, left, "turn")
	assert.Equal(t, []string{"player_left"}, c.conn.types(t))

	_, err = m.JoinRoom(d.s, "X", "kd")
	require.NoError(t, err)
	assert.Equal(t, float64(3), d.conn.last(t)["numPlayers"])
	assert.Equal(t, state.PhaseFilling, room.Snapshot().Phase)

	e := newPlayer("e")
	_, err = m.JoinRoom(e.s, "X", "ke")
	require.NoError(t, err)
	assert.Equal(t, Colors[1], c.conn.last(t)["color"])
	assert.Equal(t, Colors[3], e.conn.last(t)["color"])
}

func TestLeave_LastMemberDeletesRoom(t *testing.T) {
	m := newTestManager()
	a := newPlayer("a")
	_, err := m.CreateRoom(a.s, "X", 3, "")
	require.NoError(t, err)

	assert.Nil(t, m.Leave(a.s))
	assert.Zero(t, m.Count())
	assert.Empty(t, a.s.RoomCode())

	// Leaving twice is harmless.
	assert.Nil(t, m.Leave(a.s))
}

func TestLeave_TwoPlayerGameIsForfeited(t *testing.T) {
	m := newTestManager()
	_, players := startedRoom(t, m, "X", 2)

	settlement := m.Leave(players[0].s)
	require.NotNil(t, settlement)
	assert.True(t, settlement.Forfeit)
	assert.Equal(t, 1, settlement.WinnerSeat)
	assert.Equal(t, "key-1", settlement.WinnerKey)

	msgs := players[1].conn.messages(t)
	require.Len(t, msgs, 2)
	assert.Equal(t, "player_left", msgs[0]["type"])
	assert.Equal(t, float64(0), msgs[0]["player"])
	assert.Equal(t, map[string]any{"type": "player_won", "player": float64(-1)}, msgs[1])

	assert.Empty(t, players[0].conn.messages(t))
	assert.Empty(t, players[1].s.RoomCode())
	assert.Zero(t, m.Count())
}

func TestLeave_ActiveGameContinuesWithoutSeat(t *testing.T) {
	m := newTestManager(WithRoller(rolls(4)))
	room, players := startedRoom(t, m, "X", 3)

	_, err := room.Roll(players[0].s)
	require.NoError(t, err)
	players[1].conn.reset()

	assert.Nil(t, m.Leave(players[0].s))

	left := players[1].conn.last(t)
	assert.Equal(t, "player_left", left["type"])
	assert.Equal(t, float64(0), left["player"])
	assert.Equal(t, float64(1), left["turn"])

	snap := room.Snapshot()
	assert.Equal(t, state.PhaseActive, snap.Phase)
	assert.Equal(t, 2, snap.Members)
	assert.Equal(t, 1, snap.Turn)
	assert.Zero(t, snap.PendingRoll)

	// Seats keep their indexes and the departed seat is skipped.
	_, err = room.Roll(players[1].s)
	require.NoError(t, err)
	_, err = room.Move(players[1].s, 1, 4)
	require.NoError(t, err)
	assert.Equal(t, 2, room.Snapshot().Turn)

	_, err = room.Roll(players[2].s)
	require.NoError(t, err)
	_, err = room.Move(players[2].s, 2, 4)
	require.NoError(t, err)
	assert.Equal(t, 1, room.Snapshot().Turn)

	settlement := m.Leave(players[2].s)
	require.NotNil(t, settlement)
	assert.True(t, settlement.Forfeit)
	assert.Equal(t, 1, settlement.WinnerSeat)
	assert.Equal(t, float64(-1), players[1].conn.last(t)["player"])
}

func TestRoomManager_EvictIdle(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	m := newTestManager(WithClock(func() time.Time { return now }))

	a, b := newPlayer("a"), newPlayer("b")
	_, err := m.CreateRoom(a.s, "old", 2, "")
	require.NoError(t, err)

	now = now.Add(20 * time.Minute)
	_, err = m.CreateRoom(b.s, "new", 2, "")
	require.NoError(t, err)

	assert.Zero(t, m.EvictIdle(0))
	assert.Equal(t, 1, m.EvictIdle(10*time.Minute))

	_, ok := m.GetRoom("old")
	assert.False(t, ok)
	_, ok = m.GetRoom("new")
	assert.True(t, ok)

	expired := a.conn.last(t)
	assert.Equal(t, "error", expired["type"])
	assert.Equal(t, "game_expired", expired["errorType"])
	assert.Empty(t, a.s.RoomCode())
}

func TestRoomManager_Snapshots(t *testing.T) {
	m := newTestManager()
	startedRoom(t, m, "X", 2)
	_, err := m.CreateRoom(newPlayer("z").s, "Y", 4, "")
	require.NoError(t, err)

	phases := map[string]string{}
	for _, snap := range m.Snapshots() {
		phases[snap.Code] = snap.Phase
	}
	assert.Equal(t, map[string]string{"X": state.PhaseActive, "Y": state.PhaseFilling}, phases)
}

func TestRoomManager_ConcurrentJoinsFillExactly(t *testing.T) {
	m := newTestManager()
	_, err := m.CreateRoom(newPlayer("host").s, "X", 4, "")
	require.NoError(t, err)

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		joined int
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			p := newPlayer(string(rune('a' + id)))
			if _, err := m.JoinRoom(p.s, "X", ""); err == nil {
				mu.Lock()
				joined++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 3, joined)
	room, _ := m.GetRoom("X")
	assert.Equal(t, state.PhaseActive, room.Snapshot().Phase)
}
