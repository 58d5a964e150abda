// Package board is the snakes-and-ladders rules engine for a single game. It performs no
// I/O and no locking; the owning room serializes access.
package board

import (
	"errors"
	"fmt"
)

const (
	Size     = 100
	MaxSeats = 4
	MinSeats = 2

	NoWinner = -1
)

const (
	StepMove   = "move"
	StepSnake  = "snake"
	StepLadder = "ladder"
)

var (
	ErrInvalidRoll     = errors.New("invalid dice value")
	ErrInvalidSeat     = errors.New("invalid seat")
	ErrInvalidPosition = errors.New("invalid position")
	ErrInvalidPlayers  = errors.New("player count must be between 2 and 4")
	ErrGameOver        = errors.New("game already has a winner")
	ErrChainTooLong    = errors.New("snake and ladder chain did not settle")
)

// Step is one leg of a move: the dice move itself or a snake/ladder redirection.
type Step struct {
	Player  int    `json:"player"`
	Type    string `json:"type"`
	From    int    `json:"from"`
	To      int    `json:"to"`
	IsValid bool   `json:"isValid"`
}

// MoveResult is broadcast verbatim to clients as the result of move_piece.
type MoveResult struct {
	Player   int    `json:"player"`
	Moves    []Step `json:"moves"`
	Valid    bool   `json:"isValid"`
	Position int    `json:"position"`
	HasWon   bool   `json:"hasWon"`
}

type Game struct {
	table     *Table
	players   int
	positions [MaxSeats]int
	forfeited [MaxSeats]bool
	turn      int
	winner    int
}

// New creates a game for players seats on table (DefaultTable when nil).
func New(players int, table *Table) (*Game, error) {
	if players < MinSeats || players > MaxSeats {
		return nil, fmt.Errorf("%w: %d", ErrInvalidPlayers, players)
	}
	if table == nil {
		table = DefaultTable
	}
	return &Game{
		table:   table,
		players: players,
		winner:  NoWinner,
	}, nil
}

// ResolveMove applies a dice value for actingSeat. An out-of-turn seat gets an invalid
// result and nothing changes. An overshoot past Size is invalid too but still passes the
// turn on, even on a six.
func (g *Game) ResolveMove(diceValue, actingSeat int) (MoveResult, error) {
	if diceValue < 1 || diceValue > 6 {
		return MoveResult{}, fmt.Errorf("%w: %d", ErrInvalidRoll, diceValue)
	}
	if g.winner != NoWinner {
		return MoveResult{}, ErrGameOver
	}

	result := MoveResult{Player: g.turn, Moves: []Step{}}
	if actingSeat != g.turn {
		return result, nil
	}

	current := g.positions[actingSeat]
	target := current + diceValue
	if target > Size {
		g.advance()
		result.Position = current
		return result, nil
	}

	steps := []Step{{Player: actingSeat, Type: StepMove, From: current, To: target, IsValid: true}}
	for i := 0; ; i++ {
		to, kind, ok := g.table.redirect(target)
		if !ok {
			break
		}
		if i >= g.table.maxChain() {
			return MoveResult{}, ErrChainTooLong
		}
		steps = append(steps, Step{Player: actingSeat, Type: kind, From: target, To: to, IsValid: true})
		target = to
	}

	g.positions[actingSeat] = target
	if target == Size {
		g.winner = actingSeat
	} else if diceValue != 6 {
		g.advance()
	}

	result.Moves = steps
	result.Valid = true
	result.Position = target
	result.HasWon = g.winner == actingSeat
	return result, nil
}

// advance passes the turn to the next seat that has not forfeited.
func (g *Game) advance() {
	for i := 1; i <= g.players; i++ {
		next := (g.turn + i) % g.players
		if !g.forfeited[next] {
			g.turn = next
			return
		}
	}
}

// Forfeit freezes a departed seat. It keeps its index and position but is skipped by
// the turn rotation; if it held the turn, the turn moves on now. It reports whether the
// turn changed.
func (g *Game) Forfeit(seat int) (bool, error) {
	if seat < 0 || seat >= g.players {
		return false, fmt.Errorf("%w: %d", ErrInvalidSeat, seat)
	}
	if g.forfeited[seat] {
		return false, nil
	}
	g.forfeited[seat] = true
	if g.turn != seat || g.winner != NoWinner {
		return false, nil
	}
	g.advance()
	return g.turn != seat, nil
}

// SetPosition places a seat directly, bypassing the rules. Only the debug move uses it.
func (g *Game) SetPosition(seat, position int) error {
	if seat < 0 || seat >= g.players {
		return fmt.Errorf("%w: %d", ErrInvalidSeat, seat)
	}
	if position < 0 || position > Size {
		return fmt.Errorf("%w: %d", ErrInvalidPosition, position)
	}
	g.positions[seat] = position
	return nil
}

func (g *Game) Turn() int {
	return g.turn
}

func (g *Game) Players() int {
	return g.players
}

// Winner returns the winning seat, if any.
func (g *Game) Winner() (int, bool) {
	return g.winner, g.winner != NoWinner
}

func (g *Game) Position(seat int) int {
	if seat < 0 || seat >= MaxSeats {
		return 0
	}
	return g.positions[seat]
}

func (g *Game) Positions() [MaxSeats]int {
	return g.positions
}

func (g *Game) Forfeited(seat int) bool {
	return seat >= 0 && seat < MaxSeats && g.forfeited[seat]
}

// Remaining counts seats that have not forfeited.
func (g *Game) Remaining() int {
	n := 0
	for seat := 0; seat < g.players; seat++ {
		if !g.forfeited[seat] {
			n++
		}
	}
	return n
}
