package board

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidSquare = errors.New("invalid snake or ladder square")
	ErrCyclicTable   = errors.New("snake and ladder table contains a cycle")
)

// Table holds the snake and ladder redirections of a board. A Table is immutable after
// NewTable and safe to share between games.
type Table struct {
	snakes  map[int]int
	ladders map[int]int
}

// DefaultTable is the classic layout played by the browser client.
var DefaultTable = MustTable(
	map[int]int{38: 20, 45: 7, 51: 10, 65: 54, 91: 73, 97: 61},
	map[int]int{5: 58, 14: 49, 42: 60, 53: 72, 64: 83, 75: 94},
)

// NewTable validates snakes (head -> tail) and ladders (foot -> top).
// Snake tails must be strictly below their heads, ladder tops strictly above their feet,
// no square may hold both and following redirections from any square must terminate.
func NewTable(snakes, ladders map[int]int) (*Table, error) {
	t := &Table{
		snakes:  make(map[int]int, len(snakes)),
		ladders: make(map[int]int, len(ladders)),
	}

	for head, tail := range snakes {
		if head <= 0 || head >= Size || tail < 0 || tail >= head {
			return nil, fmt.Errorf("%w: snake %d->%d", ErrInvalidSquare, head, tail)
		}
		t.snakes[head] = tail
	}
	for foot, top := range ladders {
		if foot <= 0 || foot >= Size || top <= foot || top > Size {
			return nil, fmt.Errorf("%w: ladder %d->%d", ErrInvalidSquare, foot, top)
		}
		if _, clash := t.snakes[foot]; clash {
			return nil, fmt.Errorf("%w: square %d is both snake and ladder", ErrInvalidSquare, foot)
		}
		t.ladders[foot] = top
	}

	for start := range t.snakes {
		if err := t.checkChain(start); err != nil {
			return nil, err
		}
	}
	for start := range t.ladders {
		if err := t.checkChain(start); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// MustTable is NewTable for package-level tables known to be valid.
func MustTable(snakes, ladders map[int]int) *Table {
	t, err := NewTable(snakes, ladders)
	if err != nil {
		panic(err)
	}
	return t
}

func (t *Table) checkChain(start int) error {
	seen := map[int]bool{start: true}
	square := start
	for {
		next, _, ok := t.redirect(square)
		if !ok {
			return nil
		}
		if seen[next] {
			return fmt.Errorf("%w: square %d", ErrCyclicTable, start)
		}
		seen[next] = true
		square = next
	}
}

// redirect reports where square sends a piece and whether it is a snake or ladder.
func (t *Table) redirect(square int) (int, string, bool) {
	if to, ok := t.snakes[square]; ok {
		return to, StepSnake, true
	}
	if to, ok := t.ladders[square]; ok {
		return to, StepLadder, true
	}
	return 0, "", false
}

// maxChain bounds chain resolution; a validated table never gets near it.
func (t *Table) maxChain() int {
	return len(t.snakes) + len(t.ladders) + 1
}
