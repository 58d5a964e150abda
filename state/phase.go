package state

const (
	PhaseFilling  = "filling"
	PhaseActive   = "active"
	PhaseFinished = "finished"
)

// Phases are the three lifecycle states of a room. They only move forward:
// Filling -> Active -> Finished.
type Phases struct {
	Filling  *RoomStateBase
	Active   *RoomStateBase
	Finished *RoomStateBase
}

// NewPhaseMachine returns a machine in Filling with only the forward transitions allowed.
// active gates Filling -> Active; nil means unconditional.
func NewPhaseMachine(roomCode string, active func() bool) (*BaseStateMachine, *Phases) {
	p := &Phases{
		Filling:  &RoomStateBase{ID: PhaseFilling, RoomCode: roomCode},
		Active:   &RoomStateBase{ID: PhaseActive, RoomCode: roomCode},
		Finished: &RoomStateBase{ID: PhaseFinished, RoomCode: roomCode},
	}

	sm := NewBaseStateMachine(p.Filling)
	_ = sm.AddTransition(p.Filling, p.Active, active)
	_ = sm.AddTransition(p.Active, p.Finished, nil)
	return sm, p
}
