package state

import (
	"testing"
)

// MockState is a test double for the State interface.
// It helps us track which methods have been called.
type MockState struct {
	ID            string
	OnEnterCalled bool
	OnExitCalled  bool
}

func (m *MockState) OnEnter() {
	m.OnEnterCalled = true
}

func (m *MockState) OnExit() {
	m.OnExitCalled = true
}

func (m *MockState) GetID() string {
	return m.ID
}

// reset clears the call tracking flags.
func (m *MockState) reset() {
	m.OnEnterCalled = false
	m.OnExitCalled = false
}

func TestStateMachine_InitialState(t *testing.T) {
	initialState := &MockState{ID: "initial"}
	sm := NewBaseStateMachine(initialState)

	if !initialState.OnEnterCalled {
		t.Error("Expected OnEnter to be called on the initial state")
	}

	if sm.GetCurrentState() != initialState {
		t.Error("GetCurrentState should return the initial state")
	}
}

func TestStateMachine_UnregisteredTransitionRejected(t *testing.T) {
	initialState := &MockState{ID: "initial"}
	nextState := &MockState{ID: "next"}

	sm := NewBaseStateMachine(initialState)
	initialState.reset()

	if err := sm.ChangeState(nextState); err != ErrTransitionNotAllowed {
		t.Fatalf("Expected ErrTransitionNotAllowed, got: %v", err)
	}
	if initialState.OnExitCalled || nextState.OnEnterCalled {
		t.Error("No hooks should run for a rejected transition")
	}
	if sm.GetCurrentState() != initialState {
		t.Error("State should not change on a rejected transition")
	}
}

func TestStateMachine_AddAndUseTransition(t *testing.T) {
	stateA := &MockState{ID: "A"}
	stateB := &MockState{ID: "B"}
	stateC := &MockState{ID: "C"}

	sm := NewBaseStateMachine(stateA)

	// Add a valid transition from A to B
	if err := sm.AddTransition(stateA, stateB, func() bool { return true }); err != nil {
		t.Fatalf("AddTransition failed: %v", err)
	}

	// Add a blocked transition from B to C
	if err := sm.AddTransition(stateB, stateC, func() bool { return false }); err != nil {
		t.Fatalf("AddTransition failed: %v", err)
	}

	// --- Test valid transition ---
	stateA.reset()
	if err := sm.ChangeState(stateB); err != nil {
		t.Errorf("Expected transition from A to B to be allowed, but got error: %v", err)
	}
	if !stateA.OnExitCalled {
		t.Error("Expected OnExit to be called on the old state")
	}
	if !stateB.OnEnterCalled {
		t.Error("Expected OnEnter to be called on the new state")
	}
	if sm.GetCurrentState().GetID() != "B" {
		t.Errorf("Expected current state to be B, but got %s", sm.GetCurrentState().GetID())
	}

	// --- Test blocked transition ---
	stateB.reset()
	err := sm.ChangeState(stateC)
	if err != ErrTransitionNotAllowed {
		t.Errorf("Expected ErrTransitionNotAllowed, but got: %v", err)
	}
	if sm.GetCurrentState().GetID() != "B" {
		t.Errorf("Expected current state to remain B after a blocked transition, but got %s", sm.GetCurrentState().GetID())
	}
	if stateB.OnExitCalled {
		t.Error("OnExit should not be called on the current state if transition is blocked")
	}
	if stateC.OnEnterCalled {
		t.Error("OnEnter should not be called on the new state if transition is blocked")
	}
}

func TestPhaseMachine_ForwardOnly(t *testing.T) {
	ready := false
	sm, p := NewPhaseMachine("ABCD", func() bool { return ready })

	if sm.GetCurrentState().GetID() != PhaseFilling {
		t.Fatalf("Expected to start in %s, got %s", PhaseFilling, sm.GetCurrentState().GetID())
	}
	if err := sm.ChangeState(p.Finished); err != ErrTransitionNotAllowed {
		t.Errorf("Filling -> Finished should be rejected, got: %v", err)
	}
	if err := sm.ChangeState(p.Active); err != ErrTransitionNotAllowed {
		t.Errorf("Filling -> Active should wait for its condition, got: %v", err)
	}

	ready = true
	if err := sm.ChangeState(p.Active); err != nil {
		t.Fatalf("Filling -> Active failed: %v", err)
	}
	if err := sm.ChangeState(p.Filling); err != ErrTransitionNotAllowed {
		t.Errorf("Active -> Filling should be rejected, got: %v", err)
	}
	if err := sm.ChangeState(p.Finished); err != nil {
		t.Fatalf("Active -> Finished failed: %v", err)
	}
	if err := sm.ChangeState(p.Active); err != ErrTransitionNotAllowed {
		t.Errorf("Finished -> Active should be rejected, got: %v", err)
	}
	if sm.GetCurrentState().GetID() != PhaseFinished {
		t.Errorf("Expected %s, got %s", PhaseFinished, sm.GetCurrentState().GetID())
	}
}
