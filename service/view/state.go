package view

import (
	"errors"
	"sync"
	"time"
)

// ErrInFlight rejects a request while the view already has one loading.
var ErrInFlight = errors.New("a request is already in progress")

// Status is a request state.
type Status string

const (
	Idle    Status = "idle"
	Loading Status = "loading"
	Success Status = "success"
	Failed  Status = "error"
)

// State is a snapshot of a view's request state. Result survives failures
// so a view can keep showing its last good data under an error banner.
type State struct {
	Status     Status
	Message    string
	Err        error
	Result     any
	Generation uint64
	UpdatedAt  time.Time
}

// Machine is the per-view request state machine:
// idle -> loading -> success | error, with success | error -> idle on dismiss.
// Results are applied only if the generation they started in is still current.
type Machine struct {
	mu         sync.Mutex
	state      State
	generation uint64
}

// NewMachine returns an idle machine.
func NewMachine() *Machine {
	return &Machine{state: State{Status: Idle}}
}

// Begin moves to loading and returns the generation the result must carry.
func (m *Machine) Begin() (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state.Status == Loading {
		return 0, ErrInFlight
	}
	m.state.Status = Loading
	m.state.Message = ""
	m.state.Err = nil
	m.state.Generation = m.generation
	m.state.UpdatedAt = time.Now().UTC()
	return m.generation, nil
}

// Succeed applies a successful result. It reports false for a stale generation.
func (m *Machine) Succeed(gen uint64, message string, result any) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if gen != m.generation || m.state.Status != Loading {
		return false
	}
	m.state.Status = Success
	m.state.Message = message
	m.state.Result = result
	m.state.UpdatedAt = time.Now().UTC()
	return true
}

// Fail applies an error. It reports false for a stale generation.
func (m *Machine) Fail(gen uint64, err error) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if gen != m.generation || m.state.Status != Loading {
		return false
	}
	m.state.Status = Failed
	m.state.Err = err
	m.state.UpdatedAt = time.Now().UTC()
	return true
}

// Dismiss clears a finished request's banner. Loading is left alone.
func (m *Machine) Dismiss() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state.Status != Success && m.state.Status != Failed {
		return false
	}
	m.state.Status = Idle
	m.state.Message = ""
	m.state.Err = nil
	m.state.UpdatedAt = time.Now().UTC()
	return true
}

// Reset returns to idle, drops any result, and invalidates pending work.
func (m *Machine) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.generation++
	m.state = State{Status: Idle, Generation: m.generation, UpdatedAt: time.Now().UTC()}
}

// Snapshot returns the current state.
func (m *Machine) Snapshot() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}
