// Package lifecycle holds the state machines for every status-bearing record.
// Handlers call these before any write; the stores then persist the returned
// status with a guard on the status that was checked here.
package lifecycle

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownStatus means the stored status string is not part of the machine.
	ErrUnknownStatus = errors.New("unknown status")
	// ErrUnknownAction means the requested action is not part of the machine.
	ErrUnknownAction = errors.New("unknown action")
	// ErrInvalidTransition means the action is not allowed from the current status.
	ErrInvalidTransition = errors.New("invalid transition")
	// ErrNotPermitted means the acting party may not perform the action.
	ErrNotPermitted = errors.New("not permitted")
)

// Party identifies how the acting user relates to the record.
type Party string

const (
	PartyCreator     Party = "creator"     // owner of the trade or collaboration
	PartyParticipant Party = "participant" // accepted counterpart on a trade
	PartyApplicant   Party = "applicant"   // proposer or role applicant
	PartyAdmin       Party = "admin"
	PartySystem      Party = "system" // background jobs
	PartyOther       Party = "other"  // signed in, no relation to the record
)

// TransitionError describes a rejected transition.
type TransitionError struct {
	Entity string
	From   string
	Action string
	Party  Party
	Err    error
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s: cannot %s from %q as %s: %v", e.Entity, e.Action, e.From, e.Party, e.Err)
}

func (e *TransitionError) Unwrap() error { return e.Err }

type rule[S ~string] struct {
	to      S
	parties []Party
}

func (r rule[S]) allows(p Party) bool {
	for _, q := range r.parties {
		if q == p {
			return true
		}
	}
	return false
}

// machine is a transition table keyed by (from, action).
type machine[S ~string, A ~string] struct {
	entity  string
	states  map[S]bool
	actions map[A]bool
	rules   map[S]map[A]rule[S]
}

func newMachine[S ~string, A ~string](entity string, states []S, actions []A) *machine[S, A] {
	m := &machine[S, A]{
		entity:  entity,
		states:  make(map[S]bool, len(states)),
		actions: make(map[A]bool, len(actions)),
		rules:   make(map[S]map[A]rule[S]),
	}
	for _, s := range states {
		m.states[s] = true
	}
	for _, a := range actions {
		m.actions[a] = true
	}
	return m
}

func (m *machine[S, A]) on(from S, a A, to S, parties ...Party) *machine[S, A] {
	if m.rules[from] == nil {
		m.rules[from] = make(map[A]rule[S])
	}
	m.rules[from][a] = rule[S]{to: to, parties: parties}
	return m
}

func (m *machine[S, A]) fail(from S, a A, p Party, err error) error {
	return &TransitionError{Entity: m.entity, From: string(from), Action: string(a), Party: p, Err: err}
}

func (m *machine[S, A]) next(from S, a A, p Party) (S, error) {
	var zero S
	if !m.states[from] {
		return zero, m.fail(from, a, p, ErrUnknownStatus)
	}
	if !m.actions[a] {
		return zero, m.fail(from, a, p, ErrUnknownAction)
	}
	r, ok := m.rules[from][a]
	if !ok {
		return zero, m.fail(from, a, p, ErrInvalidTransition)
	}
	if !r.allows(p) {
		return zero, m.fail(from, a, p, ErrNotPermitted)
	}
	return r.to, nil
}

// can reports whether any party could apply a from status.
func (m *machine[S, A]) can(from S, a A) bool {
	_, ok := m.rules[from][a]
	return ok
}

func (m *machine[S, A]) valid(s S) bool { return m.states[s] }
