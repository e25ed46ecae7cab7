// Package issue holds the workflow domain: status lifecycle, severity
// levels, and the legal transition graph. Pure values, no I/O.
package issue

import (
	"fmt"
	"strings"
)

// Status is an issue's position in the workflow.
type Status string

const (
	StatusOpen       Status = "OPEN"
	StatusTriaged    Status = "TRIAGED"
	StatusInProgress Status = "IN_PROGRESS"
	StatusDone       Status = "DONE"
)

// InitialStatus is the status every issue is created with.
const InitialStatus = StatusOpen

// Statuses lists all workflow states in lifecycle order.
func Statuses() []Status {
	return []Status{StatusOpen, StatusTriaged, StatusInProgress, StatusDone}
}

func (s Status) Valid() bool {
	switch s {
	case StatusOpen, StatusTriaged, StatusInProgress, StatusDone:
		return true
	}
	return false
}

func (s Status) String() string { return string(s) }

// ParseStatus accepts the canonical form case-insensitively.
func ParseStatus(raw string) (Status, error) {
	candidate := Status(strings.ToUpper(strings.TrimSpace(raw)))
	if !candidate.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownStatus, raw)
	}
	return candidate, nil
}

// transitions is the complete legal edge set. Done is not terminal:
// rework reopens it to InProgress.
var transitions = map[Status][]Status{
	StatusOpen:       {StatusTriaged},
	StatusTriaged:    {StatusInProgress, StatusOpen},
	StatusInProgress: {StatusDone, StatusTriaged},
	StatusDone:       {StatusInProgress},
}

// NextStatuses returns the statuses reachable from s in one step.
func NextStatuses(s Status) []Status {
	allowed := transitions[s]
	out := make([]Status, len(allowed))
	copy(out, allowed)
	return out
}

// CanTransition reports whether from -> to is a legal edge.
func CanTransition(from, to Status) bool {
	for _, allowed := range transitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// Transition validates from -> to and returns the previous status so the
// caller can record old -> new in the history ledger. The state is not
// mutated on failure.
func Transition(from, to Status) (Status, error) {
	if !from.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownStatus, from)
	}
	if !to.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownStatus, to)
	}
	if !CanTransition(from, to) {
		return "", fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	return from, nil
}
