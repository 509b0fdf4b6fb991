// Package state defines the lifecycle state enumeration and the persisted
// step-state store.
//
// A step advances along a fixed success path:
//
//	planned -> implemented -> implemented-checked -> implemented-tested ->
//	implemented-finalized -> implemented-committed
//
// A failed stage records a sibling error state, lifecycle-error-<n>, where n
// is the stage number that failed. Error states are not a step backward: a
// step in lifecycle-error-<n> is eligible for stage n again on the next run.
//
// Key types:
//   - [StepState] - the closed enumeration, including the error variant
//   - [Store] - pure in-memory mapping from step ID to state
//   - [FileStore] - a Store bound to a YAML file with atomic saves
package state

import (
	"fmt"
	"strconv"
	"strings"
)

// StepState is a lifecycle state value.
//
// The zero value is not valid; use [StatePlanned] for steps that have never
// advanced. Construct error states with [ErrorState] and parse free-form
// strings with [ParseState] - unknown values must never round-trip silently.
type StepState string

// Success-path states, in lifecycle order.
const (
	StatePlanned     StepState = "planned"
	StateImplemented StepState = "implemented"
	StateChecked     StepState = "implemented-checked"
	StateTested      StepState = "implemented-tested"
	StateFinalized   StepState = "implemented-finalized"
	StateCommitted   StepState = "implemented-committed"
)

// errorPrefix is the rendered prefix of the parameterized error variant.
const errorPrefix = "lifecycle-error-"

// MinStage and MaxStage bound the valid stage numbers.
const (
	MinStage = 1
	MaxStage = 5
)

// successOrder gives each success-path state its rank along the lifecycle.
var successOrder = map[StepState]int{
	StatePlanned:     0,
	StateImplemented: 1,
	StateChecked:     2,
	StateTested:      3,
	StateFinalized:   4,
	StateCommitted:   5,
}

// ErrorState returns the error state for the given stage number.
func ErrorState(stage int) StepState {
	return StepState(fmt.Sprintf("%s%d", errorPrefix, stage))
}

// ParseState parses a state string into a [StepState].
//
// Accepted values are the six success-path states and lifecycle-error-<n>
// for n in [MinStage, MaxStage]. Anything else is an error; plans and state
// files must not masquerade as further along than they are.
func ParseState(raw string) (StepState, error) {
	s := StepState(strings.TrimSpace(raw))
	if _, ok := successOrder[s]; ok {
		return s, nil
	}
	if stage, ok := errorStage(s); ok {
		if stage < MinStage || stage > MaxStage {
			return "", fmt.Errorf("invalid lifecycle error stage: %d", stage)
		}
		return s, nil
	}
	return "", fmt.Errorf("unknown step state: %q", raw)
}

func errorStage(s StepState) (int, bool) {
	rest, found := strings.CutPrefix(string(s), errorPrefix)
	if !found {
		return 0, false
	}
	stage, err := strconv.Atoi(rest)
	if err != nil {
		return 0, false
	}
	return stage, true
}

// IsValid reports whether s is a recognized state value.
func (s StepState) IsValid() bool {
	_, err := ParseState(string(s))
	return err == nil
}

// ErrorStage returns the failed stage number when s is an error state.
func (s StepState) ErrorStage() (int, bool) {
	stage, ok := errorStage(s)
	if !ok || stage < MinStage || stage > MaxStage {
		return 0, false
	}
	return stage, true
}

// Rank returns the state's position along the success path. Error states
// rank at their stage's precondition so mixed displays stay ordered.
func (s StepState) Rank() int {
	if r, ok := successOrder[s]; ok {
		return r
	}
	if stage, ok := s.ErrorStage(); ok {
		return stage - 1
	}
	return -1
}

// String returns the on-disk representation.
func (s StepState) String() string {
	return string(s)
}
