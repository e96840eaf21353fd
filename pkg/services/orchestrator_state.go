package services

import "fmt"

// State is a step of the generate-validate loop.
type State int

const (
	StateInit State = iota
	StateGenerate
	StateExtract
	StateGround
	StateValidate
	StateAccept
	StateRetry
	StateFail
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "init"
	case StateGenerate:
		return "generate"
	case StateExtract:
		return "extract"
	case StateGround:
		return "ground"
	case StateValidate:
		return "validate"
	case StateAccept:
		return "accept"
	case StateRetry:
		return "retry"
	case StateFail:
		return "fail"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Terminal reports whether the loop stops in s.
func (s State) Terminal() bool {
	return s == StateAccept || s == StateFail
}

// Event is the outcome of the work done in a state.
type Event int

const (
	EventSchemaLoaded Event = iota
	EventSchemaFailed
	EventGenerated
	EventModelRejected
	EventModelUnreachable
	EventExtracted
	EventNoSQL
	EventGrounded
	EventValid
	EventInvalid
	EventAttemptsLeft
	EventAttemptsExhausted
)

func (e Event) String() string {
	switch e {
	case EventSchemaLoaded:
		return "schema_loaded"
	case EventSchemaFailed:
		return "schema_failed"
	case EventGenerated:
		return "generated"
	case EventModelRejected:
		return "model_rejected"
	case EventModelUnreachable:
		return "model_unreachable"
	case EventExtracted:
		return "extracted"
	case EventNoSQL:
		return "no_sql"
	case EventGrounded:
		return "grounded"
	case EventValid:
		return "valid"
	case EventInvalid:
		return "invalid"
	case EventAttemptsLeft:
		return "attempts_left"
	case EventAttemptsExhausted:
		return "attempts_exhausted"
	default:
		return fmt.Sprintf("event(%d)", int(e))
	}
}

type stateEvent struct {
	state State
	event Event
}

var transitions = map[stateEvent]State{
	{StateInit, EventSchemaLoaded}:         StateGenerate,
	{StateInit, EventSchemaFailed}:         StateFail,
	{StateGenerate, EventGenerated}:        StateExtract,
	{StateGenerate, EventModelRejected}:    StateRetry,
	{StateGenerate, EventModelUnreachable}: StateFail,
	{StateExtract, EventExtracted}:         StateGround,
	{StateExtract, EventNoSQL}:             StateRetry,
	{StateGround, EventGrounded}:           StateValidate,
	{StateValidate, EventValid}:            StateAccept,
	{StateValidate, EventInvalid}:          StateRetry,
	{StateRetry, EventAttemptsLeft}:        StateGenerate,
	{StateRetry, EventAttemptsExhausted}:   StateFail,
}

// transition is the loop's state table. It has no side effects.
func transition(s State, e Event) (State, error) {
	next, ok := transitions[stateEvent{s, e}]
	if !ok {
		return s, fmt.Errorf("invalid transition: %s on %s", s, e)
	}
	return next, nil
}
