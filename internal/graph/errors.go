package graph

import (
	"errors"
	"fmt"
)

// ErrEmptyUtterance is returned when a turn is started without user text.
var ErrEmptyUtterance = errors.New("empty user message")

// ProtocolError reports a tool call the workflow cannot honor: a tool the
// active agent was not offered, or a call whose id cannot be correlated with
// a result. It aborts the turn.
type ProtocolError struct {
	Agent  string
	Tool   string
	CallID string
	Reason string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("protocol violation by %s agent (tool %q, call %q): %s", e.Agent, e.Tool, e.CallID, e.Reason)
}
