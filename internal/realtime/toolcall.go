package realtime

import "strings"

// ToolCall is a completed function call from the model.
type ToolCall struct {
	CallID    string
	Name      string
	Arguments string
}

// toolCallAccumulator concatenates argument deltas for one call id at a time.
// A delta or done for a different id discards what was collected.
type toolCallAccumulator struct {
	callID string
	name   string
	args   strings.Builder
}

func (a *toolCallAccumulator) reset(callID string) {
	a.callID = callID
	a.name = ""
	a.args.Reset()
}

// Start records the call name announced before any deltas.
func (a *toolCallAccumulator) Start(callID, name string) {
	if callID != a.callID {
		a.reset(callID)
	}
	if name != "" {
		a.name = name
	}
}

// Delta appends an argument fragment in arrival order.
func (a *toolCallAccumulator) Delta(callID, delta string) {
	if callID != a.callID {
		a.reset(callID)
	}
	a.args.WriteString(delta)
}

// Done finishes the call. Non-empty name and arguments from the terminal
// message take precedence over what was accumulated.
func (a *toolCallAccumulator) Done(callID, name, arguments string) ToolCall {
	if callID != a.callID {
		a.reset(callID)
	}
	call := ToolCall{CallID: callID, Name: a.name, Arguments: a.args.String()}
	if name != "" {
		call.Name = name
	}
	if arguments != "" {
		call.Arguments = arguments
	}
	a.reset("")
	return call
}

// Pending returns the arguments collected so far for the active call.
func (a *toolCallAccumulator) Pending() (callID, args string) {
	return a.callID, a.args.String()
}
