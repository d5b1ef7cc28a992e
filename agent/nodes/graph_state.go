// Package researchnode holds the node functions of the research graph.
package researchnode

import (
	"errors"
	"strings"
	"time"

	statex "github.com/warat-b/sitescope/agent/state"
)

var (
	ErrInvalidAddress = errors.New("address is empty")
	ErrNilGraphState  = errors.New("graph state is nil")
)

// CompletionSentinel is the literal token the question step returns to
// signal that research is complete.
const CompletionSentinel = "DONE"

// IsSentinel reports whether a trimmed model reply equals the completion
// sentinel, case-insensitively. Substring matching is deliberately not
// used: a real question containing "done" must not end the run.
func IsSentinel(reply string) bool {
	return strings.EqualFold(strings.TrimSpace(reply), CompletionSentinel)
}

type GraphInput struct {
	Address string
	Brief   string
}

type GraphOutput struct {
	State *statex.AgentState
}

// GraphState flows through every node of the research graph. Steps counts
// completed research iterations; Done is latched by the question node when
// the sentinel appears or the budget is exhausted.
type GraphState struct {
	State *statex.AgentState

	Question string
	Steps    int
	Done     bool

	StartedAt time.Time
}

// Prepare validates the request and seeds the run state.
func Prepare(in GraphInput, nowFn func() time.Time) (*GraphState, error) {
	address := strings.TrimSpace(in.Address)
	if address == "" {
		return nil, ErrInvalidAddress
	}

	startedAt := nowFn().UTC()
	st := statex.New(address, in.Brief)
	st.Metadata["started_at"] = startedAt.Format(time.RFC3339)

	return &GraphState{
		State:     st,
		StartedAt: startedAt,
	}, nil
}
