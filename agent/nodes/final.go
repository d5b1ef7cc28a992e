package researchnode

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	contractx "github.com/warat-b/sitescope/agent/contract"
)

// FinalReport produces the terminal report from the accumulated history and
// the current draft. It runs exactly once per graph invocation.
func FinalReport(ctx context.Context, in *GraphState, writer contractx.TextGenerator, budgets contractx.Budgets) (*GraphState, error) {
	if in == nil || in.State == nil {
		return nil, ErrNilGraphState
	}

	report, err := writer.Generate(ctx, map[string]any{
		"address":  in.State.Query,
		"brief":    briefOrDefault(in.State.Brief),
		"research": contractx.Clip(in.State.SearchContext(0), budgets.FinalHistory),
		"draft":    contractx.Clip(in.State.Draft, budgets.FinalDraft),
	})
	if err != nil {
		return nil, err
	}

	if err := in.State.SetFinalReport(report); err != nil {
		return nil, err
	}

	in.State.Metadata["steps"] = in.Steps
	in.State.Metadata["duration"] = time.Since(in.StartedAt).Round(time.Millisecond).String()

	log.Info().Int("chars", len(report)).Int("steps", in.Steps).Msg("final report generated")
	return in, nil
}

// Emit is the terminal node: it hands the finished state to the caller.
func Emit(in *GraphState) (GraphOutput, error) {
	if in == nil || in.State == nil {
		return GraphOutput{}, ErrNilGraphState
	}
	return GraphOutput{State: in.State}, nil
}
