package researchnode

import (
	"context"

	"github.com/rs/zerolog/log"

	contractx "github.com/warat-b/sitescope/agent/contract"
)

// Plan runs the planner once; the plan is read-only afterwards.
func Plan(ctx context.Context, in *GraphState, planner contractx.Planner) (*GraphState, error) {
	if in == nil || in.State == nil {
		return nil, ErrNilGraphState
	}

	plan, err := planner.GeneratePlan(ctx, in.State.Query, in.State.Brief)
	if err != nil {
		return nil, err
	}

	in.State.Plan = plan
	log.Info().Int("sections", len(plan.Sections)).Msg("research plan generated")
	return in, nil
}
