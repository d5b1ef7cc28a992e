package researchnode

import (
	"context"

	"github.com/rs/zerolog/log"

	contractx "github.com/warat-b/sitescope/agent/contract"
)

// InitialDraft seeds the draft from model-internal knowledge before any
// search happens. It does not bump the revision counter; only denoise
// passes count as revisions.
func InitialDraft(ctx context.Context, in *GraphState, drafter contractx.TextGenerator) (*GraphState, error) {
	if in == nil || in.State == nil {
		return nil, ErrNilGraphState
	}

	draft, err := drafter.Generate(ctx, map[string]any{
		"address": in.State.Query,
		"brief":   briefOrDefault(in.State.Brief),
		"plan":    in.State.Plan.Format(),
	})
	if err != nil {
		return nil, err
	}

	in.State.Draft = draft
	log.Info().Int("chars", len(draft)).Msg("initial draft generated")
	return in, nil
}

func briefOrDefault(brief string) string {
	if brief == "" {
		return "General feasibility assessment"
	}
	return brief
}
