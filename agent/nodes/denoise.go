package researchnode

import (
	"context"

	"github.com/rs/zerolog/log"

	contractx "github.com/warat-b/sitescope/agent/contract"
)

// Denoise folds the most recent findings into the draft and bumps the
// revision counter. With an empty history the node is a no-op so a run
// that never searched cannot fabricate a revision.
func Denoise(ctx context.Context, in *GraphState, denoiser contractx.TextGenerator, budgets contractx.Budgets) (*GraphState, error) {
	if in == nil || in.State == nil {
		return nil, ErrNilGraphState
	}
	if len(in.State.SearchHistory) == 0 {
		return in, nil
	}

	window := budgets.DenoiseWindow
	if window <= 0 {
		window = 3
	}

	draft, err := denoiser.Generate(ctx, map[string]any{
		"draft":  contractx.Clip(in.State.Draft, budgets.DenoiseDraft),
		"latest": in.State.SearchContext(window),
	})
	if err != nil {
		return nil, err
	}

	in.State.UpdateDraft(draft)
	log.Info().Int("revision", in.State.RevisionCount).Msg("draft denoised")
	return in, nil
}
