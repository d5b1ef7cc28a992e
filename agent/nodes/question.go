package researchnode

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	contractx "github.com/warat-b/sitescope/agent/contract"
)

// NextQuestion asks the model for the next search question. The node
// latches Done without a model call when the step budget is already
// exhausted, and latches it on the completion sentinel, so the sentinel
// always exits the loop before any search call is issued for that step.
func NextQuestion(
	ctx context.Context,
	in *GraphState,
	questioner contractx.TextGenerator,
	budgets contractx.Budgets,
	maxSteps int,
) (*GraphState, error) {
	if in == nil || in.State == nil {
		return nil, ErrNilGraphState
	}

	if in.Steps >= maxSteps {
		in.Done = true
		in.Question = ""
		return in, nil
	}

	reply, err := questioner.Generate(ctx, map[string]any{
		"address":  in.State.Query,
		"plan":     in.State.Plan.Format(),
		"previous": formatPrevious(in.State.RecentQuestions(budgets.HistoryWindow)),
		"draft":    draftSnapshot(in.State.Draft, budgets.DraftSnapshot),
	})
	if err != nil {
		return nil, err
	}

	if reply == "" || IsSentinel(reply) {
		in.Done = true
		in.Question = ""
		log.Info().Int("steps", in.Steps).Msg("research complete")
		return in, nil
	}

	in.Question = reply
	log.Info().Int("step", in.Steps+1).Str("question", contractx.Clip(reply, 80)).Msg("next question")
	return in, nil
}

func formatPrevious(questions []string) string {
	if len(questions) == 0 {
		return "None"
	}
	lines := make([]string, 0, len(questions))
	for i, q := range questions {
		lines = append(lines, fmt.Sprintf("%d. %s", i+1, q))
	}
	return strings.Join(lines, "\n")
}

func draftSnapshot(draft string, budget int) string {
	if strings.TrimSpace(draft) == "" {
		return "No draft yet"
	}
	return contractx.Clip(draft, budget)
}
