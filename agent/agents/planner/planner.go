// Package planner turns a property query into a structured research plan.
package planner

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/rs/zerolog/log"

	contractx "github.com/warat-b/sitescope/agent/contract"
	llmx "github.com/warat-b/sitescope/agent/llm"
	promptx "github.com/warat-b/sitescope/agent/prompt"
)

type Planner struct {
	gen contractx.TextGenerator
}

var _ contractx.Planner = (*Planner)(nil)

func New(ctx context.Context, chatModel einomodel.BaseChatModel, systemPrompt string) (*Planner, error) {
	gen, err := llmx.NewTextGenerator(ctx, chatModel, systemPrompt, promptx.PlannerUser, "planner.plan_graph")
	if err != nil {
		return nil, err
	}
	return &Planner{gen: gen}, nil
}

// GeneratePlan asks the model for a plan and degrades gracefully on
// malformed output: direct JSON parse, then outermost-brace extraction,
// then a single default section carrying the verbatim query. Only a failed
// model call surfaces as an error.
func (p *Planner) GeneratePlan(ctx context.Context, query, brief string) (contractx.ResearchPlan, error) {
	fullQuery := "Address: " + query
	if strings.TrimSpace(brief) != "" {
		fullQuery += "\nBrief: " + brief
	}

	reply, err := p.gen.Generate(ctx, map[string]any{"query": fullQuery})
	if err != nil {
		return contractx.ResearchPlan{}, err
	}

	plan, err := parsePlan(reply)
	if err != nil {
		log.Warn().Err(err).Msg("plan output not parseable, using default plan")
		return contractx.DefaultPlan(query), nil
	}
	if len(plan.Sections) == 0 {
		return contractx.DefaultPlan(query), nil
	}
	return plan, nil
}

func parsePlan(reply string) (contractx.ResearchPlan, error) {
	var plan contractx.ResearchPlan
	if err := json.Unmarshal([]byte(reply), &plan); err == nil {
		return plan, nil
	}

	start := strings.Index(reply, "{")
	end := strings.LastIndex(reply, "}")
	if start == -1 || end <= start {
		return contractx.ResearchPlan{}, fmt.Errorf("%w: no json object in plan reply", contractx.ErrSchemaViolation)
	}
	if err := json.Unmarshal([]byte(reply[start:end+1]), &plan); err != nil {
		return contractx.ResearchPlan{}, fmt.Errorf("%w: extracted plan object: %v", contractx.ErrSchemaViolation, err)
	}
	return plan, nil
}
