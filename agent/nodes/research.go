package researchnode

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	contractx "github.com/warat-b/sitescope/agent/contract"
)

// ResearchDeps are the collaborators of one research iteration. Retriever
// and Evolver may be nil; the step degrades accordingly.
type ResearchDeps struct {
	Searcher    contractx.Searcher
	Retriever   contractx.Retriever
	Synthesizer contractx.TextGenerator
	Evolver     contractx.Evolver

	Budgets          contractx.Budgets
	EvolutionCadence int
	RetrievalTopK    int
}

// Research answers the pending question: web search plus best-effort
// knowledge-base retrieval, one synthesis call, conditional self-evolution,
// then the result is appended to the history and the step counter advances.
func Research(ctx context.Context, in *GraphState, deps ResearchDeps) (*GraphState, error) {
	if in == nil || in.State == nil {
		return nil, ErrNilGraphState
	}
	if strings.TrimSpace(in.Question) == "" {
		return nil, fmt.Errorf("%w: research step without a question", contractx.ErrValidation)
	}

	results, err := deps.Searcher.Search(ctx, in.Question)
	if err != nil {
		return nil, err
	}

	// Retrieval is independent of search; failures degrade to search-only.
	var docs []contractx.Document
	if deps.Retriever != nil {
		docs, err = deps.Retriever.Retrieve(ctx, in.Question, deps.RetrievalTopK)
		if err != nil {
			log.Warn().Err(err).Msg("knowledge-base retrieval failed, continuing with web results only")
			docs = nil
		}
	}

	answer, err := deps.Synthesizer.Generate(ctx, map[string]any{
		"question": in.Question,
		"web":      webContext(results, deps.Budgets),
		"kb":       kbContext(docs, deps.Budgets),
	})
	if err != nil {
		return nil, err
	}

	if deps.Evolver != nil && evolveThisStep(in.Steps, deps.EvolutionCadence) {
		log.Info().Int("step", in.Steps+1).Msg("running self-evolution")
		answer, err = deps.Evolver.EvolveAnswer(ctx, in.Question, answer)
		if err != nil {
			return nil, err
		}
	}

	in.State.AddSearchResult(in.Question, answer, collectSources(results, docs))
	in.Steps++
	in.Question = ""

	log.Info().Int("step", in.Steps).Str("answer", contractx.Clip(answer, 80)).Msg("research step complete")
	return in, nil
}

func evolveThisStep(step, cadence int) bool {
	if cadence <= 0 {
		cadence = 3
	}
	return step%cadence == 0
}

func webContext(results []contractx.WebResult, budgets contractx.Budgets) string {
	if len(results) == 0 {
		return "No web results"
	}
	blocks := make([]string, 0, len(results))
	for _, r := range results {
		blocks = append(blocks, fmt.Sprintf("[%s] (%s)\n%s", r.Title, r.URL, r.Content))
	}
	return contractx.Clip(strings.Join(blocks, "\n\n"), budgets.WebContext)
}

func kbContext(docs []contractx.Document, budgets contractx.Budgets) string {
	if len(docs) == 0 {
		return "N/A"
	}
	blocks := make([]string, 0, len(docs))
	for _, d := range docs {
		blocks = append(blocks, fmt.Sprintf("[%s]\n%s", d.Metadata.Name, contractx.Clip(d.Content, budgets.KBSnippet)))
	}
	return contractx.Clip(strings.Join(blocks, "\n\n"), budgets.KBContext)
}

func collectSources(results []contractx.WebResult, docs []contractx.Document) []string {
	sources := make([]string, 0, len(results)+len(docs))
	for _, r := range results {
		if r.URL != "" {
			sources = append(sources, r.URL)
		}
	}
	for _, d := range docs {
		if d.Metadata.Name != "" {
			sources = append(sources, d.Metadata.Name)
		}
	}
	return sources
}
