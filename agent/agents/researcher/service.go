// Package researcher drives the refine-and-converge research loop:
// plan, optional initial draft, then bounded search iterations with
// optional denoising, ending in one final report.
package researcher

import (
	"context"
	"errors"
	"time"

	"github.com/cloudwego/eino/compose"
	"github.com/rs/zerolog/log"

	contractx "github.com/warat-b/sitescope/agent/contract"
	researchnode "github.com/warat-b/sitescope/agent/nodes"
	statex "github.com/warat-b/sitescope/agent/state"
)

type Config struct {
	// MaxSteps bounds the number of research iterations; the loop always
	// terminates within MaxSteps regardless of model behavior.
	MaxSteps int
	// UseEvolution enables self-evolution on steps matching the cadence.
	UseEvolution bool
	// UseDiffusion enables the initial draft and the per-step denoise pass.
	UseDiffusion bool
	// EvolutionCadence: evolution runs on steps where step % cadence == 0.
	EvolutionCadence int
	// RetrievalTopK is passed to the knowledge-base retriever per question.
	RetrievalTopK int
	// ScoreReport runs the judge over the final report after the loop.
	ScoreReport bool

	Budgets contractx.Budgets
}

func (c Config) normalized() Config {
	if c.MaxSteps <= 0 {
		c.MaxSteps = 20
	}
	if c.EvolutionCadence <= 0 {
		c.EvolutionCadence = 3
	}
	if c.RetrievalTopK <= 0 {
		c.RetrievalTopK = 2
	}
	if c.Budgets == (contractx.Budgets{}) {
		c.Budgets = contractx.DefaultBudgets()
	}
	return c
}

// Deps are the researcher's collaborators. Retriever, Evolver and Evaluator
// are optional; the text generators back the individual loop stages.
type Deps struct {
	Planner   contractx.Planner
	Searcher  contractx.Searcher
	Retriever contractx.Retriever
	Evolver   contractx.Evolver
	Evaluator contractx.Evaluator

	Drafter     contractx.TextGenerator
	Questioner  contractx.TextGenerator
	Synthesizer contractx.TextGenerator
	Denoiser    contractx.TextGenerator
	Writer      contractx.TextGenerator
}

type Researcher struct {
	deps Deps
	cfg  Config

	graphRunner compose.Runnable[researchnode.GraphInput, researchnode.GraphOutput]

	now func() time.Time
}

func New(deps Deps, cfg Config) (*Researcher, error) {
	if deps.Planner == nil {
		return nil, errors.New("planner is required")
	}
	if deps.Searcher == nil {
		return nil, errors.New("searcher is required")
	}
	if deps.Questioner == nil || deps.Synthesizer == nil || deps.Writer == nil {
		return nil, errors.New("question, synthesis and report generators are required")
	}

	cfg = cfg.normalized()
	if cfg.UseDiffusion && (deps.Drafter == nil || deps.Denoiser == nil) {
		return nil, errors.New("diffusion requires draft and denoise generators")
	}
	if cfg.UseEvolution && deps.Evolver == nil {
		return nil, errors.New("evolution requires an evolver")
	}

	r := &Researcher{
		deps: deps,
		cfg:  cfg,
		now:  time.Now,
	}

	graphRunner, err := r.compileResearchGraph(context.Background())
	if err != nil {
		return nil, err
	}
	r.graphRunner = graphRunner

	return r, nil
}

// Run executes the whole pipeline for one property and returns the
// finished state. The state is owned by this single run; there are no
// concurrent writers.
func (r *Researcher) Run(ctx context.Context, address, brief string) (*statex.AgentState, error) {
	log.Info().Str("address", address).Int("max_steps", r.cfg.MaxSteps).
		Bool("evolution", r.cfg.UseEvolution).Bool("diffusion", r.cfg.UseDiffusion).
		Msg("starting research run")

	out, err := r.graphRunner.Invoke(ctx, researchnode.GraphInput{
		Address: address,
		Brief:   brief,
	})
	if err != nil {
		return nil, err
	}

	st := out.State
	if r.cfg.ScoreReport && r.deps.Evaluator != nil {
		eval, err := r.deps.Evaluator.EvaluateReport(ctx, st.Query, st.FinalReport)
		if err != nil {
			log.Warn().Err(err).Msg("report self-assessment failed")
		} else {
			st.Metadata["report_score"] = eval.Score
			st.Metadata["report_feedback"] = eval.Feedback
			log.Info().Float64("score", eval.Score).Msg("report self-assessment")
		}
	}

	return st, nil
}
