package researcher

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/compose"

	researchnode "github.com/warat-b/sitescope/agent/nodes"
)

// compileResearchGraph builds the cyclic control graph:
//
//	START → prepare → plan → [initial_draft] → next_question
//	next_question → (done ? final_report : research)
//	research → [denoise] → (budget exhausted ? final_report : next_question)
//	final_report → emit → END
//
// The bracketed nodes exist only when diffusion is enabled; that choice is
// fixed per run, so it is wired as edges rather than a branch. The two
// dynamic decision points are the sentinel/budget check after question
// generation and the budget check that closes the loop.
func (r *Researcher) compileResearchGraph(
	ctx context.Context,
) (compose.Runnable[researchnode.GraphInput, researchnode.GraphOutput], error) {
	graph := compose.NewGraph[researchnode.GraphInput, researchnode.GraphOutput]()

	if err := graph.AddLambdaNode("prepare",
		compose.InvokableLambda(func(ctx context.Context, in researchnode.GraphInput) (*researchnode.GraphState, error) {
			return researchnode.Prepare(in, r.now)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node prepare: %w", err)
	}

	if err := graph.AddLambdaNode("plan",
		compose.InvokableLambda(func(ctx context.Context, in *researchnode.GraphState) (*researchnode.GraphState, error) {
			return researchnode.Plan(ctx, in, r.deps.Planner)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node plan: %w", err)
	}

	if r.cfg.UseDiffusion {
		if err := graph.AddLambdaNode("initial_draft",
			compose.InvokableLambda(func(ctx context.Context, in *researchnode.GraphState) (*researchnode.GraphState, error) {
				return researchnode.InitialDraft(ctx, in, r.deps.Drafter)
			}),
		); err != nil {
			return nil, fmt.Errorf("add node initial_draft: %w", err)
		}
	}

	if err := graph.AddLambdaNode("next_question",
		compose.InvokableLambda(func(ctx context.Context, in *researchnode.GraphState) (*researchnode.GraphState, error) {
			return researchnode.NextQuestion(ctx, in, r.deps.Questioner, r.cfg.Budgets, r.cfg.MaxSteps)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node next_question: %w", err)
	}

	researchDeps := researchnode.ResearchDeps{
		Searcher:         r.deps.Searcher,
		Retriever:        r.deps.Retriever,
		Synthesizer:      r.deps.Synthesizer,
		Budgets:          r.cfg.Budgets,
		EvolutionCadence: r.cfg.EvolutionCadence,
		RetrievalTopK:    r.cfg.RetrievalTopK,
	}
	if r.cfg.UseEvolution {
		researchDeps.Evolver = r.deps.Evolver
	}

	if err := graph.AddLambdaNode("research",
		compose.InvokableLambda(func(ctx context.Context, in *researchnode.GraphState) (*researchnode.GraphState, error) {
			return researchnode.Research(ctx, in, researchDeps)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node research: %w", err)
	}

	if r.cfg.UseDiffusion {
		if err := graph.AddLambdaNode("denoise",
			compose.InvokableLambda(func(ctx context.Context, in *researchnode.GraphState) (*researchnode.GraphState, error) {
				return researchnode.Denoise(ctx, in, r.deps.Denoiser, r.cfg.Budgets)
			}),
		); err != nil {
			return nil, fmt.Errorf("add node denoise: %w", err)
		}
	}

	if err := graph.AddLambdaNode("final_report",
		compose.InvokableLambda(func(ctx context.Context, in *researchnode.GraphState) (*researchnode.GraphState, error) {
			return researchnode.FinalReport(ctx, in, r.deps.Writer, r.cfg.Budgets)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node final_report: %w", err)
	}

	if err := graph.AddLambdaNode("emit",
		compose.InvokableLambda(func(ctx context.Context, in *researchnode.GraphState) (researchnode.GraphOutput, error) {
			return researchnode.Emit(in)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node emit: %w", err)
	}

	edges := [][2]string{
		{compose.START, "prepare"},
		{"prepare", "plan"},
		{"final_report", "emit"},
		{"emit", compose.END},
	}
	if r.cfg.UseDiffusion {
		edges = append(edges,
			[2]string{"plan", "initial_draft"},
			[2]string{"initial_draft", "next_question"},
			[2]string{"research", "denoise"},
		)
	} else {
		edges = append(edges, [2]string{"plan", "next_question"})
	}
	for _, edge := range edges {
		if err := graph.AddEdge(edge[0], edge[1]); err != nil {
			return nil, fmt.Errorf("add edge %s->%s: %w", edge[0], edge[1], err)
		}
	}

	questionBranch := compose.NewGraphBranch(
		func(ctx context.Context, in *researchnode.GraphState) (string, error) {
			if in == nil {
				return "", researchnode.ErrNilGraphState
			}
			if in.Done {
				return "final_report", nil
			}
			return "research", nil
		},
		map[string]bool{
			"research":     true,
			"final_report": true,
		},
	)
	if err := graph.AddBranch("next_question", questionBranch); err != nil {
		return nil, fmt.Errorf("add question branch: %w", err)
	}

	loopBranch := compose.NewGraphBranch(
		func(ctx context.Context, in *researchnode.GraphState) (string, error) {
			if in == nil {
				return "", researchnode.ErrNilGraphState
			}
			if in.Steps >= r.cfg.MaxSteps {
				return "final_report", nil
			}
			return "next_question", nil
		},
		map[string]bool{
			"next_question": true,
			"final_report":  true,
		},
	)
	loopFrom := "research"
	if r.cfg.UseDiffusion {
		loopFrom = "denoise"
	}
	if err := graph.AddBranch(loopFrom, loopBranch); err != nil {
		return nil, fmt.Errorf("add loop branch: %w", err)
	}

	// The engine-level step cap only backstops the cyclic topology; the
	// real bound is the MaxSteps check in the loop branch.
	maxRunSteps := r.cfg.MaxSteps*4 + 16

	runner, err := graph.Compile(ctx,
		compose.WithGraphName("researcher.run_graph"),
		compose.WithNodeTriggerMode(compose.AnyPredecessor),
		compose.WithMaxRunSteps(maxRunSteps),
	)
	if err != nil {
		return nil, fmt.Errorf("compile research graph: %w", err)
	}
	return runner, nil
}
