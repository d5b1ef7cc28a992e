package contract

import "context"

// Planner produces the research plan. Malformed model output degrades to
// DefaultPlan inside the implementation; only transport failures surface.
type Planner interface {
	GeneratePlan(ctx context.Context, query, brief string) (ResearchPlan, error)
}

// Searcher is the web-search collaborator.
type Searcher interface {
	Search(ctx context.Context, query string) ([]WebResult, error)
}

// Retriever is the optional knowledge-base collaborator.
type Retriever interface {
	Retrieve(ctx context.Context, query string, topK int) ([]Document, error)
}

// Evaluator is the LLM-as-judge scoring function.
type Evaluator interface {
	EvaluateAnswer(ctx context.Context, question, answer string) (Evaluation, error)
	EvaluateReport(ctx context.Context, query, report string) (Evaluation, error)
}

// Evolver improves an answer through multi-candidate generation and
// judged revision.
type Evolver interface {
	EvolveAnswer(ctx context.Context, question, initial string) (string, error)
}

// TextGenerator is one compiled prompt-to-model pipeline. Vars fill the
// named slots of the pipeline's user template.
type TextGenerator interface {
	Generate(ctx context.Context, vars map[string]any) (string, error)
}
