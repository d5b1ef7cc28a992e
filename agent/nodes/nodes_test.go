package researchnode

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	contractx "github.com/warat-b/sitescope/agent/contract"
)

type genCall struct {
	vars map[string]any
}

type fakeGenerator struct {
	replies []string
	err     error
	calls   []genCall
}

func (f *fakeGenerator) Generate(ctx context.Context, vars map[string]any) (string, error) {
	f.calls = append(f.calls, genCall{vars: vars})
	if f.err != nil {
		return "", f.err
	}
	idx := len(f.calls) - 1
	if idx >= len(f.replies) {
		return "", fmt.Errorf("no fake reply left at call=%d", len(f.calls))
	}
	return f.replies[idx], nil
}

type fakeSearcher struct {
	results []contractx.WebResult
	err     error
	queries []string
}

func (f *fakeSearcher) Search(ctx context.Context, query string) ([]contractx.WebResult, error) {
	f.queries = append(f.queries, query)
	if f.err != nil {
		return nil, f.err
	}
	return f.results, nil
}

type fakeRetriever struct {
	docs []contractx.Document
	err  error
}

func (f *fakeRetriever) Retrieve(ctx context.Context, query string, topK int) ([]contractx.Document, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.docs, nil
}

type fakeEvolver struct {
	reply string
	err   error
	calls int
}

func (f *fakeEvolver) EvolveAnswer(ctx context.Context, question, initial string) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

func testGraphState(t *testing.T) *GraphState {
	t.Helper()
	in, err := Prepare(GraphInput{Address: "123 Main St", Brief: "duplex"}, time.Now)
	if err != nil {
		t.Fatalf("Prepare() error = %v", err)
	}
	return in
}

func TestPrepareRejectsBlankAddress(t *testing.T) {
	t.Parallel()

	_, err := Prepare(GraphInput{Address: "   "}, time.Now)
	if !errors.Is(err, ErrInvalidAddress) {
		t.Fatalf("expected ErrInvalidAddress, got %v", err)
	}
}

func TestPrepareSeedsState(t *testing.T) {
	t.Parallel()

	in, err := Prepare(GraphInput{Address: " 123 Main St ", Brief: "duplex"}, time.Now)
	if err != nil {
		t.Fatalf("Prepare() error = %v", err)
	}
	if in.State.Query != "123 Main St" {
		t.Fatalf("expected trimmed address, got %q", in.State.Query)
	}
	if _, ok := in.State.Metadata["started_at"]; !ok {
		t.Fatal("expected started_at metadata")
	}
	if in.Steps != 0 || in.Done {
		t.Fatalf("expected fresh loop state, got steps=%d done=%v", in.Steps, in.Done)
	}
}

func TestIsSentinel(t *testing.T) {
	t.Parallel()

	for _, reply := range []string{"DONE", "done", "  Done  "} {
		if !IsSentinel(reply) {
			t.Fatalf("expected %q to be the sentinel", reply)
		}
	}
	for _, reply := range []string{"", "Is the permit done yet?", "DONE.", "done deal"} {
		if IsSentinel(reply) {
			t.Fatalf("expected %q not to be the sentinel", reply)
		}
	}
}

func TestNextQuestionExhaustedBudgetSkipsModel(t *testing.T) {
	t.Parallel()

	gen := &fakeGenerator{replies: []string{"should not be asked"}}
	in := testGraphState(t)
	in.Steps = 5

	out, err := NextQuestion(context.Background(), in, gen, contractx.DefaultBudgets(), 5)
	if err != nil {
		t.Fatalf("NextQuestion() error = %v", err)
	}
	if !out.Done {
		t.Fatal("expected Done latched on exhausted budget")
	}
	if len(gen.calls) != 0 {
		t.Fatalf("generator must not be called past the budget, got %d calls", len(gen.calls))
	}
}

func TestNextQuestionSentinelLatchesDone(t *testing.T) {
	t.Parallel()

	gen := &fakeGenerator{replies: []string{"done"}}
	in := testGraphState(t)

	out, err := NextQuestion(context.Background(), in, gen, contractx.DefaultBudgets(), 10)
	if err != nil {
		t.Fatalf("NextQuestion() error = %v", err)
	}
	if !out.Done || out.Question != "" {
		t.Fatalf("expected Done with no question, got done=%v question=%q", out.Done, out.Question)
	}
}

func TestNextQuestionSetsQuestion(t *testing.T) {
	t.Parallel()

	gen := &fakeGenerator{replies: []string{"What is the zoning district?"}}
	in := testGraphState(t)
	in.State.AddSearchResult("earlier question", "earlier answer", nil)

	out, err := NextQuestion(context.Background(), in, gen, contractx.DefaultBudgets(), 10)
	if err != nil {
		t.Fatalf("NextQuestion() error = %v", err)
	}
	if out.Done {
		t.Fatal("expected loop to continue")
	}
	if out.Question != "What is the zoning district?" {
		t.Fatalf("unexpected question: %q", out.Question)
	}

	previous, _ := gen.calls[0].vars["previous"].(string)
	if !strings.Contains(previous, "earlier question") {
		t.Fatalf("expected history in prompt vars, got %q", previous)
	}
}

func TestResearchRequiresQuestion(t *testing.T) {
	t.Parallel()

	in := testGraphState(t)
	_, err := Research(context.Background(), in, ResearchDeps{
		Searcher:    &fakeSearcher{},
		Synthesizer: &fakeGenerator{},
	})
	if !errors.Is(err, contractx.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestResearchSearchErrorPropagates(t *testing.T) {
	t.Parallel()

	searchErr := errors.New("search down")
	in := testGraphState(t)
	in.Question = "What is the zoning?"

	_, err := Research(context.Background(), in, ResearchDeps{
		Searcher:    &fakeSearcher{err: searchErr},
		Synthesizer: &fakeGenerator{},
	})
	if !errors.Is(err, searchErr) {
		t.Fatalf("expected search error, got %v", err)
	}
}

func TestResearchRetrievalFailureDegrades(t *testing.T) {
	t.Parallel()

	in := testGraphState(t)
	in.Question = "What is the zoning?"
	synth := &fakeGenerator{replies: []string{"synthesized answer"}}

	out, err := Research(context.Background(), in, ResearchDeps{
		Searcher:    &fakeSearcher{results: []contractx.WebResult{{Title: "t", URL: "https://ex.com", Content: "c"}}},
		Retriever:   &fakeRetriever{err: errors.New("index corrupt")},
		Synthesizer: synth,
		Budgets:     contractx.DefaultBudgets(),
	})
	if err != nil {
		t.Fatalf("Research() error = %v", err)
	}
	if len(out.State.SearchHistory) != 1 {
		t.Fatalf("expected one history entry, got %d", len(out.State.SearchHistory))
	}
	kb, _ := synth.calls[0].vars["kb"].(string)
	if kb != "N/A" {
		t.Fatalf("expected empty knowledge-base context after retrieval failure, got %q", kb)
	}
}

func TestResearchAdvancesStepAndClearsQuestion(t *testing.T) {
	t.Parallel()

	in := testGraphState(t)
	in.Question = "What is the zoning?"

	out, err := Research(context.Background(), in, ResearchDeps{
		Searcher: &fakeSearcher{results: []contractx.WebResult{{Title: "t", URL: "https://ex.com/a", Content: "c"}}},
		Retriever: &fakeRetriever{docs: []contractx.Document{
			{Content: "chunk", Metadata: contractx.DocumentMetadata{Name: "zoning-guide"}},
		}},
		Synthesizer: &fakeGenerator{replies: []string{"synthesized answer"}},
		Budgets:     contractx.DefaultBudgets(),
	})
	if err != nil {
		t.Fatalf("Research() error = %v", err)
	}
	if out.Steps != 1 {
		t.Fatalf("expected step counter advanced, got %d", out.Steps)
	}
	if out.Question != "" {
		t.Fatalf("expected question cleared, got %q", out.Question)
	}

	result := out.State.SearchHistory[0]
	if result.Answer != "synthesized answer" {
		t.Fatalf("unexpected answer: %q", result.Answer)
	}
	if len(result.Sources) != 2 || result.Sources[0] != "https://ex.com/a" || result.Sources[1] != "zoning-guide" {
		t.Fatalf("unexpected sources: %#v", result.Sources)
	}
}

func TestResearchEvolutionCadence(t *testing.T) {
	t.Parallel()

	cases := []struct {
		step       int
		wantEvolve bool
	}{
		{0, true},
		{1, false},
		{2, false},
		{3, true},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(fmt.Sprintf("step_%d", tc.step), func(t *testing.T) {
			t.Parallel()

			evolver := &fakeEvolver{reply: "evolved answer"}
			in := testGraphState(t)
			in.Steps = tc.step
			in.Question = "What is the zoning?"

			out, err := Research(context.Background(), in, ResearchDeps{
				Searcher:         &fakeSearcher{},
				Synthesizer:      &fakeGenerator{replies: []string{"synthesized answer"}},
				Evolver:          evolver,
				EvolutionCadence: 3,
				Budgets:          contractx.DefaultBudgets(),
			})
			if err != nil {
				t.Fatalf("Research() error = %v", err)
			}

			wantCalls := 0
			wantAnswer := "synthesized answer"
			if tc.wantEvolve {
				wantCalls = 1
				wantAnswer = "evolved answer"
			}
			if evolver.calls != wantCalls {
				t.Fatalf("expected %d evolver calls at step %d, got %d", wantCalls, tc.step, evolver.calls)
			}
			last := out.State.SearchHistory[len(out.State.SearchHistory)-1]
			if last.Answer != wantAnswer {
				t.Fatalf("unexpected recorded answer: %q", last.Answer)
			}
		})
	}
}

func TestDenoiseNoHistoryIsNoop(t *testing.T) {
	t.Parallel()

	gen := &fakeGenerator{replies: []string{"should not run"}}
	in := testGraphState(t)
	in.State.Draft = "initial draft"

	out, err := Denoise(context.Background(), in, gen, contractx.DefaultBudgets())
	if err != nil {
		t.Fatalf("Denoise() error = %v", err)
	}
	if len(gen.calls) != 0 {
		t.Fatalf("denoiser must not run without history, got %d calls", len(gen.calls))
	}
	if out.State.RevisionCount != 0 {
		t.Fatalf("expected no revision, got %d", out.State.RevisionCount)
	}
}

func TestDenoiseUpdatesDraft(t *testing.T) {
	t.Parallel()

	gen := &fakeGenerator{replies: []string{"revised draft"}}
	in := testGraphState(t)
	in.State.Draft = "initial draft"
	in.State.AddSearchResult("q1", "a1", nil)

	out, err := Denoise(context.Background(), in, gen, contractx.DefaultBudgets())
	if err != nil {
		t.Fatalf("Denoise() error = %v", err)
	}
	if out.State.Draft != "revised draft" {
		t.Fatalf("unexpected draft: %q", out.State.Draft)
	}
	if out.State.RevisionCount != 1 {
		t.Fatalf("expected one revision, got %d", out.State.RevisionCount)
	}
}

func TestInitialDraftDoesNotCountAsRevision(t *testing.T) {
	t.Parallel()

	gen := &fakeGenerator{replies: []string{"seed draft"}}
	in := testGraphState(t)

	out, err := InitialDraft(context.Background(), in, gen)
	if err != nil {
		t.Fatalf("InitialDraft() error = %v", err)
	}
	if out.State.Draft != "seed draft" {
		t.Fatalf("unexpected draft: %q", out.State.Draft)
	}
	if out.State.RevisionCount != 0 {
		t.Fatalf("initial draft must not bump revisions, got %d", out.State.RevisionCount)
	}
}

func TestFinalReportSetsReportAndMetadata(t *testing.T) {
	t.Parallel()

	gen := &fakeGenerator{replies: []string{"# Report\n\nAll good."}}
	in := testGraphState(t)
	in.Steps = 4
	in.State.AddSearchResult("q1", "a1", nil)

	out, err := FinalReport(context.Background(), in, gen, contractx.DefaultBudgets())
	if err != nil {
		t.Fatalf("FinalReport() error = %v", err)
	}
	if out.State.FinalReport == "" {
		t.Fatal("expected final report set")
	}
	if out.State.Metadata["steps"] != 4 {
		t.Fatalf("unexpected steps metadata: %v", out.State.Metadata["steps"])
	}
	if _, ok := out.State.Metadata["duration"]; !ok {
		t.Fatal("expected duration metadata")
	}

	research, _ := gen.calls[0].vars["research"].(string)
	if !strings.Contains(research, "q1") {
		t.Fatalf("expected full history in writer vars, got %q", research)
	}
}

func TestEmit(t *testing.T) {
	t.Parallel()

	in := testGraphState(t)
	out, err := Emit(in)
	if err != nil {
		t.Fatalf("Emit() error = %v", err)
	}
	if out.State != in.State {
		t.Fatal("expected the same state instance emitted")
	}

	if _, err := Emit(nil); !errors.Is(err, ErrNilGraphState) {
		t.Fatalf("expected ErrNilGraphState, got %v", err)
	}
}
