package contract

import (
	"fmt"
	"strings"
)

// Role selects per-stage model overrides.
type Role string

const (
	RolePlanner    Role = "planner"
	RoleResearcher Role = "researcher"
	RoleEvaluator  Role = "evaluator"
	RoleWriter     Role = "writer"
)

// ResearchPlan is produced once by the planner and read-only afterwards.
type ResearchPlan struct {
	Sections []PlanSection `json:"sections"`
}

type PlanSection struct {
	Title     string   `json:"title"`
	Questions []string `json:"questions"`
}

// DefaultPlan is the fallback when the planner output cannot be parsed:
// a single section whose only question is the verbatim query.
func DefaultPlan(query string) ResearchPlan {
	return ResearchPlan{
		Sections: []PlanSection{
			{Title: "General Research", Questions: []string{query}},
		},
	}
}

// Format renders the plan as a numbered outline with up to three seed
// questions per section, suitable for prompt context.
func (p ResearchPlan) Format() string {
	var b strings.Builder
	for i, section := range p.Sections {
		title := section.Title
		if strings.TrimSpace(title) == "" {
			title = "Section"
		}
		fmt.Fprintf(&b, "%d. %s\n", i+1, title)
		questions := section.Questions
		if len(questions) > 3 {
			questions = questions[:3]
		}
		for _, q := range questions {
			fmt.Fprintf(&b, "   - %s\n", q)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// WebResult is one web-search hit.
type WebResult struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Content string `json:"content"`
}

// Document is one retrieved knowledge-base chunk.
type Document struct {
	Content  string           `json:"content"`
	Metadata DocumentMetadata `json:"metadata"`
	Score    float64          `json:"score"`
}

type DocumentMetadata struct {
	Source   string `json:"source"`
	Name     string `json:"name"`
	Provider string `json:"provider,omitempty"`
	Notes    string `json:"notes,omitempty"`
}

// Evaluation is a judge verdict on a piece of generated text.
type Evaluation struct {
	Score    float64 `json:"score"`
	Feedback string  `json:"feedback"`
}

// Budgets centralizes every context-window truncation limit and history
// window used by the research loop. Character budgets of 0 mean untruncated.
type Budgets struct {
	// HistoryWindow is how many prior questions the question-generation
	// step sees, most recent first.
	HistoryWindow int
	// DraftSnapshot bounds the draft excerpt shown to question generation.
	DraftSnapshot int
	// WebContext bounds the combined web-search context per synthesis call.
	WebContext int
	// KBSnippet bounds each retrieved document's excerpt.
	KBSnippet int
	// KBContext bounds the combined knowledge-base context per synthesis call.
	KBContext int
	// DenoiseWindow is how many of the most recent results a denoise pass merges.
	DenoiseWindow int
	// DenoiseDraft bounds the draft excerpt shown to a denoise pass.
	DenoiseDraft int
	// FinalHistory bounds the search history given to the final report call.
	FinalHistory int
	// FinalDraft bounds the draft given to the final report call.
	FinalDraft int
}

func DefaultBudgets() Budgets {
	return Budgets{
		HistoryWindow: 5,
		DraftSnapshot: 500,
		WebContext:    2000,
		KBSnippet:     300,
		KBContext:     1000,
		DenoiseWindow: 3,
	}
}

// Clip truncates s to at most n runes; n <= 0 leaves s untouched.
func Clip(s string, n int) string {
	if n <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
