// Package state holds the mutable aggregate a research run writes into.
package state

import (
	"fmt"
	"strings"
	"time"

	contractx "github.com/warat-b/sitescope/agent/contract"
)

// SearchResult is one completed question/answer step. Immutable once
// appended to the history.
type SearchResult struct {
	Question  string    `json:"question"`
	Answer    string    `json:"answer"`
	Sources   []string  `json:"sources,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Score     float64   `json:"score"`
}

// AgentState is the aggregate root for one research run. Exactly one graph
// run mutates it; there are no concurrent writers.
type AgentState struct {
	Query         string                 `json:"query"`
	Brief         string                 `json:"brief,omitempty"`
	Plan          contractx.ResearchPlan `json:"plan"`
	SearchHistory []SearchResult         `json:"search_history"`
	Draft         string                 `json:"draft_report"`
	RevisionCount int                    `json:"revision_count"`
	FinalReport   string                 `json:"final_report"`
	Metadata      map[string]any         `json:"metadata,omitempty"`
}

func New(query, brief string) *AgentState {
	return &AgentState{
		Query:    strings.TrimSpace(query),
		Brief:    strings.TrimSpace(brief),
		Metadata: map[string]any{},
	}
}

// AddSearchResult appends to the history; insertion order is chronological.
func (s *AgentState) AddSearchResult(question, answer string, sources []string) {
	s.SearchHistory = append(s.SearchHistory, SearchResult{
		Question:  question,
		Answer:    answer,
		Sources:   sources,
		Timestamp: time.Now().UTC(),
	})
}

// RecentQuestions returns up to n prior questions, most recent first.
func (s *AgentState) RecentQuestions(n int) []string {
	if n <= 0 || len(s.SearchHistory) == 0 {
		return nil
	}
	start := len(s.SearchHistory) - n
	if start < 0 {
		start = 0
	}
	recent := s.SearchHistory[start:]
	questions := make([]string, 0, len(recent))
	for i := len(recent) - 1; i >= 0; i-- {
		questions = append(questions, recent[i].Question)
	}
	return questions
}

// SearchContext renders the last n results as question/answer blocks.
// n <= 0 renders the whole history.
func (s *AgentState) SearchContext(n int) string {
	results := s.SearchHistory
	if n > 0 && len(results) > n {
		results = results[len(results)-n:]
	}
	blocks := make([]string, 0, len(results))
	for i, r := range results {
		blocks = append(blocks, fmt.Sprintf("Q%d: %s\nA%d: %s", i+1, r.Question, i+1, r.Answer))
	}
	return strings.Join(blocks, "\n\n")
}

// UpdateDraft replaces the draft text and bumps the revision counter.
// Prior revisions are not retained; the draft is memory-bounded on purpose.
func (s *AgentState) UpdateDraft(text string) {
	s.Draft = text
	s.RevisionCount++
}

// SetFinalReport records the terminal report. It may be set exactly once.
func (s *AgentState) SetFinalReport(text string) error {
	if s.FinalReport != "" {
		return fmt.Errorf("%w: final report already set", contractx.ErrValidation)
	}
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return fmt.Errorf("%w: final report is empty", contractx.ErrValidation)
	}
	s.FinalReport = trimmed
	return nil
}

func (s *AgentState) Validate() error {
	if strings.TrimSpace(s.Query) == "" {
		return fmt.Errorf("%w: query is empty", contractx.ErrValidation)
	}
	return nil
}
