package state

import (
	"errors"
	"strings"
	"testing"

	contractx "github.com/warat-b/sitescope/agent/contract"
)

func TestUpdateDraftBumpsRevisionCount(t *testing.T) {
	t.Parallel()

	st := New("123 Main St", "")
	if st.RevisionCount != 0 {
		t.Fatalf("expected zero revisions on a fresh state, got %d", st.RevisionCount)
	}

	st.UpdateDraft("draft v1")
	st.UpdateDraft("draft v2")

	if st.RevisionCount != 2 {
		t.Fatalf("expected 2 revisions, got %d", st.RevisionCount)
	}
	if st.Draft != "draft v2" {
		t.Fatalf("expected latest draft retained, got %q", st.Draft)
	}
}

func TestSetFinalReportExactlyOnce(t *testing.T) {
	t.Parallel()

	st := New("123 Main St", "")

	if err := st.SetFinalReport("   "); !errors.Is(err, contractx.ErrValidation) {
		t.Fatalf("expected ErrValidation for empty report, got %v", err)
	}
	if err := st.SetFinalReport("  the report  "); err != nil {
		t.Fatalf("SetFinalReport() error = %v", err)
	}
	if st.FinalReport != "the report" {
		t.Fatalf("expected trimmed report, got %q", st.FinalReport)
	}
	if err := st.SetFinalReport("again"); !errors.Is(err, contractx.ErrValidation) {
		t.Fatalf("expected ErrValidation on second set, got %v", err)
	}
	if st.FinalReport != "the report" {
		t.Fatalf("second set must not overwrite, got %q", st.FinalReport)
	}
}

func TestRecentQuestionsMostRecentFirst(t *testing.T) {
	t.Parallel()

	st := New("123 Main St", "")
	st.AddSearchResult("q1", "a1", nil)
	st.AddSearchResult("q2", "a2", nil)
	st.AddSearchResult("q3", "a3", nil)

	got := st.RecentQuestions(2)
	if len(got) != 2 || got[0] != "q3" || got[1] != "q2" {
		t.Fatalf("expected [q3 q2], got %#v", got)
	}

	if got := st.RecentQuestions(10); len(got) != 3 || got[0] != "q3" {
		t.Fatalf("window beyond history must return everything, got %#v", got)
	}
	if got := st.RecentQuestions(0); got != nil {
		t.Fatalf("expected nil for zero window, got %#v", got)
	}
}

func TestSearchContextWindow(t *testing.T) {
	t.Parallel()

	st := New("123 Main St", "")
	st.AddSearchResult("q1", "a1", nil)
	st.AddSearchResult("q2", "a2", nil)
	st.AddSearchResult("q3", "a3", nil)

	windowed := st.SearchContext(2)
	if strings.Contains(windowed, "q1") {
		t.Fatalf("windowed context must drop oldest entries, got:\n%s", windowed)
	}
	if !strings.Contains(windowed, "q2") || !strings.Contains(windowed, "q3") {
		t.Fatalf("windowed context missing recent entries:\n%s", windowed)
	}

	full := st.SearchContext(0)
	for _, want := range []string{"Q1: q1", "A1: a1", "Q3: q3"} {
		if !strings.Contains(full, want) {
			t.Fatalf("full context missing %q:\n%s", want, full)
		}
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	if err := New("  ", "brief").Validate(); !errors.Is(err, contractx.ErrValidation) {
		t.Fatalf("expected ErrValidation for blank query, got %v", err)
	}
	if err := New("123 Main St", "").Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
}
