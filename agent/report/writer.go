// Package report writes the run artifacts: the markdown report and the
// structured state dump next to it.
package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	contractx "github.com/warat-b/sitescope/agent/contract"
	statex "github.com/warat-b/sitescope/agent/state"
)

// StatePath derives the state-dump path from the report path:
// reports/out.md -> reports/out_state.json.
func StatePath(reportPath string) string {
	dir := filepath.Dir(reportPath)
	base := filepath.Base(reportPath)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(dir, stem+"_state.json")
}

// WriteMarkdown writes the formatted report, creating parent directories
// as needed.
func WriteMarkdown(path string, st *statex.AgentState) error {
	if st == nil {
		return fmt.Errorf("%w: nil state", contractx.ErrValidation)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create report directory: %w", err)
	}

	var b strings.Builder
	b.WriteString("# Feasibility Study Report\n\n")
	fmt.Fprintf(&b, "**Address:** %s\n\n", st.Query)
	if st.Brief != "" {
		fmt.Fprintf(&b, "**Brief:** %s\n\n", st.Brief)
	}
	fmt.Fprintf(&b, "**Generated:** %s\n", time.Now().UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, "**Research Steps:** %d\n", len(st.SearchHistory))
	fmt.Fprintf(&b, "**Revisions:** %d\n\n---\n\n", st.RevisionCount)
	b.WriteString(st.FinalReport)
	b.WriteString("\n")

	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}

// WriteState dumps the whole agent state as indented JSON for later
// inspection or replay.
func WriteState(path string, st *statex.AgentState) error {
	if st == nil {
		return fmt.Errorf("%w: nil state", contractx.ErrValidation)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create state directory: %w", err)
	}

	payload, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}
	if err := os.WriteFile(path, payload, 0o644); err != nil {
		return fmt.Errorf("write state: %w", err)
	}
	return nil
}
