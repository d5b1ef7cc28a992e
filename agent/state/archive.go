package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	contractx "github.com/warat-b/sitescope/agent/contract"
)

// ErrRunNotFound is returned when no archived run matches the requested id.
var ErrRunNotFound = errors.New("archived run not found")

type ArchiveConfig struct {
	DSN     string        `envconfig:"DSN" split_words:"true"`
	Timeout time.Duration `envconfig:"TIMEOUT" split_words:"true" default:"10s"`
}

// Enabled reports whether archiving was configured at all.
func (c ArchiveConfig) Enabled() bool {
	return strings.TrimSpace(c.DSN) != ""
}

// RunRecord is the persisted form of a completed run: the full structured
// state dump, suitable for later inspection or replay.
type RunRecord struct {
	bun.BaseModel `bun:"table:research_runs,alias:rr"`

	ID            int64                  `bun:"id,pk,autoincrement" json:"id"`
	Query         string                 `bun:"query,notnull" json:"query"`
	Brief         string                 `bun:"brief" json:"brief,omitempty"`
	Plan          contractx.ResearchPlan `bun:"plan,type:jsonb" json:"plan"`
	SearchHistory []SearchResult         `bun:"search_history,type:jsonb" json:"search_history"`
	Draft         string                 `bun:"draft_report" json:"draft_report"`
	RevisionCount int                    `bun:"revision_count" json:"revision_count"`
	FinalReport   string                 `bun:"final_report" json:"final_report"`
	Metadata      map[string]any         `bun:"metadata,type:jsonb" json:"metadata,omitempty"`
	CreatedAt     time.Time              `bun:"created_at,notnull" json:"created_at"`
}

// NewRunRecord snapshots a finished AgentState into its archive form.
func NewRunRecord(st *AgentState) *RunRecord {
	if st == nil {
		return nil
	}
	return &RunRecord{
		Query:         st.Query,
		Brief:         st.Brief,
		Plan:          st.Plan,
		SearchHistory: append([]SearchResult(nil), st.SearchHistory...),
		Draft:         st.Draft,
		RevisionCount: st.RevisionCount,
		FinalReport:   st.FinalReport,
		Metadata:      st.Metadata,
		CreatedAt:     time.Now().UTC(),
	}
}

// Archive persists completed runs in Postgres.
type Archive struct {
	db *bun.DB
}

func NewArchive(cfg ArchiveConfig) (*Archive, error) {
	dsn := strings.TrimSpace(cfg.DSN)
	if dsn == "" {
		return nil, errors.New("archive dsn is required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	sqldb := sql.OpenDB(pgdriver.NewConnector(
		pgdriver.WithDSN(dsn),
		pgdriver.WithTimeout(timeout),
	))
	db := bun.NewDB(sqldb, pgdialect.New())

	return &Archive{db: db}, nil
}

// Init creates the runs table when it does not exist yet.
func (a *Archive) Init(ctx context.Context) error {
	if _, err := a.db.NewCreateTable().
		Model((*RunRecord)(nil)).
		IfNotExists().
		Exec(ctx); err != nil {
		return fmt.Errorf("create research_runs table: %w", err)
	}
	return nil
}

// SaveRun inserts the finished state and returns the archive row id.
func (a *Archive) SaveRun(ctx context.Context, st *AgentState) (int64, error) {
	record := NewRunRecord(st)
	if record == nil {
		return 0, fmt.Errorf("%w: nil state", contractx.ErrValidation)
	}
	if err := st.Validate(); err != nil {
		return 0, err
	}

	if _, err := a.db.NewInsert().Model(record).Exec(ctx); err != nil {
		return 0, fmt.Errorf("insert run record: %w", err)
	}
	return record.ID, nil
}

// LoadRun fetches one archived run by id.
func (a *Archive) LoadRun(ctx context.Context, id int64) (*RunRecord, error) {
	record := new(RunRecord)
	err := a.db.NewSelect().Model(record).Where("rr.id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load run record: %w", err)
	}
	return record, nil
}

// RecentRuns lists the newest archived runs, newest first.
func (a *Archive) RecentRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = 10
	}
	var records []RunRecord
	if err := a.db.NewSelect().
		Model(&records).
		Order("created_at DESC").
		Limit(limit).
		Scan(ctx); err != nil {
		return nil, fmt.Errorf("list run records: %w", err)
	}
	return records, nil
}

func (a *Archive) Close() error {
	return a.db.Close()
}
