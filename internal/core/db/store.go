package db

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/solatis/tagrules/internal/rules"
	"github.com/solatis/tagrules/internal/types"
)

// timeFormat is the fixed-width UTC layout sqlite CHECK constraints expect.
const timeFormat = "2006-01-02T15:04:05Z"

// Store persists the vocabulary, rule lines and match reports.
type Store struct {
	q   *Queries
	now func() time.Time
}

// storeQueries are the named queries Store runs.
var storeQueries = []string{
	"delete-tags", "insert-tag", "list-tags",
	"delete-rules", "insert-rule", "list-rules",
	"insert-match-report", "list-match-reports",
}

// NewStore loads the named queries for db.
func NewStore(db *sqlx.DB) (*Store, error) {
	q, err := LoadQueries(db, storeQueries...)
	if err != nil {
		return nil, err
	}
	return &Store{q: q, now: time.Now}, nil
}

type tagRow struct {
	Name  string `db:"tag_name"`
	Value string `db:"tag_value"`
}

type ruleRow struct {
	ID        string `db:"rule_id"`
	Position  int    `db:"position"`
	File      string `db:"file"`
	Line      int    `db:"line_no"`
	Source    string `db:"source"`
	CreatedAt string `db:"created_at"`
}

// MatchReport is one persisted (object, rule) match.
type MatchReport struct {
	ID         types.ReportID  `db:"report_id"`
	RuleSetID  types.RuleSetID `db:"ruleset_id"`
	ObjectID   string          `db:"object_id"`
	ObjectType string          `db:"object_type"`
	RuleID     string          `db:"rule_id"`
	Subrules   string          `db:"subrules"` // comma separated SR names
	CreatedAt  string          `db:"created_at"`
}

// SubruleNames splits the stored subrule list.
func (r MatchReport) SubruleNames() []string {
	if r.Subrules == "" {
		return nil
	}
	return strings.Split(r.Subrules, ",")
}

// SaveVocabulary replaces the stored vocabulary.
func (s *Store) SaveVocabulary(ctx context.Context, vocab *types.Vocabulary) error {
	return s.q.InTx(ctx, func(tx *Tx) error {
		if _, err := tx.Exec(ctx, "delete-tags"); err != nil {
			return fmt.Errorf("failed to clear tags: %w", err)
		}
		for _, tag := range vocab.Tags() {
			for _, value := range vocab.Values(tag) {
				if _, err := tx.Exec(ctx, "insert-tag", tag, value); err != nil {
					return fmt.Errorf("failed to insert tag %s=%s: %w", tag, value, err)
				}
			}
		}
		return nil
	})
}

// LoadVocabulary reads the stored vocabulary.
func (s *Store) LoadVocabulary(ctx context.Context) (*types.Vocabulary, error) {
	var rows []tagRow
	if err := s.q.Select(ctx, "list-tags", &rows); err != nil {
		return nil, fmt.Errorf("failed to list tags: %w", err)
	}
	vocab := types.NewVocabulary()
	for _, r := range rows {
		vocab.Add(r.Name, r.Value)
	}
	return vocab, nil
}

// SaveRules replaces the stored rules, preserving their order.
func (s *Store) SaveRules(ctx context.Context, lines []types.RuleLine) error {
	created := s.now().UTC().Format(timeFormat)
	return s.q.InTx(ctx, func(tx *Tx) error {
		if _, err := tx.Exec(ctx, "delete-rules"); err != nil {
			return fmt.Errorf("failed to clear rules: %w", err)
		}
		for i, line := range lines {
			id := line.ID
			if id == "" {
				id = types.DefaultRuleID(i + 1)
			}
			if _, err := tx.Exec(ctx, "insert-rule", id, i, line.File, line.Line, line.Source, created); err != nil {
				return fmt.Errorf("failed to insert rule %s: %w", id, err)
			}
		}
		return nil
	})
}

// LoadRules reads the stored rules in order.
func (s *Store) LoadRules(ctx context.Context) ([]types.RuleLine, error) {
	var rows []ruleRow
	if err := s.q.Select(ctx, "list-rules", &rows); err != nil {
		return nil, fmt.Errorf("failed to list rules: %w", err)
	}
	lines := make([]types.RuleLine, len(rows))
	for i, r := range rows {
		lines[i] = types.RuleLine{ID: r.ID, File: r.File, Line: r.Line, Source: r.Source}
	}
	return lines, nil
}

// RecordMatches stores one report row per matched rule and returns the
// number of rows written. Objects without matches write nothing.
func (s *Store) RecordMatches(ctx context.Context, results []rules.MatchResult) (int, error) {
	created := s.now().UTC().Format(timeFormat)
	written := 0
	err := s.q.InTx(ctx, func(tx *Tx) error {
		for _, res := range results {
			for _, m := range res.Rules {
				_, err := tx.Exec(ctx, "insert-match-report",
					string(types.NewReportID()), string(res.RuleSetID), res.ObjectID, res.ObjectType,
					m.RuleID, strings.Join(m.Subrules, ","), created)
				if err != nil {
					return fmt.Errorf("failed to record match %s/%s: %w", res.ObjectID, m.RuleID, err)
				}
				written++
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return written, nil
}

// ListMatches returns the stored reports for one object, oldest first.
func (s *Store) ListMatches(ctx context.Context, objectID string) ([]MatchReport, error) {
	var reports []MatchReport
	if err := s.q.Select(ctx, "list-match-reports", &reports, objectID); err != nil {
		return nil, fmt.Errorf("failed to list match reports: %w", err)
	}
	return reports, nil
}
