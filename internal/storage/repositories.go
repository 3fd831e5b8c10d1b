package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"rustdiag/internal/span"
	"rustdiag/internal/transform"
)

// RunKind names the command that produced a run.
type RunKind string

const (
	RunDiagnose  RunKind = "diagnose"
	RunTransform RunKind = "transform"
	RunPatch     RunKind = "patch"
)

// Phase tells whether a span was reported before or after the fix pass.
type Phase string

const (
	PhaseBefore Phase = "before"
	PhaseAfter  Phase = "after"
)

// Run represents a runs record
type Run struct {
	ID         string
	Kind       RunKind
	Project    string
	Revision   string
	Rules      []string
	StartedAt  time.Time
	FinishedAt *time.Time
}

// NewRun starts a run record with a fresh identifier.
func NewRun(kind RunKind, project string, rules []string) *Run {
	return &Run{
		ID:        uuid.NewString(),
		Kind:      kind,
		Project:   project,
		Rules:     rules,
		StartedAt: time.Now().UTC(),
	}
}

// Pair is a stored before/after pair with decoded bodies.
type Pair struct {
	ID     int64
	RunID  string
	Rule   string
	Path   string
	Offset int
	End    int
	Before []byte
	After  []byte
	Spans  []span.Span
}

// SaveRun inserts a run or updates its revision and finish time.
func (db *DB) SaveRun(run *Run) error {
	rules, err := json.Marshal(run.Rules)
	if err != nil {
		return fmt.Errorf("failed to encode rules: %w", err)
	}

	_, err = db.conn.Exec(`
		INSERT INTO runs (id, kind, project, revision, rules_json, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			revision = excluded.revision,
			finished_at = excluded.finished_at
	`,
		run.ID,
		string(run.Kind),
		run.Project,
		nullString(run.Revision),
		string(rules),
		run.StartedAt.Format(time.RFC3339Nano),
		formatTimePtr(run.FinishedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}
	return nil
}

// GetRun retrieves a run by id. It returns nil when the run does not exist.
func (db *DB) GetRun(id string) (*Run, error) {
	var run Run
	var kind, rules, startedAt string
	var revision, finishedAt sql.NullString

	err := db.conn.QueryRow(`
		SELECT id, kind, project, revision, rules_json, started_at, finished_at
		FROM runs
		WHERE id = ?
	`, id).Scan(&run.ID, &kind, &run.Project, &revision, &rules, &startedAt, &finishedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}

	run.Kind = RunKind(kind)
	run.Revision = revision.String
	if err := json.Unmarshal([]byte(rules), &run.Rules); err != nil {
		return nil, fmt.Errorf("invalid rules_json: %w", err)
	}
	if run.StartedAt, err = time.Parse(time.RFC3339Nano, startedAt); err != nil {
		return nil, fmt.Errorf("invalid started_at format: %w", err)
	}
	if finishedAt.Valid {
		t, err := time.Parse(time.RFC3339Nano, finishedAt.String)
		if err != nil {
			return nil, fmt.Errorf("invalid finished_at format: %w", err)
		}
		run.FinishedAt = &t
	}
	return &run, nil
}

// SaveSpans stores every span of a diagnostic pass.
func (db *DB) SaveSpans(runID string, phase Phase, spans span.FileSpans) error {
	return db.WithTx(func(tx *sql.Tx) error {
		stmt, err := tx.Prepare(`
			INSERT INTO spans (
				run_id, path, rule, severity, start_byte, end_byte,
				start_line, end_line, suggestion, note, phase, resolved
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return fmt.Errorf("failed to prepare span insert: %w", err)
		}
		defer stmt.Close()

		for _, path := range spans.Files() {
			for _, s := range spans[path] {
				var suggestion interface{}
				if s.Suggestion != nil {
					suggestion = *s.Suggestion
				}
				if _, err := stmt.Exec(
					runID, path, s.RuleID, string(s.Severity), s.StartByte, s.EndByte,
					s.StartLine, s.EndLine, suggestion, s.Note, string(phase), s.Resolved,
				); err != nil {
					return fmt.Errorf("failed to save span: %w", err)
				}
			}
		}
		return nil
	})
}

// ListSpans returns the spans of one run and phase grouped by file.
func (db *DB) ListSpans(runID string, phase Phase) (span.FileSpans, error) {
	rows, err := db.conn.Query(`
		SELECT path, rule, severity, start_byte, end_byte, start_line, end_line,
		       suggestion, note, resolved
		FROM spans
		WHERE run_id = ? AND phase = ?
		ORDER BY id
	`, runID, string(phase))
	if err != nil {
		return nil, fmt.Errorf("failed to list spans: %w", err)
	}
	defer rows.Close()

	out := make(span.FileSpans)
	for rows.Next() {
		var path, severity string
		var suggestion sql.NullString
		var s span.Span
		if err := rows.Scan(
			&path, &s.RuleID, &severity, &s.StartByte, &s.EndByte, &s.StartLine, &s.EndLine,
			&suggestion, &s.Note, &s.Resolved,
		); err != nil {
			return nil, fmt.Errorf("failed to scan span: %w", err)
		}
		s.Severity = span.Severity(severity)
		if suggestion.Valid {
			v := suggestion.String
			s.Suggestion = &v
		}
		out.Add(path, s)
	}
	return out, rows.Err()
}

// SavePairs stores the pairs of a transform run. Re-saving a pair replaces it.
func (db *DB) SavePairs(runID string, pairs []transform.Pair) error {
	return db.WithTx(func(tx *sql.Tx) error {
		stmt, err := tx.Prepare(`
			INSERT OR REPLACE INTO pairs (
				run_id, rule, path, start_offset, end_offset, encoding,
				before_body, after_body, spans_json
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return fmt.Errorf("failed to prepare pair insert: %w", err)
		}
		defer stmt.Close()

		for _, p := range pairs {
			before, encoding, err := encodeBody(p.Before, db.compress)
			if err != nil {
				return err
			}
			after, _, err := encodeBody(p.After, db.compress)
			if err != nil {
				return err
			}
			spans, err := json.Marshal(p.Spans)
			if err != nil {
				return fmt.Errorf("failed to encode spans: %w", err)
			}
			if _, err := stmt.Exec(
				runID, p.Rule, p.Path, p.Offset, p.End, encoding, before, after, string(spans),
			); err != nil {
				return fmt.Errorf("failed to save pair: %w", err)
			}
		}
		return nil
	})
}

// ListPairs returns stored pairs ordered by rule, path and offset. An empty rule lists
// every rule.
func (db *DB) ListPairs(rule string) ([]Pair, error) {
	query := `
		SELECT id, run_id, rule, path, start_offset, end_offset, encoding,
		       before_body, after_body, spans_json
		FROM pairs
	`
	var args []interface{}
	if rule != "" {
		query += " WHERE rule = ?"
		args = append(args, rule)
	}
	query += " ORDER BY rule, path, start_offset, id"

	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list pairs: %w", err)
	}
	defer rows.Close()

	var out []Pair
	for rows.Next() {
		var p Pair
		var encoding, spans string
		var before, after []byte
		if err := rows.Scan(
			&p.ID, &p.RunID, &p.Rule, &p.Path, &p.Offset, &p.End, &encoding,
			&before, &after, &spans,
		); err != nil {
			return nil, fmt.Errorf("failed to scan pair: %w", err)
		}
		if p.Before, err = decodeBody(before, encoding); err != nil {
			return nil, fmt.Errorf("pair %d: %w", p.ID, err)
		}
		if p.After, err = decodeBody(after, encoding); err != nil {
			return nil, fmt.Errorf("pair %d: %w", p.ID, err)
		}
		if err := json.Unmarshal([]byte(spans), &p.Spans); err != nil {
			return nil, fmt.Errorf("pair %d: invalid spans_json: %w", p.ID, err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func formatTimePtr(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.Format(time.RFC3339Nano)
}
