// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hassanmzia/AI-Insurance-Claim-Assistant/pkg/claim"
	"github.com/hassanmzia/AI-Insurance-Claim-Assistant/pkg/task"
)

// SQL persists tasks, the claim ledger and status history in one
// database. The *sql.DB is shared and not closed by SQL.
type SQL struct {
	db      *sql.DB
	dialect string
}

var (
	_ task.Store      = (*SQL)(nil)
	_ claim.Ledger    = (*SQL)(nil)
	_ claim.StatusLog = (*SQL)(nil)
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS claimflow_tasks (
    id VARCHAR(64) PRIMARY KEY,
    parent_id VARCHAR(64),
    run_id VARCHAR(64) NOT NULL,
    agent VARCHAR(64) NOT NULL,
    action VARCHAR(64),
    status VARCHAR(16) NOT NULL,
    attempt INTEGER NOT NULL,
    input_json TEXT,
    output_json TEXT,
    error_text TEXT,
    created_at TIMESTAMP NOT NULL,
    started_at TIMESTAMP NULL,
    finished_at TIMESTAMP NULL,
    duration_ns BIGINT NOT NULL
)`,
	`CREATE INDEX IF NOT EXISTS idx_claimflow_tasks_run ON claimflow_tasks(run_id)`,
	`CREATE TABLE IF NOT EXISTS claimflow_claims (
    claim_number VARCHAR(64) PRIMARY KEY,
    policy_number VARCHAR(64) NOT NULL,
    claimant_id VARCHAR(128),
    adjuster_id VARCHAR(128),
    loss_type VARCHAR(32) NOT NULL,
    loss_date TIMESTAMP NOT NULL,
    claimed_amount DOUBLE PRECISION NOT NULL,
    recorded_at TIMESTAMP NOT NULL
)`,
	`CREATE INDEX IF NOT EXISTS idx_claimflow_claims_claimant ON claimflow_claims(claimant_id)`,
	`CREATE TABLE IF NOT EXISTS claimflow_status_log (
    id VARCHAR(64) PRIMARY KEY,
    claim_number VARCHAR(64) NOT NULL,
    from_status VARCHAR(32),
    to_status VARCHAR(32) NOT NULL,
    run_id VARCHAR(64),
    reason TEXT,
    changed_at TIMESTAMP NOT NULL,
    seq BIGINT NOT NULL
)`,
	`CREATE INDEX IF NOT EXISTS idx_claimflow_status_claim ON claimflow_status_log(claim_number)`,
}

// NewSQL creates the tables if needed. dialect is postgres, mysql or
// sqlite.
func NewSQL(ctx context.Context, db *sql.DB, dialect string) (*SQL, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}
	if dialect == "sqlite3" {
		dialect = "sqlite"
	}
	switch dialect {
	case "postgres", "mysql", "sqlite":
	default:
		return nil, fmt.Errorf("unsupported dialect: %s (supported: postgres, mysql, sqlite)", dialect)
	}

	s := &SQL{db: db, dialect: dialect}
	for _, stmt := range schema {
		if dialect == "mysql" {
			// MySQL has no CREATE INDEX IF NOT EXISTS; inline indexes are
			// created with the table instead.
			if strings.HasPrefix(stmt, "CREATE INDEX") {
				continue
			}
			stmt = mysqlInlineIndex(stmt)
		}
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return nil, fmt.Errorf("failed to initialize schema: %w", err)
		}
	}
	return s, nil
}

func mysqlInlineIndex(stmt string) string {
	for table, col := range map[string]string{
		"claimflow_tasks":      "run_id",
		"claimflow_claims":     "claimant_id",
		"claimflow_status_log": "claim_number",
	} {
		if strings.Contains(stmt, "EXISTS "+table+" (") {
			return strings.TrimSuffix(stmt, "\n)") + ",\n    INDEX (" + col + ")\n)"
		}
	}
	return stmt
}

// rebind rewrites ? placeholders for postgres.
func (s *SQL) rebind(q string) string {
	if s.dialect != "postgres" {
		return q
	}
	var b strings.Builder
	n := 0
	for _, r := range q {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// upsert builds an insert that updates cols on key conflict.
func (s *SQL) upsert(table, key string, cols []string) string {
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")
	q := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", table, strings.Join(cols, ", "), placeholders)

	var sets []string
	for _, c := range cols {
		if c == key {
			continue
		}
		if s.dialect == "mysql" {
			sets = append(sets, fmt.Sprintf("%s = VALUES(%s)", c, c))
		} else {
			sets = append(sets, fmt.Sprintf("%s = excluded.%s", c, c))
		}
	}
	if s.dialect == "mysql" {
		q += " ON DUPLICATE KEY UPDATE " + strings.Join(sets, ", ")
	} else {
		q += fmt.Sprintf(" ON CONFLICT (%s) DO UPDATE SET %s", key, strings.Join(sets, ", "))
	}
	return s.rebind(q)
}

var taskColumns = []string{
	"id", "parent_id", "run_id", "agent", "action", "status", "attempt",
	"input_json", "output_json", "error_text", "created_at", "started_at", "finished_at", "duration_ns",
}

// SaveTask upserts a task node snapshot.
func (s *SQL) SaveTask(ctx context.Context, n task.Node) error {
	_, err := s.db.ExecContext(ctx, s.upsert("claimflow_tasks", "id", taskColumns),
		n.ID, n.ParentID, n.RunID, n.Agent, n.Action, string(n.Status), n.Attempt,
		string(n.Input), string(n.Output), n.Error,
		n.CreatedAt, nullTime(n.StartedAt), nullTime(n.FinishedAt), int64(n.Duration),
	)
	if err != nil {
		return fmt.Errorf("failed to save task %s: %w", n.ID, err)
	}
	return nil
}

// LoadRun returns every node of a run in creation order.
func (s *SQL) LoadRun(ctx context.Context, runID string) ([]task.Node, error) {
	q := s.rebind(`SELECT ` + strings.Join(taskColumns, ", ") + `
FROM claimflow_tasks WHERE run_id = ? ORDER BY created_at, id`)
	rows, err := s.db.QueryContext(ctx, q, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query run %s: %w", runID, err)
	}
	defer rows.Close()

	var out []task.Node
	for rows.Next() {
		var (
			n                 task.Node
			status            string
			input, output     sql.NullString
			parent, action    sql.NullString
			errText           sql.NullString
			started, finished sql.NullTime
			duration          int64
		)
		if err := rows.Scan(&n.ID, &parent, &n.RunID, &n.Agent, &action, &status, &n.Attempt,
			&input, &output, &errText, &n.CreatedAt, &started, &finished, &duration); err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		n.ParentID = parent.String
		n.Action = action.String
		n.Status = task.Status(status)
		n.Error = errText.String
		if input.String != "" {
			n.Input = json.RawMessage(input.String)
		}
		if output.String != "" {
			n.Output = json.RawMessage(output.String)
		}
		n.StartedAt = started.Time
		n.FinishedAt = finished.Time
		n.Duration = time.Duration(duration)
		out = append(out, n)
	}
	return out, rows.Err()
}

var claimColumns = []string{
	"claim_number", "policy_number", "claimant_id", "adjuster_id",
	"loss_type", "loss_date", "claimed_amount", "recorded_at",
}

// Record upserts a ledger entry.
func (s *SQL) Record(ctx context.Context, e claim.LedgerEntry) error {
	_, err := s.db.ExecContext(ctx, s.upsert("claimflow_claims", "claim_number", claimColumns),
		e.ClaimNumber, e.PolicyNumber, e.ClaimantID, e.AdjusterID,
		string(e.LossType), e.LossDate.UTC(), e.ClaimedAmount, e.RecordedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to record claim %s: %w", e.ClaimNumber, err)
	}
	return nil
}

// RecentClaims returns the claimant's entries recorded since the given
// time, oldest first.
func (s *SQL) RecentClaims(ctx context.Context, claimantID string, since time.Time) ([]claim.LedgerEntry, error) {
	q := s.rebind(`SELECT ` + strings.Join(claimColumns, ", ") + `
FROM claimflow_claims WHERE claimant_id = ? AND recorded_at >= ? ORDER BY recorded_at, claim_number`)
	rows, err := s.db.QueryContext(ctx, q, claimantID, since.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to query claims for %s: %w", claimantID, err)
	}
	defer rows.Close()

	var out []claim.LedgerEntry
	for rows.Next() {
		var (
			e                  claim.LedgerEntry
			lossType           string
			claimant, adjuster sql.NullString
		)
		if err := rows.Scan(&e.ClaimNumber, &e.PolicyNumber, &claimant, &adjuster,
			&lossType, &e.LossDate, &e.ClaimedAmount, &e.RecordedAt); err != nil {
			return nil, fmt.Errorf("failed to scan claim: %w", err)
		}
		e.ClaimantID = claimant.String
		e.AdjusterID = adjuster.String
		e.LossType = claim.LossType(lossType)
		out = append(out, e)
	}
	return out, rows.Err()
}

// RecordStatus appends one status transition.
func (s *SQL) RecordStatus(ctx context.Context, ch claim.StatusChange) error {
	at := ch.At
	if at.IsZero() {
		at = time.Now()
	}
	q := s.rebind(`INSERT INTO claimflow_status_log
(id, claim_number, from_status, to_status, run_id, reason, changed_at, seq)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	_, err := s.db.ExecContext(ctx, q, uuid.NewString(), ch.ClaimNumber, string(ch.From), string(ch.To),
		ch.RunID, ch.Reason, at.UTC(), at.UnixNano())
	if err != nil {
		return fmt.Errorf("failed to record status of %s: %w", ch.ClaimNumber, err)
	}
	return nil
}

func (s *SQL) CurrentStatus(ctx context.Context, claimNumber string) (claim.Status, bool, error) {
	q := s.rebind(`SELECT to_status FROM claimflow_status_log WHERE claim_number = ? ORDER BY seq DESC LIMIT 1`)
	var st string
	err := s.db.QueryRowContext(ctx, q, claimNumber).Scan(&st)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to query status of %s: %w", claimNumber, err)
	}
	return claim.Status(st), true, nil
}

func (s *SQL) StatusHistory(ctx context.Context, claimNumber string) ([]claim.StatusChange, error) {
	q := s.rebind(`SELECT from_status, to_status, run_id, reason, changed_at
FROM claimflow_status_log WHERE claim_number = ? ORDER BY seq`)
	rows, err := s.db.QueryContext(ctx, q, claimNumber)
	if err != nil {
		return nil, fmt.Errorf("failed to query status history of %s: %w", claimNumber, err)
	}
	defer rows.Close()

	var out []claim.StatusChange
	for rows.Next() {
		var (
			from, runID, reason sql.NullString
			to                  string
			ch                  = claim.StatusChange{ClaimNumber: claimNumber}
		)
		if err := rows.Scan(&from, &to, &runID, &reason, &ch.At); err != nil {
			return nil, fmt.Errorf("failed to scan status change: %w", err)
		}
		ch.From = claim.Status(from.String)
		ch.To = claim.Status(to)
		ch.RunID = runID.String
		ch.Reason = reason.String
		out = append(out, ch)
	}
	return out, rows.Err()
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}
