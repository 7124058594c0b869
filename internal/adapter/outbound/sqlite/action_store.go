package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/wardenlabs/warden/internal/domain/action"
	"github.com/wardenlabs/warden/internal/domain/proposal"
	"github.com/wardenlabs/warden/internal/domain/risk"
)

// ActionStore implements action.ActionStore on SQLite.
type ActionStore struct {
	db *sql.DB

	// now is injectable for rate-limit boundary tests.
	now func() time.Time
}

// NewActionStore creates a SQLite-backed action store.
func NewActionStore(db *sql.DB) *ActionStore {
	return &ActionStore{
		db:  db,
		now: func() time.Time { return time.Now().UTC() },
	}
}

// SetClock overrides the store's clock. For tests.
func (s *ActionStore) SetClock(now func() time.Time) { s.now = now }

const actionColumns = `id, session_id, workspace_id, client_id, kind,
	COALESCE(payload,''), risk_level, risk_score, COALESCE(risk_factors,''),
	status, COALESCE(approved_by,''), approved_at,
	COALESCE(rejection_reason,''), executed_at, COALESCE(execution_result,''),
	mode, truth_compliant, COALESCE(disclaimers,''), confidence,
	COALESCE(data_sources,''), COALESCE(triggering_warning_id,''), reasoning,
	created_at`

// Insert persists a new action.
func (s *ActionStore) Insert(ctx context.Context, a *action.Action) error {
	payload, factors, result, disclaimers, sources, err := marshalActionJSON(a)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `INSERT INTO actions(
			id, session_id, workspace_id, client_id, kind, payload,
			risk_level, risk_score, risk_factors, status, approved_by,
			approved_at, rejection_reason, executed_at, execution_result,
			mode, truth_compliant, disclaimers, confidence, data_sources,
			triggering_warning_id, reasoning, created_at
		) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		a.ID, a.SessionID, a.WorkspaceID, a.ClientID, string(a.Kind), payload,
		string(a.RiskLevel), a.RiskScore, factors, string(a.Status),
		nullableString(a.ApprovedBy), a.ApprovedAt,
		nullableString(a.RejectionReason), a.ExecutedAt, result,
		string(a.Mode), a.TruthCompliant, disclaimers, a.Confidence, sources,
		nullableString(a.TriggeringWarningID), a.Reasoning, a.CreatedAt)
	return err
}

// Get returns an action by id.
func (s *ActionStore) Get(ctx context.Context, id string) (*action.Action, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+actionColumns+` FROM actions WHERE id=?`, id)
	a, err := scanAction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, action.ErrActionNotFound
	}
	return a, err
}

// Update replaces a persisted action.
func (s *ActionStore) Update(ctx context.Context, a *action.Action) error {
	payload, factors, result, disclaimers, sources, err := marshalActionJSON(a)
	if err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx, `UPDATE actions SET
			payload=?, risk_level=?, risk_score=?, risk_factors=?, status=?,
			approved_by=?, approved_at=?, rejection_reason=?, executed_at=?,
			execution_result=?, mode=?, truth_compliant=?, disclaimers=?,
			confidence=?, data_sources=?, triggering_warning_id=?, reasoning=?
		WHERE id=?`,
		payload, string(a.RiskLevel), a.RiskScore, factors, string(a.Status),
		nullableString(a.ApprovedBy), a.ApprovedAt,
		nullableString(a.RejectionReason), a.ExecutedAt, result,
		string(a.Mode), a.TruthCompliant, disclaimers, a.Confidence, sources,
		nullableString(a.TriggeringWarningID), a.Reasoning, a.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return action.ErrActionNotFound
	}
	return nil
}

// CountExecutedToday counts executed actions since the current UTC day
// boundary, scoped to the client when clientID is non-empty.
func (s *ActionStore) CountExecutedToday(ctx context.Context, workspaceID, clientID string) (int, error) {
	now := s.now()
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	query := `SELECT COUNT(*) FROM actions
		WHERE workspace_id=? AND status IN (?,?) AND created_at>=?`
	args := []any{workspaceID, string(action.StatusAutoExecuted),
		string(action.StatusApprovedExecuted), dayStart}
	if clientID != "" {
		query += ` AND client_id=?`
		args = append(args, clientID)
	}

	var count int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// ListPending returns awaiting_approval actions for a workspace, oldest first.
func (s *ActionStore) ListPending(ctx context.Context, workspaceID string) ([]action.Action, error) {
	return s.query(ctx,
		`SELECT `+actionColumns+` FROM actions
			WHERE workspace_id=? AND status=? ORDER BY created_at ASC`,
		workspaceID, string(action.StatusAwaitingApproval))
}

// ListBySession returns all actions logged in a session, oldest first.
func (s *ActionStore) ListBySession(ctx context.Context, sessionID string) ([]action.Action, error) {
	return s.query(ctx,
		`SELECT `+actionColumns+` FROM actions
			WHERE session_id=? ORDER BY created_at ASC`,
		sessionID)
}

// ListByClient returns the most recent actions for a client, newest first.
func (s *ActionStore) ListByClient(ctx context.Context, workspaceID, clientID string, limit int) ([]action.Action, error) {
	return s.query(ctx,
		`SELECT `+actionColumns+` FROM actions
			WHERE workspace_id=? AND client_id=?
			ORDER BY created_at DESC LIMIT ?`,
		workspaceID, clientID, limit)
}

// ListPendingOlderThan returns awaiting_approval actions created before
// cutoff, oldest first.
func (s *ActionStore) ListPendingOlderThan(ctx context.Context, workspaceID string, cutoff time.Time) ([]action.Action, error) {
	return s.query(ctx,
		`SELECT `+actionColumns+` FROM actions
			WHERE workspace_id=? AND status=? AND created_at<?
			ORDER BY created_at ASC`,
		workspaceID, string(action.StatusAwaitingApproval), cutoff)
}

func (s *ActionStore) query(ctx context.Context, q string, args ...any) ([]action.Action, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []action.Action
	for rows.Next() {
		a, err := scanAction(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}
	return result, rows.Err()
}

func scanAction(row rowScanner) (*action.Action, error) {
	var (
		a           action.Action
		kind        string
		payloadRaw  string
		level       string
		factorsRaw  string
		status      string
		approvedAt  sql.NullTime
		executedAt  sql.NullTime
		resultRaw   string
		mode        string
		disclaimRaw string
		sourcesRaw  string
	)
	err := row.Scan(&a.ID, &a.SessionID, &a.WorkspaceID, &a.ClientID, &kind,
		&payloadRaw, &level, &a.RiskScore, &factorsRaw, &status,
		&a.ApprovedBy, &approvedAt, &a.RejectionReason, &executedAt,
		&resultRaw, &mode, &a.TruthCompliant, &disclaimRaw, &a.Confidence,
		&sourcesRaw, &a.TriggeringWarningID, &a.Reasoning, &a.CreatedAt)
	if err != nil {
		return nil, err
	}

	a.Kind = proposal.ActionKind(kind)
	a.RiskLevel = risk.Level(level)
	a.Status = action.ApprovalStatus(status)
	a.Mode = action.ExecutionMode(mode)
	if approvedAt.Valid {
		t := approvedAt.Time.UTC()
		a.ApprovedAt = &t
	}
	if executedAt.Valid {
		t := executedAt.Time.UTC()
		a.ExecutedAt = &t
	}

	for _, col := range []struct {
		raw  string
		dest any
	}{
		{payloadRaw, &a.Payload},
		{factorsRaw, &a.RiskFactors},
		{disclaimRaw, &a.Disclaimers},
		{sourcesRaw, &a.DataSources},
	} {
		if col.raw == "" {
			continue
		}
		if err := json.Unmarshal([]byte(col.raw), col.dest); err != nil {
			return nil, fmt.Errorf("unmarshal action column: %w", err)
		}
	}
	if resultRaw != "" {
		var res action.ExecutionResult
		if err := json.Unmarshal([]byte(resultRaw), &res); err != nil {
			return nil, fmt.Errorf("unmarshal execution result: %w", err)
		}
		a.ExecutionResult = &res
	}
	return &a, nil
}

// marshalActionJSON encodes the JSON-typed columns of an action.
func marshalActionJSON(a *action.Action) (payload, factors, result, disclaimers, sources any, err error) {
	enc := func(v any, empty bool) (any, error) {
		if empty {
			return nil, nil
		}
		b, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("marshal action column: %w", err)
		}
		return string(b), nil
	}

	if payload, err = enc(a.Payload, len(a.Payload) == 0); err != nil {
		return
	}
	if factors, err = enc(a.RiskFactors, len(a.RiskFactors) == 0); err != nil {
		return
	}
	if result, err = enc(a.ExecutionResult, a.ExecutionResult == nil); err != nil {
		return
	}
	if disclaimers, err = enc(a.Disclaimers, len(a.Disclaimers) == 0); err != nil {
		return
	}
	sources, err = enc(a.DataSources, len(a.DataSources) == 0)
	return
}

// Compile-time interface verification.
var _ action.ActionStore = (*ActionStore)(nil)
