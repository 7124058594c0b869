package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/wardenlabs/warden/internal/domain/policy"
	"github.com/wardenlabs/warden/internal/domain/risk"
)

// PolicyStore implements policy.PolicyStore on SQLite.
type PolicyStore struct {
	db *sql.DB
}

// NewPolicyStore creates a SQLite-backed policy store.
func NewPolicyStore(db *sql.DB) *PolicyStore {
	return &PolicyStore{db: db}
}

const policyColumns = `workspace_id, client_id, enabled, allowed_actions,
	auto_execute, auto_execute_max_risk, max_actions_per_day,
	require_approval_above_score, respect_early_warnings,
	pause_on_high_severity, COALESCE(guard_rules,''), created_at, updated_at,
	COALESCE(updated_by,'')`

// Get returns the policy row for the exact scope.
func (s *PolicyStore) Get(ctx context.Context, workspaceID, clientID string) (*policy.AgentPolicy, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+policyColumns+` FROM policies WHERE workspace_id=? AND client_id=?`,
		workspaceID, clientID)
	return scanPolicy(row)
}

// Save creates or replaces the policy row for its scope.
func (s *PolicyStore) Save(ctx context.Context, p *policy.AgentPolicy) error {
	allowed, err := json.Marshal(p.AllowedActions)
	if err != nil {
		return fmt.Errorf("marshal allowed actions: %w", err)
	}
	var rules []byte
	if len(p.GuardRules) > 0 {
		rules, err = json.Marshal(p.GuardRules)
		if err != nil {
			return fmt.Errorf("marshal guard rules: %w", err)
		}
	}

	_, err = s.db.ExecContext(ctx, `INSERT INTO policies(
			workspace_id, client_id, enabled, allowed_actions, auto_execute,
			auto_execute_max_risk, max_actions_per_day,
			require_approval_above_score, respect_early_warnings,
			pause_on_high_severity, guard_rules, created_at, updated_at, updated_by
		) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?)
		ON CONFLICT(workspace_id, client_id) DO UPDATE SET
			enabled=excluded.enabled,
			allowed_actions=excluded.allowed_actions,
			auto_execute=excluded.auto_execute,
			auto_execute_max_risk=excluded.auto_execute_max_risk,
			max_actions_per_day=excluded.max_actions_per_day,
			require_approval_above_score=excluded.require_approval_above_score,
			respect_early_warnings=excluded.respect_early_warnings,
			pause_on_high_severity=excluded.pause_on_high_severity,
			guard_rules=excluded.guard_rules,
			updated_at=excluded.updated_at,
			updated_by=excluded.updated_by`,
		p.WorkspaceID, p.ClientID, p.Enabled, string(allowed), p.AutoExecute,
		string(p.AutoExecuteMaxRisk), p.MaxActionsPerDay,
		p.RequireApprovalAboveScore, p.RespectEarlyWarnings,
		p.PauseOnHighSeverityWarning, nullableString(string(rules)),
		p.CreatedAt, p.UpdatedAt, nullableString(p.UpdatedBy))
	return err
}

// Delete removes the policy row for the scope.
func (s *PolicyStore) Delete(ctx context.Context, workspaceID, clientID string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM policies WHERE workspace_id=? AND client_id=?`,
		workspaceID, clientID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return policy.ErrPolicyNotFound
	}
	return nil
}

// ListWorkspace returns all policy rows for a workspace.
func (s *PolicyStore) ListWorkspace(ctx context.Context, workspaceID string) ([]policy.AgentPolicy, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+policyColumns+` FROM policies WHERE workspace_id=? ORDER BY client_id`,
		workspaceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []policy.AgentPolicy
	for rows.Next() {
		p, err := scanPolicyRow(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *p)
	}
	return result, rows.Err()
}

// rowScanner abstracts *sql.Row and *sql.Rows for shared scanning.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanPolicy(row *sql.Row) (*policy.AgentPolicy, error) {
	p, err := scanPolicyRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, policy.ErrPolicyNotFound
	}
	return p, err
}

func scanPolicyRow(row rowScanner) (*policy.AgentPolicy, error) {
	var (
		p          policy.AgentPolicy
		allowedRaw string
		rulesRaw   string
		maxRisk    string
	)
	err := row.Scan(&p.WorkspaceID, &p.ClientID, &p.Enabled, &allowedRaw,
		&p.AutoExecute, &maxRisk, &p.MaxActionsPerDay,
		&p.RequireApprovalAboveScore, &p.RespectEarlyWarnings,
		&p.PauseOnHighSeverityWarning, &rulesRaw, &p.CreatedAt, &p.UpdatedAt,
		&p.UpdatedBy)
	if err != nil {
		return nil, err
	}
	p.AutoExecuteMaxRisk = risk.Level(maxRisk)
	if err := json.Unmarshal([]byte(allowedRaw), &p.AllowedActions); err != nil {
		return nil, fmt.Errorf("unmarshal allowed actions: %w", err)
	}
	if rulesRaw != "" {
		if err := json.Unmarshal([]byte(rulesRaw), &p.GuardRules); err != nil {
			return nil, fmt.Errorf("unmarshal guard rules: %w", err)
		}
	}
	return &p, nil
}

// nullableString converts empty strings to NULL.
func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// Compile-time interface verification.
var _ policy.PolicyStore = (*PolicyStore)(nil)
