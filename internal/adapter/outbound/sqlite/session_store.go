package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/wardenlabs/warden/internal/domain/session"
)

// SessionStore implements session.SessionStore on SQLite.
type SessionStore struct {
	db *sql.DB
}

// NewSessionStore creates a SQLite-backed session store.
func NewSessionStore(db *sql.DB) *SessionStore {
	return &SessionStore{db: db}
}

const sessionColumns = `id, workspace_id, client_id, kind, status,
	COALESCE(messages,''), actions_proposed, actions_executed,
	actions_rejected, avg_risk_score, avg_truth_score, started_at, ended_at,
	duration_ms, COALESCE(error,'')`

// Create persists a new session.
func (s *SessionStore) Create(ctx context.Context, sess *session.Session) error {
	messages, err := marshalMessages(sess.Messages)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `INSERT INTO sessions(
			id, workspace_id, client_id, kind, status, messages,
			actions_proposed, actions_executed, actions_rejected,
			avg_risk_score, avg_truth_score, started_at, ended_at,
			duration_ms, error
		) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		sess.ID, sess.WorkspaceID, sess.ClientID, string(sess.Kind),
		string(sess.Status), messages, sess.ActionsProposed,
		sess.ActionsExecuted, sess.ActionsRejected, sess.AvgRiskScore,
		sess.AvgTruthScore, sess.StartedAt, sess.EndedAt, sess.DurationMS,
		nullableString(sess.Error))
	return err
}

// Get returns a session by id.
func (s *SessionStore) Get(ctx context.Context, id string) (*session.Session, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE id=?`, id)
	sess, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, session.ErrSessionNotFound
	}
	return sess, err
}

// Update replaces a persisted session.
func (s *SessionStore) Update(ctx context.Context, sess *session.Session) error {
	messages, err := marshalMessages(sess.Messages)
	if err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx, `UPDATE sessions SET
			status=?, messages=?, actions_proposed=?, actions_executed=?,
			actions_rejected=?, avg_risk_score=?, avg_truth_score=?,
			ended_at=?, duration_ms=?, error=?
		WHERE id=?`,
		string(sess.Status), messages, sess.ActionsProposed,
		sess.ActionsExecuted, sess.ActionsRejected, sess.AvgRiskScore,
		sess.AvgTruthScore, sess.EndedAt, sess.DurationMS,
		nullableString(sess.Error), sess.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return session.ErrSessionNotFound
	}
	return nil
}

// ListByWorkspace returns the most recent sessions for a workspace,
// newest first.
func (s *SessionStore) ListByWorkspace(ctx context.Context, workspaceID string, limit int) ([]session.Session, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions
			WHERE workspace_id=? ORDER BY started_at DESC LIMIT ?`,
		workspaceID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []session.Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *sess)
	}
	return result, rows.Err()
}

func scanSession(row rowScanner) (*session.Session, error) {
	var (
		sess        session.Session
		kind        string
		status      string
		messagesRaw string
		endedAt     sql.NullTime
	)
	err := row.Scan(&sess.ID, &sess.WorkspaceID, &sess.ClientID, &kind,
		&status, &messagesRaw, &sess.ActionsProposed, &sess.ActionsExecuted,
		&sess.ActionsRejected, &sess.AvgRiskScore, &sess.AvgTruthScore,
		&sess.StartedAt, &endedAt, &sess.DurationMS, &sess.Error)
	if err != nil {
		return nil, err
	}

	sess.Kind = session.Kind(kind)
	sess.Status = session.Status(status)
	if endedAt.Valid {
		t := endedAt.Time.UTC()
		sess.EndedAt = &t
	}
	if messagesRaw != "" {
		if err := json.Unmarshal([]byte(messagesRaw), &sess.Messages); err != nil {
			return nil, fmt.Errorf("unmarshal session messages: %w", err)
		}
	}
	return &sess, nil
}

func marshalMessages(msgs []session.Message) (any, error) {
	if len(msgs) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(msgs)
	if err != nil {
		return nil, fmt.Errorf("marshal session messages: %w", err)
	}
	return string(b), nil
}

// Compile-time interface verification.
var _ session.SessionStore = (*SessionStore)(nil)
