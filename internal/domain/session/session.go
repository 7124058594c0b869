package session

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// SessionService manages session lifecycle and running statistics.
type SessionService struct {
	store SessionStore
}

// NewSessionService creates a SessionService backed by the given store.
func NewSessionService(store SessionStore) *SessionService {
	return &SessionService{store: store}
}

// Start opens a new active session for the scope.
func (s *SessionService) Start(ctx context.Context, workspaceID, clientID string, kind Kind) (*Session, error) {
	sess := &Session{
		ID:          uuid.New().String(),
		WorkspaceID: workspaceID,
		ClientID:    clientID,
		Kind:        kind,
		Status:      StatusActive,
		StartedAt:   time.Now().UTC(),
	}
	if err := s.store.Create(ctx, sess); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	return sess, nil
}

// AppendMessage adds a message to the session's ordered log.
func (s *SessionService) AppendMessage(ctx context.Context, id string, role Role, content string) error {
	return s.mutate(ctx, id, func(sess *Session) error {
		sess.Messages = append(sess.Messages, Message{
			Role:    role,
			Content: content,
			SentAt:  time.Now().UTC(),
		})
		return nil
	})
}

// RecordProposed counts a proposed action and folds its risk and truth
// scores into the session's running averages.
func (s *SessionService) RecordProposed(ctx context.Context, id string, riskScore float64, truthScore int) error {
	return s.mutate(ctx, id, func(sess *Session) error {
		n := float64(sess.ActionsProposed)
		sess.AvgRiskScore = (sess.AvgRiskScore*n + riskScore) / (n + 1)
		sess.AvgTruthScore = (sess.AvgTruthScore*n + float64(truthScore)) / (n + 1)
		sess.ActionsProposed++
		return nil
	})
}

// RecordExecuted counts an executed action.
func (s *SessionService) RecordExecuted(ctx context.Context, id string) error {
	return s.mutate(ctx, id, func(sess *Session) error {
		sess.ActionsExecuted++
		return nil
	})
}

// RecordRejected counts a rejected or blocked action.
func (s *SessionService) RecordRejected(ctx context.Context, id string) error {
	return s.mutate(ctx, id, func(sess *Session) error {
		sess.ActionsRejected++
		return nil
	})
}

// Close ends the session with the given terminal status, stamping the end
// time and duration. Closing an already closed session is an error.
func (s *SessionService) Close(ctx context.Context, id string, status Status) error {
	if status != StatusCompleted && status != StatusError {
		return fmt.Errorf("close session: %q is not a terminal status", status)
	}
	return s.mutate(ctx, id, func(sess *Session) error {
		if !sess.IsOpen() {
			return fmt.Errorf("session %s already closed (%s)", id, sess.Status)
		}
		now := time.Now().UTC()
		sess.Status = status
		sess.EndedAt = &now
		sess.DurationMS = now.Sub(sess.StartedAt).Milliseconds()
		return nil
	})
}

// Fail closes the session with StatusError and records the failure message.
func (s *SessionService) Fail(ctx context.Context, id string, cause string) error {
	return s.mutate(ctx, id, func(sess *Session) error {
		if !sess.IsOpen() {
			return fmt.Errorf("session %s already closed (%s)", id, sess.Status)
		}
		now := time.Now().UTC()
		sess.Status = StatusError
		sess.Error = cause
		sess.EndedAt = &now
		sess.DurationMS = now.Sub(sess.StartedAt).Milliseconds()
		return nil
	})
}

// Get returns a session by id.
func (s *SessionService) Get(ctx context.Context, id string) (*Session, error) {
	return s.store.Get(ctx, id)
}

// mutate applies fn to a freshly loaded session and stores it back.
func (s *SessionService) mutate(ctx context.Context, id string, fn func(*Session) error) error {
	sess, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := fn(sess); err != nil {
		return err
	}
	if err := s.store.Update(ctx, sess); err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	return nil
}
