// Package session groups the messages and actions of one client-agent
// interaction, interactive or scheduled.
package session

import "time"

// Kind distinguishes how a session was initiated.
type Kind string

const (
	// KindInteractive sessions are driven by a human conversation.
	KindInteractive Kind = "interactive"
	// KindScheduled sessions are opened by the proactive evaluation loop.
	KindScheduled Kind = "scheduled"
)

// Status is the session lifecycle state.
type Status string

const (
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusPaused    Status = "paused"
	StatusError     Status = "error"
)

// Role identifies the author of a session message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAgent     Role = "agent"
	RoleSystemLog Role = "system"
)

// Message is one entry in the session's ordered message log.
type Message struct {
	Role    Role      `json:"role"`
	Content string    `json:"content"`
	SentAt  time.Time `json:"sent_at"`
}

// Session is the bounded interaction during which proposals are generated
// and acted upon.
type Session struct {
	ID          string `json:"id"`
	WorkspaceID string `json:"workspace_id"`
	// ClientID is empty for workspace-wide sessions.
	ClientID string `json:"client_id,omitempty"`
	Kind     Kind   `json:"kind"`
	Status   Status `json:"status"`

	// Messages is the ordered message log.
	Messages []Message `json:"messages,omitempty"`

	// Running counters, updated as action events occur.
	ActionsProposed int `json:"actions_proposed"`
	ActionsExecuted int `json:"actions_executed"`
	ActionsRejected int `json:"actions_rejected"`

	// AvgRiskScore is the running mean risk score of proposed actions.
	AvgRiskScore float64 `json:"avg_risk_score"`
	// AvgTruthScore is the running mean truth-compliance score (0-100).
	AvgTruthScore float64 `json:"avg_truth_score"`

	StartedAt time.Time `json:"started_at"`
	// EndedAt is set when the session closes.
	EndedAt *time.Time `json:"ended_at,omitempty"`
	// DurationMS is the wall time from start to close.
	DurationMS int64 `json:"duration_ms,omitempty"`
	// Error holds the failure message for sessions closed with StatusError.
	Error string `json:"error,omitempty"`
}

// IsOpen reports whether the session can still accept events.
func (s *Session) IsOpen() bool {
	return s.Status == StatusActive || s.Status == StatusPaused
}
