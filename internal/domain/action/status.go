// Package action contains the durable action record and its approval
// lifecycle. The state machine is encoded as an explicit transition table
// so an illegal transition is a guard failure, not a convention.
package action

import "errors"

// ApprovalStatus is the lifecycle state of a logged action.
type ApprovalStatus string

const (
	// StatusAwaitingApproval is the initial state for actions that need
	// a human decision.
	StatusAwaitingApproval ApprovalStatus = "awaiting_approval"
	// StatusAutoExecuted means guardrails and policy jointly permitted
	// immediate execution and it succeeded.
	StatusAutoExecuted ApprovalStatus = "auto_executed"
	// StatusApprovedExecuted means a human approved and execution succeeded.
	StatusApprovedExecuted ApprovalStatus = "approved_executed"
	// StatusRejected means a human rejected the action.
	StatusRejected ApprovalStatus = "rejected"
	// StatusExecutionFailed means execution was attempted and failed.
	// Kept distinct from StatusRejected so audit trails separate system
	// failure from human judgment.
	StatusExecutionFailed ApprovalStatus = "execution_failed"
	// StatusExpired means the action sat unreviewed past the staleness
	// window. Surfaced by a query, never by a timer.
	StatusExpired ApprovalStatus = "expired"
)

// ErrInvalidTransition is returned when a status change violates the
// transition table.
var ErrInvalidTransition = errors.New("invalid approval status transition")

// allowedTransitions is the full approval state machine. Actions are
// created in StatusAwaitingApproval or directly in StatusAutoExecuted /
// StatusExecutionFailed (auto path); every other state is terminal.
var allowedTransitions = map[ApprovalStatus][]ApprovalStatus{
	StatusAwaitingApproval: {
		StatusApprovedExecuted,
		StatusRejected,
		StatusExecutionFailed,
		StatusExpired,
	},
	StatusAutoExecuted:     nil,
	StatusApprovedExecuted: nil,
	StatusRejected:         nil,
	StatusExecutionFailed:  nil,
	StatusExpired:          nil,
}

// IsValid reports whether s is a known approval status.
func (s ApprovalStatus) IsValid() bool {
	_, ok := allowedTransitions[s]
	return ok
}

// IsTerminal reports whether no transition leaves s.
func (s ApprovalStatus) IsTerminal() bool {
	next, ok := allowedTransitions[s]
	return ok && len(next) == 0
}

// IsExecuted reports whether s represents a completed execution. Only
// executed statuses count against the daily rate limit.
func (s ApprovalStatus) IsExecuted() bool {
	return s == StatusAutoExecuted || s == StatusApprovedExecuted
}

// CanTransition reports whether the state machine permits from -> to.
func CanTransition(from, to ApprovalStatus) bool {
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ValidInitialStatus reports whether an action may be created directly in s.
func ValidInitialStatus(s ApprovalStatus) bool {
	switch s {
	case StatusAwaitingApproval, StatusAutoExecuted, StatusExecutionFailed:
		return true
	default:
		return false
	}
}
