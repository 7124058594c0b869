// Package audit contains domain types for the guardrail decision audit trail.
package audit

import (
	"strings"
	"time"
)

// Decision constants for audit records.
const (
	// DecisionAllow means the proposal cleared all guardrails.
	DecisionAllow = "allow"
	// DecisionBlock means at least one guardrail blocked the proposal.
	DecisionBlock = "block"
)

// Record is a single auditable guardrail decision or lifecycle event.
type Record struct {
	// Timestamp is when the decision was made (UTC).
	Timestamp time.Time `json:"timestamp"`
	// WorkspaceID scopes the record.
	WorkspaceID string `json:"workspace_id"`
	// ClientID is empty for workspace-scoped decisions.
	ClientID string `json:"client_id,omitempty"`
	// SessionID of the evaluation session, when one exists.
	SessionID string `json:"session_id,omitempty"`
	// ActionID of the persisted action, empty for blocked proposals.
	ActionID string `json:"action_id,omitempty"`
	// Kind is the proposed action kind.
	Kind string `json:"kind"`
	// Decision is "allow" or "block".
	Decision string `json:"decision"`
	// FailedChecks names the checks that did not pass, with severity
	// (e.g., "rate_limit:block", "risk:warn").
	FailedChecks []string `json:"failed_checks,omitempty"`
	// RiskScore and RiskLevel capture the assessment at decision time.
	RiskScore float64 `json:"risk_score"`
	RiskLevel string  `json:"risk_level"`
	// Status is the approval status the action was created in.
	Status string `json:"status,omitempty"`
	// Mode is auto, manual, or override.
	Mode string `json:"mode,omitempty"`
	// Reason is the aggregated guardrail message.
	Reason string `json:"reason"`
	// Payload is the (redacted) action payload.
	Payload map[string]any `json:"payload,omitempty"`
	// LatencyMicros is the guardrail evaluation latency in microseconds.
	LatencyMicros int64 `json:"latency_micros"`
}

// sensitiveKeywords lists substrings that indicate a sensitive payload key.
// Comparison is case-insensitive.
var sensitiveKeywords = []string{
	"password", "secret", "token", "api_key", "apikey",
	"credential", "auth", "private_key", "privatekey",
}

// RedactSensitivePayload returns a copy of payload with sensitive values
// masked. A key is sensitive if it contains any of the sensitiveKeywords.
func RedactSensitivePayload(payload map[string]any) map[string]any {
	if len(payload) == 0 {
		return payload
	}
	redacted := make(map[string]any, len(payload))
	for k, v := range payload {
		if isSensitiveKey(k) {
			redacted[k] = "***REDACTED***"
		} else {
			redacted[k] = v
		}
	}
	return redacted
}

// isSensitiveKey checks if a key name indicates sensitive data.
func isSensitiveKey(key string) bool {
	lower := strings.ToLower(key)
	for _, kw := range sensitiveKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
