// Package agentctx contains the read-only client context snapshot the
// agent evaluates proposals against. The snapshot is assembled by an
// external aggregator; absent fields mean "unknown", never zero.
package agentctx

import "time"

// Severity classifies an early warning.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Profile is the client's CRM profile at snapshot time.
type Profile struct {
	// ClientID identifies the client record.
	ClientID string
	// Name is the client's display name.
	Name string
	// Score is the client's engagement/value score (0-100).
	Score int
	// Status is the CRM lifecycle status (e.g., "lead", "active", "churned").
	Status string
	// Tags currently attached to the client record.
	Tags []string
}

// Interaction is a single recent touchpoint with the client.
type Interaction struct {
	// Kind is the interaction channel (e.g., "email", "call", "meeting").
	Kind string
	// Summary is a short human-readable description.
	Summary string
	// OccurredAt is when the interaction happened (UTC).
	OccurredAt time.Time
}

// Metrics holds aggregate performance figures for the client relationship.
type Metrics struct {
	// OpenRate is the fraction of outreach the client engaged with (0-1).
	OpenRate float64
	// ResponseRate is the fraction of outreach the client replied to (0-1).
	ResponseRate float64
	// DaysSinceLastContact counts days since the most recent interaction.
	DaysSinceLastContact int
}

// EarlyWarning is an active or resolved risk signal on the client.
type EarlyWarning struct {
	// ID identifies the warning.
	ID string
	// Severity is low, medium, or high.
	Severity Severity
	// Kind categorizes the warning (e.g., "churn_risk", "payment_overdue").
	Kind string
	// Message is the human-readable warning text.
	Message string
	// Active is true while the warning has not been resolved.
	Active bool
	// RaisedAt is when the warning was raised (UTC).
	RaisedAt time.Time
}

// Snapshot is the full read-only context for one client.
// Nil pointer fields mean the aggregator had no data, not "zero".
type Snapshot struct {
	ClientProfile      *Profile
	RecentInteractions []Interaction
	PerformanceMetrics *Metrics
	EarlyWarnings      []EarlyWarning
}

// ActiveWarnings returns the warnings that are still active.
func (s Snapshot) ActiveWarnings() []EarlyWarning {
	var active []EarlyWarning
	for _, w := range s.EarlyWarnings {
		if w.Active {
			active = append(active, w)
		}
	}
	return active
}

// ActiveCount returns the number of active warnings of any severity.
func (s Snapshot) ActiveCount() int {
	count := 0
	for _, w := range s.EarlyWarnings {
		if w.Active {
			count++
		}
	}
	return count
}

// HasActiveHighSeverity reports whether any active warning is high severity.
func (s Snapshot) HasActiveHighSeverity() bool {
	for _, w := range s.EarlyWarnings {
		if w.Active && w.Severity == SeverityHigh {
			return true
		}
	}
	return false
}

// FirstActiveHighSeverity returns the first active high-severity warning,
// or nil if there is none. Used to link an action to its trigger.
func (s Snapshot) FirstActiveHighSeverity() *EarlyWarning {
	for i, w := range s.EarlyWarnings {
		if w.Active && w.Severity == SeverityHigh {
			return &s.EarlyWarnings[i]
		}
	}
	return nil
}
