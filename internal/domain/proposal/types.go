// Package proposal contains the planner-facing action proposal types.
// A proposal is ephemeral: it only becomes durable once the action log
// admits it (see internal/domain/action).
package proposal

// ActionKind enumerates the operations the agent may propose.
type ActionKind string

const (
	KindAddTag          ActionKind = "add_tag"
	KindRemoveTag       ActionKind = "remove_tag"
	KindUpdateStatus    ActionKind = "update_status"
	KindUpdateScore     ActionKind = "update_score"
	KindCreateNote      ActionKind = "create_note"
	KindScheduleTask    ActionKind = "schedule_task"
	KindSendFollowup    ActionKind = "send_followup"
	KindGenerateContent ActionKind = "generate_content"
	KindSendNotify      ActionKind = "send_notification"
)

// AllKinds lists every known action kind in ascending base-risk order.
func AllKinds() []ActionKind {
	return []ActionKind{
		KindAddTag,
		KindCreateNote,
		KindRemoveTag,
		KindUpdateStatus,
		KindUpdateScore,
		KindScheduleTask,
		KindGenerateContent,
		KindSendFollowup,
		KindSendNotify,
	}
}

// IsValid reports whether k is a known action kind.
func (k ActionKind) IsValid() bool {
	for _, known := range AllKinds() {
		if k == known {
			return true
		}
	}
	return false
}

// DataSource is a citation backing a proposal's claim.
type DataSource struct {
	// Name identifies the source (e.g., "interaction history", "user request").
	Name string `json:"name"`
	// Reliability is the source's trustworthiness in [0,1].
	Reliability float64 `json:"reliability"`
	// Recency describes how fresh the source data is (e.g., "current",
	// "2 days old").
	Recency string `json:"recency"`
}

// ActionProposal is a planner-suggested operation awaiting admission control.
type ActionProposal struct {
	// Kind is the proposed operation.
	Kind ActionKind `json:"kind"`
	// Payload carries kind-specific parameters (e.g., tag name).
	Payload map[string]any `json:"payload,omitempty"`
	// Reasoning is the planner's free-form justification.
	Reasoning string `json:"reasoning"`
	// Confidence is the planner's self-reported confidence in [0,1].
	// Nil means the planner did not report one; the truth adapter
	// defaults it before guardrails run.
	Confidence *float64 `json:"confidence,omitempty"`
	// DataSources are the citations backing the proposal.
	DataSources []DataSource `json:"data_sources,omitempty"`
}

// ConfidenceOr returns the confidence, or def when unset.
func (p ActionProposal) ConfidenceOr(def float64) float64 {
	if p.Confidence == nil {
		return def
	}
	return *p.Confidence
}

// MeanSourceReliability returns the mean reliability of the cited sources,
// and false when no sources are cited.
func (p ActionProposal) MeanSourceReliability() (float64, bool) {
	if len(p.DataSources) == 0 {
		return 0, false
	}
	var sum float64
	for _, s := range p.DataSources {
		sum += s.Reliability
	}
	return sum / float64(len(p.DataSources)), true
}

// Float64Ptr is a convenience for building proposals with literal confidences.
func Float64Ptr(v float64) *float64 { return &v }
