package planner

import (
	"context"
	"fmt"

	"github.com/wardenlabs/warden/internal/domain/proposal"
)

// StaticPlanner proposes actions from fixed heuristics over the snapshot.
// Used in dev mode and tests where no model is available.
type StaticPlanner struct {
	// StaleContactDays is the gap that triggers a follow-up proposal
	// (default 14).
	StaleContactDays int
}

// NewStaticPlanner creates a heuristic planner with defaults.
func NewStaticPlanner() *StaticPlanner {
	return &StaticPlanner{StaleContactDays: 14}
}

// Plan derives proposals from three signals: an active high-severity
// warning, a stale contact gap, and a high engagement score.
func (p *StaticPlanner) Plan(_ context.Context, req PlanRequest) (PlanResponse, error) {
	snap := req.Snapshot
	var proposals []proposal.ActionProposal

	if w := snap.FirstActiveHighSeverity(); w != nil {
		proposals = append(proposals, proposal.ActionProposal{
			Kind: proposal.KindCreateNote,
			Payload: map[string]any{
				"content": fmt.Sprintf("High-severity warning active (%s): %s", w.Kind, w.Message),
			},
			Reasoning:  fmt.Sprintf("An active high-severity %s warning was raised and should be visible on the record.", w.Kind),
			Confidence: proposal.Float64Ptr(0.9),
			DataSources: []proposal.DataSource{
				{Name: "early_warnings", Reliability: 0.95, Recency: "current"},
			},
		}, proposal.ActionProposal{
			Kind: proposal.KindScheduleTask,
			Payload: map[string]any{
				"title":    "Review early warning",
				"due_days": 1,
			},
			Reasoning:  "A human should review the active high-severity warning within a day.",
			Confidence: proposal.Float64Ptr(0.85),
			DataSources: []proposal.DataSource{
				{Name: "early_warnings", Reliability: 0.95, Recency: "current"},
			},
		})
	}

	staleDays := p.StaleContactDays
	if staleDays <= 0 {
		staleDays = 14
	}
	if m := snap.PerformanceMetrics; m != nil && m.DaysSinceLastContact >= staleDays {
		proposals = append(proposals, proposal.ActionProposal{
			Kind: proposal.KindSendFollowup,
			Payload: map[string]any{
				"template": "reengage",
			},
			Reasoning:  fmt.Sprintf("No contact in %d days; a re-engagement follow-up typically recovers the thread.", m.DaysSinceLastContact),
			Confidence: proposal.Float64Ptr(0.7),
			DataSources: []proposal.DataSource{
				{Name: "performance_metrics", Reliability: 0.9, Recency: "current"},
			},
		})
	}

	if prof := snap.ClientProfile; prof != nil && prof.Score >= 80 && !hasTag(prof.Tags, "hot") {
		proposals = append(proposals, proposal.ActionProposal{
			Kind: proposal.KindAddTag,
			Payload: map[string]any{
				"tag": "hot",
			},
			Reasoning:  fmt.Sprintf("Engagement score %d is in the top band; tagging keeps the record in the priority segment.", prof.Score),
			Confidence: proposal.Float64Ptr(0.8),
			DataSources: []proposal.DataSource{
				{Name: "client_profile", Reliability: 0.95, Recency: "current"},
			},
		})
	}

	allowed := proposals[:0]
	for _, pr := range proposals {
		if kindAllowed(req, pr.Kind) {
			allowed = append(allowed, pr)
		}
	}

	resp := PlanResponse{Proposals: allowed}
	if len(allowed) == 0 {
		resp.Message = "No action needed based on the current context."
	} else {
		resp.Message = fmt.Sprintf("Proposed %d action(s) from context heuristics.", len(allowed))
	}
	return resp, nil
}

func hasTag(tags []string, want string) bool {
	for _, t := range tags {
		if t == want {
			return true
		}
	}
	return false
}

// Compile-time interface verification.
var _ Planner = (*StaticPlanner)(nil)
