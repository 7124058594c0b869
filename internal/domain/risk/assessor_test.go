package risk

import (
	"testing"

	"github.com/wardenlabs/warden/internal/domain/agentctx"
	"github.com/wardenlabs/warden/internal/domain/proposal"
)

func TestAssessBaseRisk(t *testing.T) {
	tests := []struct {
		kind      proposal.ActionKind
		wantScore float64
		wantLevel Level
	}{
		{proposal.KindAddTag, 0.10, LevelLow},
		{proposal.KindCreateNote, 0.10, LevelLow},
		{proposal.KindRemoveTag, 0.15, LevelLow},
		{proposal.KindUpdateStatus, 0.20, LevelLow},
		{proposal.KindUpdateScore, 0.25, LevelLow},
		{proposal.KindScheduleTask, 0.30, LevelLow},
		{proposal.KindGenerateContent, 0.35, LevelMedium},
		{proposal.KindSendFollowup, 0.50, LevelMedium},
		{proposal.KindSendNotify, 0.60, LevelMedium},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			got := Assess(proposal.ActionProposal{Kind: tt.kind}, agentctx.Snapshot{})
			if got.Score != tt.wantScore {
				t.Errorf("Assess(%s).Score = %.2f, want %.2f", tt.kind, got.Score, tt.wantScore)
			}
			if got.Level != tt.wantLevel {
				t.Errorf("Assess(%s).Level = %s, want %s", tt.kind, got.Level, tt.wantLevel)
			}
			if len(got.Factors) != 1 || got.Factors[0].Name != "base_risk" {
				t.Errorf("Assess(%s).Factors = %v, want single base_risk factor", tt.kind, got.Factors)
			}
		})
	}
}

func TestAssessUnknownKind(t *testing.T) {
	got := Assess(proposal.ActionProposal{Kind: "delete_everything"}, agentctx.Snapshot{})
	if got.Score != 0.50 {
		t.Errorf("Assess(unknown).Score = %.2f, want 0.50", got.Score)
	}
	if got.Level != LevelMedium {
		t.Errorf("Assess(unknown).Level = %s, want %s", got.Level, LevelMedium)
	}
}

func TestAssessAdjustments(t *testing.T) {
	highValue := agentctx.Snapshot{
		ClientProfile: &agentctx.Profile{ClientID: "c1", Score: 85},
	}
	warned := agentctx.Snapshot{
		EarlyWarnings: []agentctx.EarlyWarning{
			{ID: "ew-1", Severity: agentctx.SeverityHigh, Active: true},
		},
	}
	resolvedWarning := agentctx.Snapshot{
		EarlyWarnings: []agentctx.EarlyWarning{
			{ID: "ew-1", Severity: agentctx.SeverityHigh, Active: false},
		},
	}

	tests := []struct {
		name       string
		p          proposal.ActionProposal
		snap       agentctx.Snapshot
		wantScore  float64
		wantFactor string
	}{
		{
			name:       "high value client adds 0.15",
			p:          proposal.ActionProposal{Kind: proposal.KindAddTag},
			snap:       highValue,
			wantScore:  0.25,
			wantFactor: "high_value_client",
		},
		{
			name:       "active high severity warning adds 0.20",
			p:          proposal.ActionProposal{Kind: proposal.KindAddTag},
			snap:       warned,
			wantScore:  0.30,
			wantFactor: "high_severity_warning",
		},
		{
			name:       "low confidence adds 0.10",
			p:          proposal.ActionProposal{Kind: proposal.KindAddTag, Confidence: proposal.Float64Ptr(0.4)},
			snap:       agentctx.Snapshot{},
			wantScore:  0.20,
			wantFactor: "low_confidence",
		},
		{
			name:      "resolved warning adds nothing",
			p:         proposal.ActionProposal{Kind: proposal.KindAddTag},
			snap:      resolvedWarning,
			wantScore: 0.10,
		},
		{
			name:      "confidence at ceiling adds nothing",
			p:         proposal.ActionProposal{Kind: proposal.KindAddTag, Confidence: proposal.Float64Ptr(0.6)},
			snap:      agentctx.Snapshot{},
			wantScore: 0.10,
		},
		{
			name:      "client below score floor adds nothing",
			p:         proposal.ActionProposal{Kind: proposal.KindAddTag},
			snap:      agentctx.Snapshot{ClientProfile: &agentctx.Profile{Score: 79}},
			wantScore: 0.10,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Assess(tt.p, tt.snap)
			if got.Score != tt.wantScore {
				t.Errorf("Assess().Score = %.2f, want %.2f", got.Score, tt.wantScore)
			}
			if tt.wantFactor != "" && !hasFactor(got, tt.wantFactor) {
				t.Errorf("Assess().Factors = %v, want factor %q", got.Factors, tt.wantFactor)
			}
		})
	}
}

func TestAssessClampsAtOne(t *testing.T) {
	p := proposal.ActionProposal{
		Kind:       proposal.KindSendNotify,
		Confidence: proposal.Float64Ptr(0.3),
	}
	snap := agentctx.Snapshot{
		ClientProfile: &agentctx.Profile{Score: 95},
		EarlyWarnings: []agentctx.EarlyWarning{
			{ID: "ew-1", Severity: agentctx.SeverityHigh, Active: true},
		},
	}

	got := Assess(p, snap)
	if got.Score != 1.0 {
		t.Errorf("Assess().Score = %.2f, want clamped 1.0", got.Score)
	}
	if got.Level != LevelHigh {
		t.Errorf("Assess().Level = %s, want %s", got.Level, LevelHigh)
	}
	// All four contributing factors are still recorded past the clamp.
	if len(got.Factors) != 4 {
		t.Errorf("len(Factors) = %d, want 4", len(got.Factors))
	}
}

func TestAssessDeterministic(t *testing.T) {
	p := proposal.ActionProposal{Kind: proposal.KindSendFollowup, Confidence: proposal.Float64Ptr(0.55)}
	snap := agentctx.Snapshot{ClientProfile: &agentctx.Profile{Score: 90}}

	first := Assess(p, snap)
	second := Assess(p, snap)
	if first.Score != second.Score || first.Level != second.Level {
		t.Errorf("Assess() not deterministic: %+v vs %+v", first, second)
	}
}

func TestBucketScore(t *testing.T) {
	tests := []struct {
		score float64
		want  Level
	}{
		{0.0, LevelLow},
		{0.30, LevelLow},
		{0.31, LevelMedium},
		{0.60, LevelMedium},
		{0.61, LevelHigh},
		{1.0, LevelHigh},
	}

	for _, tt := range tests {
		if got := BucketScore(tt.score); got != tt.want {
			t.Errorf("BucketScore(%.2f) = %s, want %s", tt.score, got, tt.want)
		}
	}
}

func hasFactor(a Assessment, name string) bool {
	for _, f := range a.Factors {
		if f.Name == name {
			return true
		}
	}
	return false
}
