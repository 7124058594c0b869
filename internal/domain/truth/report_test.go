package truth

import (
	"strings"
	"testing"

	"github.com/wardenlabs/warden/internal/domain/action"
	"github.com/wardenlabs/warden/internal/domain/proposal"
	"github.com/wardenlabs/warden/internal/domain/risk"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name            string
		a               action.Action
		wantCompliant   bool
		wantIssue       string
		wantDisclaimer  string
		wantDisclaimers int
	}{
		{
			name: "compliant action",
			a: action.Action{
				Confidence:  0.9,
				Reasoning:   "engagement dropped sharply",
				RiskLevel:   risk.LevelLow,
				DataSources: []proposal.DataSource{{Name: "crm", Reliability: 0.9, Recency: "current"}},
			},
			wantCompliant: true,
		},
		{
			name: "low confidence blocks",
			a: action.Action{
				Confidence: 0.4,
				Reasoning:  "weak signal",
				RiskLevel:  risk.LevelLow,
			},
			wantCompliant: false,
			wantIssue:     "below the 0.5 compliance floor",
		},
		{
			name: "moderate confidence only discloses",
			a: action.Action{
				Confidence: 0.6,
				Reasoning:  "decent signal",
				RiskLevel:  risk.LevelLow,
			},
			wantCompliant:   true,
			wantDisclaimer:  "Moderate confidence",
			wantDisclaimers: 1,
		},
		{
			name: "unreliable sources block",
			a: action.Action{
				Confidence: 0.9,
				Reasoning:  "hearsay",
				RiskLevel:  risk.LevelLow,
				DataSources: []proposal.DataSource{
					{Name: "rumor", Reliability: 0.2, Recency: "current"},
					{Name: "guess", Reliability: 0.4, Recency: "current"},
				},
			},
			wantCompliant: false,
			wantIssue:     "mean data-source reliability",
		},
		{
			name: "stale source discloses",
			a: action.Action{
				Confidence:  0.9,
				Reasoning:   "old data",
				RiskLevel:   risk.LevelLow,
				DataSources: []proposal.DataSource{{Name: "export", Reliability: 0.9, Recency: "5 days old"}},
			},
			wantCompliant:   true,
			wantDisclaimer:  "not current",
			wantDisclaimers: 1,
		},
		{
			name: "high risk discloses",
			a: action.Action{
				Confidence: 0.9,
				Reasoning:  "big move",
				RiskLevel:  risk.LevelHigh,
			},
			wantCompliant:   true,
			wantDisclaimer:  "High-risk action",
			wantDisclaimers: 1,
		},
		{
			name: "hedged reasoning discloses",
			a: action.Action{
				Confidence: 0.9,
				Reasoning:  "this might help, though the cause is unclear",
				RiskLevel:  risk.LevelLow,
			},
			wantCompliant:   true,
			wantDisclaimer:  "expresses uncertainty",
			wantDisclaimers: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rep := Validate(tt.a)
			if rep.Compliant != tt.wantCompliant {
				t.Errorf("Validate().Compliant = %t, want %t (issues: %v)", rep.Compliant, tt.wantCompliant, rep.Issues)
			}
			if tt.wantIssue != "" && !containsSubstring(rep.Issues, tt.wantIssue) {
				t.Errorf("Validate().Issues = %v, want one containing %q", rep.Issues, tt.wantIssue)
			}
			if tt.wantDisclaimer != "" && !containsSubstring(rep.Disclaimers, tt.wantDisclaimer) {
				t.Errorf("Validate().Disclaimers = %v, want one containing %q", rep.Disclaimers, tt.wantDisclaimer)
			}
			if tt.wantDisclaimers > 0 && len(rep.Disclaimers) != tt.wantDisclaimers {
				t.Errorf("len(Disclaimers) = %d, want %d", len(rep.Disclaimers), tt.wantDisclaimers)
			}
		})
	}
}

func TestScore(t *testing.T) {
	longReasoning := strings.Repeat("the client has been unresponsive ", 4) // >100 chars

	tests := []struct {
		name string
		a    action.Action
		want int
	}{
		{
			name: "full marks",
			a: action.Action{
				Confidence:  1.0,
				Reasoning:   longReasoning,
				RiskLevel:   risk.LevelLow,
				DataSources: []proposal.DataSource{{Name: "crm", Reliability: 1.0, Recency: "current"}},
			},
			want: 100,
		},
		{
			// 0.9*40 + 0.8*30 + 15 + 10 = 85
			name: "typical compliant action",
			a: action.Action{
				Confidence:  0.9,
				Reasoning:   strings.Repeat("x", 60),
				RiskLevel:   risk.LevelMedium,
				DataSources: []proposal.DataSource{{Name: "crm", Reliability: 0.8, Recency: "current"}},
			},
			want: 85,
		},
		{
			// 0.5*40 + 0 + 5 + 0 = 25; no sources means no reliability credit,
			// and 0.5 misses the high-risk 0.8 floor.
			name: "sparse high-risk action",
			a: action.Action{
				Confidence: 0.5,
				Reasoning:  "short",
				RiskLevel:  risk.LevelHigh,
			},
			want: 25,
		},
		{
			name: "zero everything still floors at the depth minimum",
			a:    action.Action{RiskLevel: risk.LevelMedium},
			want: 5,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Score(tt.a); got != tt.want {
				t.Errorf("Score() = %d, want %d", got, tt.want)
			}
		})
	}
}

func containsSubstring(xs []string, sub string) bool {
	for _, x := range xs {
		if strings.Contains(x, sub) {
			return true
		}
	}
	return false
}
