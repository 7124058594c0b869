package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/wardenlabs/warden/internal/domain/policy"
	"github.com/wardenlabs/warden/internal/domain/proposal"
	"github.com/wardenlabs/warden/internal/domain/risk"
)

func writeSeedFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "policies.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write seed file: %v", err)
	}
	return path
}

func TestLoadPolicySeeds(t *testing.T) {
	path := writeSeedFile(t, `
policies:
  - workspace_id: acme
    enabled: true
    allowed_actions: [add_tag, create_note, send_followup]
    auto_execute: true
    auto_execute_max_risk: low
    max_actions_per_day: 10
    require_approval_above_score: 70
    respect_early_warnings: true
    pause_on_high_severity_warning: true
  - workspace_id: acme
    client_id: client-vip
    enabled: true
    allowed_actions: [create_note]
    auto_execute: false
    auto_execute_max_risk: low
    guard_rules:
      - name: vip-review
        condition: client_score > 90
        effect: require_approval
`)

	policies, err := LoadPolicySeeds(path, "ops@acme")
	if err != nil {
		t.Fatalf("LoadPolicySeeds() error = %v", err)
	}
	if len(policies) != 2 {
		t.Fatalf("len(policies) = %d, want 2", len(policies))
	}

	ws := policies[0]
	if ws.WorkspaceID != "acme" || ws.ClientID != "" {
		t.Errorf("workspace row scope = %s/%q", ws.WorkspaceID, ws.ClientID)
	}
	if !ws.AutoExecute || ws.AutoExecuteMaxRisk != risk.LevelLow || ws.MaxActionsPerDay != 10 {
		t.Errorf("workspace row = %+v", ws)
	}
	if len(ws.AllowedActions) != 3 || ws.AllowedActions[2] != proposal.KindSendFollowup {
		t.Errorf("AllowedActions = %v", ws.AllowedActions)
	}
	if ws.UpdatedBy != "ops@acme" || ws.UpdatedAt.IsZero() {
		t.Errorf("seed stamping = %q/%v", ws.UpdatedBy, ws.UpdatedAt)
	}

	vip := policies[1]
	if !vip.IsClientSpecific() || vip.ClientID != "client-vip" {
		t.Errorf("client row scope = %q", vip.ClientID)
	}
	if len(vip.GuardRules) != 1 || vip.GuardRules[0].Effect != policy.GuardEffectRequireApproval {
		t.Errorf("GuardRules = %+v", vip.GuardRules)
	}
}

func TestLoadPolicySeedsValidation(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			"missing workspace id",
			`
policies:
  - enabled: true
    allowed_actions: [add_tag]
    auto_execute_max_risk: low
`,
			"required",
		},
		{
			"unknown action kind",
			`
policies:
  - workspace_id: acme
    allowed_actions: [delete_everything]
    auto_execute_max_risk: low
`,
			"action_kind",
		},
		{
			"bad risk level",
			`
policies:
  - workspace_id: acme
    allowed_actions: [add_tag]
    auto_execute_max_risk: extreme
`,
			"one of",
		},
		{
			"bad guard effect",
			`
policies:
  - workspace_id: acme
    allowed_actions: [add_tag]
    auto_execute_max_risk: low
    guard_rules:
      - name: r1
        condition: "true"
        effect: explode
`,
			"one of",
		},
		{
			"empty document",
			`policies: []`,
			"required",
		},
		{
			"not yaml",
			`{{{`,
			"parse seed file",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeSeedFile(t, tt.content)
			_, err := LoadPolicySeeds(path, "ops")
			if err == nil {
				t.Fatalf("LoadPolicySeeds() error = nil, want containing %q", tt.wantErr)
			}
			if !strings.Contains(strings.ToLower(err.Error()), tt.wantErr) {
				t.Errorf("LoadPolicySeeds() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoadPolicySeedsMissingFile(t *testing.T) {
	if _, err := LoadPolicySeeds(filepath.Join(t.TempDir(), "nope.yaml"), "ops"); err == nil {
		t.Error("LoadPolicySeeds(missing) error = nil, want error")
	}
}
