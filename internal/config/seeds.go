package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/wardenlabs/warden/internal/domain/policy"
	"github.com/wardenlabs/warden/internal/domain/proposal"
	"github.com/wardenlabs/warden/internal/domain/risk"
)

// PolicySeed is one policy row in a YAML seed file, used by
// `warden policies import` to bootstrap a workspace.
type PolicySeed struct {
	WorkspaceID                string   `yaml:"workspace_id" validate:"required"`
	ClientID                   string   `yaml:"client_id"`
	Enabled                    bool     `yaml:"enabled"`
	AllowedActions             []string `yaml:"allowed_actions" validate:"required,min=1,dive,action_kind"`
	AutoExecute                bool     `yaml:"auto_execute"`
	AutoExecuteMaxRisk         string   `yaml:"auto_execute_max_risk" validate:"required,oneof=low medium high"`
	MaxActionsPerDay           int      `yaml:"max_actions_per_day" validate:"min=0"`
	RequireApprovalAboveScore  int      `yaml:"require_approval_above_score" validate:"min=0,max=100"`
	RespectEarlyWarnings       bool     `yaml:"respect_early_warnings"`
	PauseOnHighSeverityWarning bool     `yaml:"pause_on_high_severity_warning"`
	GuardRules                 []struct {
		Name      string `yaml:"name" validate:"required"`
		Condition string `yaml:"condition" validate:"required,max=1024"`
		Effect    string `yaml:"effect" validate:"required,oneof=block require_approval warn"`
	} `yaml:"guard_rules" validate:"omitempty,dive"`
}

// seedFile is the top-level YAML document shape.
type seedFile struct {
	Policies []PolicySeed `yaml:"policies" validate:"required,min=1,dive"`
}

// LoadPolicySeeds parses and validates a YAML policy seed file and converts
// the rows into domain policies, stamped with the current time and updater.
func LoadPolicySeeds(path, updatedBy string) ([]policy.AgentPolicy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}

	var file seedFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse seed file: %w", err)
	}

	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.RegisterValidation("action_kind", validateActionKind); err != nil {
		return nil, fmt.Errorf("register action_kind validator: %w", err)
	}
	if err := v.Struct(&file); err != nil {
		return nil, fmt.Errorf("seed file validation: %w", formatValidationErrors(err))
	}

	now := time.Now().UTC()
	policies := make([]policy.AgentPolicy, 0, len(file.Policies))
	for _, seed := range file.Policies {
		p := policy.AgentPolicy{
			WorkspaceID:                seed.WorkspaceID,
			ClientID:                   seed.ClientID,
			Enabled:                    seed.Enabled,
			AutoExecute:                seed.AutoExecute,
			AutoExecuteMaxRisk:         risk.Level(seed.AutoExecuteMaxRisk),
			MaxActionsPerDay:           seed.MaxActionsPerDay,
			RequireApprovalAboveScore:  seed.RequireApprovalAboveScore,
			RespectEarlyWarnings:       seed.RespectEarlyWarnings,
			PauseOnHighSeverityWarning: seed.PauseOnHighSeverityWarning,
			CreatedAt:                  now,
			UpdatedAt:                  now,
			UpdatedBy:                  updatedBy,
		}
		for _, kind := range seed.AllowedActions {
			p.AllowedActions = append(p.AllowedActions, proposal.ActionKind(kind))
		}
		for _, rule := range seed.GuardRules {
			p.GuardRules = append(p.GuardRules, policy.GuardRule{
				Name:      rule.Name,
				Condition: rule.Condition,
				Effect:    policy.GuardEffect(rule.Effect),
			})
		}
		policies = append(policies, p)
	}
	return policies, nil
}

// validateActionKind accepts any known action kind name.
func validateActionKind(fl validator.FieldLevel) bool {
	return proposal.ActionKind(fl.Field().String()).IsValid()
}
