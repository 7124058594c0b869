package planner

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/wardenlabs/warden/internal/domain/proposal"
)

const degradedMessage = "I could not complete the analysis for this client right now, so no actions are proposed."

const plannerSystemPrompt = `You are a CRM assistant that proposes follow-up actions for one client.
Respond with a single JSON object of the form:
{"message": "...", "reasoning_trace": "...", "proposals": [{"kind": "...", "payload": {...}, "reasoning": "...", "confidence": 0.0, "data_sources": [{"name": "...", "reliability": 0.0, "recency": "..."}]}]}
Allowed kinds: %s.
Propose at most three actions. Confidence is your honest probability the action helps, between 0 and 1. Cite the context fields you relied on as data_sources. If nothing is worth doing, return an empty proposals array and say why in message.`

// chatCompleter is the slice of the OpenAI client the planner uses.
type chatCompleter interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// OpenAIConfig configures the OpenAI-backed planner.
type OpenAIConfig struct {
	// APIKey is the OpenAI API key.
	APIKey string
	// Model defaults to gpt-4o-mini.
	Model string
	// Timeout bounds one completion call (default 30s).
	Timeout time.Duration
}

// OpenAIPlanner generates proposals with an OpenAI chat completion.
type OpenAIPlanner struct {
	client  chatCompleter
	model   string
	timeout time.Duration
	logger  *slog.Logger
}

// NewOpenAIPlanner creates a planner backed by the OpenAI API.
func NewOpenAIPlanner(cfg OpenAIConfig, logger *slog.Logger) *OpenAIPlanner {
	if cfg.Model == "" {
		cfg.Model = openai.GPT4oMini
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &OpenAIPlanner{
		client:  openai.NewClient(cfg.APIKey),
		model:   cfg.Model,
		timeout: cfg.Timeout,
		logger:  logger,
	}
}

// plannerOutput is the JSON shape the model is instructed to return.
type plannerOutput struct {
	Message        string `json:"message"`
	ReasoningTrace string `json:"reasoning_trace"`
	Proposals      []struct {
		Kind        string                `json:"kind"`
		Payload     map[string]any        `json:"payload"`
		Reasoning   string                `json:"reasoning"`
		Confidence  *float64              `json:"confidence"`
		DataSources []proposal.DataSource `json:"data_sources"`
	} `json:"proposals"`
}

// Plan asks the model for proposals. API and parse failures degrade to an
// empty proposal list so a cohort run keeps going.
func (p *OpenAIPlanner) Plan(ctx context.Context, req PlanRequest) (PlanResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	userPrompt, err := buildUserPrompt(req)
	if err != nil {
		p.logger.Warn("planner degraded: encode context", "client_id", req.ClientID, "error", err)
		return PlanResponse{Message: degradedMessage}, nil
	}

	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: p.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPromptFor(req)},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Temperature: 0.1,
		MaxTokens:   2000,
	})
	if err != nil {
		p.logger.Warn("planner degraded: completion failed",
			"client_id", req.ClientID, "model", p.model, "error", err)
		return PlanResponse{Message: degradedMessage}, nil
	}
	if len(resp.Choices) == 0 {
		p.logger.Warn("planner degraded: no choices", "client_id", req.ClientID)
		return PlanResponse{Message: degradedMessage}, nil
	}

	var out plannerOutput
	if err := json.Unmarshal([]byte(resp.Choices[0].Message.Content), &out); err != nil {
		p.logger.Warn("planner degraded: unparseable response",
			"client_id", req.ClientID, "error", err)
		return PlanResponse{Message: degradedMessage}, nil
	}

	result := PlanResponse{
		Message:        out.Message,
		ReasoningTrace: out.ReasoningTrace,
	}
	for _, raw := range out.Proposals {
		kind := proposal.ActionKind(raw.Kind)
		if !kindAllowed(req, kind) {
			p.logger.Debug("planner proposal dropped",
				"client_id", req.ClientID, "kind", raw.Kind)
			continue
		}
		result.Proposals = append(result.Proposals, proposal.ActionProposal{
			Kind:        kind,
			Payload:     raw.Payload,
			Reasoning:   raw.Reasoning,
			Confidence:  raw.Confidence,
			DataSources: raw.DataSources,
		})
	}

	p.logger.Debug("planner completed",
		"client_id", req.ClientID,
		"model", p.model,
		"proposals", len(result.Proposals),
		"tokens_used", resp.Usage.TotalTokens)
	return result, nil
}

func systemPromptFor(req PlanRequest) string {
	kinds := req.AllowedKinds
	if len(kinds) == 0 {
		kinds = proposal.AllKinds()
	}
	names := make([]string, len(kinds))
	for i, k := range kinds {
		names[i] = string(k)
	}
	return fmt.Sprintf(plannerSystemPrompt, strings.Join(names, ", "))
}

// buildUserPrompt serializes the client context for the model.
func buildUserPrompt(req PlanRequest) (string, error) {
	snapshot, err := json.Marshal(struct {
		Profile      any `json:"profile,omitempty"`
		Interactions any `json:"recent_interactions,omitempty"`
		Metrics      any `json:"performance_metrics,omitempty"`
		Warnings     any `json:"early_warnings,omitempty"`
	}{
		Profile:      req.Snapshot.ClientProfile,
		Interactions: req.Snapshot.RecentInteractions,
		Metrics:      req.Snapshot.PerformanceMetrics,
		Warnings:     req.Snapshot.EarlyWarnings,
	})
	if err != nil {
		return "", fmt.Errorf("marshal snapshot: %w", err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Client context:\n%s\n", snapshot)
	if req.Instruction != "" {
		fmt.Fprintf(&b, "\nOperator instruction: %s\n", req.Instruction)
	} else {
		b.WriteString("\nThis is a scheduled proactive review. Propose actions only if the context justifies them.\n")
	}
	return b.String(), nil
}

// Compile-time interface verification.
var _ Planner = (*OpenAIPlanner)(nil)
