// Package cel provides a CEL-based evaluator for operator-authored guard
// rules. Expressions see the proposal and context as plain variables:
// kind, payload, confidence, risk_score, risk_level, warning_count,
// client_score.
package cel

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/cel-go/cel"

	"github.com/wardenlabs/warden/internal/domain/guardrail"
	"github.com/wardenlabs/warden/internal/domain/policy"
)

// maxExpressionLength bounds guard-rule expressions.
const maxExpressionLength = 1024

// maxCostBudget is the CEL runtime cost limit per evaluation.
const maxCostBudget = 100_000

// evalTimeout bounds a single rule evaluation.
const evalTimeout = 2 * time.Second

// Evaluator compiles and evaluates guard-rule expressions, caching
// compiled programs per expression text.
type Evaluator struct {
	env      *cel.Env
	mu       sync.Mutex
	programs map[string]cel.Program
}

// NewEvaluator creates an evaluator with the guard-rule environment.
func NewEvaluator() (*Evaluator, error) {
	env, err := cel.NewEnv(
		cel.Variable("kind", cel.StringType),
		cel.Variable("payload", cel.MapType(cel.StringType, cel.DynType)),
		cel.Variable("confidence", cel.DoubleType),
		cel.Variable("risk_score", cel.DoubleType),
		cel.Variable("risk_level", cel.StringType),
		cel.Variable("warning_count", cel.IntType),
		cel.Variable("client_score", cel.IntType),
	)
	if err != nil {
		return nil, fmt.Errorf("create guard-rule environment: %w", err)
	}
	return &Evaluator{
		env:      env,
		programs: make(map[string]cel.Program),
	}, nil
}

// ValidateExpression checks that an expression compiles and returns a
// boolean. Called before persisting policies so invalid CEL never reaches
// the store.
func (e *Evaluator) ValidateExpression(expression string) error {
	_, err := e.compile(expression)
	return err
}

// EvaluateRule evaluates one guard rule against the input. Compile and
// evaluation failures are returned as errors; the guardrail engine fails
// closed on them.
func (e *Evaluator) EvaluateRule(ctx context.Context, rule policy.GuardRule, input guardrail.GuardInput) (bool, error) {
	prg, err := e.compile(rule.Condition)
	if err != nil {
		return false, fmt.Errorf("rule %q: %w", rule.Name, err)
	}

	evalCtx, cancel := context.WithTimeout(ctx, evalTimeout)
	defer cancel()

	payload := input.Payload
	if payload == nil {
		payload = map[string]any{}
	}

	out, _, err := prg.ContextEval(evalCtx, map[string]any{
		"kind":          input.Kind,
		"payload":       payload,
		"confidence":    input.Confidence,
		"risk_score":    input.RiskScore,
		"risk_level":    input.RiskLevel,
		"warning_count": input.WarningCount,
		"client_score":  input.ClientScore,
	})
	if err != nil {
		return false, fmt.Errorf("rule %q evaluation: %w", rule.Name, err)
	}

	matched, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("rule %q did not evaluate to a boolean", rule.Name)
	}
	return matched, nil
}

// compile returns a cached program for the expression, compiling on miss.
func (e *Evaluator) compile(expression string) (cel.Program, error) {
	if len(expression) > maxExpressionLength {
		return nil, fmt.Errorf("expression too long: %d chars (max %d)", len(expression), maxExpressionLength)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if prg, ok := e.programs[expression]; ok {
		return prg, nil
	}

	ast, issues := e.env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compilation failed: %w", issues.Err())
	}
	if ast.OutputType() != cel.BoolType {
		return nil, fmt.Errorf("expression must evaluate to bool, got %s", ast.OutputType())
	}

	prg, err := e.env.Program(ast,
		cel.EvalOptions(cel.OptOptimize),
		cel.CostLimit(maxCostBudget),
	)
	if err != nil {
		return nil, fmt.Errorf("program creation failed: %w", err)
	}

	e.programs[expression] = prg
	return prg, nil
}

// Compile-time check that Evaluator implements guardrail.RuleEvaluator.
var _ guardrail.RuleEvaluator = (*Evaluator)(nil)
