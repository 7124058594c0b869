package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/wardenlabs/warden/internal/adapter/outbound/planner"
	"github.com/wardenlabs/warden/internal/domain/action"
	"github.com/wardenlabs/warden/internal/domain/agentctx"
	"github.com/wardenlabs/warden/internal/domain/guardrail"
	"github.com/wardenlabs/warden/internal/domain/policy"
	"github.com/wardenlabs/warden/internal/domain/proposal"
	"github.com/wardenlabs/warden/internal/domain/session"
	"github.com/wardenlabs/warden/internal/domain/truth"
)

// ErrEvaluationInProgress is returned when a run is requested for a
// workspace that already has one in flight.
var ErrEvaluationInProgress = errors.New("evaluation already in progress for workspace")

// ContextProvider supplies the client cohort and per-client context
// snapshots for a workspace.
type ContextProvider interface {
	ListClients(ctx context.Context, workspaceID string) ([]string, error)
	Snapshot(ctx context.Context, workspaceID, clientID string) (agentctx.Snapshot, error)
}

// Report summarizes one evaluation run.
type Report struct {
	ClientsEvaluated int      `json:"clients_evaluated"`
	Proposed         int      `json:"proposed"`
	Executed         int      `json:"executed"`
	Errors           []string `json:"errors,omitempty"`
}

// EvaluationService runs the proactive loop: it walks a workspace's client
// cohort, asks the planner for proposals, and pushes each proposal through
// truth adaptation, guardrails, admission, and (when permitted) execution.
type EvaluationService struct {
	planner   planner.Planner
	contexts  ContextProvider
	policies  *policy.Resolver
	guard     *guardrail.Engine
	actionLog *ActionLogService
	executor  *ExecutorService
	sessions  *session.SessionService
	metrics   *Metrics
	logger    *slog.Logger

	// Dedupe suppresses identical proposals within one run (default on,
	// disable via config for debugging planners).
	dedupe bool

	mu       sync.Mutex
	inflight map[string]bool
}

// EvaluationConfig tunes the evaluation loop.
type EvaluationConfig struct {
	// Dedupe drops proposals with a fingerprint already seen in this run.
	Dedupe bool
}

// NewEvaluationService wires the evaluation loop.
func NewEvaluationService(
	pl planner.Planner,
	contexts ContextProvider,
	policies *policy.Resolver,
	guard *guardrail.Engine,
	actionLog *ActionLogService,
	executor *ExecutorService,
	sessions *session.SessionService,
	cfg EvaluationConfig,
	metrics *Metrics,
	logger *slog.Logger,
) *EvaluationService {
	return &EvaluationService{
		planner:   pl,
		contexts:  contexts,
		policies:  policies,
		guard:     guard,
		actionLog: actionLog,
		executor:  executor,
		sessions:  sessions,
		dedupe:    cfg.Dedupe,
		metrics:   metrics,
		logger:    logger,
		inflight:  make(map[string]bool),
	}
}

// RunEvaluation evaluates every client in the workspace sequentially. One
// run per workspace at a time; per-client failures are collected in the
// report instead of aborting the batch.
func (s *EvaluationService) RunEvaluation(ctx context.Context, workspaceID string) (Report, error) {
	if err := s.acquire(workspaceID); err != nil {
		return Report{}, err
	}
	defer s.release(workspaceID)

	if s.metrics != nil {
		s.metrics.ActiveEvaluations.Inc()
		defer s.metrics.ActiveEvaluations.Dec()
	}

	var report Report
	clients, err := s.contexts.ListClients(ctx, workspaceID)
	if err != nil {
		if s.metrics != nil {
			s.metrics.EvaluationsTotal.WithLabelValues("error").Inc()
		}
		return Report{}, fmt.Errorf("list clients: %w", err)
	}

	s.logger.Info("evaluation run started",
		"workspace_id", workspaceID, "clients", len(clients))

	for _, clientID := range clients {
		if err := ctx.Err(); err != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("run cancelled: %v", err))
			break
		}
		if err := s.evaluateClient(ctx, workspaceID, clientID, &report); err != nil {
			report.Errors = append(report.Errors,
				fmt.Sprintf("client %s: %v", clientID, err))
		}
	}

	result := "ok"
	if len(report.Errors) > 0 {
		result = "error"
	}
	if s.metrics != nil {
		s.metrics.EvaluationsTotal.WithLabelValues(result).Inc()
	}
	s.logger.Info("evaluation run finished",
		"workspace_id", workspaceID,
		"clients_evaluated", report.ClientsEvaluated,
		"proposed", report.Proposed,
		"executed", report.Executed,
		"errors", len(report.Errors))
	return report, nil
}

// evaluateClient runs one client through plan, guard, admit, execute.
func (s *EvaluationService) evaluateClient(ctx context.Context, workspaceID, clientID string, report *Report) error {
	pol, err := s.policies.Resolve(ctx, workspaceID, clientID)
	if err != nil {
		return fmt.Errorf("resolve policy: %w", err)
	}
	if !pol.Enabled {
		s.logger.Debug("client skipped, agent disabled",
			"workspace_id", workspaceID, "client_id", clientID)
		return nil
	}
	report.ClientsEvaluated++

	snap, err := s.contexts.Snapshot(ctx, workspaceID, clientID)
	if err != nil {
		return fmt.Errorf("load snapshot: %w", err)
	}

	sess, err := s.sessions.Start(ctx, workspaceID, clientID, session.KindScheduled)
	if err != nil {
		return fmt.Errorf("start session: %w", err)
	}

	plan, err := s.planner.Plan(ctx, planner.PlanRequest{
		WorkspaceID:  workspaceID,
		ClientID:     clientID,
		Snapshot:     snap,
		AllowedKinds: pol.AllowedActions,
	})
	if err != nil {
		_ = s.sessions.Fail(ctx, sess.ID, fmt.Sprintf("planner: %v", err))
		return fmt.Errorf("plan: %w", err)
	}
	if plan.Message != "" {
		if err := s.sessions.AppendMessage(ctx, sess.ID, session.RoleAgent, plan.Message); err != nil {
			s.logger.Warn("append session message failed", "session_id", sess.ID, "error", err)
		}
	}

	seen := make(map[uint64]bool, len(plan.Proposals))
	var clientErr error
	for _, p := range plan.Proposals {
		if err := ctx.Err(); err != nil {
			clientErr = err
			break
		}

		adapted, disclaimers := truth.Adapt(p)

		if s.dedupe {
			fp := proposal.Fingerprint(adapted)
			if seen[fp] {
				s.logger.Debug("duplicate proposal skipped",
					"client_id", clientID, "kind", adapted.Kind)
				continue
			}
			seen[fp] = true
		}

		if s.metrics != nil {
			s.metrics.ProposalsTotal.Inc()
		}
		report.Proposed++

		decision, err := s.guard.Check(ctx, adapted, pol, snap, workspaceID, clientID)
		if err != nil {
			clientErr = errors.Join(clientErr, fmt.Errorf("guardrail: %w", err))
			continue
		}

		tScore := truthScoreFor(adapted, decision)
		if err := s.sessions.RecordProposed(ctx, sess.ID, decision.RiskAssessment.Score, tScore); err != nil {
			s.logger.Warn("record proposed failed", "session_id", sess.ID, "error", err)
		}

		if !decision.Allowed {
			s.actionLog.LogBlocked(ctx, sess.ID, workspaceID, clientID, adapted, decision)
			if err := s.sessions.RecordRejected(ctx, sess.ID); err != nil {
				s.logger.Warn("record rejected failed", "session_id", sess.ID, "error", err)
			}
			continue
		}

		executed, err := s.admit(ctx, sess.ID, workspaceID, clientID, adapted, snap, pol, decision, tScore, disclaimers)
		if err != nil {
			clientErr = errors.Join(clientErr, err)
			continue
		}
		if executed {
			report.Executed++
			if err := s.sessions.RecordExecuted(ctx, sess.ID); err != nil {
				s.logger.Warn("record executed failed", "session_id", sess.ID, "error", err)
			}
		}
	}

	if clientErr != nil {
		_ = s.sessions.Fail(ctx, sess.ID, clientErr.Error())
		return clientErr
	}
	if err := s.sessions.Close(ctx, sess.ID, session.StatusCompleted); err != nil {
		s.logger.Warn("close session failed", "session_id", sess.ID, "error", err)
	}
	return nil
}

// admit logs an allowed proposal and executes it when policy, risk, and
// truth quality all permit. Returns whether the action executed
// successfully.
func (s *EvaluationService) admit(
	ctx context.Context,
	sessionID, workspaceID, clientID string,
	p proposal.ActionProposal,
	snap agentctx.Snapshot,
	pol policy.AgentPolicy,
	decision guardrail.Decision,
	truthScore int,
	disclaimers []string,
) (bool, error) {
	auto := pol.AutoExecute &&
		pol.CanAutoExecute(decision.RiskAssessment.Level) &&
		!decision.RequiresApproval &&
		!hasWarnings(decision) &&
		truthScore >= pol.RequireApprovalAboveScore

	req := LogRequest{
		SessionID:   sessionID,
		WorkspaceID: workspaceID,
		ClientID:    clientID,
		Proposal:    p,
		Snapshot:    snap,
		Decision:    decision,
		Disclaimers: disclaimers,
	}

	if !auto {
		req.Status = action.StatusAwaitingApproval
		req.Mode = action.ModeManual
		_, err := s.actionLog.LogAction(ctx, req)
		if err != nil {
			return false, fmt.Errorf("log action: %w", err)
		}
		return false, nil
	}

	// Auto path: execute first, then persist in the final status, so the
	// record never claims an execution that did not happen.
	candidate := &action.Action{
		WorkspaceID: workspaceID,
		ClientID:    clientID,
		Kind:        p.Kind,
		Payload:     p.Payload,
	}
	res := s.executor.Execute(ctx, candidate)

	req.Mode = action.ModeAuto
	req.Result = &res
	if res.Success {
		req.Status = action.StatusAutoExecuted
	} else {
		req.Status = action.StatusExecutionFailed
	}
	if _, err := s.actionLog.LogAction(ctx, req); err != nil {
		return false, fmt.Errorf("log action: %w", err)
	}
	return res.Success, nil
}

// truthScoreFor scores the proposal as if it were already an action, using
// the assessment the guardrail engine computed.
func truthScoreFor(p proposal.ActionProposal, decision guardrail.Decision) int {
	return truth.Score(action.Action{
		Kind:        p.Kind,
		RiskLevel:   decision.RiskAssessment.Level,
		Confidence:  p.ConfidenceOr(truth.DefaultConfidence),
		DataSources: p.DataSources,
		Reasoning:   p.Reasoning,
	})
}

// hasWarnings reports whether any check failed at warn severity.
func hasWarnings(d guardrail.Decision) bool {
	for _, c := range d.Checks {
		if !c.Passed && c.Severity == guardrail.SeverityWarn {
			return true
		}
	}
	return false
}

func (s *EvaluationService) acquire(workspaceID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inflight[workspaceID] {
		return fmt.Errorf("workspace %s: %w", workspaceID, ErrEvaluationInProgress)
	}
	s.inflight[workspaceID] = true
	return nil
}

func (s *EvaluationService) release(workspaceID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inflight, workspaceID)
}
