// Package service contains application services: the action log, the
// executor, and the proactive evaluation loop that ties planner, policy,
// guardrails, and stores together.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/wardenlabs/warden/internal/domain/action"
	"github.com/wardenlabs/warden/internal/domain/agentctx"
	"github.com/wardenlabs/warden/internal/domain/audit"
	"github.com/wardenlabs/warden/internal/domain/guardrail"
	"github.com/wardenlabs/warden/internal/domain/proposal"
	"github.com/wardenlabs/warden/internal/domain/risk"
	"github.com/wardenlabs/warden/internal/domain/truth"
)

// LogRequest carries one admitted proposal into the action log.
type LogRequest struct {
	SessionID   string
	WorkspaceID string
	ClientID    string
	Proposal    proposal.ActionProposal
	Snapshot    agentctx.Snapshot
	// Decision is the guardrail outcome for the proposal; its check
	// results feed the audit record.
	Decision guardrail.Decision
	// Status must be a valid initial status: awaiting_approval for the
	// manual path, auto_executed or execution_failed for the auto path.
	Status action.ApprovalStatus
	Mode   action.ExecutionMode
	// Result must be set iff Status is an executed or failed status.
	Result *action.ExecutionResult
	// Disclaimers accumulated by the truth adapter before admission.
	Disclaimers []string
}

// ActionLogService persists admitted actions, guards their lifecycle
// transitions, and writes the decision audit trail.
type ActionLogService struct {
	actions  action.ActionStore
	executor *ExecutorService
	auditor  audit.AuditStore
	metrics  *Metrics
	logger   *slog.Logger
	now      func() time.Time
}

// NewActionLogService creates the action log. executor may be nil when the
// human approval path is not wired (read-only CLI commands).
func NewActionLogService(actions action.ActionStore, executor *ExecutorService, auditor audit.AuditStore, metrics *Metrics, logger *slog.Logger) *ActionLogService {
	return &ActionLogService{
		actions:  actions,
		executor: executor,
		auditor:  auditor,
		metrics:  metrics,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// LogAction computes the risk assessment inline, runs truth validation for
// the compliance flag, persists the action, and emits the audit record.
func (s *ActionLogService) LogAction(ctx context.Context, req LogRequest) (*action.Action, error) {
	if !action.ValidInitialStatus(req.Status) {
		return nil, fmt.Errorf("log action: %q is not a valid initial status", req.Status)
	}
	if (req.Result != nil) != executedStatus(req.Status) {
		return nil, fmt.Errorf("log action: execution result must be set iff status is executed, got %q", req.Status)
	}

	assessment := risk.Assess(req.Proposal, req.Snapshot)
	now := s.now()

	a := &action.Action{
		ID:          uuid.New().String(),
		SessionID:   req.SessionID,
		WorkspaceID: req.WorkspaceID,
		ClientID:    req.ClientID,
		Kind:        req.Proposal.Kind,
		Payload:     req.Proposal.Payload,
		RiskLevel:   assessment.Level,
		RiskScore:   assessment.Score,
		RiskFactors: assessment.Factors,
		Status:      req.Status,
		Mode:        req.Mode,
		Confidence:  req.Proposal.ConfidenceOr(truth.DefaultConfidence),
		DataSources: req.Proposal.DataSources,
		Reasoning:   req.Proposal.Reasoning,
		CreatedAt:   now,
	}
	if req.Result != nil {
		a.ExecutedAt = &now
		a.ExecutionResult = req.Result
	}
	if w := req.Snapshot.FirstActiveHighSeverity(); w != nil {
		a.TriggeringWarningID = w.ID
	}

	report := truth.Validate(*a)
	a.TruthCompliant = report.Compliant
	a.Disclaimers = append(append([]string(nil), req.Disclaimers...), report.Disclaimers...)

	if err := s.actions.Insert(ctx, a); err != nil {
		return nil, fmt.Errorf("insert action: %w", err)
	}

	s.audit(ctx, auditEvent{
		workspaceID: req.WorkspaceID,
		clientID:    req.ClientID,
		sessionID:   req.SessionID,
		actionID:    a.ID,
		kind:        a.Kind,
		decision:    audit.DecisionAllow,
		guard:       req.Decision,
		status:      a.Status,
		mode:        a.Mode,
		payload:     a.Payload,
	})
	if s.metrics != nil {
		s.metrics.ActionsTotal.WithLabelValues(string(a.Status), string(a.Mode)).Inc()
	}

	s.logger.Info("action logged",
		"action_id", a.ID,
		"kind", a.Kind,
		"status", a.Status,
		"risk_level", a.RiskLevel,
		"risk_score", a.RiskScore,
		"client_id", a.ClientID)
	return a, nil
}

// LogBlocked audits a proposal the guardrails rejected. Blocked proposals
// are never persisted as actions; the audit trail is their only trace.
func (s *ActionLogService) LogBlocked(ctx context.Context, sessionID, workspaceID, clientID string, p proposal.ActionProposal, d guardrail.Decision) {
	s.audit(ctx, auditEvent{
		workspaceID: workspaceID,
		clientID:    clientID,
		sessionID:   sessionID,
		kind:        p.Kind,
		decision:    audit.DecisionBlock,
		guard:       d,
		payload:     p.Payload,
	})
	s.logger.Info("proposal blocked",
		"kind", p.Kind,
		"client_id", clientID,
		"reason", d.Message)
}

// UpdateActionStatus transitions an action through the approval state
// machine. Approver and reason are stamped for the human-decision statuses.
func (s *ActionLogService) UpdateActionStatus(ctx context.Context, id string, status action.ApprovalStatus, approver, reason string) (*action.Action, error) {
	a, err := s.actions.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !action.CanTransition(a.Status, status) {
		return nil, fmt.Errorf("transition %s -> %s: %w", a.Status, status, action.ErrInvalidTransition)
	}

	now := s.now()
	a.Status = status
	switch status {
	case action.StatusApprovedExecuted, action.StatusRejected:
		a.ApprovedBy = approver
		a.ApprovedAt = &now
	}
	if status == action.StatusRejected {
		a.RejectionReason = reason
	}

	if err := s.actions.Update(ctx, a); err != nil {
		return nil, fmt.Errorf("update action: %w", err)
	}
	if s.metrics != nil {
		s.metrics.ActionsTotal.WithLabelValues(string(a.Status), string(a.Mode)).Inc()
	}
	return a, nil
}

// RecordExecution finishes the human-approved execution path: it stamps
// the execution time and result, and moves the action to approved_executed
// or execution_failed.
func (s *ActionLogService) RecordExecution(ctx context.Context, id string, res action.ExecutionResult) (*action.Action, error) {
	a, err := s.actions.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	target := action.StatusApprovedExecuted
	if !res.Success {
		target = action.StatusExecutionFailed
	}
	if !action.CanTransition(a.Status, target) {
		return nil, fmt.Errorf("transition %s -> %s: %w", a.Status, target, action.ErrInvalidTransition)
	}

	now := s.now()
	a.Status = target
	a.ExecutedAt = &now
	a.ExecutionResult = &res

	if err := s.actions.Update(ctx, a); err != nil {
		return nil, fmt.Errorf("update action: %w", err)
	}
	if s.metrics != nil {
		s.metrics.ActionsTotal.WithLabelValues(string(a.Status), string(a.Mode)).Inc()
	}
	return a, nil
}

// Approve executes a pending action on behalf of a human approver and
// records the outcome. No guardrails run here: approval is the human
// override surface.
func (s *ActionLogService) Approve(ctx context.Context, id, approver string) (*action.Action, error) {
	if s.executor == nil {
		return nil, fmt.Errorf("approve action: no executor wired")
	}

	a, err := s.actions.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if a.Status != action.StatusAwaitingApproval {
		return nil, fmt.Errorf("approve %s -> executed: %w", a.Status, action.ErrInvalidTransition)
	}

	now := s.now()
	a.ApprovedBy = approver
	a.ApprovedAt = &now
	a.Mode = action.ModeManual

	res := s.executor.Execute(ctx, a)
	target := action.StatusApprovedExecuted
	if !res.Success {
		target = action.StatusExecutionFailed
	}
	a.Status = target
	a.ExecutedAt = &now
	a.ExecutionResult = &res

	if err := s.actions.Update(ctx, a); err != nil {
		return nil, fmt.Errorf("update action: %w", err)
	}
	if s.metrics != nil {
		s.metrics.ActionsTotal.WithLabelValues(string(a.Status), string(a.Mode)).Inc()
	}

	s.logger.Info("action approved",
		"action_id", a.ID,
		"approver", approver,
		"status", a.Status,
		"success", res.Success)
	return a, nil
}

// Reject marks a pending action rejected by a human reviewer.
func (s *ActionLogService) Reject(ctx context.Context, id, approver, reason string) (*action.Action, error) {
	a, err := s.UpdateActionStatus(ctx, id, action.StatusRejected, approver, reason)
	if err != nil {
		return nil, err
	}
	s.logger.Info("action rejected",
		"action_id", a.ID,
		"approver", approver,
		"reason", reason)
	return a, nil
}

// GetAction returns one action by id.
func (s *ActionLogService) GetAction(ctx context.Context, id string) (*action.Action, error) {
	return s.actions.Get(ctx, id)
}

// GetPendingActions returns all awaiting_approval actions for a workspace.
func (s *ActionLogService) GetPendingActions(ctx context.Context, workspaceID string) ([]action.Action, error) {
	return s.actions.ListPending(ctx, workspaceID)
}

// GetSessionActions returns every action logged during a session.
func (s *ActionLogService) GetSessionActions(ctx context.Context, sessionID string) ([]action.Action, error) {
	return s.actions.ListBySession(ctx, sessionID)
}

// GetClientActionHistory returns the most recent actions for a client.
func (s *ActionLogService) GetClientActionHistory(ctx context.Context, workspaceID, clientID string, limit int) ([]action.Action, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.actions.ListByClient(ctx, workspaceID, clientID, limit)
}

// GetExpired returns pending actions older than the staleness window.
// Staleness is query-time state, not a background timer.
func (s *ActionLogService) GetExpired(ctx context.Context, workspaceID string, olderThan time.Duration) ([]action.Action, error) {
	cutoff := s.now().Add(-olderThan)
	return s.actions.ListPendingOlderThan(ctx, workspaceID, cutoff)
}

// ExpireStale transitions every over-age pending action to expired and
// returns how many were moved.
func (s *ActionLogService) ExpireStale(ctx context.Context, workspaceID string, olderThan time.Duration) (int, error) {
	stale, err := s.GetExpired(ctx, workspaceID, olderThan)
	if err != nil {
		return 0, err
	}

	expired := 0
	for i := range stale {
		if _, err := s.UpdateActionStatus(ctx, stale[i].ID, action.StatusExpired, "", ""); err != nil {
			return expired, fmt.Errorf("expire action %s: %w", stale[i].ID, err)
		}
		expired++
	}
	if expired > 0 {
		s.logger.Info("stale actions expired",
			"workspace_id", workspaceID,
			"count", expired,
			"older_than", olderThan)
	}
	return expired, nil
}

type auditEvent struct {
	workspaceID string
	clientID    string
	sessionID   string
	actionID    string
	kind        proposal.ActionKind
	decision    string
	guard       guardrail.Decision
	status      action.ApprovalStatus
	mode        action.ExecutionMode
	payload     map[string]any
	latency     time.Duration
}

// audit appends one decision record. Audit failures are logged, never
// propagated: losing a record must not fail the action path.
func (s *ActionLogService) audit(ctx context.Context, ev auditEvent) {
	if s.auditor == nil {
		return
	}
	rec := audit.Record{
		Timestamp:     s.now(),
		WorkspaceID:   ev.workspaceID,
		ClientID:      ev.clientID,
		SessionID:     ev.sessionID,
		ActionID:      ev.actionID,
		Kind:          string(ev.kind),
		Decision:      ev.decision,
		FailedChecks:  ev.guard.FailedChecks(),
		RiskScore:     ev.guard.RiskAssessment.Score,
		RiskLevel:     string(ev.guard.RiskAssessment.Level),
		Status:        string(ev.status),
		Mode:          string(ev.mode),
		Reason:        ev.guard.Message,
		Payload:       audit.RedactSensitivePayload(ev.payload),
		LatencyMicros: ev.latency.Microseconds(),
	}
	if err := s.auditor.Append(ctx, rec); err != nil {
		s.logger.Error("audit append failed", "action_id", ev.actionID, "error", err)
	}

	if s.metrics != nil {
		for _, c := range ev.guard.Checks {
			if !c.Passed {
				s.metrics.GuardrailOutcomes.WithLabelValues(c.Name, string(c.Severity)).Inc()
			}
		}
	}
}

func executedStatus(s action.ApprovalStatus) bool {
	return s == action.StatusAutoExecuted || s == action.StatusExecutionFailed
}
