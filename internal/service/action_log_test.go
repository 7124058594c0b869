package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	auditstore "github.com/wardenlabs/warden/internal/adapter/outbound/audit"
	"github.com/wardenlabs/warden/internal/adapter/outbound/memory"
	"github.com/wardenlabs/warden/internal/domain/action"
	"github.com/wardenlabs/warden/internal/domain/agentctx"
	"github.com/wardenlabs/warden/internal/domain/audit"
	"github.com/wardenlabs/warden/internal/domain/guardrail"
	"github.com/wardenlabs/warden/internal/domain/proposal"
	"github.com/wardenlabs/warden/internal/domain/risk"
)

func newTestActionLog(t *testing.T) (*ActionLogService, *memory.MemoryActionStore, *bytes.Buffer) {
	t.Helper()
	store := memory.NewActionStore()
	var auditBuf bytes.Buffer
	svc := NewActionLogService(
		store,
		newTestExecutor(),
		auditstore.NewWriterStore(&auditBuf),
		NewMetrics(prometheus.NewRegistry()),
		discardLogger(),
	)
	return svc, store, &auditBuf
}

func allowedDecision() guardrail.Decision {
	return guardrail.Decision{
		Allowed: true,
		Message: "All checks passed.",
		RiskAssessment: risk.Assessment{
			Score: 0.10,
			Level: risk.LevelLow,
		},
	}
}

func logRequest(status action.ApprovalStatus, mode action.ExecutionMode) LogRequest {
	req := LogRequest{
		SessionID:   "sess-1",
		WorkspaceID: "ws1",
		ClientID:    "c1",
		Proposal: proposal.ActionProposal{
			Kind:        proposal.KindAddTag,
			Payload:     map[string]any{"tag": "hot"},
			Reasoning:   "engagement score is in the top band for three consecutive weeks",
			Confidence:  proposal.Float64Ptr(0.85),
			DataSources: []proposal.DataSource{{Name: "client_profile", Reliability: 0.95, Recency: "current"}},
		},
		Decision: allowedDecision(),
		Status:   status,
		Mode:     mode,
	}
	if status == action.StatusAutoExecuted || status == action.StatusExecutionFailed {
		req.Result = &action.ExecutionResult{
			Success: status == action.StatusAutoExecuted,
			Message: "done",
		}
	}
	return req
}

func TestLogActionAwaiting(t *testing.T) {
	svc, store, auditBuf := newTestActionLog(t)

	a, err := svc.LogAction(context.Background(), logRequest(action.StatusAwaitingApproval, action.ModeManual))
	if err != nil {
		t.Fatalf("LogAction() error = %v", err)
	}
	if a.ID == "" {
		t.Error("LogAction() returned empty id")
	}
	if a.Status != action.StatusAwaitingApproval || a.Mode != action.ModeManual {
		t.Errorf("LogAction() status/mode = %s/%s", a.Status, a.Mode)
	}
	if a.ExecutedAt != nil || a.ExecutionResult != nil {
		t.Error("awaiting action must not carry execution fields")
	}
	if a.RiskLevel != risk.LevelLow || a.RiskScore != 0.10 {
		t.Errorf("risk = %s/%.2f, want low/0.10", a.RiskLevel, a.RiskScore)
	}
	if !a.TruthCompliant {
		t.Error("TruthCompliant = false for a well-cited proposal")
	}

	stored, err := store.Get(context.Background(), a.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if stored.Kind != proposal.KindAddTag {
		t.Errorf("stored Kind = %s", stored.Kind)
	}

	var rec audit.Record
	if err := json.Unmarshal(bytes.TrimSpace(auditBuf.Bytes()), &rec); err != nil {
		t.Fatalf("audit output not JSON: %v", err)
	}
	if rec.Decision != audit.DecisionAllow || rec.ActionID != a.ID {
		t.Errorf("audit record = %+v", rec)
	}
}

func TestLogActionAutoExecuted(t *testing.T) {
	svc, _, _ := newTestActionLog(t)

	a, err := svc.LogAction(context.Background(), logRequest(action.StatusAutoExecuted, action.ModeAuto))
	if err != nil {
		t.Fatalf("LogAction() error = %v", err)
	}
	if a.ExecutedAt == nil || a.ExecutionResult == nil || !a.ExecutionResult.Success {
		t.Errorf("auto-executed action missing execution fields: %+v", a)
	}
}

func TestLogActionValidation(t *testing.T) {
	svc, _, _ := newTestActionLog(t)

	tests := []struct {
		name   string
		mutate func(*LogRequest)
	}{
		{"terminal initial status", func(r *LogRequest) {
			r.Status = action.StatusRejected
		}},
		{"result on awaiting", func(r *LogRequest) {
			r.Result = &action.ExecutionResult{Success: true}
		}},
		{"executed without result", func(r *LogRequest) {
			r.Status = action.StatusAutoExecuted
			r.Result = nil
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := logRequest(action.StatusAwaitingApproval, action.ModeManual)
			tt.mutate(&req)
			if _, err := svc.LogAction(context.Background(), req); err == nil {
				t.Error("LogAction() error = nil, want validation error")
			}
		})
	}
}

func TestLogActionDefaultsConfidenceAndWarningLink(t *testing.T) {
	svc, _, _ := newTestActionLog(t)

	req := logRequest(action.StatusAwaitingApproval, action.ModeManual)
	req.Proposal.Confidence = nil
	req.Snapshot = agentctx.Snapshot{
		EarlyWarnings: []agentctx.EarlyWarning{
			{ID: "ew-7", Severity: agentctx.SeverityHigh, Active: true},
		},
	}
	req.Disclaimers = []string{"Planner reported no confidence; defaulted to 0.7."}

	a, err := svc.LogAction(context.Background(), req)
	if err != nil {
		t.Fatalf("LogAction() error = %v", err)
	}
	if a.Confidence != 0.7 {
		t.Errorf("Confidence = %.2f, want default 0.7", a.Confidence)
	}
	if a.TriggeringWarningID != "ew-7" {
		t.Errorf("TriggeringWarningID = %q, want ew-7", a.TriggeringWarningID)
	}
	if len(a.Disclaimers) == 0 || !strings.Contains(a.Disclaimers[0], "defaulted") {
		t.Errorf("Disclaimers = %v, want adapter disclaimers preserved", a.Disclaimers)
	}
}

func TestLogBlockedAuditsOnly(t *testing.T) {
	svc, store, auditBuf := newTestActionLog(t)

	d := guardrail.Decision{
		Allowed: false,
		Message: "daily action limit reached (10 of 10)",
		Checks: []guardrail.CheckResult{
			{Name: guardrail.CheckRateLimit, Severity: guardrail.SeverityBlock, Reason: "limit"},
		},
	}
	svc.LogBlocked(context.Background(), "sess-1", "ws1", "c1",
		proposal.ActionProposal{Kind: proposal.KindSendFollowup}, d)

	pending, err := store.ListPending(context.Background(), "ws1")
	if err != nil {
		t.Fatalf("ListPending() error = %v", err)
	}
	if len(pending) != 0 {
		t.Error("blocked proposal was persisted as an action")
	}

	var rec audit.Record
	if err := json.Unmarshal(bytes.TrimSpace(auditBuf.Bytes()), &rec); err != nil {
		t.Fatalf("audit output not JSON: %v", err)
	}
	if rec.Decision != audit.DecisionBlock {
		t.Errorf("audit Decision = %q, want block", rec.Decision)
	}
	if len(rec.FailedChecks) != 1 || rec.FailedChecks[0] != "rate_limit:block" {
		t.Errorf("audit FailedChecks = %v", rec.FailedChecks)
	}
}

func TestUpdateActionStatusTransitions(t *testing.T) {
	svc, _, _ := newTestActionLog(t)

	a, err := svc.LogAction(context.Background(), logRequest(action.StatusAwaitingApproval, action.ModeManual))
	if err != nil {
		t.Fatalf("LogAction() error = %v", err)
	}

	rejected, err := svc.UpdateActionStatus(context.Background(), a.ID, action.StatusRejected, "reviewer@acme", "too risky")
	if err != nil {
		t.Fatalf("UpdateActionStatus() error = %v", err)
	}
	if rejected.ApprovedBy != "reviewer@acme" || rejected.ApprovedAt == nil {
		t.Errorf("rejection not stamped: %+v", rejected)
	}
	if rejected.RejectionReason != "too risky" {
		t.Errorf("RejectionReason = %q", rejected.RejectionReason)
	}

	// Rejected is terminal.
	if _, err := svc.UpdateActionStatus(context.Background(), a.ID, action.StatusApprovedExecuted, "x", ""); !errors.Is(err, action.ErrInvalidTransition) {
		t.Errorf("UpdateActionStatus() from terminal state error = %v, want ErrInvalidTransition", err)
	}
}

func TestApprove(t *testing.T) {
	svc, _, _ := newTestActionLog(t)
	if err := svc.executor.Register(proposal.KindAddTag, okHandler("tag added")); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	a, err := svc.LogAction(context.Background(), logRequest(action.StatusAwaitingApproval, action.ModeManual))
	if err != nil {
		t.Fatalf("LogAction() error = %v", err)
	}

	approved, err := svc.Approve(context.Background(), a.ID, "reviewer@acme")
	if err != nil {
		t.Fatalf("Approve() error = %v", err)
	}
	if approved.Status != action.StatusApprovedExecuted {
		t.Errorf("Status = %s, want approved_executed", approved.Status)
	}
	if approved.ApprovedBy != "reviewer@acme" || approved.ApprovedAt == nil {
		t.Errorf("approval not stamped: %+v", approved)
	}
	if approved.Mode != action.ModeManual {
		t.Errorf("Mode = %s, want manual", approved.Mode)
	}
	if approved.ExecutionResult == nil || !approved.ExecutionResult.Success {
		t.Errorf("ExecutionResult = %+v", approved.ExecutionResult)
	}

	if _, err := svc.Approve(context.Background(), a.ID, "reviewer@acme"); !errors.Is(err, action.ErrInvalidTransition) {
		t.Errorf("second Approve() error = %v, want ErrInvalidTransition", err)
	}
}

func TestApproveExecutionFailure(t *testing.T) {
	svc, _, _ := newTestActionLog(t)
	err := svc.executor.Register(proposal.KindAddTag, func(context.Context, *action.Action) (action.ExecutionResult, error) {
		return action.ExecutionResult{}, errors.New("crm down")
	})
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	a, err := svc.LogAction(context.Background(), logRequest(action.StatusAwaitingApproval, action.ModeManual))
	if err != nil {
		t.Fatalf("LogAction() error = %v", err)
	}

	failed, err := svc.Approve(context.Background(), a.ID, "reviewer@acme")
	if err != nil {
		t.Fatalf("Approve() error = %v", err)
	}
	if failed.Status != action.StatusExecutionFailed {
		t.Errorf("Status = %s, want execution_failed", failed.Status)
	}
	if failed.ExecutionResult == nil || failed.ExecutionResult.Success {
		t.Errorf("ExecutionResult = %+v, want failure recorded", failed.ExecutionResult)
	}
}

func TestApproveWithoutExecutor(t *testing.T) {
	store := memory.NewActionStore()
	svc := NewActionLogService(store, nil, nil, nil, discardLogger())

	if _, err := svc.Approve(context.Background(), "a1", "reviewer"); err == nil {
		t.Error("Approve() without executor error = nil, want error")
	}
}

func TestExpireStale(t *testing.T) {
	svc, store, _ := newTestActionLog(t)

	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }
	store.SetClock(func() time.Time { return now })

	mkPending := func(id string, age time.Duration) {
		t.Helper()
		a := &action.Action{
			ID:          id,
			WorkspaceID: "ws1",
			ClientID:    "c1",
			Kind:        proposal.KindAddTag,
			Status:      action.StatusAwaitingApproval,
			CreatedAt:   now.Add(-age),
		}
		if err := store.Insert(context.Background(), a); err != nil {
			t.Fatalf("Insert() error = %v", err)
		}
	}
	mkPending("stale-1", 80*time.Hour)
	mkPending("stale-2", 100*time.Hour)
	mkPending("fresh", 2*time.Hour)

	n, err := svc.ExpireStale(context.Background(), "ws1", 72*time.Hour)
	if err != nil {
		t.Fatalf("ExpireStale() error = %v", err)
	}
	if n != 2 {
		t.Errorf("ExpireStale() = %d, want 2", n)
	}

	for id, want := range map[string]action.ApprovalStatus{
		"stale-1": action.StatusExpired,
		"stale-2": action.StatusExpired,
		"fresh":   action.StatusAwaitingApproval,
	} {
		got, err := store.Get(context.Background(), id)
		if err != nil {
			t.Fatalf("Get(%s) error = %v", id, err)
		}
		if got.Status != want {
			t.Errorf("%s status = %s, want %s", id, got.Status, want)
		}
	}
}
