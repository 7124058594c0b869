package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/wardenlabs/warden/internal/domain/action"
	"github.com/wardenlabs/warden/internal/domain/policy"
	"github.com/wardenlabs/warden/internal/domain/proposal"
	"github.com/wardenlabs/warden/internal/domain/risk"
	"github.com/wardenlabs/warden/internal/domain/session"
)

func newTestDB(t *testing.T) *ActionStore {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "warden.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := Migrate(context.Background(), db); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	return NewActionStore(db)
}

func sampleAction(id string, status action.ApprovalStatus, createdAt time.Time) *action.Action {
	return &action.Action{
		ID:          id,
		SessionID:   "sess-1",
		WorkspaceID: "ws1",
		ClientID:    "client-a",
		Kind:        proposal.KindAddTag,
		Payload:     map[string]any{"tag": "hot"},
		RiskLevel:   risk.LevelLow,
		RiskScore:   0.10,
		RiskFactors: []risk.Factor{{Name: "base_risk", Weight: 0.10, Description: "base risk for add_tag"}},
		Status:      status,
		Mode:        action.ModeAuto,
		Confidence:  0.9,
		Reasoning:   "client is engaged",
		CreatedAt:   createdAt,
	}
}

func TestActionStoreRoundTrip(t *testing.T) {
	store := newTestDB(t)
	ctx := context.Background()
	created := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	a := sampleAction("a1", action.StatusAwaitingApproval, created)
	a.Disclaimers = []string{"Moderate confidence (0.9)."}
	a.DataSources = []proposal.DataSource{{Name: "crm profile", Reliability: 0.9, Recency: "current"}}
	a.TriggeringWarningID = "ew-7"
	if err := store.Insert(ctx, a); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}

	got, err := store.Get(ctx, "a1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Kind != proposal.KindAddTag || got.Status != action.StatusAwaitingApproval {
		t.Errorf("Get() = %s/%s", got.Kind, got.Status)
	}
	if got.Payload["tag"] != "hot" {
		t.Errorf("Payload = %v", got.Payload)
	}
	if len(got.RiskFactors) != 1 || got.RiskFactors[0].Name != "base_risk" {
		t.Errorf("RiskFactors = %+v", got.RiskFactors)
	}
	if got.TriggeringWarningID != "ew-7" || len(got.DataSources) != 1 {
		t.Errorf("provenance fields = %q/%v", got.TriggeringWarningID, got.DataSources)
	}
	if !got.CreatedAt.Equal(created) {
		t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, created)
	}
	if got.ApprovedAt != nil || got.ExecutedAt != nil || got.ExecutionResult != nil {
		t.Errorf("unset optional fields came back non-nil: %+v", got)
	}
}

func TestActionStoreUpdate(t *testing.T) {
	store := newTestDB(t)
	ctx := context.Background()
	created := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	a := sampleAction("a1", action.StatusAwaitingApproval, created)
	if err := store.Insert(ctx, a); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}

	executed := created.Add(time.Hour)
	a.Status = action.StatusApprovedExecuted
	a.ApprovedBy = "ops@acme"
	a.ApprovedAt = &executed
	a.ExecutedAt = &executed
	a.ExecutionResult = &action.ExecutionResult{Success: true, Message: "tag added", AffectedRecords: []string{"client-a"}}
	a.Mode = action.ModeManual
	if err := store.Update(ctx, a); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	got, err := store.Get(ctx, "a1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Status != action.StatusApprovedExecuted || got.Mode != action.ModeManual {
		t.Errorf("Get() after update = %s/%s", got.Status, got.Mode)
	}
	if got.ApprovedBy != "ops@acme" || got.ApprovedAt == nil || !got.ApprovedAt.Equal(executed) {
		t.Errorf("approval fields = %q/%v", got.ApprovedBy, got.ApprovedAt)
	}
	if got.ExecutionResult == nil || !got.ExecutionResult.Success || got.ExecutionResult.Message != "tag added" {
		t.Errorf("ExecutionResult = %+v", got.ExecutionResult)
	}
}

func TestActionStoreNotFound(t *testing.T) {
	store := newTestDB(t)
	ctx := context.Background()

	if _, err := store.Get(ctx, "missing"); !errors.Is(err, action.ErrActionNotFound) {
		t.Errorf("Get(missing) error = %v, want ErrActionNotFound", err)
	}
	a := sampleAction("missing", action.StatusAwaitingApproval, time.Now().UTC())
	if err := store.Update(ctx, a); !errors.Is(err, action.ErrActionNotFound) {
		t.Errorf("Update(missing) error = %v, want ErrActionNotFound", err)
	}
}

func TestActionStoreCountExecutedToday(t *testing.T) {
	store := newTestDB(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)
	store.SetClock(func() time.Time { return now })

	seed := []struct {
		id       string
		clientID string
		status   action.ApprovalStatus
		at       time.Time
	}{
		{"a1", "client-a", action.StatusAutoExecuted, now.Add(-2 * time.Hour)},
		{"a2", "client-a", action.StatusApprovedExecuted, now.Add(-4 * time.Hour)},
		{"a3", "client-b", action.StatusAutoExecuted, now.Add(-1 * time.Hour)},
		{"a4", "client-a", action.StatusAwaitingApproval, now.Add(-1 * time.Hour)},
		{"a5", "client-a", action.StatusAutoExecuted, now.Add(-20 * time.Hour)}, // yesterday
	}
	for _, s := range seed {
		a := sampleAction(s.id, s.status, s.at)
		a.ClientID = s.clientID
		if err := store.Insert(ctx, a); err != nil {
			t.Fatalf("Insert(%s) error = %v", s.id, err)
		}
	}

	tests := []struct {
		name     string
		clientID string
		want     int
	}{
		{"workspace scope", "", 3},
		{"client scope", "client-a", 2},
		{"other client", "client-b", 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := store.CountExecutedToday(ctx, "ws1", tt.clientID)
			if err != nil {
				t.Fatalf("CountExecutedToday() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("CountExecutedToday() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestActionStoreListPending(t *testing.T) {
	store := newTestDB(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	newest := sampleAction("a-new", action.StatusAwaitingApproval, base.Add(2*time.Hour))
	oldest := sampleAction("a-old", action.StatusAwaitingApproval, base)
	done := sampleAction("a-done", action.StatusAutoExecuted, base.Add(time.Hour))
	for _, a := range []*action.Action{newest, oldest, done} {
		if err := store.Insert(ctx, a); err != nil {
			t.Fatalf("Insert() error = %v", err)
		}
	}

	pending, err := store.ListPending(ctx, "ws1")
	if err != nil {
		t.Fatalf("ListPending() error = %v", err)
	}
	if len(pending) != 2 || pending[0].ID != "a-old" || pending[1].ID != "a-new" {
		t.Errorf("ListPending() order = %v", ids(pending))
	}

	stale, err := store.ListPendingOlderThan(ctx, "ws1", base.Add(time.Hour))
	if err != nil {
		t.Fatalf("ListPendingOlderThan() error = %v", err)
	}
	if len(stale) != 1 || stale[0].ID != "a-old" {
		t.Errorf("ListPendingOlderThan() = %v", ids(stale))
	}
}

func TestActionStoreListByClient(t *testing.T) {
	store := newTestDB(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	for i, id := range []string{"a1", "a2", "a3"} {
		a := sampleAction(id, action.StatusAutoExecuted, base.Add(time.Duration(i)*time.Hour))
		if err := store.Insert(ctx, a); err != nil {
			t.Fatalf("Insert() error = %v", err)
		}
	}

	got, err := store.ListByClient(ctx, "ws1", "client-a", 2)
	if err != nil {
		t.Fatalf("ListByClient() error = %v", err)
	}
	if len(got) != 2 || got[0].ID != "a3" || got[1].ID != "a2" {
		t.Errorf("ListByClient() = %v, want newest first capped at 2", ids(got))
	}
}

func ids(actions []action.Action) []string {
	out := make([]string, len(actions))
	for i, a := range actions {
		out[i] = a.ID
	}
	return out
}

func TestPolicyStoreRoundTrip(t *testing.T) {
	actions := newTestDB(t)
	store := NewPolicyStore(actions.db)
	ctx := context.Background()
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	p := &policy.AgentPolicy{
		WorkspaceID:                "ws1",
		Enabled:                    true,
		AllowedActions:             []proposal.ActionKind{proposal.KindAddTag, proposal.KindCreateNote},
		AutoExecute:                true,
		AutoExecuteMaxRisk:         risk.LevelLow,
		MaxActionsPerDay:           10,
		RequireApprovalAboveScore:  70,
		RespectEarlyWarnings:       true,
		PauseOnHighSeverityWarning: true,
		GuardRules: []policy.GuardRule{
			{Name: "vip-review", Condition: `client_score > 90`, Effect: policy.GuardEffectRequireApproval},
		},
		CreatedAt: now,
		UpdatedAt: now,
		UpdatedBy: "ops@acme",
	}
	if err := store.Save(ctx, p); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	got, err := store.Get(ctx, "ws1", "")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !got.Enabled || got.AutoExecuteMaxRisk != risk.LevelLow || got.MaxActionsPerDay != 10 {
		t.Errorf("Get() = %+v", got)
	}
	if len(got.AllowedActions) != 2 || got.AllowedActions[0] != proposal.KindAddTag {
		t.Errorf("AllowedActions = %v", got.AllowedActions)
	}
	if len(got.GuardRules) != 1 || got.GuardRules[0].Effect != policy.GuardEffectRequireApproval {
		t.Errorf("GuardRules = %+v", got.GuardRules)
	}

	// Save on an existing scope upserts.
	p.MaxActionsPerDay = 25
	p.UpdatedBy = "admin@acme"
	if err := store.Save(ctx, p); err != nil {
		t.Fatalf("Save() upsert error = %v", err)
	}
	got, err = store.Get(ctx, "ws1", "")
	if err != nil {
		t.Fatalf("Get() after upsert error = %v", err)
	}
	if got.MaxActionsPerDay != 25 || got.UpdatedBy != "admin@acme" {
		t.Errorf("upsert = %d/%q", got.MaxActionsPerDay, got.UpdatedBy)
	}
}

func TestPolicyStoreScopesAndDelete(t *testing.T) {
	actions := newTestDB(t)
	store := NewPolicyStore(actions.db)
	ctx := context.Background()
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	ws := &policy.AgentPolicy{
		WorkspaceID: "ws1", Enabled: true,
		AllowedActions: []proposal.ActionKind{proposal.KindAddTag},
		AutoExecuteMaxRisk: risk.LevelLow, CreatedAt: now, UpdatedAt: now,
	}
	client := &policy.AgentPolicy{
		WorkspaceID: "ws1", ClientID: "client-vip", Enabled: true,
		AllowedActions: []proposal.ActionKind{proposal.KindCreateNote},
		AutoExecuteMaxRisk: risk.LevelLow, CreatedAt: now, UpdatedAt: now,
	}
	for _, p := range []*policy.AgentPolicy{ws, client} {
		if err := store.Save(ctx, p); err != nil {
			t.Fatalf("Save() error = %v", err)
		}
	}

	got, err := store.Get(ctx, "ws1", "client-vip")
	if err != nil {
		t.Fatalf("Get(client scope) error = %v", err)
	}
	if got.AllowedActions[0] != proposal.KindCreateNote {
		t.Errorf("client scope row = %+v", got)
	}

	rows, err := store.ListWorkspace(ctx, "ws1")
	if err != nil {
		t.Fatalf("ListWorkspace() error = %v", err)
	}
	if len(rows) != 2 {
		t.Errorf("ListWorkspace() = %d rows, want 2", len(rows))
	}

	if err := store.Delete(ctx, "ws1", "client-vip"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := store.Get(ctx, "ws1", "client-vip"); !errors.Is(err, policy.ErrPolicyNotFound) {
		t.Errorf("Get() after delete error = %v, want ErrPolicyNotFound", err)
	}
	if err := store.Delete(ctx, "ws1", "client-vip"); !errors.Is(err, policy.ErrPolicyNotFound) {
		t.Errorf("Delete() twice error = %v, want ErrPolicyNotFound", err)
	}
}

func TestSessionStoreRoundTrip(t *testing.T) {
	actions := newTestDB(t)
	store := NewSessionStore(actions.db)
	ctx := context.Background()
	started := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	sess := &session.Session{
		ID:          "sess-1",
		WorkspaceID: "ws1",
		ClientID:    "client-a",
		Kind:        session.KindScheduled,
		Status:      session.StatusActive,
		StartedAt:   started,
	}
	if err := store.Create(ctx, sess); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	ended := started.Add(2 * time.Second)
	sess.Status = session.StatusCompleted
	sess.Messages = []session.Message{
		{Role: session.RoleSystemLog, Content: "evaluation started", SentAt: started},
	}
	sess.ActionsProposed = 3
	sess.ActionsExecuted = 2
	sess.AvgRiskScore = 0.30
	sess.AvgTruthScore = 80
	sess.EndedAt = &ended
	sess.DurationMS = 2000
	if err := store.Update(ctx, sess); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	got, err := store.Get(ctx, "sess-1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Status != session.StatusCompleted || got.ActionsProposed != 3 || got.ActionsExecuted != 2 {
		t.Errorf("Get() = %+v", got)
	}
	if len(got.Messages) != 1 || got.Messages[0].Content != "evaluation started" {
		t.Errorf("Messages = %+v", got.Messages)
	}
	if got.EndedAt == nil || !got.EndedAt.Equal(ended) || got.DurationMS != 2000 {
		t.Errorf("close fields = %v/%d", got.EndedAt, got.DurationMS)
	}
}

func TestSessionStoreNotFound(t *testing.T) {
	actions := newTestDB(t)
	store := NewSessionStore(actions.db)
	ctx := context.Background()

	if _, err := store.Get(ctx, "missing"); !errors.Is(err, session.ErrSessionNotFound) {
		t.Errorf("Get(missing) error = %v, want ErrSessionNotFound", err)
	}
	if err := store.Update(ctx, &session.Session{ID: "missing"}); !errors.Is(err, session.ErrSessionNotFound) {
		t.Errorf("Update(missing) error = %v, want ErrSessionNotFound", err)
	}
}

func TestSessionStoreListByWorkspace(t *testing.T) {
	actions := newTestDB(t)
	store := NewSessionStore(actions.db)
	ctx := context.Background()
	base := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	for i, id := range []string{"s1", "s2", "s3"} {
		sess := &session.Session{
			ID: id, WorkspaceID: "ws1", Kind: session.KindScheduled,
			Status: session.StatusCompleted, StartedAt: base.Add(time.Duration(i) * time.Hour),
		}
		if err := store.Create(ctx, sess); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}

	got, err := store.ListByWorkspace(ctx, "ws1", 2)
	if err != nil {
		t.Fatalf("ListByWorkspace() error = %v", err)
	}
	if len(got) != 2 || got[0].ID != "s3" || got[1].ID != "s2" {
		names := make([]string, len(got))
		for i, s := range got {
			names[i] = s.ID
		}
		t.Errorf("ListByWorkspace() = %v, want newest first capped at 2", names)
	}
}
