package cmd

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	auditfile "github.com/wardenlabs/warden/internal/adapter/outbound/audit"
	"github.com/wardenlabs/warden/internal/adapter/outbound/cel"
	"github.com/wardenlabs/warden/internal/adapter/outbound/crm"
	"github.com/wardenlabs/warden/internal/adapter/outbound/memory"
	"github.com/wardenlabs/warden/internal/adapter/outbound/planner"
	"github.com/wardenlabs/warden/internal/adapter/outbound/sqlite"
	"github.com/wardenlabs/warden/internal/config"
	"github.com/wardenlabs/warden/internal/domain/action"
	"github.com/wardenlabs/warden/internal/domain/agentctx"
	"github.com/wardenlabs/warden/internal/domain/audit"
	"github.com/wardenlabs/warden/internal/domain/guardrail"
	"github.com/wardenlabs/warden/internal/domain/policy"
	"github.com/wardenlabs/warden/internal/domain/session"
	"github.com/wardenlabs/warden/internal/service"
)

// app holds the wired component graph for one CLI invocation.
type app struct {
	cfg    *config.Config
	logger *slog.Logger

	db       *sql.DB
	policies policy.PolicyStore
	actions  action.ActionStore
	sessions session.SessionStore
	auditor  audit.AuditStore
	crm      *crm.MemoryCRM
	contexts *memory.MemoryContextProvider
	registry *prometheus.Registry

	actionLog  *service.ActionLogService
	executor   *service.ExecutorService
	sessionSvc *session.SessionService
	evaluation *service.EvaluationService
}

// buildApp loads config and wires the full component graph. The returned
// cleanup closes stores and must run before exit.
func buildApp(ctx context.Context) (*app, func(), error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	logger := newLogger(cfg.LogLevel)
	a := &app{cfg: cfg, logger: logger}
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	// Stores.
	switch cfg.Storage.Driver {
	case "sqlite":
		db, err := sqlite.Open(cfg.Storage.Path)
		if err != nil {
			return nil, nil, err
		}
		closers = append(closers, func() { _ = db.Close() })
		if err := sqlite.Migrate(ctx, db); err != nil {
			cleanup()
			return nil, nil, err
		}
		a.db = db
		a.policies = sqlite.NewPolicyStore(db)
		a.actions = sqlite.NewActionStore(db)
		a.sessions = sqlite.NewSessionStore(db)
	case "memory":
		a.policies = memory.NewPolicyStore()
		a.actions = memory.NewActionStore()
		a.sessions = memory.NewSessionStore()
	default:
		return nil, nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}

	// Audit trail.
	if dir, ok := strings.CutPrefix(cfg.Audit.Output, "file://"); ok {
		store, err := auditfile.NewFileStore(auditfile.FileConfig{
			Dir:           dir,
			RetentionDays: cfg.Audit.RetentionDays,
			CacheSize:     cfg.Audit.CacheSize,
		}, logger)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("open audit store: %w", err)
		}
		closers = append(closers, func() { _ = store.Close() })
		a.auditor = store
	} else {
		a.auditor = auditfile.NewStdoutStore()
	}

	a.registry = prometheus.NewRegistry()
	metrics := service.NewMetrics(a.registry)

	// Executor with the built-in CRM handlers. The in-memory CRM stands in
	// until a real backend adapter is wired.
	a.crm = crm.NewMemoryCRM()
	a.executor = service.NewExecutorService(metrics, logger.With("component", "executor"))
	if err := a.executor.RegisterAll(crm.Handlers(a.crm)); err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("register handlers: %w", err)
	}

	a.actionLog = service.NewActionLogService(
		a.actions, a.executor, a.auditor, metrics,
		logger.With("component", "action_log"))
	a.sessionSvc = session.NewSessionService(a.sessions)

	evaluator, err := cel.NewEvaluator()
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("build guard-rule evaluator: %w", err)
	}
	guard := guardrail.NewEngine(a.actions, evaluator,
		logger.With("component", "guardrail"))
	resolver := policy.NewResolver(a.policies, logger.With("component", "policy"))

	a.contexts = memory.NewMemoryContextProvider()
	if cfg.DevMode {
		seedDemoContext(a.contexts)
	}

	a.evaluation = service.NewEvaluationService(
		buildPlanner(cfg, logger),
		a.contexts,
		resolver,
		guard,
		a.actionLog,
		a.executor,
		a.sessionSvc,
		service.EvaluationConfig{Dedupe: cfg.Evaluation.Dedupe},
		metrics,
		logger.With("component", "evaluation"),
	)

	return a, cleanup, nil
}

func buildPlanner(cfg *config.Config, logger *slog.Logger) planner.Planner {
	if cfg.Planner.Provider == "openai" {
		return planner.NewOpenAIPlanner(planner.OpenAIConfig{
			APIKey:  os.Getenv(cfg.Planner.APIKeyEnv),
			Model:   cfg.Planner.Model,
			Timeout: cfg.PlannerTimeout(),
		}, logger.With("component", "planner"))
	}
	return planner.NewStaticPlanner()
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn", "warning":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

// seedDemoContext loads a small demo cohort so dev-mode runs have
// something to evaluate.
func seedDemoContext(contexts *memory.MemoryContextProvider) {
	now := time.Now().UTC()
	contexts.Seed("demo", "client-hot", agentctx.Snapshot{
		ClientProfile: &agentctx.Profile{
			ClientID: "client-hot", Name: "Hot Client", Score: 85, Status: "active",
		},
		PerformanceMetrics: &agentctx.Metrics{
			OpenRate: 0.7, ResponseRate: 0.4, DaysSinceLastContact: 3,
		},
	})
	contexts.Seed("demo", "client-quiet", agentctx.Snapshot{
		ClientProfile: &agentctx.Profile{
			ClientID: "client-quiet", Name: "Quiet Client", Score: 40, Status: "active",
		},
		PerformanceMetrics: &agentctx.Metrics{
			OpenRate: 0.2, ResponseRate: 0.05, DaysSinceLastContact: 21,
		},
	})
	contexts.Seed("demo", "client-risky", agentctx.Snapshot{
		ClientProfile: &agentctx.Profile{
			ClientID: "client-risky", Name: "Risky Client", Score: 60, Status: "active",
		},
		EarlyWarnings: []agentctx.EarlyWarning{
			{
				ID: "ew-1", Severity: agentctx.SeverityHigh, Kind: "churn_risk",
				Message: "engagement dropped 60% month over month",
				Active:  true, RaisedAt: now.AddDate(0, 0, -2),
			},
		},
	})
}

// printAction renders one action for terminal output.
func printAction(a *action.Action) {
	fmt.Printf("%s  %-18s %-20s risk=%s(%.2f) mode=%s client=%s\n",
		a.ID, a.Status, a.Kind, a.RiskLevel, a.RiskScore, a.Mode, a.ClientID)
	if a.Reasoning != "" {
		fmt.Printf("    reasoning: %s\n", a.Reasoning)
	}
	if a.ExecutionResult != nil {
		fmt.Printf("    result: success=%t %s\n",
			a.ExecutionResult.Success, a.ExecutionResult.Message)
	}
	if a.RejectionReason != "" {
		fmt.Printf("    rejected: %s\n", a.RejectionReason)
	}
}
