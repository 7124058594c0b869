package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/wardenlabs/warden/internal/domain/action"
	"github.com/wardenlabs/warden/internal/domain/proposal"
)

// ExecutorService dispatches admitted actions to their handlers. Exactly
// one handler per action kind; dispatch never panics outward.
type ExecutorService struct {
	handlers map[proposal.ActionKind]action.Handler
	metrics  *Metrics
	logger   *slog.Logger
}

// NewExecutorService creates an executor with an empty registry.
func NewExecutorService(metrics *Metrics, logger *slog.Logger) *ExecutorService {
	return &ExecutorService{
		handlers: make(map[proposal.ActionKind]action.Handler),
		metrics:  metrics,
		logger:   logger,
	}
}

// Register binds a handler to an action kind. Registering a kind twice is
// an error so misconfigured wiring fails at startup, not mid-run.
func (s *ExecutorService) Register(kind proposal.ActionKind, h action.Handler) error {
	if !kind.IsValid() {
		return fmt.Errorf("register handler: unknown action kind %q", kind)
	}
	if h == nil {
		return fmt.Errorf("register handler: nil handler for %q", kind)
	}
	if _, exists := s.handlers[kind]; exists {
		return fmt.Errorf("register handler: %q already registered", kind)
	}
	s.handlers[kind] = h
	return nil
}

// RegisterAll registers every handler in the map, failing on the first
// duplicate.
func (s *ExecutorService) RegisterAll(handlers map[proposal.ActionKind]action.Handler) error {
	for kind, h := range handlers {
		if err := s.Register(kind, h); err != nil {
			return err
		}
	}
	return nil
}

// Execute runs the handler for the action's kind and returns the result.
// Unknown kinds, handler errors, and handler panics all come back as
// unsuccessful results so the caller can record execution_failed.
func (s *ExecutorService) Execute(ctx context.Context, a *action.Action) (res action.ExecutionResult) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("action handler panicked",
				"action_id", a.ID, "kind", a.Kind, "panic", r)
			res = action.ExecutionResult{
				Success: false,
				Message: fmt.Sprintf("handler for %s panicked", a.Kind),
			}
		}
		if s.metrics != nil {
			s.metrics.ExecutionDuration.WithLabelValues(string(a.Kind)).
				Observe(time.Since(start).Seconds())
		}
	}()

	h, ok := s.handlers[a.Kind]
	if !ok {
		return action.ExecutionResult{
			Success: false,
			Message: fmt.Sprintf("no handler registered for %s", a.Kind),
		}
	}

	res, err := h(ctx, a)
	if err != nil {
		s.logger.Warn("action execution failed",
			"action_id", a.ID, "kind", a.Kind, "error", err)
		return action.ExecutionResult{
			Success: false,
			Message: err.Error(),
		}
	}
	return res
}
