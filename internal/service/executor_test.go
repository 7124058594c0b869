package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/wardenlabs/warden/internal/domain/action"
	"github.com/wardenlabs/warden/internal/domain/proposal"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestExecutor() *ExecutorService {
	return NewExecutorService(NewMetrics(prometheus.NewRegistry()), discardLogger())
}

func okHandler(message string) action.Handler {
	return func(context.Context, *action.Action) (action.ExecutionResult, error) {
		return action.ExecutionResult{Success: true, Message: message}, nil
	}
}

func TestRegister(t *testing.T) {
	e := newTestExecutor()

	if err := e.Register(proposal.KindAddTag, okHandler("ok")); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if err := e.Register(proposal.KindAddTag, okHandler("ok")); err == nil {
		t.Error("Register() duplicate error = nil, want error")
	}
	if err := e.Register("launch_missiles", okHandler("ok")); err == nil {
		t.Error("Register() unknown kind error = nil, want error")
	}
	if err := e.Register(proposal.KindCreateNote, nil); err == nil {
		t.Error("Register() nil handler error = nil, want error")
	}
}

func TestExecuteSuccess(t *testing.T) {
	e := newTestExecutor()
	if err := e.Register(proposal.KindAddTag, okHandler("tag added")); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	res := e.Execute(context.Background(), &action.Action{ID: "a1", Kind: proposal.KindAddTag})
	if !res.Success || res.Message != "tag added" {
		t.Errorf("Execute() = %+v, want handler result", res)
	}
}

func TestExecuteUnknownKind(t *testing.T) {
	e := newTestExecutor()

	res := e.Execute(context.Background(), &action.Action{ID: "a1", Kind: proposal.KindSendNotify})
	if res.Success {
		t.Error("Execute() Success = true, want failure for unregistered kind")
	}
	if !strings.Contains(res.Message, "no handler registered") {
		t.Errorf("Execute() Message = %q", res.Message)
	}
}

func TestExecuteHandlerError(t *testing.T) {
	e := newTestExecutor()
	err := e.Register(proposal.KindSendFollowup, func(context.Context, *action.Action) (action.ExecutionResult, error) {
		return action.ExecutionResult{}, errors.New("smtp unreachable")
	})
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	res := e.Execute(context.Background(), &action.Action{ID: "a1", Kind: proposal.KindSendFollowup})
	if res.Success {
		t.Error("Execute() Success = true, want failure")
	}
	if !strings.Contains(res.Message, "smtp unreachable") {
		t.Errorf("Execute() Message = %q, want cause preserved", res.Message)
	}
}

func TestExecuteRecoversPanic(t *testing.T) {
	e := newTestExecutor()
	err := e.Register(proposal.KindCreateNote, func(context.Context, *action.Action) (action.ExecutionResult, error) {
		panic("nil map write")
	})
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	res := e.Execute(context.Background(), &action.Action{ID: "a1", Kind: proposal.KindCreateNote})
	if res.Success {
		t.Error("Execute() Success = true, want failure after panic")
	}
	if !strings.Contains(res.Message, "panicked") {
		t.Errorf("Execute() Message = %q, want panic note", res.Message)
	}
}
