package crm

import (
	"context"
	"fmt"

	"github.com/wardenlabs/warden/internal/domain/action"
	"github.com/wardenlabs/warden/internal/domain/proposal"
)

// Handlers builds the built-in handler set over a CRM client, one per
// action kind. Payload validation fails soft: a missing or mistyped field
// produces an unsuccessful result, not an error, so the action is recorded
// as execution_failed with a usable message.
func Handlers(client Client) map[proposal.ActionKind]action.Handler {
	return map[proposal.ActionKind]action.Handler{
		proposal.KindAddTag:          addTagHandler(client),
		proposal.KindRemoveTag:       removeTagHandler(client),
		proposal.KindUpdateStatus:    updateStatusHandler(client),
		proposal.KindUpdateScore:     updateScoreHandler(client),
		proposal.KindCreateNote:      createNoteHandler(client),
		proposal.KindScheduleTask:    scheduleTaskHandler(client),
		proposal.KindSendFollowup:    sendFollowupHandler(client),
		proposal.KindGenerateContent: generateContentHandler(client),
		proposal.KindSendNotify:      notifyHandler(client),
	}
}

func addTagHandler(client Client) action.Handler {
	return func(ctx context.Context, a *action.Action) (action.ExecutionResult, error) {
		tag, ok := stringField(a.Payload, "tag")
		if !ok {
			return invalidPayload("tag"), nil
		}
		if err := client.AddTag(ctx, a.WorkspaceID, a.ClientID, tag); err != nil {
			return action.ExecutionResult{}, fmt.Errorf("add tag: %w", err)
		}
		return success(fmt.Sprintf("tag %q added", tag), a.ClientID), nil
	}
}

func removeTagHandler(client Client) action.Handler {
	return func(ctx context.Context, a *action.Action) (action.ExecutionResult, error) {
		tag, ok := stringField(a.Payload, "tag")
		if !ok {
			return invalidPayload("tag"), nil
		}
		if err := client.RemoveTag(ctx, a.WorkspaceID, a.ClientID, tag); err != nil {
			return action.ExecutionResult{}, fmt.Errorf("remove tag: %w", err)
		}
		return success(fmt.Sprintf("tag %q removed", tag), a.ClientID), nil
	}
}

func updateStatusHandler(client Client) action.Handler {
	return func(ctx context.Context, a *action.Action) (action.ExecutionResult, error) {
		status, ok := stringField(a.Payload, "status")
		if !ok {
			return invalidPayload("status"), nil
		}
		if err := client.UpdateStatus(ctx, a.WorkspaceID, a.ClientID, status); err != nil {
			return action.ExecutionResult{}, fmt.Errorf("update status: %w", err)
		}
		return success(fmt.Sprintf("status set to %q", status), a.ClientID), nil
	}
}

func updateScoreHandler(client Client) action.Handler {
	return func(ctx context.Context, a *action.Action) (action.ExecutionResult, error) {
		score, ok := intField(a.Payload, "score")
		if !ok || score < 0 || score > 100 {
			return invalidPayload("score"), nil
		}
		if err := client.UpdateScore(ctx, a.WorkspaceID, a.ClientID, score); err != nil {
			return action.ExecutionResult{}, fmt.Errorf("update score: %w", err)
		}
		return success(fmt.Sprintf("score set to %d", score), a.ClientID), nil
	}
}

func createNoteHandler(client Client) action.Handler {
	return func(ctx context.Context, a *action.Action) (action.ExecutionResult, error) {
		content, ok := stringField(a.Payload, "content")
		if !ok {
			return invalidPayload("content"), nil
		}
		noteID, err := client.CreateNote(ctx, a.WorkspaceID, a.ClientID, content)
		if err != nil {
			return action.ExecutionResult{}, fmt.Errorf("create note: %w", err)
		}
		return success("note created", a.ClientID, noteID), nil
	}
}

func scheduleTaskHandler(client Client) action.Handler {
	return func(ctx context.Context, a *action.Action) (action.ExecutionResult, error) {
		title, ok := stringField(a.Payload, "title")
		if !ok {
			return invalidPayload("title"), nil
		}
		dueDays, ok := intField(a.Payload, "due_days")
		if !ok || dueDays < 0 {
			dueDays = 1
		}
		taskID, err := client.ScheduleTask(ctx, a.WorkspaceID, a.ClientID, title, dueDays)
		if err != nil {
			return action.ExecutionResult{}, fmt.Errorf("schedule task: %w", err)
		}
		return success(fmt.Sprintf("task scheduled, due in %d day(s)", dueDays), a.ClientID, taskID), nil
	}
}

func sendFollowupHandler(client Client) action.Handler {
	return func(ctx context.Context, a *action.Action) (action.ExecutionResult, error) {
		template, ok := stringField(a.Payload, "template")
		if !ok {
			return invalidPayload("template"), nil
		}
		if err := client.SendFollowup(ctx, a.WorkspaceID, a.ClientID, template); err != nil {
			return action.ExecutionResult{}, fmt.Errorf("send followup: %w", err)
		}
		return success(fmt.Sprintf("follow-up %q sent", template), a.ClientID), nil
	}
}

func generateContentHandler(client Client) action.Handler {
	return func(ctx context.Context, a *action.Action) (action.ExecutionResult, error) {
		contentType, ok := stringField(a.Payload, "content_type")
		if !ok {
			return invalidPayload("content_type"), nil
		}
		body, ok := stringField(a.Payload, "body")
		if !ok {
			return invalidPayload("body"), nil
		}
		contentID, err := client.SaveContent(ctx, a.WorkspaceID, a.ClientID, contentType, body)
		if err != nil {
			return action.ExecutionResult{}, fmt.Errorf("save content: %w", err)
		}
		return success(fmt.Sprintf("%s content saved as draft", contentType), a.ClientID, contentID), nil
	}
}

func notifyHandler(client Client) action.Handler {
	return func(ctx context.Context, a *action.Action) (action.ExecutionResult, error) {
		channel, ok := stringField(a.Payload, "channel")
		if !ok {
			return invalidPayload("channel"), nil
		}
		message, ok := stringField(a.Payload, "message")
		if !ok {
			return invalidPayload("message"), nil
		}
		if err := client.Notify(ctx, a.WorkspaceID, channel, message); err != nil {
			return action.ExecutionResult{}, fmt.Errorf("notify: %w", err)
		}
		return success(fmt.Sprintf("notification sent to %s", channel), a.ClientID), nil
	}
}

func success(message string, records ...string) action.ExecutionResult {
	affected := make([]string, 0, len(records))
	for _, r := range records {
		if r != "" {
			affected = append(affected, r)
		}
	}
	return action.ExecutionResult{
		Success:         true,
		Message:         message,
		AffectedRecords: affected,
	}
}

func invalidPayload(field string) action.ExecutionResult {
	return action.ExecutionResult{
		Success: false,
		Message: fmt.Sprintf("payload field %q missing or invalid", field),
	}
}

func stringField(payload map[string]any, key string) (string, bool) {
	v, ok := payload[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return "", false
	}
	return s, true
}

// intField accepts int and float64 values; JSON decoding produces float64.
func intField(payload map[string]any, key string) (int, bool) {
	switch v := payload[key].(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}
