// Package crm holds the boundary to the CRM system: the Client interface
// the built-in action handlers call, the handlers themselves, and an
// in-memory fake for dev mode and tests.
package crm

import "context"

// Client is the write surface of the CRM backend. One method per action
// kind the agent can execute.
type Client interface {
	AddTag(ctx context.Context, workspaceID, clientID, tag string) error
	RemoveTag(ctx context.Context, workspaceID, clientID, tag string) error
	UpdateStatus(ctx context.Context, workspaceID, clientID, status string) error
	UpdateScore(ctx context.Context, workspaceID, clientID string, score int) error
	CreateNote(ctx context.Context, workspaceID, clientID, content string) (string, error)
	ScheduleTask(ctx context.Context, workspaceID, clientID, title string, dueDays int) (string, error)
	SendFollowup(ctx context.Context, workspaceID, clientID, template string) error
	SaveContent(ctx context.Context, workspaceID, clientID, contentType, body string) (string, error)
	Notify(ctx context.Context, workspaceID, channel, message string) error
}
