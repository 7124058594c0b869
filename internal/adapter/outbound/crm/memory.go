package crm

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Note is a CRM note stored by the fake.
type Note struct {
	ID        string
	ClientID  string
	Content   string
	CreatedAt time.Time
}

// Task is a scheduled CRM task stored by the fake.
type Task struct {
	ID       string
	ClientID string
	Title    string
	DueAt    time.Time
}

// MemoryCRM is an in-memory Client for dev mode and tests. It records
// every mutation so tests can assert on what the agent actually did.
type MemoryCRM struct {
	mu        sync.Mutex
	tags      map[string]map[string]bool
	statuses  map[string]string
	scores    map[string]int
	notes     []Note
	tasks     []Task
	followups map[string][]string
	contents  map[string][]string
	notices   []string

	// FailNext makes the next mutating call return an error. For tests.
	FailNext error
}

// NewMemoryCRM creates an empty in-memory CRM.
func NewMemoryCRM() *MemoryCRM {
	return &MemoryCRM{
		tags:      make(map[string]map[string]bool),
		statuses:  make(map[string]string),
		scores:    make(map[string]int),
		followups: make(map[string][]string),
		contents:  make(map[string][]string),
	}
}

func (m *MemoryCRM) takeFailure() error {
	err := m.FailNext
	m.FailNext = nil
	return err
}

func scopedKey(workspaceID, clientID string) string {
	return workspaceID + "/" + clientID
}

func (m *MemoryCRM) AddTag(_ context.Context, workspaceID, clientID, tag string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure(); err != nil {
		return err
	}
	key := scopedKey(workspaceID, clientID)
	if m.tags[key] == nil {
		m.tags[key] = make(map[string]bool)
	}
	m.tags[key][tag] = true
	return nil
}

func (m *MemoryCRM) RemoveTag(_ context.Context, workspaceID, clientID, tag string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure(); err != nil {
		return err
	}
	delete(m.tags[scopedKey(workspaceID, clientID)], tag)
	return nil
}

func (m *MemoryCRM) UpdateStatus(_ context.Context, workspaceID, clientID, status string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure(); err != nil {
		return err
	}
	m.statuses[scopedKey(workspaceID, clientID)] = status
	return nil
}

func (m *MemoryCRM) UpdateScore(_ context.Context, workspaceID, clientID string, score int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure(); err != nil {
		return err
	}
	m.scores[scopedKey(workspaceID, clientID)] = score
	return nil
}

func (m *MemoryCRM) CreateNote(_ context.Context, _, clientID, content string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure(); err != nil {
		return "", err
	}
	note := Note{
		ID:        uuid.NewString(),
		ClientID:  clientID,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}
	m.notes = append(m.notes, note)
	return note.ID, nil
}

func (m *MemoryCRM) ScheduleTask(_ context.Context, _, clientID, title string, dueDays int) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure(); err != nil {
		return "", err
	}
	task := Task{
		ID:       uuid.NewString(),
		ClientID: clientID,
		Title:    title,
		DueAt:    time.Now().UTC().AddDate(0, 0, dueDays),
	}
	m.tasks = append(m.tasks, task)
	return task.ID, nil
}

func (m *MemoryCRM) SendFollowup(_ context.Context, workspaceID, clientID, template string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure(); err != nil {
		return err
	}
	key := scopedKey(workspaceID, clientID)
	m.followups[key] = append(m.followups[key], template)
	return nil
}

func (m *MemoryCRM) SaveContent(_ context.Context, workspaceID, clientID, contentType, body string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure(); err != nil {
		return "", err
	}
	key := scopedKey(workspaceID, clientID)
	m.contents[key] = append(m.contents[key], contentType+": "+body)
	return uuid.NewString(), nil
}

func (m *MemoryCRM) Notify(_ context.Context, _, channel, message string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure(); err != nil {
		return err
	}
	m.notices = append(m.notices, fmt.Sprintf("%s: %s", channel, message))
	return nil
}

// Tags returns the tags currently on a client record.
func (m *MemoryCRM) Tags(workspaceID, clientID string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var tags []string
	for t := range m.tags[scopedKey(workspaceID, clientID)] {
		tags = append(tags, t)
	}
	return tags
}

// Status returns the current status of a client record.
func (m *MemoryCRM) Status(workspaceID, clientID string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.statuses[scopedKey(workspaceID, clientID)]
}

// Notes returns a copy of all stored notes.
func (m *MemoryCRM) Notes() []Note {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Note(nil), m.notes...)
}

// Tasks returns a copy of all scheduled tasks.
func (m *MemoryCRM) Tasks() []Task {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Task(nil), m.tasks...)
}

// Followups returns the follow-up templates sent to a client.
func (m *MemoryCRM) Followups(workspaceID, clientID string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.followups[scopedKey(workspaceID, clientID)]...)
}

// Compile-time interface verification.
var _ Client = (*MemoryCRM)(nil)
