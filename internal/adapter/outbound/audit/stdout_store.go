// Package audit provides decision-audit persistence: a stdout JSON Lines
// writer and a file-backed store with daily rotation and retention.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/wardenlabs/warden/internal/domain/audit"
)

// StdoutAuditStore writes audit records as JSON Lines to a writer
// (stdout by default).
type StdoutAuditStore struct {
	mu  sync.Mutex
	out io.Writer
}

// NewStdoutStore creates an audit store writing to stdout.
func NewStdoutStore() *StdoutAuditStore {
	return &StdoutAuditStore{out: os.Stdout}
}

// NewWriterStore creates an audit store writing to w. For tests.
func NewWriterStore(w io.Writer) *StdoutAuditStore {
	return &StdoutAuditStore{out: w}
}

// Append writes each record as one JSON line.
func (s *StdoutAuditStore) Append(ctx context.Context, records ...audit.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, rec := range records {
		data, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("marshal audit record: %w", err)
		}
		if _, err := s.out.Write(append(data, '\n')); err != nil {
			return fmt.Errorf("write audit record: %w", err)
		}
	}
	return nil
}

// Flush is a no-op for the stdout store.
func (s *StdoutAuditStore) Flush(ctx context.Context) error { return nil }

// Close is a no-op for the stdout store.
func (s *StdoutAuditStore) Close() error { return nil }

// Compile-time interface verification.
var _ audit.AuditStore = (*StdoutAuditStore)(nil)
