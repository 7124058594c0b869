package audit

import "context"

// AuditStore persists decision audit records.
type AuditStore interface {
	// Append stores one or more records.
	Append(ctx context.Context, records ...Record) error

	// Flush forces pending records to durable storage.
	Flush(ctx context.Context) error

	// Close releases resources held by the store.
	Close() error
}
