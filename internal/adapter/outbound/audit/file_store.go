package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"time"

	"github.com/wardenlabs/warden/internal/domain/audit"
)

// decisionFilePattern matches audit filenames: decisions-YYYY-MM-DD.log.
var decisionFilePattern = regexp.MustCompile(`^decisions-(\d{4}-\d{2}-\d{2})\.log$`)

// FileConfig holds configuration for the file-based audit store.
type FileConfig struct {
	// Dir is the directory where audit files are stored.
	Dir string
	// RetentionDays is how long to keep audit files (default 30).
	RetentionDays int
	// CacheSize is the number of recent records kept in memory for the
	// Recent query (default 500).
	CacheSize int
}

// FileAuditStore implements audit.AuditStore with daily file rotation,
// retention cleanup, and an in-memory ring buffer of recent records.
type FileAuditStore struct {
	dir           string
	retentionDays int
	currentFile   *os.File
	currentDate   string
	cache         *ringCache
	mu            sync.Mutex
	logger        *slog.Logger
	cancel        context.CancelFunc
	done          chan struct{}
	closed        bool
}

// NewFileStore creates a file-based audit store. It creates the directory
// if missing, opens today's file, runs retention cleanup, and starts the
// hourly cleanup goroutine.
func NewFileStore(cfg FileConfig, logger *slog.Logger) (*FileAuditStore, error) {
	if cfg.RetentionDays <= 0 {
		cfg.RetentionDays = 30
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = 500
	}

	if err := os.MkdirAll(cfg.Dir, 0o700); err != nil {
		return nil, fmt.Errorf("create audit directory: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &FileAuditStore{
		dir:           cfg.Dir,
		retentionDays: cfg.RetentionDays,
		cache:         newRingCache(cfg.CacheSize),
		logger:        logger,
		cancel:        cancel,
		done:          make(chan struct{}),
	}

	today := time.Now().UTC().Format("2006-01-02")
	if err := s.openCurrentFile(today); err != nil {
		cancel()
		close(s.done)
		return nil, fmt.Errorf("open audit file: %w", err)
	}

	s.runCleanup()
	go s.cleanupLoop(ctx)

	return s, nil
}

// Append writes records as JSON Lines, rotating the file on date change.
func (s *FileAuditStore) Append(ctx context.Context, records ...audit.Record) error {
	if len(records) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, rec := range records {
		dateStr := rec.Timestamp.UTC().Format("2006-01-02")
		if dateStr != s.currentDate {
			if err := s.rotateLocked(dateStr); err != nil {
				return fmt.Errorf("audit rotation: %w", err)
			}
		}

		data, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("marshal audit record: %w", err)
		}
		if _, err := s.currentFile.Write(append(data, '\n')); err != nil {
			return fmt.Errorf("write audit record: %w", err)
		}
		s.cache.Add(rec)
	}
	return nil
}

// Flush syncs the current file to disk.
func (s *FileAuditStore) Flush(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.currentFile != nil {
		return s.currentFile.Sync()
	}
	return nil
}

// Close stops the cleanup goroutine and closes the current file.
func (s *FileAuditStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	s.cancel()
	<-s.done

	if s.currentFile != nil {
		_ = s.currentFile.Sync()
		err := s.currentFile.Close()
		s.currentFile = nil
		return err
	}
	return nil
}

// Recent returns the last n records from the cache, newest first.
func (s *FileAuditStore) Recent(n int) []audit.Record {
	return s.cache.Recent(n)
}

// openCurrentFile opens or creates the audit file for the given date.
func (s *FileAuditStore) openCurrentFile(dateStr string) error {
	path := filepath.Join(s.dir, fmt.Sprintf("decisions-%s.log", dateStr))
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	s.currentFile = f
	s.currentDate = dateStr
	return nil
}

// rotateLocked closes the current file and opens one for the new date.
// Must be called with s.mu held.
func (s *FileAuditStore) rotateLocked(dateStr string) error {
	if s.currentFile != nil {
		_ = s.currentFile.Sync()
		_ = s.currentFile.Close()
		s.currentFile = nil
	}
	return s.openCurrentFile(dateStr)
}

// runCleanup deletes audit files older than the retention period.
func (s *FileAuditStore) runCleanup() {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		s.logger.Error("audit cleanup: read directory", "dir", s.dir, "error", err)
		return
	}

	cutoff := time.Now().UTC().AddDate(0, 0, -s.retentionDays)
	deleted := 0
	for _, e := range entries {
		m := decisionFilePattern.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		fileDate, err := time.Parse("2006-01-02", m[1])
		if err != nil {
			continue
		}
		if fileDate.Before(cutoff) {
			if err := os.Remove(filepath.Join(s.dir, e.Name())); err != nil {
				s.logger.Error("audit cleanup: delete file", "file", e.Name(), "error", err)
			} else {
				deleted++
			}
		}
	}
	if deleted > 0 {
		s.logger.Info("audit cleanup completed", "deleted", deleted)
	}
}

// cleanupLoop runs retention cleanup hourly until the context is cancelled.
func (s *FileAuditStore) cleanupLoop(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(1 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runCleanup()
		}
	}
}

// Compile-time interface verification.
var _ audit.AuditStore = (*FileAuditStore)(nil)

// ringCache is a ring buffer of recent audit records.
type ringCache struct {
	entries []audit.Record
	size    int
	head    int
	count   int
	mu      sync.RWMutex
}

func newRingCache(size int) *ringCache {
	return &ringCache{
		entries: make([]audit.Record, size),
		size:    size,
	}
}

// Add appends a record, overwriting the oldest entry when full.
func (c *ringCache) Add(rec audit.Record) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[c.head] = rec
	c.head = (c.head + 1) % c.size
	if c.count < c.size {
		c.count++
	}
}

// Recent returns the last n entries, newest first.
func (c *ringCache) Recent(n int) []audit.Record {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if n <= 0 || c.count == 0 {
		return nil
	}
	if n > c.count {
		n = c.count
	}
	result := make([]audit.Record, n)
	for i := 0; i < n; i++ {
		idx := (c.head - 1 - i + c.size) % c.size
		result[i] = c.entries[idx]
	}
	return result
}
