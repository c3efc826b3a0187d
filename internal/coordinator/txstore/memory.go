package txstore

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/uuid/v5"
)

// DefaultMaxRecords is the default number of terminal records to keep.
const DefaultMaxRecords = 20

// DefaultCleanupDebounceInterval is the default time to wait before
// cleaning up old terminal records.
const DefaultCleanupDebounceInterval = 10 * time.Second

// Interface guard
var _ Store = (*MemoryStore)(nil)

// MemoryStore is a thread-safe in-memory record store. Terminal records are
// kept as bounded history; non-terminal records are never evicted, since
// they describe in-flight transactions the coordinator still owes work to.
type MemoryStore struct {
	// Records in insertion order
	records []Record

	// Mutex to protect access to records
	mu sync.RWMutex

	// Maximum number of terminal records to keep
	maxRecords int

	// Whether to use async cleanup
	asyncCleanup bool

	// Time to wait before cleaning up
	cleanupDebounceInterval time.Duration

	// Channel to signal cleanup
	cleanupSignal chan struct{}

	// Indicates if cleanup worker is running
	cleanupRunning atomic.Bool

	logger *slog.Logger
}

// NewMemoryStore creates a new in-memory record store with the given
// options.
func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	s := &MemoryStore{
		records:                 make([]Record, 0, 10),
		maxRecords:              DefaultMaxRecords,
		cleanupDebounceInterval: DefaultCleanupDebounceInterval,
		cleanupSignal:           make(chan struct{}, 1),
		logger:                  slog.Default().WithGroup("txstore"),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Save writes or replaces the record for its transaction ID.
func (s *MemoryStore) Save(rec Record) error {
	s.logger.WithGroup("Save").Debug("Saving record", "id", rec.ID.String(), "phase", rec.Snapshot.Phase)

	s.mu.Lock()
	replaced := false
	for i := range s.records {
		if s.records[i].ID == rec.ID {
			s.records[i] = rec
			replaced = true
			break
		}
	}
	if !replaced {
		s.records = append(s.records, rec)
	}
	s.mu.Unlock()

	if s.asyncCleanup {
		s.signalCleanup()
	} else {
		s.cleanup()
	}

	return nil
}

// Load returns the record for the given ID, and whether it exists.
func (s *MemoryStore) Load(id uuid.UUID) (Record, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, rec := range s.records {
		if rec.ID == id {
			return rec, true, nil
		}
	}
	return Record{}, false, nil
}

// LoadAll returns a copy of every stored record in insertion order.
func (s *MemoryStore) LoadAll() ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Record, len(s.records))
	copy(out, s.records)
	return out, nil
}

// Delete removes the record for the given ID.
func (s *MemoryStore) Delete(id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, rec := range s.records {
		if rec.ID == id {
			s.records = append(s.records[:i], s.records[i+1:]...)
			return nil
		}
	}
	return nil
}

// Clear removes terminal records, keeping at least the last keepLast
// records total. Non-terminal records are never removed. Returns the number
// of records cleared.
func (s *MemoryStore) Clear(keepLast int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if keepLast < 0 {
		return 0, fmt.Errorf("keepLast must be non-negative, got %d", keepLast)
	}

	total := len(s.records)
	if total <= keepLast {
		s.logger.Debug("No records to clear", "total", total, "keepLast", keepLast)
		return 0, nil
	}

	toDelete := total - keepLast
	deleted := 0

	kept := make([]Record, 0, keepLast)
	for _, rec := range s.records {
		if deleted < toDelete && rec.Terminal() {
			deleted++
			continue
		}
		kept = append(kept, rec)
	}
	s.records = kept

	s.logger.WithGroup("Clear").
		Info("Cleared records", "cleared", deleted, "remaining", len(s.records))
	return deleted, nil
}

// signalCleanup signals the cleanup worker to run
func (s *MemoryStore) signalCleanup() {
	// Start cleanup worker if not running
	if s.cleanupRunning.CompareAndSwap(false, true) {
		go s.cleanupWorker()
	}

	// Signal cleanup non-blocking
	select {
	case s.cleanupSignal <- struct{}{}:
	default:
		// Channel full, ignore
	}
}

// cleanup trims terminal records beyond the configured maximum.
func (s *MemoryStore) cleanup() {
	logger := s.logger.WithGroup("cleanup")
	s.mu.Lock()
	defer s.mu.Unlock()

	terminal := 0
	for _, rec := range s.records {
		if rec.Terminal() {
			terminal++
		}
	}
	if terminal <= s.maxRecords {
		return
	}

	logger.Debug("Starting cleanup", "records", len(s.records), "terminal", terminal)
	toDelete := terminal - s.maxRecords
	kept := make([]Record, 0, len(s.records)-toDelete)
	for _, rec := range s.records {
		if toDelete > 0 && rec.Terminal() {
			toDelete--
			continue
		}
		kept = append(kept, rec)
	}
	s.records = kept
	logger.Debug("Finished cleanup", "records", len(s.records))
}

// cleanupWorker runs cleanup operations asynchronously
func (s *MemoryStore) cleanupWorker() {
	defer s.cleanupRunning.Store(false)

	// Create timer for debounce
	timer := time.NewTimer(s.cleanupDebounceInterval)
	defer timer.Stop()

	for {
		select {
		case <-s.cleanupSignal:
			// Reset timer when a new signal comes in
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(s.cleanupDebounceInterval)

		case <-timer.C:
			// Timer expired, run cleanup
			s.cleanup()
			return
		}
	}
}
