package txstore

import (
	"log/slog"
	"time"
)

// MemoryOption is a functional option for configuring the MemoryStore.
type MemoryOption func(*MemoryStore)

// WithMaxRecords sets the maximum number of terminal records to keep.
func WithMaxRecords(max int) MemoryOption {
	return func(s *MemoryStore) {
		if max > 0 {
			s.maxRecords = max
		}
	}
}

// WithAsyncCleanup enables or disables async cleanup.
func WithAsyncCleanup(enabled bool) MemoryOption {
	return func(s *MemoryStore) {
		s.asyncCleanup = enabled
	}
}

// WithCleanupDebounceInterval sets the cleanup debounce interval.
func WithCleanupDebounceInterval(d time.Duration) MemoryOption {
	return func(s *MemoryStore) {
		if d > 0 {
			s.cleanupDebounceInterval = d
		}
	}
}

// WithLogHandler sets the log handler for the store.
func WithLogHandler(handler slog.Handler) MemoryOption {
	return func(s *MemoryStore) {
		if handler != nil {
			s.logger = slog.New(handler).WithGroup("txstore")
		}
	}
}
