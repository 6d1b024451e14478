package adapter

import (
	"log/slog"
	"sync"
)

// Warner logs each distinct warning message once for its lifetime, so a
// source that keeps sending the same bad payload does not flood the log.
type Warner struct {
	mu     sync.Mutex
	seen   map[string]struct{}
	logger *slog.Logger
}

// NewWarner creates a Warner writing to logger (slog.Default when nil).
func NewWarner(logger *slog.Logger) *Warner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Warner{
		seen:   make(map[string]struct{}),
		logger: logger,
	}
}

// Warn logs msg with attrs unless msg was already logged. It reports
// whether the warning was emitted. Attributes are not part of the key.
func (w *Warner) Warn(msg string, attrs ...any) bool {
	w.mu.Lock()
	if _, dup := w.seen[msg]; dup {
		w.mu.Unlock()
		return false
	}
	w.seen[msg] = struct{}{}
	w.mu.Unlock()

	w.logger.Warn(msg, attrs...)
	return true
}

// Reset forgets every message seen so far.
func (w *Warner) Reset() {
	w.mu.Lock()
	w.seen = make(map[string]struct{})
	w.mu.Unlock()
}
