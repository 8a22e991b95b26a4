package logging

import (
	"log/slog"
	"sync"
	"time"
)

// LogEntry is one record kept for the API.
type LogEntry struct {
	Timestamp  time.Time      `json:"timestamp"`
	Level      string         `json:"level"`
	Module     string         `json:"module"`
	Message    string         `json:"message"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

// Query selects entries from a LogBuffer. Zero values match everything.
type Query struct {
	// Limit keeps only the newest matches.
	Limit int
	// Module matches the logger module exactly.
	Module string
	// MinLevel drops entries below this level ("debug", "info", "warn",
	// "error"). Unknown names match everything.
	MinLevel string
}

func (q Query) match(e LogEntry, min *slog.Level) bool {
	if q.Module != "" && e.Module != q.Module {
		return false
	}
	if min != nil {
		if lvl := parseLevel(e.Level); lvl != nil && *lvl < *min {
			return false
		}
	}
	return true
}

// LogBuffer keeps the newest entries up to a fixed capacity.
type LogBuffer struct {
	mu      sync.RWMutex
	entries []LogEntry
	next    int
	full    bool
}

// NewLogBuffer creates a buffer holding at most capacity entries.
func NewLogBuffer(capacity int) *LogBuffer {
	if capacity < 1 {
		capacity = 1
	}
	return &LogBuffer{entries: make([]LogEntry, capacity)}
}

// Append stores entry, dropping the oldest one when full.
func (b *LogBuffer) Append(entry LogEntry) {
	b.mu.Lock()
	b.entries[b.next] = entry
	b.next++
	if b.next == len(b.entries) {
		b.next = 0
		b.full = true
	}
	b.mu.Unlock()
}

// Len returns the number of stored entries.
func (b *LogBuffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.full {
		return len(b.entries)
	}
	return b.next
}

// Entries returns every stored entry, oldest first.
func (b *LogBuffer) Entries() []LogEntry {
	return b.Query(Query{})
}

// Query returns the entries matching q, oldest first.
func (b *LogBuffer) Query(q Query) []LogEntry {
	var min *slog.Level
	if q.MinLevel != "" {
		min = parseLevel(q.MinLevel)
	}

	b.mu.RLock()
	ordered := make([]LogEntry, 0, len(b.entries))
	if b.full {
		ordered = append(ordered, b.entries[b.next:]...)
	}
	ordered = append(ordered, b.entries[:b.next]...)
	b.mu.RUnlock()

	out := ordered[:0]
	for _, e := range ordered {
		if q.match(e, min) {
			out = append(out, e)
		}
	}
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[len(out)-q.Limit:]
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
