package events

import (
	"fmt"
	"sync"
	"time"
)

// LogEntry is one line of operator-facing activity history.
type LogEntry struct {
	Time      time.Time `json:"time"`
	Message   string    `json:"message"`
	Displayed bool      `json:"displayed"`
}

// LogFeed is an append-only activity log consumed by the HTTP layer. Entries
// stay in the feed after display so a full history remains available; the
// Displayed flag lets pollers fetch only what they have not shown yet.
type LogFeed struct {
	mu      sync.Mutex
	entries []LogEntry
	max     int
}

// NewLogFeed creates a feed that keeps at most max entries; older entries are
// dropped from the front. max <= 0 means unbounded.
func NewLogFeed(max int) *LogFeed {
	return &LogFeed{max: max}
}

// Add appends a formatted message to the feed.
func (f *LogFeed) Add(format string, args ...any) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.entries = append(f.entries, LogEntry{
		Time:    time.Now(),
		Message: fmt.Sprintf(format, args...),
	})
	if f.max > 0 && len(f.entries) > f.max {
		f.entries = f.entries[len(f.entries)-f.max:]
	}
}

// TakeUndisplayed returns entries not yet handed to a poller and marks them
// displayed.
func (f *LogFeed) TakeUndisplayed() []LogEntry {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []LogEntry
	for i := range f.entries {
		if !f.entries[i].Displayed {
			f.entries[i].Displayed = true
			out = append(out, f.entries[i])
		}
	}
	return out
}

// All returns a copy of the full history.
func (f *LogFeed) All() []LogEntry {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]LogEntry, len(f.entries))
	copy(out, f.entries)
	return out
}
