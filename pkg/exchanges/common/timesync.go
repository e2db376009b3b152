package common

import (
	"context"
	"log"
	"sync"
	"time"
)

// Clock tracks the offset between the local clock and an exchange server
// clock. Signed requests carry a timestamp the exchange validates against its
// own time, so a drifting local clock would get every request rejected.
type Clock struct {
	serverTime func(ctx context.Context) (int64, error)

	mu     sync.RWMutex
	offset int64 // server minus local, milliseconds
}

// NewClock creates a clock that syncs against serverTime.
func NewClock(serverTime func(ctx context.Context) (int64, error)) *Clock {
	return &Clock{serverTime: serverTime}
}

// Run resyncs periodically until ctx is cancelled.
func (c *Clock) Run(ctx context.Context, every time.Duration) {
	if err := c.Sync(ctx); err != nil {
		log.Printf("clock: initial sync failed: %v", err)
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.Sync(ctx); err != nil {
				log.Printf("clock: sync failed: %v", err)
			}
		}
	}
}

// Sync fetches the server time once and records the offset, assuming
// symmetric network latency.
func (c *Clock) Sync(ctx context.Context) error {
	before := time.Now().UnixMilli()
	server, err := c.serverTime(ctx)
	if err != nil {
		return err
	}
	after := time.Now().UnixMilli()

	local := before + (after-before)/2
	c.mu.Lock()
	c.offset = server - local
	c.mu.Unlock()
	return nil
}

// Now returns the current time in exchange-server milliseconds.
func (c *Clock) Now() int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return time.Now().UnixMilli() + c.offset
}
