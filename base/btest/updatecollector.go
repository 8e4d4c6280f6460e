package btest

import (
	"context"
	"time"

	"github.com/relex/streamchart/base"
)

// UpdateCollector collects published updates into a channel, for testing sessions without multiplexer
type UpdateCollector struct {
	updates chan base.Update
}

// NewUpdateCollector creates an UpdateCollector
func NewUpdateCollector() *UpdateCollector {
	return &UpdateCollector{
		updates: make(chan base.Update, 1000),
	}
}

// Publish implements session.PublishFunc
func (col *UpdateCollector) Publish(ctx context.Context, update base.Update) bool {
	select {
	case col.updates <- update:
		return true
	case <-ctx.Done():
		return false
	}
}

// Next waits for the next update, or returns false on timeout
func (col *UpdateCollector) Next(timeout time.Duration) (base.Update, bool) {
	select {
	case update := <-col.updates:
		return update, true
	case <-time.After(timeout):
		return base.Update{}, false
	}
}

// Pending returns the number of collected but not yet received updates
func (col *UpdateCollector) Pending() int {
	return len(col.updates)
}
