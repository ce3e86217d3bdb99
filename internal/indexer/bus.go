// Package indexer propagates write-side changes into the search mirrors:
// a bounded in-process event queue plus a worker that applies each event.
// Delivery is at-least-once with best-effort drop when the queue is full,
// so searches may briefly lag the system of record.
package indexer

import (
	"context"

	"go.uber.org/zap"

	"github.com/renoted/renoted/internal/domain/event"
	"github.com/renoted/renoted/internal/logger"
	"github.com/renoted/renoted/internal/metrics"
)

// Bus is a bounded in-process event queue.
type Bus struct {
	ch chan event.Event
}

// NewBus creates a bus with the given queue capacity.
func NewBus(capacity int) *Bus {
	if capacity <= 0 {
		capacity = 1024
	}
	return &Bus{ch: make(chan event.Event, capacity)}
}

// Publish enqueues an event without blocking. When the queue is full the
// event is dropped and the drop is logged and counted; the write that
// produced it has already committed and must not fail on index backpressure.
func (b *Bus) Publish(ctx context.Context, ev event.Event) {
	select {
	case b.ch <- ev:
		metrics.IndexEventEnqueued(ev.Kind.String())
	default:
		metrics.IndexEventDropped(ev.Kind.String())
		logger.FromContext(ctx).Warn("index event dropped, queue full",
			zap.String("kind", ev.Kind.String()),
			zap.String("annotation_id", ev.AnnotationID),
		)
	}
}

// Events exposes the consuming side of the queue.
func (b *Bus) Events() <-chan event.Event {
	return b.ch
}

// Len reports the current queue depth.
func (b *Bus) Len() int {
	return len(b.ch)
}
