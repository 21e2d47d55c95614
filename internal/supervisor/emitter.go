package supervisor

import (
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// EventEmitter fans supervisor events out to a single subscriber channel.
// Emission never blocks plan execution: a full channel gets one short grace
// period and then the event is dropped and counted.
type EventEmitter struct {
	events       chan Event
	droppedCount atomic.Uint64
	logger       *zap.Logger
}

// NewEventEmitter creates an EventEmitter with the given buffer size.
func NewEventEmitter(bufferSize int, logger *zap.Logger) *EventEmitter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventEmitter{
		events: make(chan Event, bufferSize),
		logger: logger,
	}
}

// Emit sends an event to the subscriber channel. If the channel is full it
// retries with a short timeout before dropping the event.
func (e *EventEmitter) Emit(event Event) {
	select {
	case e.events <- event:
		return
	default:
	}

	// Give the receiver a chance to drain before dropping.
	select {
	case e.events <- event:
	case <-time.After(100 * time.Millisecond):
		count := e.droppedCount.Add(1)
		if count%10 == 1 { // log every 10th drop to avoid spam
			e.logger.Warn("event channel full, dropping events",
				zap.Uint64("total_dropped", count),
				zap.String("event_type", string(event.Type)))
		}
	}
}

// DroppedCount returns the total number of events dropped so far.
func (e *EventEmitter) DroppedCount() uint64 {
	return e.droppedCount.Load()
}

// Events returns the read-only subscriber channel.
func (e *EventEmitter) Events() <-chan Event {
	return e.events
}

// Close closes the subscriber channel. Call only after all plan execution
// has stopped.
func (e *EventEmitter) Close() {
	close(e.events)
}
