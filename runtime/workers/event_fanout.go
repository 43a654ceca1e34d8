package workers

import (
	"context"
	"log/slog"
	"team-chat/contract"
	"team-chat/domain/event"
	"time"
)

// EventFanout hands internal events (persisted or deleted messages) to the
// permanent sinks, off the request path.
//
// It provides best-effort fan-out with no guarantees regarding delivery,
// durability, or retries. It is not a message broker: the message store
// stays the source of truth and a lost event only degrades the sinks.
//
// Publish is safe for concurrent use by multiple goroutines.
type EventFanout struct {
	log         *slog.Logger
	events      chan event.DomainEvent
	sinks       []contract.EventSink
	sinkTimeout time.Duration
}

func NewEventFanout(log *slog.Logger, bufferSize int, sinkTimeout time.Duration) *EventFanout {
	return &EventFanout{
		log:         log,
		events:      make(chan event.DomainEvent, bufferSize),
		sinkTimeout: sinkTimeout,
	}
}

// Add must be called before Run.
func (w *EventFanout) Add(sinks ...contract.EventSink) *EventFanout {
	w.sinks = append(w.sinks, sinks...)
	return w
}

// Publish never blocks, a full buffer drops the event.
func (w *EventFanout) Publish(e event.DomainEvent) {
	select {
	case w.events <- e:
	default:
		w.log.Warn("Fanout buffer full, dropping event", "event", e.Type())
	}
}

func (w *EventFanout) Run(ctx context.Context) error {
	for {
		select {
		case evt := <-w.events:
			w.Fanout(ctx, evt)
		case <-ctx.Done():
			w.log.Debug("Context done, stopping fanout")
			return nil
		}
	}
}

// Fanout One sink for each event, each bounded by the sink timeout
func (w *EventFanout) Fanout(ctx context.Context, e event.DomainEvent) {
	for _, sink := range w.sinks {
		sinkCtx, cancel := context.WithTimeout(ctx, w.sinkTimeout)
		if err := sink.Consume(sinkCtx, e); err != nil {
			w.log.Warn("Sink failed to consume event", "event", e.Type(), "error", err)
		}
		cancel()
	}
}
