package sink

import (
	"context"
	"sync"
	"team-chat/domain/event"
	"team-chat/errors"
)

// ConnectionSink is the outbound buffer of one realtime connection.
// Consume never blocks: when the buffer is full the event is dropped and
// ErrSlowConsumer is returned, so a slow client cannot stall a broadcast.
type ConnectionSink struct {
	events chan event.DomainEvent
	done   chan struct{}
	once   sync.Once
}

func NewConnectionSink(bufferSize int) *ConnectionSink {
	return &ConnectionSink{
		events: make(chan event.DomainEvent, bufferSize),
		done:   make(chan struct{}),
	}
}

// Consume is called by the room registry
// The write pump of the connection drains the buffer
func (s *ConnectionSink) Consume(ctx context.Context, e event.DomainEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case <-s.done:
		return errors.ErrConnectionClosed
	default:
	}
	select {
	case s.events <- e:
		return nil
	default:
		return errors.ErrSlowConsumer
	}
}

// Events is drained by the connection's write pump.
func (s *ConnectionSink) Events() <-chan event.DomainEvent {
	return s.events
}

// Done is closed once the connection is finalized.
func (s *ConnectionSink) Done() <-chan struct{} {
	return s.done
}

// Close is idempotent. The events channel is never closed, so late
// producers get ErrConnectionClosed instead of a panic.
func (s *ConnectionSink) Close() {
	s.once.Do(func() { close(s.done) })
}
