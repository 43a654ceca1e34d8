package runtime

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"team-chat/domain"
	"team-chat/domain/event"
)

// PresenceRegistry tracks which identities own at least one live connection.
// Every Register, and every Deregister of a known identity, is published to
// subscribers as a PresenceChanged event, in registry order.
type PresenceRegistry struct {
	mu          sync.Mutex
	log         *slog.Logger
	connections map[domain.Identity]Set[domain.ConnectionID]
	subscribers map[*PresenceSubscription]struct{}
}

func NewPresenceRegistry(log *slog.Logger) *PresenceRegistry {
	return &PresenceRegistry{
		log:         log,
		connections: make(map[domain.Identity]Set[domain.ConnectionID]),
		subscribers: make(map[*PresenceSubscription]struct{}),
	}
}

// Register adds a connection to the identity and returns the resulting count.
// Registering the same connection twice is a no-op on the count.
func (p *PresenceRegistry) Register(identity domain.Identity, connectionID domain.ConnectionID) int {
	p.mu.Lock()
	defer p.mu.Unlock()

	conns, ok := p.connections[identity]
	if !ok {
		conns = make(Set[domain.ConnectionID])
		p.connections[identity] = conns
	}
	before := len(conns)
	conns[connectionID] = struct{}{}
	count := len(conns)

	p.publish(event.PresenceChanged{
		Identity:   identity,
		Online:     true,
		Count:      count,
		Transition: before == 0,
	})
	return count
}

// Deregister removes a connection and returns the remaining count.
// An unknown identity returns 0 and publishes nothing.
func (p *PresenceRegistry) Deregister(identity domain.Identity, connectionID domain.ConnectionID) int {
	p.mu.Lock()
	defer p.mu.Unlock()

	conns, ok := p.connections[identity]
	if !ok {
		return 0
	}
	_, removed := conns[connectionID]
	delete(conns, connectionID)
	count := len(conns)

	// No empty set is ever kept
	if count == 0 {
		delete(p.connections, identity)
	}

	p.publish(event.PresenceChanged{
		Identity:   identity,
		Online:     count > 0,
		Count:      count,
		Transition: removed && count == 0,
	})
	return count
}

func (p *PresenceRegistry) IsOnline(identity domain.Identity) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.connections[identity]) > 0
}

func (p *PresenceRegistry) Count(identity domain.Identity) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.connections[identity])
}

// OnlineIdentities returns a sorted snapshot of online identities.
func (p *PresenceRegistry) OnlineIdentities() []domain.Identity {
	p.mu.Lock()
	defer p.mu.Unlock()

	online := make([]domain.Identity, 0, len(p.connections))
	for identity := range p.connections {
		online = append(online, identity)
	}
	sort.Slice(online, func(i, j int) bool { return online[i] < online[j] })
	return online
}

// Subscribe returns a subscription receiving every event published from now on.
func (p *PresenceRegistry) Subscribe() *PresenceSubscription {
	sub := newPresenceSubscription()
	p.mu.Lock()
	p.subscribers[sub] = struct{}{}
	p.mu.Unlock()
	return sub
}

// Unsubscribe stops delivery. Events already queued can still be drained.
func (p *PresenceRegistry) Unsubscribe(sub *PresenceSubscription) {
	p.mu.Lock()
	delete(p.subscribers, sub)
	p.mu.Unlock()
	sub.close()
}

// publish must be called with p.mu held, which is what keeps the order.
func (p *PresenceRegistry) publish(evt event.PresenceChanged) {
	p.log.Debug("Presence changed",
		"identity", evt.Identity, "online", evt.Online, "count", evt.Count, "transition", evt.Transition)
	for sub := range p.subscribers {
		sub.push(evt)
	}
}

// PresenceSubscription is an unbounded FIFO: pushing never blocks the
// registry and never drops an event.
type PresenceSubscription struct {
	mu     sync.Mutex
	queue  []event.PresenceChanged
	signal chan struct{}
	closed bool
}

func newPresenceSubscription() *PresenceSubscription {
	return &PresenceSubscription{signal: make(chan struct{}, 1)}
}

func (s *PresenceSubscription) push(evt event.PresenceChanged) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.queue = append(s.queue, evt)
	s.mu.Unlock()
	s.notify()
}

func (s *PresenceSubscription) close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.notify()
}

func (s *PresenceSubscription) notify() {
	select {
	case s.signal <- struct{}{}:
	default:
	}
}

// Next pops the oldest queued event, waiting for one if needed.
func (s *PresenceSubscription) Next(ctx context.Context) (event.PresenceChanged, bool) {
	for {
		s.mu.Lock()
		if len(s.queue) > 0 {
			evt := s.queue[0]
			s.queue[0] = event.PresenceChanged{}
			s.queue = s.queue[1:]
			s.mu.Unlock()
			return evt, true
		}
		closed := s.closed
		s.mu.Unlock()
		if closed {
			return event.PresenceChanged{}, false
		}

		select {
		case <-ctx.Done():
			return event.PresenceChanged{}, false
		case <-s.signal:
		}
	}
}

// Pending is the number of queued events not yet consumed.
func (s *PresenceSubscription) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}
