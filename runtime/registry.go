package runtime

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"team-chat/contract"
	"team-chat/domain"
	"team-chat/domain/event"
	"team-chat/observability"
)

type Set[K comparable] map[K]struct{}

type session struct {
	identity domain.Identity
	sink     contract.EventSink
}

// RoomRegistry owns the connection directory and the channel rooms.
// Rooms are ephemeral broadcast groups: membership is evaluated when a
// broadcast happens, a late joiner never receives earlier broadcasts.
type RoomRegistry struct {
	mu          sync.RWMutex
	log         *slog.Logger
	metrics     *observability.Metrics
	sessions    map[domain.ConnectionID]session               // connection -> sink
	rooms       map[domain.ChannelID]Set[domain.ConnectionID] // room -> connections
	memberships map[domain.ConnectionID]Set[domain.ChannelID] // connection -> rooms
}

func NewRoomRegistry(log *slog.Logger, metrics *observability.Metrics) *RoomRegistry {
	return &RoomRegistry{
		log:         log,
		metrics:     metrics,
		sessions:    make(map[domain.ConnectionID]session),
		rooms:       make(map[domain.ChannelID]Set[domain.ConnectionID]),
		memberships: make(map[domain.ConnectionID]Set[domain.ChannelID]),
	}
}

// Attach registers the connection's sink in the global directory.
func (r *RoomRegistry) Attach(connectionID domain.ConnectionID, identity domain.Identity, sink contract.EventSink) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[connectionID] = session{identity: identity, sink: sink}
	r.metrics.ConnectionOpened()
}

// Detach removes the connection from the directory and from every room.
func (r *RoomRegistry) Detach(connectionID domain.ConnectionID) []domain.ChannelID {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[connectionID]; ok {
		delete(r.sessions, connectionID)
		r.metrics.ConnectionClosed()
	}
	return r.leaveAll(connectionID)
}

// Join adds the connection to the room and returns the room size.
func (r *RoomRegistry) Join(connectionID domain.ConnectionID, channelID domain.ChannelID) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	members, ok := r.rooms[channelID]
	if !ok {
		members = make(Set[domain.ConnectionID])
		r.rooms[channelID] = members
	}
	members[connectionID] = struct{}{}

	joined, ok := r.memberships[connectionID]
	if !ok {
		joined = make(Set[domain.ChannelID])
		r.memberships[connectionID] = joined
	}
	joined[channelID] = struct{}{}
	return len(members)
}

// Leave removes the connection from the room and returns the room size.
// Leaving a room the connection is not in is a no-op.
func (r *RoomRegistry) Leave(connectionID domain.ConnectionID, channelID domain.ChannelID) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.leave(connectionID, channelID)
}

// LeaveAll removes the connection from every room it joined.
func (r *RoomRegistry) LeaveAll(connectionID domain.ConnectionID) []domain.ChannelID {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.leaveAll(connectionID)
}

// ConnectionCount is the number of attached connections.
func (r *RoomRegistry) ConnectionCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

func (r *RoomRegistry) MembersOf(channelID domain.ChannelID) []domain.ConnectionID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedKeys(r.rooms[channelID])
}

func (r *RoomRegistry) RoomsOf(connectionID domain.ConnectionID) []domain.ChannelID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedKeys(r.memberships[connectionID])
}

// Broadcast delivers e to every connection currently in the room, except the
// excluded ones, and returns how many sinks accepted it. Delivery never
// blocks: a full or closed sink is logged and counted, never retried.
func (r *RoomRegistry) Broadcast(ctx context.Context, channelID domain.ChannelID, e event.DomainEvent, exclude ...domain.ConnectionID) int {
	r.mu.RLock()
	members := r.rooms[channelID]
	targets := make(map[domain.ConnectionID]contract.EventSink, len(members))
	for connectionID := range members {
		if s, ok := r.sessions[connectionID]; ok {
			targets[connectionID] = s.sink
		}
	}
	r.mu.RUnlock()

	for _, excluded := range exclude {
		delete(targets, excluded)
	}
	return r.deliver(ctx, targets, e)
}

// BroadcastAll delivers e to every attached connection.
func (r *RoomRegistry) BroadcastAll(ctx context.Context, e event.DomainEvent) int {
	r.mu.RLock()
	targets := make(map[domain.ConnectionID]contract.EventSink, len(r.sessions))
	for connectionID, s := range r.sessions {
		targets[connectionID] = s.sink
	}
	r.mu.RUnlock()
	return r.deliver(ctx, targets, e)
}

func (r *RoomRegistry) deliver(ctx context.Context, targets map[domain.ConnectionID]contract.EventSink, e event.DomainEvent) int {
	delivered := 0
	for connectionID, sink := range targets {
		if err := sink.Consume(ctx, e); err != nil {
			r.log.Warn("Broadcast delivery failed",
				"connection", connectionID, "event", e.Type(), "error", err)
			r.metrics.DeliveryFailed(e.Type())
			continue
		}
		delivered++
	}
	r.metrics.Delivered(e.Type(), delivered)
	return delivered
}

func (r *RoomRegistry) leave(connectionID domain.ConnectionID, channelID domain.ChannelID) int {
	if joined, ok := r.memberships[connectionID]; ok {
		delete(joined, channelID)
		if len(joined) == 0 {
			delete(r.memberships, connectionID)
		}
	}
	members, ok := r.rooms[channelID]
	if !ok {
		return 0
	}
	delete(members, connectionID)
	// If no one is left in the room, remove the room entry entirely
	if len(members) == 0 {
		delete(r.rooms, channelID)
		return 0
	}
	return len(members)
}

func (r *RoomRegistry) leaveAll(connectionID domain.ConnectionID) []domain.ChannelID {
	left := sortedKeys(r.memberships[connectionID])
	for _, channelID := range left {
		r.leave(connectionID, channelID)
	}
	return left
}

func sortedKeys[K ~string](set Set[K]) []K {
	keys := make([]K, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}
