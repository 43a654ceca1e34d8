package runtime

import (
	"context"
	"log/slog"
	"sync"
	"team-chat/domain"
	"team-chat/domain/event"
	"team-chat/errors"
	"testing"

	"github.com/stretchr/testify/require"
)

type recordingSink struct {
	mu     sync.Mutex
	events []event.DomainEvent
	err    error
}

func (s *recordingSink) Consume(_ context.Context, e event.DomainEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.events = append(s.events, e)
	return nil
}

func (s *recordingSink) received() []event.DomainEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]event.DomainEvent(nil), s.events...)
}

func TestRoomRegistry_Join_And_Leave(t *testing.T) {
	req := require.New(t)
	registry := NewRoomRegistry(slog.Default(), nil)
	registry.Attach("c1", "alice", &recordingSink{})
	registry.Attach("c2", "bob", &recordingSink{})

	// When two connections join the same room
	req.Equal(1, registry.Join("c1", "general"))
	req.Equal(2, registry.Join("c2", "general"))
	req.Equal(2, registry.Join("c2", "general"))

	// Then the room has both members
	req.Equal([]domain.ConnectionID{"c1", "c2"}, registry.MembersOf("general"))
	req.Equal([]domain.ChannelID{"general"}, registry.RoomsOf("c1"))

	// When both leave, the room is removed
	req.Equal(1, registry.Leave("c1", "general"))
	req.Equal(0, registry.Leave("c2", "general"))
	req.Equal(0, registry.Leave("c2", "general"))
	req.Empty(registry.rooms)
	req.Empty(registry.memberships)
}

func TestRoomRegistry_Detach_LeavesEveryRoom(t *testing.T) {
	req := require.New(t)
	registry := NewRoomRegistry(slog.Default(), nil)
	registry.Attach("c1", "alice", &recordingSink{})
	registry.Attach("c2", "bob", &recordingSink{})
	registry.Join("c1", "general")
	registry.Join("c1", "random")
	registry.Join("c2", "random")

	left := registry.Detach("c1")

	req.Equal([]domain.ChannelID{"general", "random"}, left)
	req.Empty(registry.MembersOf("general"))
	req.Equal([]domain.ConnectionID{"c2"}, registry.MembersOf("random"))
	req.Equal(1, registry.ConnectionCount())
	req.Empty(registry.Detach("c1"))
}

func TestRoomRegistry_Broadcast(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	registry := NewRoomRegistry(slog.Default(), nil)
	alice, bob, carol := &recordingSink{}, &recordingSink{}, &recordingSink{}
	registry.Attach("c1", "alice", alice)
	registry.Attach("c2", "bob", bob)
	registry.Attach("c3", "carol", carol)
	registry.Join("c1", "general")
	registry.Join("c2", "general")

	update := event.TypingUpdate{ChannelID: "general", UserID: "alice", IsTyping: true}

	// When broadcasting to the room excluding the emitter
	delivered := registry.Broadcast(ctx, "general", update, "c1")

	// Then only the other member receives it
	req.Equal(1, delivered)
	req.Empty(alice.received())
	req.Equal([]event.DomainEvent{update}, bob.received())
	req.Empty(carol.received())
}

func TestRoomRegistry_Broadcast_NoReplayOnJoin(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	registry := NewRoomRegistry(slog.Default(), nil)
	early, late := &recordingSink{}, &recordingSink{}
	registry.Attach("c1", "alice", early)
	registry.Attach("c2", "bob", late)
	registry.Join("c1", "general")

	registry.Broadcast(ctx, "general", event.MessageDeleted{ID: "m1"})
	registry.Join("c2", "general")
	registry.Broadcast(ctx, "general", event.MessageDeleted{ID: "m2"})

	req.Len(early.received(), 2)
	req.Equal([]event.DomainEvent{event.MessageDeleted{ID: "m2"}}, late.received())
}

func TestRoomRegistry_Broadcast_EmptyRoomIsNoop(t *testing.T) {
	req := require.New(t)
	registry := NewRoomRegistry(slog.Default(), nil)

	req.Equal(0, registry.Broadcast(context.Background(), "nobody-here", event.MessageDeleted{ID: "m1"}))
}

func TestRoomRegistry_Broadcast_FailingSinkDoesNotStopOthers(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	registry := NewRoomRegistry(slog.Default(), nil)
	broken := &recordingSink{err: errors.ErrSlowConsumer}
	healthy := &recordingSink{}
	registry.Attach("c1", "alice", broken)
	registry.Attach("c2", "bob", healthy)
	registry.Join("c1", "general")
	registry.Join("c2", "general")

	delivered := registry.Broadcast(ctx, "general", event.MessageDeleted{ID: "m1"})

	req.Equal(1, delivered)
	req.Len(healthy.received(), 1)
}

func TestRoomRegistry_BroadcastAll(t *testing.T) {
	req := require.New(t)
	registry := NewRoomRegistry(slog.Default(), nil)
	alice, bob := &recordingSink{}, &recordingSink{}
	registry.Attach("c1", "alice", alice)
	registry.Attach("c2", "bob", bob)

	delivered := registry.BroadcastAll(context.Background(), event.PresenceUpdate{UserID: "alice", Online: true, Count: 1})

	req.Equal(2, delivered)
	req.Len(alice.received(), 1)
	req.Len(bob.received(), 1)
}
