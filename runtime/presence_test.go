package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"team-chat/domain"
	"team-chat/domain/event"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func drain(t *testing.T, sub *PresenceSubscription, n int) []event.PresenceChanged {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	var events []event.PresenceChanged
	for i := 0; i < n; i++ {
		evt, ok := sub.Next(ctx)
		require.True(t, ok, "expected %d events, got %d", n, len(events))
		events = append(events, evt)
	}
	return events
}

func TestPresence_Register_Transitions(t *testing.T) {
	req := require.New(t)
	presence := NewPresenceRegistry(slog.Default())
	sub := presence.Subscribe()

	// When alice opens two connections then closes both
	req.Equal(1, presence.Register("alice", "c1"))
	req.Equal(2, presence.Register("alice", "c2"))
	req.Equal(1, presence.Deregister("alice", "c1"))
	req.Equal(0, presence.Deregister("alice", "c2"))

	// Then every call is published, only zero crossings are transitions
	req.Equal([]event.PresenceChanged{
		{Identity: "alice", Online: true, Count: 1, Transition: true},
		{Identity: "alice", Online: true, Count: 2, Transition: false},
		{Identity: "alice", Online: true, Count: 1, Transition: false},
		{Identity: "alice", Online: false, Count: 0, Transition: true},
	}, drain(t, sub, 4))
	req.False(presence.IsOnline("alice"))
	req.Empty(presence.connections)
}

func TestPresence_Register_IsIdempotentPerConnection(t *testing.T) {
	req := require.New(t)
	presence := NewPresenceRegistry(slog.Default())
	sub := presence.Subscribe()

	req.Equal(1, presence.Register("alice", "c1"))
	req.Equal(1, presence.Register("alice", "c1"))

	events := drain(t, sub, 2)
	req.True(events[0].Transition)
	req.Equal(event.PresenceChanged{Identity: "alice", Online: true, Count: 1}, events[1])
}

func TestPresence_Deregister_UnknownIdentity_PublishesNothing(t *testing.T) {
	req := require.New(t)
	presence := NewPresenceRegistry(slog.Default())
	sub := presence.Subscribe()

	req.Equal(0, presence.Deregister("ghost", "c1"))

	req.Equal(0, sub.Pending())
}

func TestPresence_Snapshot(t *testing.T) {
	req := require.New(t)
	presence := NewPresenceRegistry(slog.Default())

	presence.Register("carol", "c3")
	presence.Register("alice", "c1")
	presence.Register("alice", "c2")

	req.Equal([]domain.Identity{"alice", "carol"}, presence.OnlineIdentities())
	req.Equal(2, presence.Count("alice"))
	req.Equal(0, presence.Count("bob"))
	req.True(presence.IsOnline("carol"))
}

func TestPresence_Unsubscribe_StopsDelivery(t *testing.T) {
	req := require.New(t)
	presence := NewPresenceRegistry(slog.Default())
	sub := presence.Subscribe()
	presence.Register("alice", "c1")

	presence.Unsubscribe(sub)
	presence.Register("bob", "c2")

	// Then the queued event is still drained, nothing after it
	events := drain(t, sub, 1)
	req.Equal(domain.Identity("alice"), events[0].Identity)
	_, ok := sub.Next(context.Background())
	req.False(ok)
}

func TestPresence_Next_HonoursContext(t *testing.T) {
	req := require.New(t)
	sub := NewPresenceRegistry(slog.Default()).Subscribe()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, ok := sub.Next(ctx)

	req.False(ok)
}

func TestPresence_ConcurrentRegisterDeregister_KeepsCountConsistent(t *testing.T) {
	req := require.New(t)
	presence := NewPresenceRegistry(slog.Default())
	sub := presence.Subscribe()

	const identities, connections = 8, 50
	var wg sync.WaitGroup
	for i := 0; i < identities; i++ {
		identity := domain.Identity(fmt.Sprintf("user-%d", i))
		for j := 0; j < connections; j++ {
			conn := domain.ConnectionID(fmt.Sprintf("%s-conn-%d", identity, j))
			wg.Add(1)
			go func() {
				defer wg.Done()
				presence.Register(identity, conn)
				if j%2 == 0 {
					presence.Deregister(identity, conn)
				}
			}()
		}
	}
	wg.Wait()

	// Then half of the connections of each identity remain
	for i := 0; i < identities; i++ {
		req.Equal(connections/2, presence.Count(domain.Identity(fmt.Sprintf("user-%d", i))))
	}
	// And no event was lost
	req.Equal(identities*connections*3/2, sub.Pending())

	// And per identity the events form a consistent sequence
	last := map[domain.Identity]int{}
	for _, evt := range drain(t, sub, identities*connections*3/2) {
		prev := last[evt.Identity]
		req.Equal(1, abs(evt.Count-prev), "count must move by one per event")
		req.Equal(evt.Count > 0, evt.Online)
		req.Equal(prev == 0 || evt.Count == 0, evt.Transition)
		last[evt.Identity] = evt.Count
	}
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
