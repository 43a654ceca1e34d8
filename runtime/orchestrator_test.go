package runtime

import (
	"context"
	"log/slog"
	"slices"
	"team-chat/domain"
	"team-chat/domain/event"
	"team-chat/errors"
	"team-chat/mocks"
	"team-chat/observability"
	"team-chat/runtime/workers"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func newTestOrchestrator(t *testing.T) (*Orchestrator, *mocks.MockIChannelRepository) {
	ctrl := gomock.NewController(t)
	channels := mocks.NewMockIChannelRepository(ctrl)
	log := slog.Default()
	o := NewOrchestrator(
		log,
		NewPresenceRegistry(log),
		NewRoomRegistry(log, nil),
		channels,
		workers.NewSupervisor(log),
		workers.NewEventFanout(log, 16, time.Second),
		observability.NewMonitoringManager(log),
		nil,
		time.Minute,
	)
	return o, channels
}

func TestOrchestrator_Connect_SendsPresenceInitFirst(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	o, _ := newTestOrchestrator(t)
	alice, bob := &recordingSink{}, &recordingSink{}

	// Given alice is connected
	req.NoError(o.Connect(ctx, "c1", "alice", alice))

	// When bob connects
	req.NoError(o.Connect(ctx, "c2", "bob", bob))

	// Then bob's first event is the snapshot including himself
	events := bob.received()
	req.NotEmpty(events)
	req.Equal(event.PresenceInit{OnlineUsers: []string{"alice", "bob"}}, events[0])
	req.True(o.presence.IsOnline("bob"))
	req.Equal(2, o.rooms.ConnectionCount())
}

func TestOrchestrator_Connect_FailingSinkRegistersNothing(t *testing.T) {
	req := require.New(t)
	o, _ := newTestOrchestrator(t)

	err := o.Connect(context.Background(), "c1", "alice", &recordingSink{err: errors.ErrConnectionClosed})

	req.ErrorIs(err, errors.ErrConnectionClosed)
	req.False(o.presence.IsOnline("alice"))
	req.Equal(0, o.rooms.ConnectionCount())
}

func TestOrchestrator_Disconnect_ClearsEverything(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	o, channels := newTestOrchestrator(t)
	channels.EXPECT().GetChannel(domain.ChannelID("general")).Return(domain.Channel{}, errors.ErrChannelNotFound)

	req.NoError(o.Connect(ctx, "c1", "alice", &recordingSink{}))
	req.NoError(o.JoinRoom(ctx, "c1", "general"))

	o.Disconnect("c1", "alice")
	o.Disconnect("c1", "alice")

	req.False(o.presence.IsOnline("alice"))
	req.Empty(o.rooms.MembersOf("general"))
	req.Equal(0, o.rooms.ConnectionCount())
}

func TestOrchestrator_JoinRoom(t *testing.T) {
	ctx := context.Background()

	t.Run("existing channel receives the member count", func(t *testing.T) {
		req := require.New(t)
		o, channels := newTestOrchestrator(t)
		channels.EXPECT().GetChannel(domain.ChannelID("general")).Return(domain.Channel{ID: "general"}, nil).Times(2)
		alice, bob := &recordingSink{}, &recordingSink{}
		req.NoError(o.Connect(ctx, "c1", "alice", alice))
		req.NoError(o.Connect(ctx, "c2", "bob", bob))

		req.NoError(o.JoinRoom(ctx, "c1", "general"))
		req.NoError(o.JoinRoom(ctx, "c2", "general"))

		req.Contains(alice.received(), event.DomainEvent(event.ChannelMemberUpdate{ChannelID: "general", MemberSocketCount: 1}))
		req.Contains(alice.received(), event.DomainEvent(event.ChannelMemberUpdate{ChannelID: "general", MemberSocketCount: 2}))
		req.Contains(bob.received(), event.DomainEvent(event.ChannelMemberUpdate{ChannelID: "general", MemberSocketCount: 2}))
	})

	t.Run("unknown channel still joins without update", func(t *testing.T) {
		req := require.New(t)
		o, channels := newTestOrchestrator(t)
		channels.EXPECT().GetChannel(domain.ChannelID("ghost")).Return(domain.Channel{}, errors.ErrChannelNotFound)
		alice := &recordingSink{}
		req.NoError(o.Connect(ctx, "c1", "alice", alice))

		req.NoError(o.JoinRoom(ctx, "c1", "ghost"))

		req.Equal([]domain.ConnectionID{"c1"}, o.rooms.MembersOf("ghost"))
		req.Len(alice.received(), 1)
	})

	t.Run("empty channel id is rejected", func(t *testing.T) {
		req := require.New(t)
		o, _ := newTestOrchestrator(t)

		req.ErrorIs(o.JoinRoom(ctx, "c1", "  "), errors.ErrInvalidPayload)
		req.ErrorIs(o.LeaveRoom("c1", ""), errors.ErrInvalidPayload)
		req.ErrorIs(o.Typing(ctx, "c1", "alice", "", true), errors.ErrInvalidPayload)
	})
}

func TestOrchestrator_Typing_ExcludesSender(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	o, channels := newTestOrchestrator(t)
	channels.EXPECT().GetChannel(gomock.Any()).Return(domain.Channel{}, errors.ErrChannelNotFound).AnyTimes()
	alice, aliceTab, bob := &recordingSink{}, &recordingSink{}, &recordingSink{}
	req.NoError(o.Connect(ctx, "c1", "alice", alice))
	req.NoError(o.Connect(ctx, "c2", "alice", aliceTab))
	req.NoError(o.Connect(ctx, "c3", "bob", bob))
	for _, c := range []domain.ConnectionID{"c1", "c2", "c3"} {
		req.NoError(o.JoinRoom(ctx, c, "general"))
	}

	req.NoError(o.Typing(ctx, "c1", "alice", "general", true))

	typing := event.DomainEvent(event.TypingUpdate{ChannelID: "general", UserID: "alice", IsTyping: true})
	req.NotContains(alice.received(), typing)
	req.Contains(aliceTab.received(), typing)
	req.Contains(bob.received(), typing)
}

func TestOrchestrator_LeaveRoom_StopsDelivery(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	o, channels := newTestOrchestrator(t)
	channels.EXPECT().GetChannel(gomock.Any()).Return(domain.Channel{}, errors.ErrChannelNotFound).AnyTimes()
	bob := &recordingSink{}
	req.NoError(o.Connect(ctx, "c1", "alice", &recordingSink{}))
	req.NoError(o.Connect(ctx, "c2", "bob", bob))
	req.NoError(o.JoinRoom(ctx, "c1", "general"))
	req.NoError(o.JoinRoom(ctx, "c2", "general"))

	req.NoError(o.LeaveRoom("c2", "general"))
	req.NoError(o.Typing(ctx, "c1", "alice", "general", true))

	req.Len(bob.received(), 1)
}

func TestOrchestrator_Start_RelaysPresence(t *testing.T) {
	req := require.New(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	o, _ := newTestOrchestrator(t)
	bob := &recordingSink{}

	go func() { _ = o.Start(ctx) }()
	defer o.Stop()

	req.NoError(o.Connect(ctx, "c2", "bob", bob))
	req.NoError(o.Connect(ctx, "c1", "alice", &recordingSink{}))

	req.Eventually(func() bool {
		for _, e := range bob.received() {
			if e == event.DomainEvent(event.PresenceUpdate{UserID: "alice", Online: true, Count: 1}) {
				return true
			}
		}
		return false
	}, time.Second, 10*time.Millisecond)

	health := o.Health()
	req.Equal(2, health.Connections)
	req.Equal(2, health.OnlineUsers)
}

func TestOrchestrator_Connect_ReceivesOwnPresenceUpdate(t *testing.T) {
	req := require.New(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	o, _ := newTestOrchestrator(t)
	alice := &recordingSink{}

	// Given the presence relay is running
	go func() { _ = o.Start(ctx) }()
	defer o.Stop()

	// When alice connects
	req.NoError(o.Connect(ctx, "c1", "alice", alice))

	// Then the snapshot comes first and her own presence_update follows
	own := event.DomainEvent(event.PresenceUpdate{UserID: "alice", Online: true, Count: 1})
	req.Eventually(func() bool {
		return slices.Contains(alice.received(), own)
	}, time.Second, 10*time.Millisecond)
	events := alice.received()
	req.Equal(event.PresenceInit{OnlineUsers: []string{"alice"}}, events[0])
}
