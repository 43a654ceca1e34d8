// Package runtime handles the live, process-local state of the chat:
// connections, presence and channel rooms. It holds no business rules
// and nothing in it survives a restart.
package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"team-chat/contract"
	"team-chat/domain"
	"team-chat/domain/event"
	"team-chat/errors"
	"team-chat/observability"
	"team-chat/repositories"
	"team-chat/runtime/workers"
	"time"
)

type Orchestrator struct {
	log               *slog.Logger
	presence          *PresenceRegistry
	rooms             *RoomRegistry
	channels          repositories.IChannelRepository
	supervisor        contract.ISupervisor
	fanout            *workers.EventFanout
	monitoring        *observability.MonitoringManager
	metrics           *observability.Metrics
	heartbeatInterval time.Duration
	subscription      *PresenceSubscription
}

func NewOrchestrator(
	log *slog.Logger,
	presence *PresenceRegistry,
	rooms *RoomRegistry,
	channels repositories.IChannelRepository,
	supervisor contract.ISupervisor,
	fanout *workers.EventFanout,
	monitoring *observability.MonitoringManager,
	metrics *observability.Metrics,
	heartbeatInterval time.Duration,
) *Orchestrator {
	return &Orchestrator{
		log:               log,
		presence:          presence,
		rooms:             rooms,
		channels:          channels,
		supervisor:        supervisor,
		fanout:            fanout,
		monitoring:        monitoring,
		metrics:           metrics,
		heartbeatInterval: heartbeatInterval,
		// Subscribed before any connection can register
		subscription: presence.Subscribe(),
	}
}

// Start runs every supervised worker until ctx is done or Stop is called.
func (o *Orchestrator) Start(ctx context.Context) error {
	o.supervisor.Add(
		workers.NewPresenceRelayWorker(o.log, o.subscription, o.presence, o.rooms, o.metrics),
		o.fanout,
		workers.NewHeartbeatWorker(o.log, o.monitoring, o.metrics, o.heartbeatInterval),
	)

	o.log.Info("Starting orchestrator and all supervised workers")
	o.supervisor.Run(ctx)
	return nil
}

// Stop initiates a graceful shutdown of the supervised workers.
func (o *Orchestrator) Stop() {
	o.log.Info("Requesting orchestrator shutdown")
	o.supervisor.Stop()
	o.presence.Unsubscribe(o.subscription)
}

// Connect registers a freshly authenticated connection.
// The connection receives presence_init before any other event: the
// snapshot is queued on its sink before the sink becomes reachable by
// broadcasts. The sink is attached before presence is registered, so the
// connection also sees its own presence_update once the relay publishes it.
func (o *Orchestrator) Connect(ctx context.Context, connectionID domain.ConnectionID, identity domain.Identity, sink contract.EventSink) error {
	online := o.presence.OnlineIdentities()
	if !slices.Contains(online, identity) {
		online = append(online, identity)
		slices.Sort(online)
	}
	snapshot := make([]string, 0, len(online))
	for _, id := range online {
		snapshot = append(snapshot, id.String())
	}
	if err := sink.Consume(ctx, event.PresenceInit{OnlineUsers: snapshot}); err != nil {
		return fmt.Errorf("send presence_init: %w", err)
	}

	o.rooms.Attach(connectionID, identity, sink)
	o.presence.Register(identity, connectionID)
	o.log.Info("Connection opened", "connection", connectionID, "identity", identity)
	return nil
}

// Disconnect is the finalizer of a connection: it leaves every room and
// deregisters presence. It is safe to call more than once.
func (o *Orchestrator) Disconnect(connectionID domain.ConnectionID, identity domain.Identity) {
	left := o.rooms.Detach(connectionID)
	remaining := o.presence.Deregister(identity, connectionID)
	o.log.Info("Connection closed",
		"connection", connectionID, "identity", identity, "rooms_left", len(left), "remaining", remaining)
}

// JoinRoom subscribes the connection to the channel's room. Any
// authenticated connection may join any room, persisted membership is not
// checked. When the channel exists the room is told its new size.
func (o *Orchestrator) JoinRoom(ctx context.Context, connectionID domain.ConnectionID, channelID domain.ChannelID) error {
	if strings.TrimSpace(channelID.String()) == "" {
		return errors.ErrInvalidPayload
	}
	size := o.rooms.Join(connectionID, channelID)

	if _, err := o.channels.GetChannel(channelID); err != nil {
		if !errors.Is(err, errors.ErrChannelNotFound) {
			o.log.Warn("Channel lookup failed after join", "channel", channelID, "error", err)
		}
		return nil
	}
	o.rooms.Broadcast(ctx, channelID, event.ChannelMemberUpdate{
		ChannelID:         channelID.String(),
		MemberSocketCount: size,
	})
	return nil
}

func (o *Orchestrator) LeaveRoom(connectionID domain.ConnectionID, channelID domain.ChannelID) error {
	if strings.TrimSpace(channelID.String()) == "" {
		return errors.ErrInvalidPayload
	}
	o.rooms.Leave(connectionID, channelID)
	return nil
}

// Typing relays the indicator to the rest of the room, the emitting
// connection excluded.
func (o *Orchestrator) Typing(ctx context.Context, connectionID domain.ConnectionID, identity domain.Identity, channelID domain.ChannelID, isTyping bool) error {
	if strings.TrimSpace(channelID.String()) == "" {
		return errors.ErrInvalidPayload
	}
	o.rooms.Broadcast(ctx, channelID, event.TypingUpdate{
		ChannelID: channelID.String(),
		UserID:    identity.String(),
		IsTyping:  isTyping,
	}, connectionID)
	return nil
}

func (o *Orchestrator) Health() observability.Health {
	return o.monitoring.Health(o.rooms.ConnectionCount(), len(o.presence.OnlineIdentities()))
}
