package workers

import (
	"context"
	"log/slog"
	"team-chat/contract"
	"team-chat/observability"
)

// PresenceRelayWorker turns presence registry events into presence_update
// broadcasts to every live connection, in registry order.
type PresenceRelayWorker struct {
	log          *slog.Logger
	subscription contract.IPresenceSubscription
	presence     contract.IPresenceRegistry
	broadcaster  contract.IBroadcaster
	metrics      *observability.Metrics
}

func NewPresenceRelayWorker(
	log *slog.Logger,
	subscription contract.IPresenceSubscription,
	presence contract.IPresenceRegistry,
	broadcaster contract.IBroadcaster,
	metrics *observability.Metrics,
) *PresenceRelayWorker {
	return &PresenceRelayWorker{
		log:          log,
		subscription: subscription,
		presence:     presence,
		broadcaster:  broadcaster,
		metrics:      metrics,
	}
}

// Run returns nil when the subscription is closed or ctx is done.
// The subscription outlives a restart after panic, so queued events survive.
func (w *PresenceRelayWorker) Run(ctx context.Context) error {
	w.log.Info("Starting presence relay worker")
	for {
		evt, ok := w.subscription.Next(ctx)
		if !ok {
			return nil
		}
		delivered := w.broadcaster.BroadcastAll(ctx, evt.Update())
		w.metrics.SetOnlineUsers(len(w.presence.OnlineIdentities()))
		w.log.Debug("Presence relayed",
			"identity", evt.Identity, "online", evt.Online, "count", evt.Count, "delivered", delivered)
	}
}
