//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"context"
	"reflect"
	"team-chat/domain"
	"team-chat/domain/event"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

type WorkerName string

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// Used for logging and supervision, so workers don't have to name themselves.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// EventSink receives events addressed to it.
// Implementations bound to a connection must never block the caller.
type EventSink interface {
	Consume(ctx context.Context, e event.DomainEvent) error
}

type IPresenceRegistry interface {
	Register(identity domain.Identity, connectionID domain.ConnectionID) int
	Deregister(identity domain.Identity, connectionID domain.ConnectionID) int
	IsOnline(identity domain.Identity) bool
	OnlineIdentities() []domain.Identity
	Count(identity domain.Identity) int
}

// IPresenceSubscription yields presence events in registry order.
// Next blocks until an event is available, the subscription is closed
// (ok is false) or ctx is done.
type IPresenceSubscription interface {
	Next(ctx context.Context) (evt event.PresenceChanged, ok bool)
}

type IBroadcaster interface {
	Broadcast(ctx context.Context, channelID domain.ChannelID, e event.DomainEvent, exclude ...domain.ConnectionID) int
	BroadcastAll(ctx context.Context, e event.DomainEvent) int
}

type IRoomRegistry interface {
	IBroadcaster
	Attach(connectionID domain.ConnectionID, identity domain.Identity, sink EventSink)
	Detach(connectionID domain.ConnectionID) []domain.ChannelID
	Join(connectionID domain.ConnectionID, channelID domain.ChannelID) int
	Leave(connectionID domain.ConnectionID, channelID domain.ChannelID) int
	LeaveAll(connectionID domain.ConnectionID) []domain.ChannelID
	MembersOf(channelID domain.ChannelID) []domain.ConnectionID
	RoomsOf(connectionID domain.ConnectionID) []domain.ChannelID
}

type ICensor interface {
	Censor(original string) (string, []string)
}

// IMessageIndex is the full-text search side of message storage.
type IMessageIndex interface {
	Index(message domain.Message) error
	Remove(id domain.MessageID) error
	Search(channelID domain.ChannelID, query string, limit int) ([]domain.MessageID, error)
}

// IEventPublisher hands internal events to the permanent sinks.
// Publish never blocks.
type IEventPublisher interface {
	Publish(e event.DomainEvent)
}
