package sink

import (
	"context"
	"fmt"
	"log/slog"
	"team-chat/contract"
	"team-chat/domain"
	"team-chat/domain/event"
)

// SearchSink keeps the full-text index in line with the message store.
type SearchSink struct {
	index contract.IMessageIndex
	log   *slog.Logger
}

func NewSearchSink(index contract.IMessageIndex, log *slog.Logger) SearchSink {
	return SearchSink{index: index, log: log}
}

func (s SearchSink) Consume(_ context.Context, e event.DomainEvent) error {
	switch evt := e.(type) {
	case event.MessagePersisted:
		return s.index.Index(evt.Message)
	case event.MessageDeleted:
		return s.index.Remove(domain.MessageID(evt.ID))
	default:
		s.log.Debug(fmt.Sprintf("Not implemented event : %v", evt.Type()))
		return nil
	}
}
