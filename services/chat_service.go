package services

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"team-chat/auth"
	"team-chat/contract"
	"team-chat/domain"
	"team-chat/domain/event"
	"team-chat/errors"
	"team-chat/observability"
	"team-chat/repositories"

	"github.com/samber/lo"
)

// ChatService is the single ingestion pipeline for messages, whichever
// surface they arrive from. A message is stored before anyone hears of it.
type ChatService struct {
	log         *slog.Logger
	messages    repositories.IMessageRepository
	channels    repositories.IChannelRepository
	users       repositories.IUserRepository
	censor      contract.ICensor
	broadcaster contract.IBroadcaster
	publisher   contract.IEventPublisher
	index       contract.IMessageIndex
	metrics     *observability.Metrics
}

func NewChatService(
	log *slog.Logger,
	messages repositories.IMessageRepository,
	channels repositories.IChannelRepository,
	users repositories.IUserRepository,
	censor contract.ICensor,
	broadcaster contract.IBroadcaster,
	publisher contract.IEventPublisher,
	index contract.IMessageIndex,
	metrics *observability.Metrics,
) *ChatService {
	return &ChatService{
		log:         log,
		messages:    messages,
		channels:    channels,
		users:       users,
		censor:      censor,
		broadcaster: broadcaster,
		publisher:   publisher,
		index:       index,
		metrics:     metrics,
	}
}

func (s *ChatService) PostMessage(ctx context.Context, cmd domain.PostMessageCommand) (domain.WireMessage, error) {
	text, err := auth.NormalizeText(cmd.Text)
	if err != nil {
		return domain.WireMessage{}, err
	}
	if err = auth.ValidateAttachments(cmd.Attachments); err != nil {
		return domain.WireMessage{}, err
	}
	if _, err = s.channels.GetChannel(cmd.ChannelID); err != nil {
		return domain.WireMessage{}, err
	}

	if s.censor != nil {
		var found []string
		if text, found = s.censor.Censor(text); len(found) > 0 {
			s.log.Debug("Message censored", "channel", cmd.ChannelID, "sender", cmd.SenderID, "words", len(found))
		}
	}

	stored, err := s.messages.StoreMessage(domain.Message{
		ChannelID:   cmd.ChannelID,
		SenderID:    cmd.SenderID,
		Text:        text,
		Attachments: cmd.Attachments,
	})
	if err != nil {
		return domain.WireMessage{}, err
	}

	wire := domain.Enrich(stored, s.profileOf(stored.SenderID))

	// The message is durable from here on: the broadcast must not be cut
	// short by the caller's request going away.
	ctx = context.WithoutCancel(ctx)
	delivered := s.broadcaster.Broadcast(ctx, stored.ChannelID, event.MessageReceived{WireMessage: wire})
	s.publisher.Publish(event.MessagePersisted{Message: stored})
	s.metrics.MessagePosted()

	s.log.Debug("Message posted",
		"id", stored.ID, "channel", stored.ChannelID, "sender", stored.SenderID, "delivered", delivered)
	return wire, nil
}

func (s *ChatService) DeleteMessage(ctx context.Context, cmd domain.DeleteMessageCommand) error {
	message, err := s.messages.GetMessage(cmd.MessageID)
	if err != nil {
		return err
	}
	if message.SenderID != cmd.RequesterID {
		return errors.ErrNotMessageOwner
	}
	if err = s.messages.DeleteMessage(message.ID); err != nil {
		return err
	}

	deleted := event.MessageDeleted{ID: message.ID.String(), ChannelID: message.ChannelID.String()}
	s.broadcaster.Broadcast(context.WithoutCancel(ctx), message.ChannelID, deleted)
	s.publisher.Publish(deleted)
	s.metrics.MessageDeleted()
	return nil
}

// GetMessages returns one page of history, oldest first.
func (s *ChatService) GetMessages(_ context.Context, cmd domain.GetMessagesCommand) (domain.Page, error) {
	if _, err := s.channels.GetChannel(cmd.ChannelID); err != nil {
		return domain.Page{}, err
	}
	limit := ClampLimit(cmd.Limit)

	newestFirst, err := s.messages.FindMessagesByChannel(cmd.ChannelID, cmd.Before, limit)
	if err != nil {
		return domain.Page{}, err
	}

	hasMore := len(newestFirst) == limit
	slices.Reverse(newestFirst)
	wire, err := s.enrichAll(newestFirst)
	if err != nil {
		return domain.Page{}, err
	}
	return domain.Page{Messages: wire, HasMore: hasMore}, nil
}

// SearchMessages runs a full-text query inside one channel, newest first.
func (s *ChatService) SearchMessages(_ context.Context, cmd domain.SearchMessagesCommand) ([]domain.WireMessage, error) {
	query := strings.TrimSpace(cmd.Query)
	if query == "" {
		return nil, fmt.Errorf("%w: empty search query", errors.ErrInvalidRequest)
	}
	if _, err := s.channels.GetChannel(cmd.ChannelID); err != nil {
		return nil, err
	}
	s.metrics.SearchQuery()

	ids, err := s.index.Search(cmd.ChannelID, query, ClampLimit(cmd.Limit))
	if err != nil {
		return nil, err
	}

	found := make([]domain.Message, 0, len(ids))
	for _, id := range ids {
		message, err := s.messages.GetMessage(id)
		if errors.Is(err, errors.ErrMessageNotFound) {
			// Index lags behind a deletion
			continue
		}
		if err != nil {
			return nil, err
		}
		found = append(found, message)
	}
	return s.enrichAll(found)
}

// ClampLimit applies the page size bounds: non-positive means the default.
func ClampLimit(limit int) int {
	switch {
	case limit <= 0:
		return domain.DefaultPageSize
	case limit > domain.MaxPageSize:
		return domain.MaxPageSize
	default:
		return limit
	}
}

func (s *ChatService) profileOf(id domain.Identity) *domain.SenderProfile {
	profiles, err := s.users.GetProfiles([]domain.Identity{id})
	if err != nil {
		s.log.Warn("Sender profile lookup failed", "sender", id, "error", err)
		return nil
	}
	if profile, ok := profiles[id]; ok {
		return &profile
	}
	return nil
}

func (s *ChatService) enrichAll(messages []domain.Message) ([]domain.WireMessage, error) {
	senders := lo.Uniq(lo.Map(messages, func(m domain.Message, _ int) domain.Identity { return m.SenderID }))
	profiles, err := s.users.GetProfiles(senders)
	if err != nil {
		return nil, err
	}
	return lo.Map(messages, func(m domain.Message, _ int) domain.WireMessage {
		if profile, ok := profiles[m.SenderID]; ok {
			return domain.Enrich(m, &profile)
		}
		return domain.Enrich(m, nil)
	}), nil
}
