// Package search maintains the full-text index of chat messages.
package search

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"team-chat/domain"
	"team-chat/errors"

	"github.com/blugelabs/bluge"
)

const (
	fieldID        = "_id"
	fieldChannel   = "channel"
	fieldSender    = "sender"
	fieldText      = "text"
	fieldCreatedAt = "createdAt"
)

// MessageIndex indexes message text per channel with Bluge.
type MessageIndex struct {
	writer *bluge.Writer
	log    *slog.Logger
}

func NewMessageIndex(writer *bluge.Writer, log *slog.Logger) *MessageIndex {
	return &MessageIndex{writer: writer, log: log}
}

// Index adds or replaces the document of a message.
func (i *MessageIndex) Index(message domain.Message) error {
	doc := bluge.NewDocument(message.ID.String()).
		AddField(bluge.NewKeywordField(fieldChannel, message.ChannelID.String())).
		AddField(bluge.NewKeywordField(fieldSender, message.SenderID.String())).
		AddField(bluge.NewTextField(fieldText, message.Text)).
		AddField(bluge.NewDateTimeField(fieldCreatedAt, message.CreatedAt).Sortable())

	if err := i.writer.Update(doc.ID(), doc); err != nil {
		return fmt.Errorf("%w: index message: %w", errors.ErrPersistence, err)
	}
	return nil
}

func (i *MessageIndex) Remove(id domain.MessageID) error {
	if err := i.writer.Delete(bluge.Identifier(id.String())); err != nil {
		return fmt.Errorf("%w: remove message: %w", errors.ErrPersistence, err)
	}
	return nil
}

// Search returns the ids of the messages of a channel matching query,
// newest first.
func (i *MessageIndex) Search(channelID domain.ChannelID, query string, limit int) ([]domain.MessageID, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}

	reader, err := i.writer.Reader()
	if err != nil {
		return nil, fmt.Errorf("%w: open reader: %w", errors.ErrPersistence, err)
	}
	defer func() { _ = reader.Close() }()

	q := bluge.NewBooleanQuery().
		AddMust(bluge.NewTermQuery(channelID.String()).SetField(fieldChannel)).
		AddMust(bluge.NewMatchQuery(query).SetField(fieldText))
	request := bluge.NewTopNSearch(limit, q).SortBy([]string{"-" + fieldCreatedAt})

	matches, err := reader.Search(context.Background(), request)
	if err != nil {
		return nil, fmt.Errorf("%w: search: %w", errors.ErrPersistence, err)
	}

	var ids []domain.MessageID
	match, err := matches.Next()
	for err == nil && match != nil {
		err = match.VisitStoredFields(func(field string, value []byte) bool {
			if field == fieldID {
				ids = append(ids, domain.MessageID(value))
				return false
			}
			return true
		})
		if err != nil {
			break
		}
		match, err = matches.Next()
	}
	if err != nil {
		return nil, fmt.Errorf("%w: iterate matches: %w", errors.ErrPersistence, err)
	}
	i.log.Debug("Search done", "channel", channelID, "query", query, "hits", len(ids))
	return ids, nil
}
