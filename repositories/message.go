//go:generate go run go.uber.org/mock/mockgen -source=message.go -destination=../mocks/mock_message_repository.go -package=mocks
package repositories

import (
	"encoding/binary"
	"fmt"
	"log/slog"
	"sync"
	"team-chat/domain"
	"team-chat/errors"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/samber/lo"
)

type IMessageRepository interface {
	StoreMessage(message domain.Message) (domain.Message, error)
	GetMessage(id domain.MessageID) (domain.Message, error)
	DeleteMessage(id domain.MessageID) error
	FindMessagesByChannel(channelID domain.ChannelID, before *time.Time, limit int) ([]domain.Message, error)
}

type MessageRepository struct {
	db  *badger.DB
	log *slog.Logger
	mu  sync.Mutex
	now func() time.Time
}

func NewMessageRepository(db *badger.DB, log *slog.Logger) *MessageRepository {
	return &MessageRepository{db: db, log: log, now: time.Now}
}

type diskAttachment struct {
	Filename string `cbor:"1,keyasint"`
	URL      string `cbor:"2,keyasint"`
	MimeType string `cbor:"3,keyasint"`
}

type diskMessage struct {
	ID          string           `cbor:"1,keyasint"`
	ChannelID   string           `cbor:"2,keyasint"`
	SenderID    string           `cbor:"3,keyasint"`
	Text        string           `cbor:"4,keyasint"`
	Edited      bool             `cbor:"5,keyasint"`
	Attachments []diskAttachment `cbor:"6,keyasint,omitempty"`
	CreatedAt   int64            `cbor:"7,keyasint"`
	UpdatedAt   int64            `cbor:"8,keyasint"`
}

func messagePrefix(channelID domain.ChannelID) []byte {
	return []byte(fmt.Sprintf("msg:%s:", channelID))
}

// messageKey is "msg:{channel}:{timestamp_padded}:{id}".
// The 19-digit zero padding keeps lexicographical order equal to time order.
func messageKey(channelID domain.ChannelID, at int64, id domain.MessageID) []byte {
	return []byte(fmt.Sprintf("msg:%s:%019d:%s", channelID, at, id))
}

func messageIndexKey(id domain.MessageID) []byte {
	return []byte("msgid:" + id.String())
}

func channelClockKey(channelID domain.ChannelID) []byte {
	return []byte("msgclock:" + channelID.String())
}

// StoreMessage persists a message and assigns its creation timestamp.
// Timestamps are strictly increasing per channel: when the clock has not
// moved since the previous message (or went backwards), the last value is
// bumped by one nanosecond. Together with the reverse scan this keeps
// cursor pages disjoint and gap-free.
func (m *MessageRepository) StoreMessage(message domain.Message) (domain.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if message.ID == "" {
		message.ID = domain.MessageID(uuid.NewString())
	}

	err := update(m.db, func(txn *badger.Txn) error {
		at := m.now().UnixNano()
		clockKey := channelClockKey(message.ChannelID)
		item, err := txn.Get(clockKey)
		switch {
		case err == nil:
			if err = item.Value(func(val []byte) error {
				if last := int64(binary.BigEndian.Uint64(val)); at <= last {
					at = last + 1
				}
				return nil
			}); err != nil {
				return err
			}
		case !errors.Is(err, badger.ErrKeyNotFound):
			return err
		}

		message.CreatedAt = time.Unix(0, at).UTC()
		if message.UpdatedAt.IsZero() {
			message.UpdatedAt = message.CreatedAt
		}
		data, err := marshal(fromMessage(message))
		if err != nil {
			return err
		}

		key := messageKey(message.ChannelID, at, message.ID)
		if err = txn.Set(key, data); err != nil {
			return err
		}
		if err = txn.Set(messageIndexKey(message.ID), key); err != nil {
			return err
		}
		return txn.Set(clockKey, binary.BigEndian.AppendUint64(nil, uint64(at)))
	})
	if err != nil {
		return domain.Message{}, persistence(err)
	}
	return message, nil
}

func (m *MessageRepository) GetMessage(id domain.MessageID) (domain.Message, error) {
	var record diskMessage
	err := m.db.View(func(txn *badger.Txn) error {
		key, err := m.primaryKey(txn, id)
		if err != nil {
			return err
		}
		return readValue(txn, key, &record)
	})
	if err != nil {
		return domain.Message{}, m.notFoundOr(err)
	}
	return toMessage(record), nil
}

// DeleteMessage removes the message and its id index entry.
func (m *MessageRepository) DeleteMessage(id domain.MessageID) error {
	err := update(m.db, func(txn *badger.Txn) error {
		key, err := m.primaryKey(txn, id)
		if err != nil {
			return err
		}
		if err = txn.Delete(key); err != nil {
			return err
		}
		return txn.Delete(messageIndexKey(id))
	})
	return m.notFoundOr(err)
}

// FindMessagesByChannel returns at most limit messages strictly older than
// before, newest first. A nil before starts from the newest message.
func (m *MessageRepository) FindMessagesByChannel(channelID domain.ChannelID, before *time.Time, limit int) ([]domain.Message, error) {
	var records []diskMessage
	err := m.db.View(func(txn *badger.Txn) error {
		prefix := messagePrefix(channelID)
		options := badger.DefaultIteratorOptions
		options.Reverse = true
		it := txn.NewIterator(options)
		defer it.Close()

		// In reverse mode Seek lands on the greatest key <= seekKey.
		// "msg:{c}:{ts}" sorts before every "msg:{c}:{ts}:{id}", so messages
		// created exactly at the cursor are excluded.
		var seekKey []byte
		switch before {
		case nil:
			seekKey = append(prefix, 0xFF)
		default:
			seekKey = append(prefix, []byte(fmt.Sprintf("%019d", before.UnixNano()))...)
		}

		for it.Seek(seekKey); it.ValidForPrefix(prefix); it.Next() {
			if len(records) == limit {
				m.log.Debug(fmt.Sprintf("Maximum of %d messages reached", limit))
				break
			}
			var record diskMessage
			if err := it.Item().Value(func(val []byte) error {
				return unmarshal(val, &record)
			}); err != nil {
				return err
			}
			records = append(records, record)
		}
		return nil
	})
	if err != nil {
		return nil, persistence(err)
	}
	return lo.Map(records, func(r diskMessage, _ int) domain.Message { return toMessage(r) }), nil
}

func (m *MessageRepository) primaryKey(txn *badger.Txn, id domain.MessageID) ([]byte, error) {
	item, err := txn.Get(messageIndexKey(id))
	if err != nil {
		return nil, err
	}
	return item.ValueCopy(nil)
}

func (m *MessageRepository) notFoundOr(err error) error {
	if errors.Is(err, badger.ErrKeyNotFound) {
		return errors.ErrMessageNotFound
	}
	return persistence(err)
}

func fromMessage(message domain.Message) diskMessage {
	return diskMessage{
		ID:        message.ID.String(),
		ChannelID: message.ChannelID.String(),
		SenderID:  message.SenderID.String(),
		Text:      message.Text,
		Edited:    message.Edited,
		Attachments: lo.Map(message.Attachments, func(a domain.Attachment, _ int) diskAttachment {
			return diskAttachment{Filename: a.Filename, URL: a.URL, MimeType: a.MimeType}
		}),
		CreatedAt: message.CreatedAt.UnixNano(),
		UpdatedAt: message.UpdatedAt.UnixNano(),
	}
}

func toMessage(record diskMessage) domain.Message {
	var attachments []domain.Attachment
	for _, a := range record.Attachments {
		attachments = append(attachments, domain.Attachment{Filename: a.Filename, URL: a.URL, MimeType: a.MimeType})
	}
	return domain.Message{
		ID:          domain.MessageID(record.ID),
		ChannelID:   domain.ChannelID(record.ChannelID),
		SenderID:    domain.Identity(record.SenderID),
		Text:        record.Text,
		Edited:      record.Edited,
		Attachments: attachments,
		CreatedAt:   time.Unix(0, record.CreatedAt).UTC(),
		UpdatedAt:   time.Unix(0, record.UpdatedAt).UTC(),
	}
}
