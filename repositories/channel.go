//go:generate go run go.uber.org/mock/mockgen -source=channel.go -destination=../mocks/mock_channel_repository.go -package=mocks
package repositories

import (
	"sort"
	"strings"
	"sync"
	"team-chat/domain"
	"team-chat/errors"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/samber/lo"
)

type IChannelRepository interface {
	CreateChannel(channel domain.Channel) (domain.Channel, error)
	GetChannel(id domain.ChannelID) (domain.Channel, error)
	ListChannels() ([]domain.Channel, error)
	AddMember(id domain.ChannelID, identity domain.Identity) (domain.Channel, error)
	RemoveMember(id domain.ChannelID, identity domain.Identity) (domain.Channel, error)
}

// ChannelRepository serializes its own writes, conflicts only come from
// other writers of the same keys.
type ChannelRepository struct {
	mu  sync.Mutex
	db  *badger.DB
	now func() time.Time
}

func NewChannelRepository(db *badger.DB) *ChannelRepository {
	return &ChannelRepository{db: db, now: time.Now}
}

type diskChannel struct {
	ID          string   `cbor:"1,keyasint"`
	Name        string   `cbor:"2,keyasint"`
	Description string   `cbor:"3,keyasint,omitempty"`
	IsPrivate   bool     `cbor:"4,keyasint"`
	CreatedBy   string   `cbor:"5,keyasint"`
	Members     []string `cbor:"6,keyasint"`
	CreatedAt   int64    `cbor:"7,keyasint"`
	UpdatedAt   int64    `cbor:"8,keyasint"`
}

const channelPrefix = "channel:"

func channelKey(id domain.ChannelID) []byte {
	return []byte(channelPrefix + id.String())
}

// Channel names are unique regardless of case.
func channelNameKey(name string) []byte {
	return []byte("channelname:" + strings.ToLower(strings.TrimSpace(name)))
}

// CreateChannel persists a new channel with its creator as first member.
func (c *ChannelRepository) CreateChannel(channel domain.Channel) (domain.Channel, error) {
	channel.ID = domain.ChannelID(uuid.NewString())
	channel.Name = strings.TrimSpace(channel.Name)
	channel.CreatedAt = c.now().UTC()
	channel.UpdatedAt = channel.CreatedAt
	channel.AddMember(channel.CreatedBy)

	c.mu.Lock()
	defer c.mu.Unlock()
	err := update(c.db, func(txn *badger.Txn) error {
		nameKey := channelNameKey(channel.Name)
		if _, err := txn.Get(nameKey); err == nil {
			return errors.ErrChannelNameTaken
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		data, err := marshal(fromChannel(channel))
		if err != nil {
			return err
		}
		if err = txn.Set(channelKey(channel.ID), data); err != nil {
			return err
		}
		return txn.Set(nameKey, []byte(channel.ID))
	})
	if err != nil {
		if errors.Is(err, errors.ErrChannelNameTaken) {
			return domain.Channel{}, err
		}
		return domain.Channel{}, persistence(err)
	}
	return channel, nil
}

func (c *ChannelRepository) GetChannel(id domain.ChannelID) (domain.Channel, error) {
	var record diskChannel
	err := c.db.View(func(txn *badger.Txn) error {
		return readValue(txn, channelKey(id), &record)
	})
	if err != nil {
		return domain.Channel{}, c.notFoundOr(err)
	}
	return toChannel(record), nil
}

// ListChannels returns every channel, newest first.
func (c *ChannelRepository) ListChannels() ([]domain.Channel, error) {
	var records []diskChannel
	err := c.db.View(func(txn *badger.Txn) error {
		prefix := []byte(channelPrefix)
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var record diskChannel
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
	channels := lo.Map(records, func(r diskChannel, _ int) domain.Channel { return toChannel(r) })
	sort.SliceStable(channels, func(i, j int) bool {
		return channels[i].CreatedAt.After(channels[j].CreatedAt)
	})
	return channels, nil
}

// AddMember is idempotent: joining twice never duplicates the member.
func (c *ChannelRepository) AddMember(id domain.ChannelID, identity domain.Identity) (domain.Channel, error) {
	return c.mutate(id, func(channel *domain.Channel) bool {
		return channel.AddMember(identity)
	})
}

func (c *ChannelRepository) RemoveMember(id domain.ChannelID, identity domain.Identity) (domain.Channel, error) {
	return c.mutate(id, func(channel *domain.Channel) bool {
		return channel.RemoveMember(identity)
	})
}

// mutate applies change inside a single read-modify-write transaction and
// only writes when change reports a modification.
func (c *ChannelRepository) mutate(id domain.ChannelID, change func(*domain.Channel) bool) (domain.Channel, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var channel domain.Channel
	err := update(c.db, func(txn *badger.Txn) error {
		var record diskChannel
		if err := readValue(txn, channelKey(id), &record); err != nil {
			return err
		}
		channel = toChannel(record)
		if !change(&channel) {
			return nil
		}
		channel.UpdatedAt = c.now().UTC()
		data, err := marshal(fromChannel(channel))
		if err != nil {
			return err
		}
		return txn.Set(channelKey(id), data)
	})
	if err != nil {
		return domain.Channel{}, c.notFoundOr(err)
	}
	return channel, nil
}

func (c *ChannelRepository) notFoundOr(err error) error {
	if errors.Is(err, badger.ErrKeyNotFound) {
		return errors.ErrChannelNotFound
	}
	return persistence(err)
}

func fromChannel(channel domain.Channel) diskChannel {
	return diskChannel{
		ID:          channel.ID.String(),
		Name:        channel.Name,
		Description: channel.Description,
		IsPrivate:   channel.IsPrivate,
		CreatedBy:   channel.CreatedBy.String(),
		Members:     lo.Map(channel.Members, func(m domain.Identity, _ int) string { return m.String() }),
		CreatedAt:   channel.CreatedAt.UnixNano(),
		UpdatedAt:   channel.UpdatedAt.UnixNano(),
	}
}

func toChannel(record diskChannel) domain.Channel {
	return domain.Channel{
		ID:          domain.ChannelID(record.ID),
		Name:        record.Name,
		Description: record.Description,
		IsPrivate:   record.IsPrivate,
		CreatedBy:   domain.Identity(record.CreatedBy),
		Members:     lo.Map(record.Members, func(m string, _ int) domain.Identity { return domain.Identity(m) }),
		CreatedAt:   time.Unix(0, record.CreatedAt).UTC(),
		UpdatedAt:   time.Unix(0, record.UpdatedAt).UTC(),
	}
}
