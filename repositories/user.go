//go:generate go run go.uber.org/mock/mockgen -source=user.go -destination=../mocks/mock_user_repository.go -package=mocks
package repositories

import (
	"strings"
	"sync"
	"team-chat/domain"
	"team-chat/errors"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

type IUserRepository interface {
	CreateUser(user domain.User) (domain.User, error)
	GetUserByUsername(username string) (domain.User, error)
	GetUserByID(id domain.Identity) (domain.User, error)
	GetProfiles(ids []domain.Identity) (map[domain.Identity]domain.SenderProfile, error)
}

type UserRepository struct {
	mu  sync.Mutex
	db  *badger.DB
	now func() time.Time
}

func NewUserRepository(db *badger.DB) *UserRepository {
	return &UserRepository{db: db, now: time.Now}
}

type diskUser struct {
	ID           string   `cbor:"1,keyasint"`
	Username     string   `cbor:"2,keyasint"`
	DisplayName  string   `cbor:"3,keyasint"`
	AvatarURL    string   `cbor:"4,keyasint,omitempty"`
	PasswordHash string   `cbor:"5,keyasint"`
	Roles        []string `cbor:"6,keyasint"`
	CreatedAt    int64    `cbor:"7,keyasint"`
}

func userKey(id domain.Identity) []byte {
	return []byte("user:" + id.String())
}

// Usernames are stored lower-cased, lookups are case-insensitive.
func usernameKey(username string) []byte {
	return []byte("username:" + strings.ToLower(username))
}

// CreateUser persists the user (whose password is already hashed) and
// returns it with its generated id.
func (u *UserRepository) CreateUser(user domain.User) (domain.User, error) {
	user.ID = domain.Identity(uuid.NewString())
	user.Username = strings.ToLower(user.Username)
	user.CreatedAt = u.now().UTC()
	if len(user.Roles) == 0 {
		user.Roles = []string{"user"}
	}

	u.mu.Lock()
	defer u.mu.Unlock()
	err := update(u.db, func(txn *badger.Txn) error {
		nameKey := usernameKey(user.Username)
		if _, err := txn.Get(nameKey); err == nil {
			return errors.ErrUserAlreadyExists
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		data, err := marshal(fromUser(user))
		if err != nil {
			return err
		}
		if err = txn.Set(userKey(user.ID), data); err != nil {
			return err
		}
		return txn.Set(nameKey, []byte(user.ID))
	})
	if err != nil {
		if errors.Is(err, errors.ErrUserAlreadyExists) {
			return domain.User{}, err
		}
		return domain.User{}, persistence(err)
	}
	return user, nil
}

func (u *UserRepository) GetUserByUsername(username string) (domain.User, error) {
	var record diskUser
	err := u.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(usernameKey(username))
		if err != nil {
			return err
		}
		id, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		return readValue(txn, userKey(domain.Identity(id)), &record)
	})
	if err != nil {
		return domain.User{}, u.notFoundOr(err)
	}
	return toUser(record), nil
}

func (u *UserRepository) GetUserByID(id domain.Identity) (domain.User, error) {
	var record diskUser
	err := u.db.View(func(txn *badger.Txn) error {
		return readValue(txn, userKey(id), &record)
	})
	if err != nil {
		return domain.User{}, u.notFoundOr(err)
	}
	return toUser(record), nil
}

// GetProfiles resolves public profiles in one read transaction.
// Unknown identities are absent from the result.
func (u *UserRepository) GetProfiles(ids []domain.Identity) (map[domain.Identity]domain.SenderProfile, error) {
	profiles := make(map[domain.Identity]domain.SenderProfile, len(ids))
	err := u.db.View(func(txn *badger.Txn) error {
		for _, id := range ids {
			if _, done := profiles[id]; done {
				continue
			}
			var record diskUser
			err := readValue(txn, userKey(id), &record)
			if errors.Is(err, badger.ErrKeyNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			profiles[id] = toUser(record).Profile()
		}
		return nil
	})
	if err != nil {
		return nil, persistence(err)
	}
	return profiles, nil
}

func (u *UserRepository) notFoundOr(err error) error {
	if errors.Is(err, badger.ErrKeyNotFound) {
		return errors.ErrUserNotFound
	}
	return persistence(err)
}

func fromUser(user domain.User) diskUser {
	return diskUser{
		ID:           user.ID.String(),
		Username:     user.Username,
		DisplayName:  user.DisplayName,
		AvatarURL:    user.AvatarURL,
		PasswordHash: user.PasswordHash,
		Roles:        user.Roles,
		CreatedAt:    user.CreatedAt.UnixNano(),
	}
}

func toUser(record diskUser) domain.User {
	return domain.User{
		ID:           domain.Identity(record.ID),
		Username:     record.Username,
		DisplayName:  record.DisplayName,
		AvatarURL:    record.AvatarURL,
		PasswordHash: record.PasswordHash,
		Roles:        record.Roles,
		CreatedAt:    time.Unix(0, record.CreatedAt).UTC(),
	}
}
