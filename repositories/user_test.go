package repositories

import (
	"sync"
	"team-chat/domain"
	"team-chat/errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func Test_Create_And_Get_User(t *testing.T) {
	req := require.New(t)
	repository := NewUserRepository(openDB(t))

	created, err := repository.CreateUser(domain.User{Username: "Alice", DisplayName: "Alice", PasswordHash: "hash"})
	req.NoError(err)
	req.NotEmpty(created.ID)
	req.Equal("alice", created.Username)
	req.Equal([]string{"user"}, created.Roles)

	byName, err := repository.GetUserByUsername("ALICE")
	req.NoError(err)
	req.Equal(created, byName)

	byID, err := repository.GetUserByID(created.ID)
	req.NoError(err)
	req.Equal(created, byID)
}

func Test_Create_User_Rejects_Duplicate_Username(t *testing.T) {
	req := require.New(t)
	repository := NewUserRepository(openDB(t))
	_, err := repository.CreateUser(domain.User{Username: "alice", PasswordHash: "hash"})
	req.NoError(err)

	_, err = repository.CreateUser(domain.User{Username: "Alice", PasswordHash: "hash"})

	req.ErrorIs(err, errors.ErrUserAlreadyExists)
}

func Test_Get_Unknown_User(t *testing.T) {
	req := require.New(t)
	repository := NewUserRepository(openDB(t))

	_, err := repository.GetUserByUsername("nobody")
	req.ErrorIs(err, errors.ErrUserNotFound)

	_, err = repository.GetUserByID("nobody")
	req.ErrorIs(err, errors.ErrUserNotFound)
}

func Test_Get_Profiles_Skips_Unknown(t *testing.T) {
	req := require.New(t)
	repository := NewUserRepository(openDB(t))
	alice, err := repository.CreateUser(domain.User{Username: "alice", DisplayName: "Alice", PasswordHash: "hash"})
	req.NoError(err)

	profiles, err := repository.GetProfiles([]domain.Identity{alice.ID, "ghost", alice.ID})

	req.NoError(err)
	req.Len(profiles, 1)
	req.Equal(alice.Profile(), profiles[alice.ID])
}

func Test_Concurrent_Signups_With_Same_Username_Conflict(t *testing.T) {
	req := require.New(t)
	repository := NewUserRepository(openDB(t))

	const attempts = 16
	var wg sync.WaitGroup
	errs := make(chan error, attempts)
	for range attempts {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repository.CreateUser(domain.User{Username: "alice", DisplayName: "Alice", PasswordHash: "hash"})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	created := 0
	for err := range errs {
		if err == nil {
			created++
			continue
		}
		req.ErrorIs(err, errors.ErrUserAlreadyExists)
	}
	req.Equal(1, created)
}
