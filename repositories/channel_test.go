package repositories

import (
	"fmt"
	"sync"
	"team-chat/domain"
	"team-chat/errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func Test_Create_Channel_Adds_Creator_As_Member(t *testing.T) {
	req := require.New(t)
	repository := NewChannelRepository(openDB(t))

	channel, err := repository.CreateChannel(domain.Channel{Name: " general ", CreatedBy: "alice"})

	req.NoError(err)
	req.NotEmpty(channel.ID)
	req.Equal("general", channel.Name)
	req.Equal([]domain.Identity{"alice"}, channel.Members)

	fetched, err := repository.GetChannel(channel.ID)
	req.NoError(err)
	req.Equal(channel, fetched)
}

func Test_Create_Channel_Rejects_Duplicate_Name(t *testing.T) {
	req := require.New(t)
	repository := NewChannelRepository(openDB(t))
	_, err := repository.CreateChannel(domain.Channel{Name: "general", CreatedBy: "alice"})
	req.NoError(err)

	_, err = repository.CreateChannel(domain.Channel{Name: "General", CreatedBy: "bob"})

	req.ErrorIs(err, errors.ErrChannelNameTaken)
	req.ErrorIs(err, errors.ErrConflict)
}

func Test_Get_Unknown_Channel(t *testing.T) {
	req := require.New(t)
	repository := NewChannelRepository(openDB(t))

	_, err := repository.GetChannel("missing")

	req.ErrorIs(err, errors.ErrChannelNotFound)
}

func Test_Channel_Membership_Is_Idempotent(t *testing.T) {
	req := require.New(t)
	repository := NewChannelRepository(openDB(t))
	channel, err := repository.CreateChannel(domain.Channel{Name: "general", CreatedBy: "alice"})
	req.NoError(err)

	_, err = repository.AddMember(channel.ID, "bob")
	req.NoError(err)
	updated, err := repository.AddMember(channel.ID, "bob")
	req.NoError(err)
	req.Equal([]domain.Identity{"alice", "bob"}, updated.Members)

	updated, err = repository.RemoveMember(channel.ID, "alice")
	req.NoError(err)
	req.Equal([]domain.Identity{"bob"}, updated.Members)

	_, err = repository.AddMember("missing", "bob")
	req.ErrorIs(err, errors.ErrChannelNotFound)
}

func Test_List_Channels(t *testing.T) {
	req := require.New(t)
	repository := NewChannelRepository(openDB(t))
	for _, name := range []string{"one", "two", "three"} {
		_, err := repository.CreateChannel(domain.Channel{Name: name, CreatedBy: "alice"})
		req.NoError(err)
	}

	channels, err := repository.ListChannels()

	req.NoError(err)
	req.Len(channels, 3)
}

func Test_Concurrent_Joins_Are_All_Persisted(t *testing.T) {
	req := require.New(t)
	repository := NewChannelRepository(openDB(t))
	channel, err := repository.CreateChannel(domain.Channel{Name: "general", CreatedBy: "alice"})
	req.NoError(err)

	// When 32 users join the same channel at once
	const joiners = 32
	var wg sync.WaitGroup
	errs := make(chan error, joiners)
	for i := range joiners {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repository.AddMember(channel.ID, domain.Identity(fmt.Sprintf("user-%d", i)))
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	// Then every join succeeded and none was lost
	for err := range errs {
		req.NoError(err)
	}
	fetched, err := repository.GetChannel(channel.ID)
	req.NoError(err)
	req.Len(fetched.Members, joiners+1)
}

func Test_Concurrent_Creates_With_Same_Name_Conflict(t *testing.T) {
	req := require.New(t)
	repository := NewChannelRepository(openDB(t))

	const creators = 16
	var wg sync.WaitGroup
	errs := make(chan error, creators)
	for i := range creators {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repository.CreateChannel(domain.Channel{Name: "general", CreatedBy: domain.Identity(fmt.Sprintf("user-%d", i))})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	// Then exactly one wins and the others get a conflict, never a storage failure
	created := 0
	for err := range errs {
		if err == nil {
			created++
			continue
		}
		req.ErrorIs(err, errors.ErrChannelNameTaken)
	}
	req.Equal(1, created)
}
