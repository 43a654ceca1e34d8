package services

import (
	"team-chat/auth"
	"team-chat/domain"
	"team-chat/errors"
	"team-chat/mocks"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

const testSecret = "a-secret-long-enough-for-hs256-tests"

func TestAuthService_Signup(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockRepo := mocks.NewMockIUserRepository(ctrl)
	tokens := auth.NewTokenManager(testSecret, 24*time.Hour)
	svc := NewAuthService(mockRepo, tokens)

	t.Run("should sign up successfully when input is valid", func(t *testing.T) {
		req := require.New(t)

		// Expect CreateUser to be called with a hashed password (not the plain one)
		mockRepo.EXPECT().
			CreateUser(gomock.Any()).
			DoAndReturn(func(u domain.User) (domain.User, error) {
				req.Equal("Alice", u.Username)
				req.NotEqual("secret1", u.PasswordHash)
				match, err := auth.ComparePassword("secret1", u.PasswordHash)
				req.NoError(err)
				req.True(match)
				u.ID = "user-uuid"
				u.Username = "alice"
				u.Roles = []string{"user"}
				return u, nil
			}).
			Times(1)

		session, err := svc.Signup(domain.SignupCommand{Username: "Alice", Password: "secret1", DisplayName: "Alice A."})

		req.NoError(err)
		req.NotEmpty(session.Token)
		req.Equal("alice", session.User.Username)
		identity, err := auth.NewAuthenticator(tokens).Authenticate(session.Token)
		req.NoError(err)
		req.Equal(domain.Identity("user-uuid"), identity)
	})

	t.Run("should fail when the password is too short", func(t *testing.T) {
		req := require.New(t)

		// Repository should NEVER be called
		mockRepo.EXPECT().CreateUser(gomock.Any()).Times(0)

		session, err := svc.Signup(domain.SignupCommand{Username: "alice", Password: "123", DisplayName: "Alice"})

		req.ErrorIs(err, errors.ErrValidation)
		req.Empty(session.Token)
	})

	t.Run("should fail when the username has forbidden characters", func(t *testing.T) {
		req := require.New(t)
		mockRepo.EXPECT().CreateUser(gomock.Any()).Times(0)

		_, err := svc.Signup(domain.SignupCommand{Username: "al ice!", Password: "secret1", DisplayName: "Alice"})

		req.ErrorIs(err, errors.ErrInvalidRequest)
	})

	t.Run("should fail when user already exists in repository", func(t *testing.T) {
		req := require.New(t)
		mockRepo.EXPECT().
			CreateUser(gomock.Any()).
			Return(domain.User{}, errors.ErrUserAlreadyExists).
			Times(1)

		_, err := svc.Signup(domain.SignupCommand{Username: "duplicate", Password: "secret1", DisplayName: "Dup"})

		req.ErrorIs(err, errors.ErrUserAlreadyExists)
		req.ErrorIs(err, errors.ErrConflict)
	})
}

func TestAuthService_Login(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockRepo := mocks.NewMockIUserRepository(ctrl)
	svc := NewAuthService(mockRepo, auth.NewTokenManager(testSecret, time.Hour))

	hash, err := auth.HashPassword("correct-horse")
	require.NoError(t, err)
	user := domain.User{ID: "u1", Username: "bob", DisplayName: "Bob", PasswordHash: hash, Roles: []string{"user"}}

	t.Run("should login successfully with correct credentials", func(t *testing.T) {
		req := require.New(t)
		mockRepo.EXPECT().GetUserByUsername("bob").Return(user, nil).Times(1)

		session, err := svc.Login(domain.LoginCommand{Username: "bob", Password: "correct-horse"})

		req.NoError(err)
		req.NotEmpty(session.Token)
		req.Equal("u1", session.User.ID)
	})

	t.Run("should fail with a wrong password", func(t *testing.T) {
		req := require.New(t)
		mockRepo.EXPECT().GetUserByUsername("bob").Return(user, nil).Times(1)

		_, err := svc.Login(domain.LoginCommand{Username: "bob", Password: "wrong-horse"})

		req.ErrorIs(err, errors.ErrInvalidCredentials)
	})

	t.Run("should not reveal that the user does not exist", func(t *testing.T) {
		req := require.New(t)
		mockRepo.EXPECT().GetUserByUsername("ghost").Return(domain.User{}, errors.ErrUserNotFound).Times(1)

		_, err := svc.Login(domain.LoginCommand{Username: "ghost", Password: "whatever"})

		req.ErrorIs(err, errors.ErrInvalidCredentials)
		req.NotErrorIs(err, errors.ErrNotFound)
	})

	t.Run("should fail on empty input", func(t *testing.T) {
		req := require.New(t)

		_, err := svc.Login(domain.LoginCommand{})

		req.ErrorIs(err, errors.ErrInvalidCredentials)
	})
}

func TestAuthService_Me(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	mockRepo := mocks.NewMockIUserRepository(ctrl)
	svc := NewAuthService(mockRepo, auth.NewTokenManager(testSecret, time.Hour))
	mockRepo.EXPECT().GetUserByID(domain.Identity("u1")).
		Return(domain.User{ID: "u1", Username: "bob", PasswordHash: "hidden"}, nil)

	view, err := svc.Me("u1")

	req.NoError(err)
	req.Equal(domain.UserView{ID: "u1", Username: "bob"}, view)
}
