package services

import (
	"fmt"
	"strings"
	"team-chat/auth"
	"team-chat/domain"
	"team-chat/errors"
	"team-chat/repositories"
)

type AuthService struct {
	userRepository repositories.IUserRepository
	tokens         *auth.TokenManager
}

func NewAuthService(repo repositories.IUserRepository, tokens *auth.TokenManager) *AuthService {
	return &AuthService{userRepository: repo, tokens: tokens}
}

func (s *AuthService) Signup(cmd domain.SignupCommand) (domain.Session, error) {
	valReq := auth.SignupRequest{
		Username:    strings.TrimSpace(cmd.Username),
		Password:    cmd.Password,
		DisplayName: strings.TrimSpace(cmd.DisplayName),
	}

	// 1. Validate business rules before any expensive cryptographic operation
	if err := auth.ValidateSignup(valReq); err != nil {
		return domain.Session{}, err
	}

	// 2. Hash the password using Argon2id
	// Done in the service layer to keep the repository unaware of plain passwords.
	hashedPassword, err := auth.HashPassword(valReq.Password)
	if err != nil {
		return domain.Session{}, fmt.Errorf("hashing failed: %w", err)
	}

	// 3. Persist the user with the generated hash
	user, err := s.userRepository.CreateUser(domain.User{
		Username:     valReq.Username,
		DisplayName:  valReq.DisplayName,
		PasswordHash: hashedPassword,
	})
	if err != nil {
		return domain.Session{}, err // ErrUserAlreadyExists if the username is taken
	}

	// 4. Generate the initial session token
	return s.issue(user)
}

func (s *AuthService) Login(cmd domain.LoginCommand) (domain.Session, error) {
	if err := auth.ValidateLogin(auth.LoginRequest{Username: cmd.Username, Password: cmd.Password}); err != nil {
		return domain.Session{}, errors.ErrInvalidCredentials
	}

	user, err := s.userRepository.GetUserByUsername(strings.TrimSpace(cmd.Username))
	if err != nil {
		// Generic error to prevent user enumeration attacks
		if errors.Is(err, errors.ErrUserNotFound) {
			return domain.Session{}, errors.ErrInvalidCredentials
		}
		return domain.Session{}, err
	}

	match, err := auth.ComparePassword(cmd.Password, user.PasswordHash)
	if err != nil || !match {
		return domain.Session{}, errors.ErrInvalidCredentials
	}
	return s.issue(user)
}

func (s *AuthService) Me(identity domain.Identity) (domain.UserView, error) {
	user, err := s.userRepository.GetUserByID(identity)
	if err != nil {
		return domain.UserView{}, err
	}
	return user.View(), nil
}

func (s *AuthService) issue(user domain.User) (domain.Session, error) {
	token, err := s.tokens.Generate(user.ID, user.Roles)
	if err != nil {
		return domain.Session{}, err
	}
	return domain.Session{User: user.View(), Token: token}, nil
}
