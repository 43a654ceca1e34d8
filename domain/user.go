package domain

import "time"

type User struct {
	ID           Identity
	Username     string
	DisplayName  string
	AvatarURL    string
	PasswordHash string
	Roles        []string
	CreatedAt    time.Time
}

// SenderProfile is the public subset of a User attached to messages.
type SenderProfile struct {
	ID          Identity
	Username    string
	DisplayName string
	AvatarURL   string
}

func (u User) Profile() SenderProfile {
	return SenderProfile{
		ID:          u.ID,
		Username:    u.Username,
		DisplayName: u.DisplayName,
		AvatarURL:   u.AvatarURL,
	}
}

// UserView never carries the password hash.
type UserView struct {
	ID          string    `json:"id"`
	Username    string    `json:"username"`
	DisplayName string    `json:"displayName"`
	AvatarURL   string    `json:"avatarUrl"`
	CreatedAt   time.Time `json:"createdAt"`
}

func (u User) View() UserView {
	return UserView{
		ID:          u.ID.String(),
		Username:    u.Username,
		DisplayName: u.DisplayName,
		AvatarURL:   u.AvatarURL,
		CreatedAt:   u.CreatedAt,
	}
}

// Session is what signup and login hand back to the client.
type Session struct {
	User  UserView `json:"user"`
	Token string   `json:"token"`
}
