package domain

import (
	"time"
)

type PostMessageCommand struct {
	ChannelID   ChannelID
	SenderID    Identity
	Text        string
	Attachments []Attachment
}

type DeleteMessageCommand struct {
	MessageID   MessageID
	RequesterID Identity
}

// GetMessagesCommand asks for the page strictly older than Before.
// A nil Before means the newest page.
type GetMessagesCommand struct {
	ChannelID ChannelID
	Before    *time.Time
	Limit     int
}

type SearchMessagesCommand struct {
	ChannelID ChannelID
	Query     string
	Limit     int
}

type CreateChannelCommand struct {
	Name        string
	Description string
	IsPrivate   bool
	CreatorID   Identity
}

type SignupCommand struct {
	Username    string
	Password    string
	DisplayName string
}

type LoginCommand struct {
	Username string
	Password string
}
