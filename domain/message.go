// Package domain contains core concepts of the chat system.
// This file defines Message records and their wire representation.
// Messages are immutable once persisted, only deletion is allowed.
package domain

import (
	"time"

	"github.com/samber/lo"
)

const (
	MaxMessageLength = 2000
	DefaultPageSize  = 20
	MaxPageSize      = 100
)

type Attachment struct {
	Filename string
	URL      string
	MimeType string
}

// Message represents a persisted chat message.
type Message struct {
	ID          MessageID
	ChannelID   ChannelID
	SenderID    Identity
	Text        string
	Edited      bool
	Attachments []Attachment
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type WireAttachment struct {
	Filename string `json:"filename"`
	URL      string `json:"url"`
	MimeType string `json:"mimeType"`
}

type WireSender struct {
	ID          string `json:"id"`
	Username    string `json:"username,omitempty"`
	DisplayName string `json:"displayName,omitempty"`
	AvatarURL   string `json:"avatarUrl,omitempty"`
}

// WireMessage is what clients receive, both in history pages and in
// receive_message events.
type WireMessage struct {
	ID          string           `json:"id"`
	ChannelID   string           `json:"channelId"`
	Sender      WireSender       `json:"sender"`
	Text        string           `json:"text"`
	Edited      bool             `json:"edited"`
	Attachments []WireAttachment `json:"attachments"`
	CreatedAt   time.Time        `json:"createdAt"`
	UpdatedAt   time.Time        `json:"updatedAt"`
}

// Page is one slice of channel history, oldest first.
// HasMore is false once a page comes back shorter than the requested limit.
type Page struct {
	Messages []WireMessage `json:"messages"`
	HasMore  bool          `json:"hasMore"`
}

// Enrich joins a message with its sender's public profile.
// A nil profile (deleted or unknown user) falls back to the bare identity.
func Enrich(m Message, profile *SenderProfile) WireMessage {
	sender := WireSender{ID: m.SenderID.String()}
	if profile != nil {
		sender.Username = profile.Username
		sender.DisplayName = profile.DisplayName
		sender.AvatarURL = profile.AvatarURL
	}
	return WireMessage{
		ID:        m.ID.String(),
		ChannelID: m.ChannelID.String(),
		Sender:    sender,
		Text:      m.Text,
		Edited:    m.Edited,
		Attachments: lo.Map(m.Attachments, func(a Attachment, _ int) WireAttachment {
			return WireAttachment{Filename: a.Filename, URL: a.URL, MimeType: a.MimeType}
		}),
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}
