package domain

import (
	"slices"
	"time"
)

// Channel is the persisted conversation space.
// Members is the durable membership list and is unrelated to who is
// currently subscribed to the channel's realtime room.
type Channel struct {
	ID          ChannelID
	Name        string
	Description string
	IsPrivate   bool
	CreatedBy   Identity
	Members     []Identity
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (c *Channel) HasMember(id Identity) bool {
	return slices.Contains(c.Members, id)
}

// AddMember reports whether the identity was added.
// Adding an existing member is a no-op.
func (c *Channel) AddMember(id Identity) bool {
	if c.HasMember(id) {
		return false
	}
	c.Members = append(c.Members, id)
	return true
}

func (c *Channel) RemoveMember(id Identity) bool {
	idx := slices.Index(c.Members, id)
	if idx < 0 {
		return false
	}
	c.Members = slices.Delete(c.Members, idx, idx+1)
	return true
}

type ChannelSummary struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	IsPrivate   bool       `json:"isPrivate"`
	MemberCount int        `json:"memberCount"`
	CreatedBy   WireSender `json:"createdBy"`
	CreatedAt   time.Time  `json:"createdAt"`
}

type ChannelDetails struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Description string       `json:"description"`
	IsPrivate   bool         `json:"isPrivate"`
	CreatedBy   WireSender   `json:"createdBy"`
	Members     []WireSender `json:"members"`
	CreatedAt   time.Time    `json:"createdAt"`
}
