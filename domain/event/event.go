package event

import (
	"encoding/json"
	"team-chat/domain"
)

// Type is the event name carried on the wire.
// Names are part of the client contract and must not change.
type Type string

const (
	JoinChannelType  Type = "join_channel"
	LeaveChannelType Type = "leave_channel"
	TypingType       Type = "typing"
	SendMessageType  Type = "send_message"
	PingCheckType    Type = "ping_check"

	ReceiveMessageType      Type = "receive_message"
	MessageDeletedType      Type = "message_deleted"
	PresenceInitType        Type = "presence_init"
	PresenceUpdateType      Type = "presence_update"
	ChannelMemberUpdateType Type = "channel_member_update"
	TypingUpdateType        Type = "typing_update"
	PongCheckType           Type = "pong_check"
	ErrorType               Type = "error"
)

// DomainEvent is anything a sink can consume.
type DomainEvent interface {
	Type() Type
}

// Envelope is the frame exchanged with realtime clients.
type Envelope struct {
	Event Type            `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Encode wraps an outbound event in its envelope.
func Encode(e DomainEvent) ([]byte, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Event: e.Type(), Data: data})
}

// Outbound events

type MessageReceived struct {
	domain.WireMessage
}

func (MessageReceived) Type() Type { return ReceiveMessageType }

type MessageDeleted struct {
	ID        string `json:"id"`
	ChannelID string `json:"-"`
}

func (MessageDeleted) Type() Type { return MessageDeletedType }

type PresenceInit struct {
	OnlineUsers []string `json:"onlineUsers"`
}

func (PresenceInit) Type() Type { return PresenceInitType }

type PresenceUpdate struct {
	UserID string `json:"userId"`
	Online bool   `json:"online"`
	Count  int    `json:"count"`
}

func (PresenceUpdate) Type() Type { return PresenceUpdateType }

type ChannelMemberUpdate struct {
	ChannelID         string `json:"channelId"`
	MemberSocketCount int    `json:"memberSocketCount"`
}

func (ChannelMemberUpdate) Type() Type { return ChannelMemberUpdateType }

type TypingUpdate struct {
	ChannelID string `json:"channelId"`
	UserID    string `json:"userId"`
	IsTyping  bool   `json:"isTyping"`
}

func (TypingUpdate) Type() Type { return TypingUpdateType }

type PongCheck struct {
	OK      bool            `json:"ok"`
	Payload json.RawMessage `json:"payload"`
}

func (PongCheck) Type() Type { return PongCheckType }

type Error struct {
	Message string `json:"message"`
}

func (Error) Type() Type { return ErrorType }

// Inbound payloads

type JoinChannel struct {
	ChannelID string `json:"channelId"`
}

type LeaveChannel struct {
	ChannelID string `json:"channelId"`
}

type Typing struct {
	ChannelID string `json:"channelId"`
	IsTyping  bool   `json:"isTyping"`
}

type SendMessage struct {
	ChannelID   string                  `json:"channelId"`
	Text        string                  `json:"text"`
	Attachments []domain.WireAttachment `json:"attachments,omitempty"`
}

// Internal events, delivered to permanent sinks only

// MessagePersisted is published once a message is durably stored.
type MessagePersisted struct {
	Message domain.Message
}

func (MessagePersisted) Type() Type { return MessagePersistedType }

const MessagePersistedType Type = "message_persisted"
