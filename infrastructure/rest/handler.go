// Package rest exposes the request/response surface of the chat over HTTP.
package rest

import (
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"
	"team-chat/auth"
	"team-chat/domain"
	"team-chat/errors"
	"team-chat/observability"
	"team-chat/services"
	"time"

	"github.com/gorilla/mux"
	"github.com/samber/lo"
)

// HealthFunc reports the live state of the process.
type HealthFunc func() observability.Health

type Handler struct {
	log      *slog.Logger
	auth     services.IAuthService
	channels services.IChannelService
	chat     services.IChatService
	health   HealthFunc
}

func NewHandler(
	log *slog.Logger,
	authService services.IAuthService,
	channelService services.IChannelService,
	chatService services.IChatService,
	health HealthFunc,
) *Handler {
	return &Handler{log: log, auth: authService, channels: channelService, chat: chatService, health: health}
}

type signupRequest struct {
	Username    string `json:"username"`
	Password    string `json:"password"`
	DisplayName string `json:"displayName"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type channelRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	IsPrivate   bool   `json:"isPrivate"`
}

type postMessageRequest struct {
	Text        string                  `json:"text"`
	Attachments []domain.WireAttachment `json:"attachments"`
}

func (h *Handler) Signup(w http.ResponseWriter, r *http.Request) {
	var body signupRequest
	if err := decode(w, r, &body); err != nil {
		h.fail(w, r, err)
		return
	}
	session, err := h.auth.Signup(domain.SignupCommand{
		Username:    body.Username,
		Password:    body.Password,
		DisplayName: body.DisplayName,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, session)
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var body loginRequest
	if err := decode(w, r, &body); err != nil {
		h.fail(w, r, err)
		return
	}
	session, err := h.auth.Login(domain.LoginCommand{Username: body.Username, Password: body.Password})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	identity, _ := auth.IdentityFrom(r.Context())
	user, err := h.auth.Me(identity)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": user})
}

func (h *Handler) ListChannels(w http.ResponseWriter, r *http.Request) {
	channels, err := h.channels.List(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"channels": channels})
}

func (h *Handler) CreateChannel(w http.ResponseWriter, r *http.Request) {
	var body channelRequest
	if err := decode(w, r, &body); err != nil {
		h.fail(w, r, err)
		return
	}
	identity, _ := auth.IdentityFrom(r.Context())
	channel, err := h.channels.Create(r.Context(), domain.CreateChannelCommand{
		Name:        body.Name,
		Description: body.Description,
		IsPrivate:   body.IsPrivate,
		CreatorID:   identity,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"message": "Channel created", "channel": channel})
}

func (h *Handler) GetChannel(w http.ResponseWriter, r *http.Request) {
	channel, err := h.channels.Get(r.Context(), channelID(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"channel": channel})
}

func (h *Handler) JoinChannel(w http.ResponseWriter, r *http.Request) {
	identity, _ := auth.IdentityFrom(r.Context())
	channel, err := h.channels.Join(r.Context(), channelID(r), identity)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message":     "Joined channel",
		"channelId":   channel.ID,
		"memberCount": len(channel.Members),
	})
}

func (h *Handler) LeaveChannel(w http.ResponseWriter, r *http.Request) {
	identity, _ := auth.IdentityFrom(r.Context())
	channel, err := h.channels.Leave(r.Context(), channelID(r), identity)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "Left channel", "channelId": channel.ID})
}

// Cursors outside the span of UnixNano cannot address a stored message.
var (
	oldestCursor = time.Unix(0, 0)
	newestCursor = time.Unix(0, math.MaxInt64)
)

// GetMessages serves one history page. The cursor is the createdAt of the
// oldest message already held by the client, in RFC3339Nano.
func (h *Handler) GetMessages(w http.ResponseWriter, r *http.Request) {
	cmd := domain.GetMessagesCommand{ChannelID: channelID(r)}
	query := r.URL.Query()

	if raw := strings.TrimSpace(query.Get("before")); raw != "" {
		before, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil || before.Before(oldestCursor) || before.After(newestCursor) {
			h.fail(w, r, errors.ErrInvalidCursor)
			return
		}
		cmd.Before = &before
	}
	if raw := query.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			h.fail(w, r, errors.ErrInvalidRequest)
			return
		}
		cmd.Limit = limit
	}

	page, err := h.chat.GetMessages(r.Context(), cmd)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (h *Handler) PostMessage(w http.ResponseWriter, r *http.Request) {
	var body postMessageRequest
	if err := decode(w, r, &body); err != nil {
		h.fail(w, r, errors.ErrInvalidPayload)
		return
	}
	identity, _ := auth.IdentityFrom(r.Context())
	message, err := h.chat.PostMessage(r.Context(), domain.PostMessageCommand{
		ChannelID:   channelID(r),
		SenderID:    identity,
		Text:        body.Text,
		Attachments: ToAttachments(body.Attachments),
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"message": "Message created", "data": message})
}

func (h *Handler) DeleteMessage(w http.ResponseWriter, r *http.Request) {
	identity, _ := auth.IdentityFrom(r.Context())
	err := h.chat.DeleteMessage(r.Context(), domain.DeleteMessageCommand{
		MessageID:   domain.MessageID(mux.Vars(r)["messageId"]),
		RequesterID: identity,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "Message deleted"})
}

func (h *Handler) SearchMessages(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	limit, _ := strconv.Atoi(query.Get("limit"))
	messages, err := h.chat.SearchMessages(r.Context(), domain.SearchMessagesCommand{
		ChannelID: channelID(r),
		Query:     query.Get("q"),
		Limit:     limit,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"messages": messages})
}

func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.health())
}

// ToAttachments converts wire attachments into domain ones.
func ToAttachments(wire []domain.WireAttachment) []domain.Attachment {
	if len(wire) == 0 {
		return nil
	}
	return lo.Map(wire, func(a domain.WireAttachment, _ int) domain.Attachment {
		return domain.Attachment{Filename: a.Filename, URL: a.URL, MimeType: a.MimeType}
	})
}

func channelID(r *http.Request) domain.ChannelID {
	return domain.ChannelID(mux.Vars(r)["id"])
}
