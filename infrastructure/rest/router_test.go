package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"team-chat/auth"
	"team-chat/domain"
	"team-chat/errors"
	"team-chat/mocks"
	"team-chat/observability"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type fixture struct {
	router   http.Handler
	auth     *mocks.MockIAuthService
	channels *mocks.MockIChannelService
	chat     *mocks.MockIChatService
	token    string
}

func newFixture(t *testing.T) fixture {
	ctrl := gomock.NewController(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	tokens := auth.NewTokenManager("rest-test-secret-0123456789", time.Hour)
	token, err := tokens.Generate("alice", []string{"user"})
	require.NoError(t, err)

	f := fixture{
		auth:     mocks.NewMockIAuthService(ctrl),
		channels: mocks.NewMockIChannelService(ctrl),
		chat:     mocks.NewMockIChatService(ctrl),
		token:    token,
	}
	health := func() observability.Health { return observability.Health{Status: "ok", Connections: 3} }
	handler := NewHandler(log, f.auth, f.channels, f.chat, health)
	f.router = NewRouter(log, handler, auth.NewAuthenticator(tokens), observability.NewMetrics(), nil)
	return f
}

func (f fixture) do(t *testing.T, method, path string, body any, authenticated bool) *httptest.ResponseRecorder {
	t.Helper()
	var payload bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&payload).Encode(body))
	}
	r := httptest.NewRequest(method, path, &payload)
	if authenticated {
		r.Header.Set("Authorization", "Bearer "+f.token)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, r)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestRouter_Secured_Routes_Require_Token(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)

	for _, route := range []struct{ method, path string }{
		{http.MethodGet, "/api/auth/me"},
		{http.MethodGet, "/api/channels"},
		{http.MethodPost, "/api/channels"},
		{http.MethodGet, "/api/channels/c1/messages"},
		{http.MethodPost, "/api/channels/c1/messages"},
		{http.MethodDelete, "/api/channels/c1/messages/m1"},
	} {
		w := f.do(t, route.method, route.path, nil, false)
		req.Equal(http.StatusUnauthorized, w.Code, route.path)
		req.Equal("authentication error: missing credential", decodeBody(t, w)["message"])
	}
}

func TestRouter_Rejects_Invalid_Token(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	r := httptest.NewRequest(http.MethodGet, "/api/channels", nil)
	r.Header.Set("Authorization", "Bearer not-a-jwt")
	w := httptest.NewRecorder()

	f.router.ServeHTTP(w, r)

	req.Equal(http.StatusUnauthorized, w.Code)
}

func TestRouter_Signup(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	f.auth.EXPECT().Signup(domain.SignupCommand{Username: "bob", Password: "secret1", DisplayName: "Bob"}).
		Return(domain.Session{User: domain.UserView{ID: "u2", Username: "bob"}, Token: "jwt"}, nil)

	w := f.do(t, http.MethodPost, "/api/auth/signup", map[string]string{
		"username": "bob", "password": "secret1", "displayName": "Bob",
	}, false)

	req.Equal(http.StatusCreated, w.Code)
	req.Equal("jwt", decodeBody(t, w)["token"])
}

func TestRouter_Signup_Conflict(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	f.auth.EXPECT().Signup(gomock.Any()).Return(domain.Session{}, errors.ErrUserAlreadyExists)

	w := f.do(t, http.MethodPost, "/api/auth/signup", map[string]string{"username": "bob"}, false)

	req.Equal(http.StatusConflict, w.Code)
}

func TestRouter_Login_Malformed_Body(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	r := httptest.NewRequest(http.MethodPost, "/api/auth/login", bytes.NewBufferString("{not json"))
	w := httptest.NewRecorder()

	f.router.ServeHTTP(w, r)

	req.Equal(http.StatusBadRequest, w.Code)
}

func TestRouter_CreateChannel_Uses_Token_Identity(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	f.channels.EXPECT().Create(gomock.Any(), domain.CreateChannelCommand{Name: "general", CreatorID: "alice"}).
		Return(domain.ChannelDetails{ID: "c1", Name: "general"}, nil)

	w := f.do(t, http.MethodPost, "/api/channels", map[string]any{"name": "general"}, true)

	req.Equal(http.StatusCreated, w.Code)
	body := decodeBody(t, w)
	req.Equal("Channel created", body["message"])
	req.Equal("c1", body["channel"].(map[string]any)["id"])
}

func TestRouter_GetChannel_NotFound(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	f.channels.EXPECT().Get(gomock.Any(), domain.ChannelID("ghost")).Return(domain.ChannelDetails{}, errors.ErrChannelNotFound)

	w := f.do(t, http.MethodGet, "/api/channels/ghost", nil, true)

	req.Equal(http.StatusNotFound, w.Code)
	req.Equal("Channel not found", decodeBody(t, w)["message"])
}

func TestRouter_JoinChannel(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	f.channels.EXPECT().Join(gomock.Any(), domain.ChannelID("c1"), domain.Identity("alice")).
		Return(domain.ChannelDetails{ID: "c1", Members: []domain.WireSender{{ID: "bob"}, {ID: "alice"}}}, nil)

	w := f.do(t, http.MethodPost, "/api/channels/c1/join", nil, true)

	req.Equal(http.StatusOK, w.Code)
	req.EqualValues(2, decodeBody(t, w)["memberCount"])
}

func TestRouter_GetMessages_Parses_Cursor(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	before := time.Date(2024, 5, 1, 10, 0, 0, 123456789, time.UTC)
	f.chat.EXPECT().GetMessages(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, cmd domain.GetMessagesCommand) (domain.Page, error) {
			req.Equal(domain.ChannelID("c1"), cmd.ChannelID)
			req.NotNil(cmd.Before)
			req.True(before.Equal(*cmd.Before))
			req.Equal(2, cmd.Limit)
			return domain.Page{Messages: []domain.WireMessage{{ID: "m1"}}, HasMore: true}, nil
		})

	w := f.do(t, http.MethodGet, "/api/channels/c1/messages?limit=2&before="+before.Format(time.RFC3339Nano), nil, true)

	req.Equal(http.StatusOK, w.Code)
	body := decodeBody(t, w)
	req.Equal(true, body["hasMore"])
	req.Len(body["messages"], 1)
}

func TestRouter_GetMessages_Invalid_Cursor(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)

	for _, before := range []string{
		"yesterday",
		"2300-01-01T00:00:00Z",
		"1969-12-31T23:59:59Z",
	} {
		w := f.do(t, http.MethodGet, "/api/channels/c1/messages?before="+before, nil, true)

		req.Equal(http.StatusBadRequest, w.Code, before)
	}
}

func TestRouter_PostMessage(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	f.chat.EXPECT().PostMessage(gomock.Any(), domain.PostMessageCommand{
		ChannelID:   "c1",
		SenderID:    "alice",
		Text:        "hello",
		Attachments: []domain.Attachment{{Filename: "a.png", URL: "https://cdn/a.png", MimeType: "image/png"}},
	}).Return(domain.WireMessage{ID: "m1", Text: "hello"}, nil)

	w := f.do(t, http.MethodPost, "/api/channels/c1/messages", map[string]any{
		"text":        "hello",
		"attachments": []map[string]string{{"filename": "a.png", "url": "https://cdn/a.png", "mimeType": "image/png"}},
	}, true)

	req.Equal(http.StatusCreated, w.Code)
	req.Equal("m1", decodeBody(t, w)["data"].(map[string]any)["id"])
}

func TestRouter_PostMessage_Errors(t *testing.T) {
	cases := []struct {
		name    string
		err     error
		status  int
		message string
	}{
		{"empty text", errors.ErrEmptyText, http.StatusBadRequest, "Invalid message payload"},
		{"unknown channel", errors.ErrChannelNotFound, http.StatusNotFound, "Channel not found"},
		{"store failure", errors.ErrPersistence, http.StatusInternalServerError, "Internal server error"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := require.New(t)
			f := newFixture(t)
			f.chat.EXPECT().PostMessage(gomock.Any(), gomock.Any()).Return(domain.WireMessage{}, tc.err)

			w := f.do(t, http.MethodPost, "/api/channels/c1/messages", map[string]any{"text": ""}, true)

			req.Equal(tc.status, w.Code)
			req.Equal(tc.message, decodeBody(t, w)["message"])
		})
	}
}

func TestRouter_DeleteMessage_Forbidden(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	f.chat.EXPECT().DeleteMessage(gomock.Any(), domain.DeleteMessageCommand{MessageID: "m1", RequesterID: "alice"}).
		Return(errors.ErrNotMessageOwner)

	w := f.do(t, http.MethodDelete, "/api/channels/c1/messages/m1", nil, true)

	req.Equal(http.StatusForbidden, w.Code)
	req.Equal("Not allowed", decodeBody(t, w)["message"])
}

func TestRouter_Health_And_Metrics(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)

	w := f.do(t, http.MethodGet, "/health", nil, false)
	req.Equal(http.StatusOK, w.Code)
	req.Equal("ok", decodeBody(t, w)["status"])

	w = f.do(t, http.MethodGet, "/metrics", nil, false)
	req.Equal(http.StatusOK, w.Code)
	req.Contains(w.Body.String(), "/health")
}
