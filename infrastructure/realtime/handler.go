// Package realtime serves the websocket event surface of the chat.
package realtime

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"team-chat/auth"
	"team-chat/contract"
	"team-chat/domain"
	"team-chat/infrastructure/rest"
	"team-chat/observability"
	"team-chat/services"
	"team-chat/sink"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Hub is the live state a session drives: presence, rooms and typing.
type Hub interface {
	Connect(ctx context.Context, connectionID domain.ConnectionID, identity domain.Identity, sink contract.EventSink) error
	Disconnect(connectionID domain.ConnectionID, identity domain.Identity)
	JoinRoom(ctx context.Context, connectionID domain.ConnectionID, channelID domain.ChannelID) error
	LeaveRoom(connectionID domain.ConnectionID, channelID domain.ChannelID) error
	Typing(ctx context.Context, connectionID domain.ConnectionID, identity domain.Identity, channelID domain.ChannelID, isTyping bool) error
}

type Options struct {
	BufferSize     int
	WriteWait      time.Duration
	PongWait       time.Duration
	PingPeriod     time.Duration
	MaxMessageSize int64
}

// DefaultOptions pings every 54s and drops a peer silent for 60s.
func DefaultOptions() Options {
	return Options{
		BufferSize:     256,
		WriteWait:      10 * time.Second,
		PongWait:       60 * time.Second,
		PingPeriod:     54 * time.Second,
		MaxMessageSize: 16 << 10,
	}
}

type Handler struct {
	log           *slog.Logger
	authenticator *auth.Authenticator
	hub           Hub
	chat          services.IChatService
	metrics       *observability.Metrics
	options       Options
	upgrader      websocket.Upgrader

	mu       sync.Mutex
	sessions map[*session]struct{}
}

func NewHandler(
	log *slog.Logger,
	authenticator *auth.Authenticator,
	hub Hub,
	chat services.IChatService,
	metrics *observability.Metrics,
	options Options,
) *Handler {
	return &Handler{
		log:           log,
		authenticator: authenticator,
		hub:           hub,
		chat:          chat,
		metrics:       metrics,
		options:       options,
		sessions:      make(map[*session]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// ServeHTTP authenticates the handshake, then owns the connection until it
// closes. A rejected credential never reaches the upgrade.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	identity, err := h.authenticator.Authenticate(auth.BearerToken(r))
	if err != nil {
		h.log.Debug("Websocket handshake rejected", "remote", r.RemoteAddr, "error", err)
		rest.WriteError(w, err)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("Websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	// A hijacked request's context no longer follows the connection
	ctx, cancel := context.WithCancel(context.WithoutCancel(r.Context()))
	defer cancel()

	s := &session{
		id:       domain.ConnectionID(uuid.NewString()),
		identity: identity,
		conn:     conn,
		sink:     sink.NewConnectionSink(h.options.BufferSize),
		handler:  h,
		log:      h.log.With("identity", identity),
	}
	h.track(s)
	defer h.untrack(s)
	s.serve(ctx)
}

// CloseAll asks every open session to close. Hijacked connections are not
// covered by http.Server.Shutdown.
func (h *Handler) CloseAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for s := range h.sessions {
		s.sink.Close()
	}
	h.log.Info("Closing websocket sessions", "count", len(h.sessions))
}

func (h *Handler) track(s *session) {
	h.mu.Lock()
	h.sessions[s] = struct{}{}
	h.mu.Unlock()
}

func (h *Handler) untrack(s *session) {
	h.mu.Lock()
	delete(h.sessions, s)
	h.mu.Unlock()
}
