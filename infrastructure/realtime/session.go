package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"runtime/debug"
	"team-chat/domain"
	"team-chat/domain/event"
	"team-chat/errors"
	"team-chat/infrastructure/rest"
	"team-chat/sink"
	"time"

	"github.com/gorilla/websocket"
)

// session is one authenticated websocket connection. Its identity is fixed
// for its whole lifetime. Inbound events are handled one at a time in
// arrival order by the read loop; outbound events go through the sink and
// the write pump.
type session struct {
	id       domain.ConnectionID
	identity domain.Identity
	conn     *websocket.Conn
	sink     *sink.ConnectionSink
	handler  *Handler
	log      *slog.Logger
}

func (s *session) serve(ctx context.Context) {
	s.log = s.log.With("connection", s.id)

	if err := s.handler.hub.Connect(ctx, s.id, s.identity, s.sink); err != nil {
		s.log.Warn("Connection registration failed", "error", err)
		_ = s.conn.Close()
		return
	}

	pumpDone := make(chan struct{})
	go func() {
		defer close(pumpDone)
		s.writePump()
	}()

	// Finalizer: runs whatever ended the read loop
	defer func() {
		s.handler.hub.Disconnect(s.id, s.identity)
		s.sink.Close()
		<-pumpDone
	}()

	s.readLoop(ctx)
}

func (s *session) readLoop(ctx context.Context) {
	opts := s.handler.options
	s.conn.SetReadLimit(opts.MaxMessageSize)
	_ = s.conn.SetReadDeadline(time.Now().Add(opts.PongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(opts.PongWait))
	})

	for {
		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				s.log.Warn("Websocket read error", "error", err)
			}
			return
		}

		name, err := s.dispatch(ctx, raw)
		outcome := "ok"
		if err != nil {
			outcome = "error"
			s.reject(ctx, name, err)
		}
		s.handler.metrics.RealtimeEvent(name, outcome)
	}
}

// writePump is the only writer of the connection.
func (s *session) writePump() {
	opts := s.handler.options
	ticker := time.NewTicker(opts.PingPeriod)
	defer func() {
		ticker.Stop()
		_ = s.conn.Close()
	}()

	for {
		select {
		case e := <-s.sink.Events():
			payload, err := event.Encode(e)
			if err != nil {
				s.log.Error("Event encoding failed", "event", e.Type(), "error", err)
				continue
			}
			_ = s.conn.SetWriteDeadline(time.Now().Add(opts.WriteWait))
			if err = s.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				s.log.Debug("Websocket write failed", "error", err)
				return
			}
		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(opts.WriteWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-s.sink.Done():
			_ = s.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(opts.WriteWait))
			return
		}
	}
}

// dispatch never lets a handler failure escape: panics come back as errors.
func (s *session) dispatch(ctx context.Context, raw []byte) (name event.Type, err error) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("Event handler panic", "event", name, "panic", r, "stack", string(debug.Stack()))
			err = fmt.Errorf("event handler panic: %v", r)
		}
	}()

	var envelope event.Envelope
	if err = json.Unmarshal(raw, &envelope); err != nil || envelope.Event == "" {
		return "invalid", errors.ErrInvalidPayload
	}
	name = envelope.Event

	switch name {
	case event.JoinChannelType:
		var payload event.JoinChannel
		if err = decodePayload(envelope.Data, &payload); err != nil {
			return name, err
		}
		return name, s.handler.hub.JoinRoom(ctx, s.id, domain.ChannelID(payload.ChannelID))

	case event.LeaveChannelType:
		var payload event.LeaveChannel
		if err = decodePayload(envelope.Data, &payload); err != nil {
			return name, err
		}
		return name, s.handler.hub.LeaveRoom(s.id, domain.ChannelID(payload.ChannelID))

	case event.TypingType:
		var payload event.Typing
		if err = decodePayload(envelope.Data, &payload); err != nil {
			return name, err
		}
		return name, s.handler.hub.Typing(ctx, s.id, s.identity, domain.ChannelID(payload.ChannelID), payload.IsTyping)

	case event.SendMessageType:
		var payload event.SendMessage
		if err = decodePayload(envelope.Data, &payload); err != nil {
			return name, err
		}
		if payload.ChannelID == "" {
			return name, errors.ErrInvalidPayload
		}
		_, err = s.handler.chat.PostMessage(ctx, domain.PostMessageCommand{
			ChannelID:   domain.ChannelID(payload.ChannelID),
			SenderID:    s.identity,
			Text:        payload.Text,
			Attachments: rest.ToAttachments(payload.Attachments),
		})
		return name, err

	case event.PingCheckType:
		data := envelope.Data
		if len(data) == 0 {
			data = json.RawMessage("null")
		}
		return name, s.sink.Consume(ctx, event.PongCheck{OK: true, Payload: data})

	default:
		return "unknown", fmt.Errorf("%w: unknown event %q", errors.ErrInvalidPayload, name)
	}
}

// reject reports a failed event to this connection only.
func (s *session) reject(ctx context.Context, name event.Type, err error) {
	s.log.Debug("Event rejected", "event", name, "error", err)
	if errors.Is(err, errors.ErrBroadcastDelivery) {
		return
	}
	if consumeErr := s.sink.Consume(ctx, event.Error{Message: errors.PublicMessage(err)}); consumeErr != nil {
		s.log.Debug("Error event dropped", "error", consumeErr)
	}
}

func decodePayload(data json.RawMessage, v any) error {
	if len(data) == 0 {
		return errors.ErrInvalidPayload
	}
	if err := json.Unmarshal(data, v); err != nil {
		return errors.ErrInvalidPayload
	}
	return nil
}
