package sink

import (
	"context"
	"log/slog"
	"team-chat/domain"
	"team-chat/domain/event"
	"team-chat/errors"
	"team-chat/mocks"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestConnectionSink_Consume(t *testing.T) {
	ctx := context.Background()

	t.Run("should buffer events in order", func(t *testing.T) {
		req := require.New(t)
		s := NewConnectionSink(2)

		req.NoError(s.Consume(ctx, event.Error{Message: "first"}))
		req.NoError(s.Consume(ctx, event.Error{Message: "second"}))

		req.Equal(event.Error{Message: "first"}, <-s.Events())
		req.Equal(event.Error{Message: "second"}, <-s.Events())
	})

	t.Run("should drop without blocking when the buffer is full", func(t *testing.T) {
		req := require.New(t)
		s := NewConnectionSink(1)
		req.NoError(s.Consume(ctx, event.Error{Message: "first"}))

		err := s.Consume(ctx, event.Error{Message: "second"})

		req.ErrorIs(err, errors.ErrSlowConsumer)
		req.ErrorIs(err, errors.ErrBroadcastDelivery)
		req.Len(s.Events(), 1)
	})

	t.Run("should refuse events once closed", func(t *testing.T) {
		req := require.New(t)
		s := NewConnectionSink(4)
		s.Close()
		s.Close()

		err := s.Consume(ctx, event.Error{Message: "late"})

		req.ErrorIs(err, errors.ErrConnectionClosed)
		req.Len(s.Events(), 0)
	})
}

func TestSearchSink_Consume(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	index := mocks.NewMockIMessageIndex(ctrl)
	s := NewSearchSink(index, slog.Default())
	ctx := context.Background()

	t.Run("should index persisted messages", func(t *testing.T) {
		req := require.New(t)
		msg := domain.Message{ID: "m1", ChannelID: "c1", Text: "hello"}
		index.EXPECT().Index(msg).Return(nil).Times(1)

		req.NoError(s.Consume(ctx, event.MessagePersisted{Message: msg}))
	})

	t.Run("should remove deleted messages", func(t *testing.T) {
		req := require.New(t)
		index.EXPECT().Remove(domain.MessageID("m1")).Return(nil).Times(1)

		req.NoError(s.Consume(ctx, event.MessageDeleted{ID: "m1", ChannelID: "c1"}))
	})

	t.Run("should ignore other events", func(t *testing.T) {
		req := require.New(t)

		req.NoError(s.Consume(ctx, event.TypingUpdate{ChannelID: "c1"}))
	})
}
