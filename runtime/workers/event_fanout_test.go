package workers

import (
	"context"
	"log/slog"
	"team-chat/domain"
	"team-chat/domain/event"
	"team-chat/mocks"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestEventFanout_DeliversToEverySink(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	first := mocks.NewMockEventSink(ctrl)
	second := mocks.NewMockEventSink(ctrl)
	fanout := NewEventFanout(log, 10, time.Second).Add(first, second)

	evt := event.MessagePersisted{Message: domain.Message{ID: "m1"}}
	done := make(chan struct{})
	first.EXPECT().Consume(gomock.Any(), evt).Return(nil).Times(1)
	second.EXPECT().Consume(gomock.Any(), evt).DoAndReturn(
		func(ctx context.Context, e event.DomainEvent) error {
			close(done)
			return nil
		}).Times(1)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = fanout.Run(ctx) }()

	// When an event is published
	fanout.Publish(evt)

	// Then both sinks consumed it
	select {
	case <-done:
	case <-time.After(time.Second):
		req.Fail("Sinks did not consume the event in time")
	}
}

func TestEventFanout_SinkTimeout(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	slow := mocks.NewMockEventSink(ctrl)
	fast := mocks.NewMockEventSink(ctrl)
	fanout := NewEventFanout(log, 10, 20*time.Millisecond).Add(slow, fast)

	// Given a sink that only returns once its context expires
	slow.EXPECT().Consume(gomock.Any(), gomock.Any()).DoAndReturn(
		func(ctx context.Context, e event.DomainEvent) error {
			<-ctx.Done()
			return ctx.Err()
		}).Times(1)
	fast.EXPECT().Consume(gomock.Any(), gomock.Any()).Return(nil).Times(1)

	// When fanning out
	start := time.Now()
	fanout.Fanout(context.Background(), event.MessageDeleted{ID: "m1"})

	// Then the slow sink did not hold the next one for long
	req.Less(time.Since(start), 500*time.Millisecond)
}

func TestEventFanout_PublishNeverBlocks(t *testing.T) {
	req := require.New(t)
	fanout := NewEventFanout(slog.Default(), 1, time.Second)

	fanout.Publish(event.MessageDeleted{ID: "m1"})
	fanout.Publish(event.MessageDeleted{ID: "m2"})

	req.Len(fanout.events, 1)
}
