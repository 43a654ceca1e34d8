package internal

import (
	"fmt"
	"log/slog"
	"net/http"
	"team-chat/auth"
	"team-chat/infrastructure/realtime"
	"team-chat/infrastructure/rest"
	"team-chat/moderation"
	"team-chat/observability"
	"team-chat/repositories"
	"team-chat/runtime"
	"team-chat/runtime/workers"
	"team-chat/search"
	"team-chat/services"
	"team-chat/sink"

	"github.com/blugelabs/bluge"
	"github.com/dgraph-io/badger/v4"
)

// Application is the fully wired chat server, storage excepted: the caller
// opens Badger and Bluge and closes them after Stop.
type Application struct {
	Orchestrator *runtime.Orchestrator
	Router       http.Handler
	Realtime     *realtime.Handler
	Metrics      *observability.Metrics
	Tokens       *auth.TokenManager
}

func NewApplication(config Config, log *slog.Logger, db *badger.DB, writer *bluge.Writer) (*Application, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config error: %w", err)
	}
	censorChar, _ := CharacterRune(config.CharReplacement)

	// Storage
	messageRepository := repositories.NewMessageRepository(db, log)
	channelRepository := repositories.NewChannelRepository(db)
	userRepository := repositories.NewUserRepository(db)
	index := search.NewMessageIndex(writer, log)

	// Moderation
	censored, err := moderation.NewCensoredLoader(moderation.CensoredFS).LoadAll(moderation.CensoredDir)
	if err != nil {
		return nil, fmt.Errorf("censored words loading failed: %w", err)
	}
	moderator, err := moderation.NewModerator(censored.Words, censorChar, log)
	if err != nil {
		return nil, fmt.Errorf("moderator setup failed: %w", err)
	}
	log.Info("Moderation ready", "words", len(censored.Words), "languages", censored.Languages)

	// Live state
	metrics := observability.NewMetrics()
	presence := runtime.NewPresenceRegistry(log)
	rooms := runtime.NewRoomRegistry(log, metrics)
	fanout := workers.NewEventFanout(log, config.BufferSize, config.SinkTimeout).
		Add(sink.NewSearchSink(index, log))
	orchestrator := runtime.NewOrchestrator(
		log, presence, rooms, channelRepository,
		workers.NewSupervisor(log, workers.WithRestartHook(metrics.WorkerRestarted)), fanout,
		observability.NewMonitoringManager(log), metrics,
		config.MetricInterval,
	)

	// Services
	tokens := auth.NewTokenManager(config.JWTSecret, config.AuthTokenDuration)
	authenticator := auth.NewAuthenticator(tokens)
	chatService := services.NewChatService(log,
		messageRepository, channelRepository, userRepository,
		moderator, rooms, fanout, index, metrics)
	channelService := services.NewChannelService(log, channelRepository, userRepository)
	authService := services.NewAuthService(userRepository, tokens)

	// Transports
	ws := realtime.NewHandler(log, authenticator, orchestrator, chatService, metrics, realtime.Options{
		BufferSize:     config.ConnectionBufferSize,
		WriteWait:      config.WriteWait,
		PongWait:       config.PongWait,
		PingPeriod:     config.PingPeriod,
		MaxMessageSize: config.MaxMessageSize,
	})
	handler := rest.NewHandler(log, authService, channelService, chatService, orchestrator.Health)
	router := rest.NewRouter(log, handler, authenticator, metrics, ws)
	if config.DebugInspect {
		router.Handle("/debug/inspect", InspectHandler(db, DefaultMapper)).Methods(http.MethodGet)
	}

	return &Application{
		Orchestrator: orchestrator,
		Router:       router,
		Realtime:     ws,
		Metrics:      metrics,
		Tokens:       tokens,
	}, nil
}
