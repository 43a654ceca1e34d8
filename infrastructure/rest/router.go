package rest

import (
	"log/slog"
	"net/http"
	"team-chat/auth"
	"team-chat/observability"

	"github.com/gorilla/mux"
)

// NewRouter mounts the request surface. Every channel and message route
// requires a bearer token, signup, login, health and metrics do not.
// realtime is mounted on /ws and authenticates the handshake itself.
func NewRouter(
	log *slog.Logger,
	handler *Handler,
	authenticator *auth.Authenticator,
	metrics *observability.Metrics,
	realtime http.Handler,
) *mux.Router {
	r := mux.NewRouter()
	r.Use(Metrics(metrics), Recover(log))

	r.HandleFunc("/health", handler.Health).Methods(http.MethodGet)
	if metrics != nil {
		r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)
	}
	if realtime != nil {
		r.Handle("/ws", realtime).Methods(http.MethodGet)
	}

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/auth/signup", handler.Signup).Methods(http.MethodPost)
	api.HandleFunc("/auth/login", handler.Login).Methods(http.MethodPost)

	secured := api.NewRoute().Subrouter()
	secured.Use(auth.Interceptor(authenticator, WriteError))
	secured.HandleFunc("/auth/me", handler.Me).Methods(http.MethodGet)
	secured.HandleFunc("/channels", handler.ListChannels).Methods(http.MethodGet)
	secured.HandleFunc("/channels", handler.CreateChannel).Methods(http.MethodPost)
	secured.HandleFunc("/channels/{id}", handler.GetChannel).Methods(http.MethodGet)
	secured.HandleFunc("/channels/{id}/join", handler.JoinChannel).Methods(http.MethodPost)
	secured.HandleFunc("/channels/{id}/leave", handler.LeaveChannel).Methods(http.MethodPost)
	secured.HandleFunc("/channels/{id}/messages/search", handler.SearchMessages).Methods(http.MethodGet)
	secured.HandleFunc("/channels/{id}/messages", handler.GetMessages).Methods(http.MethodGet)
	secured.HandleFunc("/channels/{id}/messages", handler.PostMessage).Methods(http.MethodPost)
	secured.HandleFunc("/channels/{id}/messages/{messageId}", handler.DeleteMessage).Methods(http.MethodDelete)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusNotFound, messageResponse{Message: "Not found"})
	})
	return r
}
