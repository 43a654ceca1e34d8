package auth

import (
	"context"
	"net/http"
	"team-chat/domain"
)

type contextKey string

const (
	UserIDKey contextKey = "user_id"
)

// ErrorWriter renders an authentication failure for the request surface.
type ErrorWriter func(w http.ResponseWriter, err error)

// Interceptor validates the bearer token of every request it wraps and
// injects the identity into the request context.
func Interceptor(authenticator *Authenticator, onError ErrorWriter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, err := authenticator.Authenticate(BearerToken(r))
			if err != nil {
				onError(w, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), identity)))
		})
	}
}

func WithIdentity(ctx context.Context, identity domain.Identity) context.Context {
	return context.WithValue(ctx, UserIDKey, identity)
}

// IdentityFrom returns the identity injected by Interceptor.
func IdentityFrom(ctx context.Context) (domain.Identity, bool) {
	identity, ok := ctx.Value(UserIDKey).(domain.Identity)
	return identity, ok && identity != ""
}
