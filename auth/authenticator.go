package auth

import (
	"net/http"
	"strings"
	"team-chat/domain"
	"team-chat/errors"
)

// Authenticator turns a presented credential into an Identity.
// It runs once per connection, before any event handler.
type Authenticator struct {
	tokens *TokenManager
}

func NewAuthenticator(tokens *TokenManager) *Authenticator {
	return &Authenticator{tokens: tokens}
}

// Authenticate fails with ErrMissingCredential, ErrInvalidCredential or
// ErrMalformedCredential. All three are terminal for the attempt.
func (a *Authenticator) Authenticate(token string) (domain.Identity, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return "", errors.ErrMissingCredential
	}
	claims, err := a.tokens.Validate(token)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(claims.UserID) == "" {
		return "", errors.ErrMalformedCredential
	}
	return domain.Identity(claims.UserID), nil
}

// BearerToken reads the credential from the Authorization header, then from
// the "token" query parameter. Browsers cannot set headers on a websocket
// handshake, hence the fallback.
func BearerToken(r *http.Request) string {
	if header := r.Header.Get("Authorization"); header != "" {
		scheme, value, found := strings.Cut(header, " ")
		if found && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(value)
		}
	}
	return r.URL.Query().Get("token")
}
