package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"myauth/internal/model"
	"myauth/internal/repository"
)

// Denial is a terminal authorization failure, ready to be written as an
// HTTP response.
type Denial struct {
	Status  int
	Message string
}

const (
	msgAuthRequired   = "authentication required"
	msgSessionInvalid = "invalid or expired session"
	msgInsufficient   = "insufficient permissions"
	msgServerError    = "server error"
)

type SessionResolver interface {
	ResolveSession(ctx context.Context, token string) (model.User, error)
}

// Gate decides a single request: token to principal, rank to allow/deny.
// It holds no state and re-queries storage on every call.
type Gate struct {
	sessions SessionResolver
}

func NewGate(sessions SessionResolver) *Gate {
	return &Gate{sessions: sessions}
}

// TokenFromRequest extracts the session token, preferring the bearer
// authorization header and falling back to the token query parameter.
func TokenFromRequest(r *http.Request) string {
	if token := bearerToken(r.Header.Get("Authorization")); token != "" {
		return token
	}
	return r.URL.Query().Get("token")
}

// Authorize resolves the request's token and checks the role requirement.
// On success the authenticated principal is returned; otherwise a Denial
// describing the failure.
func (g *Gate) Authorize(r *http.Request, required model.Role) (model.User, *Denial) {
	token := TokenFromRequest(r)
	if token == "" {
		return model.User{}, &Denial{Status: http.StatusUnauthorized, Message: msgAuthRequired}
	}

	user, err := g.sessions.ResolveSession(r.Context(), token)
	if err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			return model.User{}, &Denial{Status: http.StatusUnauthorized, Message: msgSessionInvalid}
		}
		return model.User{}, &Denial{Status: http.StatusInternalServerError, Message: msgServerError}
	}

	if !user.Role.AtLeast(required) {
		return model.User{}, &Denial{Status: http.StatusForbidden, Message: msgInsufficient}
	}

	return user, nil
}

func bearerToken(header string) string {
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
