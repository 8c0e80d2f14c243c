package session

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/meliprint/meliprint/internal/entities"
)

type sessionKey struct{}

// NewContext attaches a session to the context. Outside of Middleware
// it is mostly useful in handler tests.
func NewContext(ctx context.Context, sess entities.Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, sess)
}

// FromContext returns the session attached by Middleware.
func FromContext(ctx context.Context) (entities.Session, bool) {
	sess, ok := ctx.Value(sessionKey{}).(entities.Session)
	return sess, ok
}

// Middleware attaches the request's session to the context when the
// cookie resolves. Requests without a valid session pass through;
// handlers decide whether auth is required.
func (m *Manager) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, err := m.Load(r.Context(), r)
		if err == nil {
			r = r.WithContext(NewContext(r.Context(), sess))
		} else if !errors.Is(err, entities.ErrSessionNotFound) {
			m.logger.WarnContext(r.Context(), "failed to load session", slog.Any("error", err))
		}
		next.ServeHTTP(w, r)
	})
}
