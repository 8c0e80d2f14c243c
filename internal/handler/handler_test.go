package handler_test

import (
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/meliprint/meliprint/internal/entities"
	"github.com/meliprint/meliprint/internal/session"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func authedSession() entities.Session {
	return entities.Session{
		ID:             "sid-1",
		AccessToken:    "tok",
		RefreshToken:   "ref",
		UserID:         42,
		Nickname:       "SELLER",
		TokenExpiresAt: time.Now().Add(time.Hour),
	}
}

func withSession(r *http.Request, sess entities.Session) *http.Request {
	return r.WithContext(session.NewContext(r.Context(), sess))
}
