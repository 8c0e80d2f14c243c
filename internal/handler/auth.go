package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/meliprint/meliprint/internal/entities"
	"github.com/meliprint/meliprint/internal/session"
	"github.com/meliprint/meliprint/pkg/utils"
)

// Refresh the access token when it has less than a minute left.
const tokenRefreshWindow = time.Minute

type AuthService interface {
	LoginURL() (authURL, codeVerifier string, err error)
	Callback(ctx context.Context, code, codeVerifier string) (entities.TokenResponse, entities.UserInfo, error)
	Refresh(ctx context.Context, refreshToken string) (entities.TokenResponse, error)
}

type AuthHandler struct {
	logger      *slog.Logger
	svc         AuthService
	sessions    *session.Manager
	frontendURL string
}

func NewAuthHandler(logger *slog.Logger, svc AuthService, sessions *session.Manager, frontendURL string) *AuthHandler {
	return &AuthHandler{
		logger:      logger.With(slog.String("handler", "auth")),
		svc:         svc,
		sessions:    sessions,
		frontendURL: frontendURL,
	}
}

func (h *AuthHandler) Init(r chi.Router) {
	r.Route("/api/auth", func(r chi.Router) {
		r.Use(httprate.LimitByIP(10, time.Minute))
		r.Get("/login", h.Login)
		r.Get("/callback", h.Callback)
		r.Get("/me", h.Me)
		r.Post("/logout", h.Logout)
	})
}

// Login generates the OAuth consent URL and parks the PKCE verifier in
// a fresh session until the callback arrives.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	authURL, verifier, err := h.svc.LoginURL()
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to build login url", slog.Any("error", err))
		utils.WriteError(w, "failed to generate auth URL", http.StatusInternalServerError)
		return
	}

	if _, err := h.sessions.Create(ctx, w, entities.Session{CodeVerifier: verifier}); err != nil {
		h.logger.ErrorContext(ctx, "failed to create session", slog.Any("error", err))
		utils.WriteError(w, "failed to start login", http.StatusInternalServerError)
		return
	}

	utils.WriteJSON(w, LoginResponse{AuthURL: authURL}, http.StatusOK)
}

func (h *AuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	code := r.URL.Query().Get("code")

	sess, ok := session.FromContext(ctx)
	if code == "" || !ok || sess.CodeVerifier == "" {
		http.Redirect(w, r, h.frontendURL+"/login?error=auth_failed", http.StatusFound)
		return
	}

	token, info, err := h.svc.Callback(ctx, code, sess.CodeVerifier)
	if err != nil {
		h.logger.ErrorContext(ctx, "code exchange failed", slog.Any("error", err))
		http.Redirect(w, r, h.frontendURL+"/login?error=auth_failed", http.StatusFound)
		return
	}

	sess.CodeVerifier = ""
	sess.AccessToken = token.AccessToken
	sess.RefreshToken = token.RefreshToken
	sess.UserID = info.ID
	sess.Nickname = info.Nickname
	sess.TokenExpiresAt = time.Now().Add(time.Duration(token.ExpiresIn) * time.Second)

	if err := h.sessions.Update(ctx, sess); err != nil {
		h.logger.ErrorContext(ctx, "failed to save session", slog.Any("error", err))
		http.Redirect(w, r, h.frontendURL+"/login?error=auth_failed", http.StatusFound)
		return
	}

	http.Redirect(w, r, h.frontendURL+"/dashboard", http.StatusFound)
}

// Me reports the logged-in seller and silently refreshes the access
// token when it is about to expire.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	sess, ok := session.FromContext(ctx)
	if !ok || !sess.Authenticated() {
		utils.WriteError(w, "not authenticated", http.StatusUnauthorized)
		return
	}

	if time.Now().After(sess.TokenExpiresAt.Add(-tokenRefreshWindow)) {
		token, err := h.svc.Refresh(ctx, sess.RefreshToken)
		if err != nil {
			h.logger.WarnContext(ctx, "token refresh failed", slog.Any("error", err))
			utils.WriteError(w, "session expired", http.StatusUnauthorized)
			return
		}

		sess.AccessToken = token.AccessToken
		sess.RefreshToken = token.RefreshToken
		sess.TokenExpiresAt = time.Now().Add(time.Duration(token.ExpiresIn) * time.Second)

		if err := h.sessions.Update(ctx, sess); err != nil {
			h.logger.ErrorContext(ctx, "failed to save session", slog.Any("error", err))
			utils.WriteError(w, "internal server error", http.StatusInternalServerError)
			return
		}
	}

	utils.WriteJSON(w, MeResponse{UserID: sess.UserID, Nickname: sess.Nickname}, http.StatusOK)
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.Destroy(r.Context(), w, r); err != nil {
		h.logger.ErrorContext(r.Context(), "failed to destroy session", slog.Any("error", err))
		utils.WriteError(w, "failed to logout", http.StatusInternalServerError)
		return
	}
	utils.WriteJSON(w, map[string]bool{"success": true}, http.StatusOK)
}
