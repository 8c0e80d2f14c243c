package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"log/slog"

	"github.com/meliprint/meliprint/internal/entities"
)

type AuthGateway interface {
	AuthorizationURL(clientID, redirectURI, codeChallenge string) string
	ExchangeCode(ctx context.Context, code, clientID, clientSecret, redirectURI, codeVerifier string) (entities.TokenResponse, error)
	RefreshToken(ctx context.Context, refreshToken, clientID, clientSecret string) (entities.TokenResponse, error)
	UserInfo(ctx context.Context, token string) (entities.UserInfo, error)
}

type AuthConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
}

// AuthService drives the PKCE login flow against the marketplace.
type AuthService struct {
	logger *slog.Logger
	gw     AuthGateway
	cfg    AuthConfig
}

func NewAuthService(logger *slog.Logger, gw AuthGateway, cfg AuthConfig) *AuthService {
	return &AuthService{
		logger: logger.With(slog.String("service", "auth")),
		gw:     gw,
		cfg:    cfg,
	}
}

// LoginURL generates a fresh PKCE verifier and the matching consent
// URL. The verifier must be kept in the caller's session until the
// callback arrives.
func (s *AuthService) LoginURL() (authURL, codeVerifier string, err error) {
	verifier, err := generateCodeVerifier()
	if err != nil {
		return "", "", fmt.Errorf("failed to generate code verifier: %w", err)
	}
	challenge := codeChallenge(verifier)
	return s.gw.AuthorizationURL(s.cfg.ClientID, s.cfg.RedirectURI, challenge), verifier, nil
}

// Callback exchanges the single-use authorization code and resolves the
// seller identity behind the new token.
func (s *AuthService) Callback(ctx context.Context, code, codeVerifier string) (entities.TokenResponse, entities.UserInfo, error) {
	token, err := s.gw.ExchangeCode(ctx, code, s.cfg.ClientID, s.cfg.ClientSecret, s.cfg.RedirectURI, codeVerifier)
	if err != nil {
		return entities.TokenResponse{}, entities.UserInfo{}, err
	}

	info, err := s.gw.UserInfo(ctx, token.AccessToken)
	if err != nil {
		return entities.TokenResponse{}, entities.UserInfo{}, err
	}
	return token, info, nil
}

// Refresh trades the refresh token for a new pair. Failure means the
// session is beyond saving and the seller must log in again.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (entities.TokenResponse, error) {
	return s.gw.RefreshToken(ctx, refreshToken, s.cfg.ClientID, s.cfg.ClientSecret)
}

func generateCodeVerifier() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func codeChallenge(verifier string) string {
	sum := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}
