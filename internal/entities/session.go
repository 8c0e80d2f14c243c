package entities

import (
	"encoding/json"
	"time"
)

// Session carries the per-seller auth state between requests. Stored
// serialized, so new fields must keep their json tags stable.
type Session struct {
	ID             string    `json:"id"`
	CodeVerifier   string    `json:"code_verifier,omitempty"`
	AccessToken    string    `json:"access_token,omitempty"`
	RefreshToken   string    `json:"refresh_token,omitempty"`
	UserID         int64     `json:"user_id,omitempty"`
	Nickname       string    `json:"nickname,omitempty"`
	TokenExpiresAt time.Time `json:"token_expires_at,omitempty"`
}

func (s *Session) Authenticated() bool {
	return s.AccessToken != "" && s.UserID != 0
}

func (s *Session) Marshal() ([]byte, error) {
	return json.Marshal(s)
}

func (s *Session) Unmarshal(data []byte) error {
	return json.Unmarshal(data, s)
}
