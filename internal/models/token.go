package models

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"time"
)

// RefreshToken is a long-lived credential stored hashed in the database and
// exchanged for fresh access tokens.
type RefreshToken struct {
	ID        string     `json:"id"`
	UserID    string     `json:"user_id"`
	TokenHash string     `json:"-"`
	ExpiresAt time.Time  `json:"expires_at"`
	CreatedAt time.Time  `json:"created_at"`
	Revoked   bool       `json:"revoked"`
	RevokedAt *time.Time `json:"revoked_at,omitempty"`
}

// NewRefreshToken creates a refresh token for the user. Returns the model and
// the plaintext token to hand to the client; only the hash is persisted.
func NewRefreshToken(userID string, ttl time.Duration) (*RefreshToken, string, error) {
	tokenBytes := make([]byte, 32)
	if _, err := rand.Read(tokenBytes); err != nil {
		return nil, "", err
	}

	plainToken := base64.RawURLEncoding.EncodeToString(tokenBytes)

	now := time.Now()
	return &RefreshToken{
		UserID:    userID,
		TokenHash: HashToken(plainToken),
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
	}, plainToken, nil
}

// HashToken creates a SHA-256 hash of a plaintext token for lookup.
func HashToken(plainToken string) string {
	hash := sha256.Sum256([]byte(plainToken))
	return base64.RawURLEncoding.EncodeToString(hash[:])
}

// IsExpired returns true if the token has expired.
func (t *RefreshToken) IsExpired() bool {
	return time.Now().After(t.ExpiresAt)
}

// IsValid returns true if the token is not revoked and not expired.
func (t *RefreshToken) IsValid() bool {
	return !t.Revoked && !t.IsExpired()
}
