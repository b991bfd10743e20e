// Package auth maps API keys to user identities.
package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"net/http"
	"strings"
)

var (
	// ErrMissingKey is returned when the request carries no credentials.
	ErrMissingKey = errors.New("missing Authorization header")
	// ErrInvalidKey is returned for credentials that do not map to a user.
	ErrInvalidKey = errors.New("invalid API key")
)

// APIKey binds a stored key hash to a user.
type APIKey struct {
	KeyHash     string `yaml:"key_hash" koanf:"key_hash"`
	UserID      string `yaml:"user_id" koanf:"user_id"`
	Description string `yaml:"description" koanf:"description"`
}

// Identity is the authenticated caller.
type Identity struct {
	UserID      string
	Description string
}

// Authenticator validates API keys and extracts the caller identity
type Authenticator struct {
	keys map[string]APIKey // keyhash -> key
}

// NewAuthenticator creates an authenticator. Entries without a hash or
// user id are ignored.
func NewAuthenticator(keys []APIKey) *Authenticator {
	a := &Authenticator{keys: make(map[string]APIKey, len(keys))}
	for _, k := range keys {
		hash := strings.ToLower(strings.TrimSpace(k.KeyHash))
		if hash == "" || k.UserID == "" {
			continue
		}
		k.KeyHash = hash
		a.keys[hash] = k
	}
	return a
}

// Len returns the number of usable keys.
func (a *Authenticator) Len() int {
	if a == nil {
		return 0
	}
	return len(a.keys)
}

// ValidateAPIKey validates an API key and returns the associated identity
func (a *Authenticator) ValidateAPIKey(apiKey string) (*Identity, error) {
	if a == nil || apiKey == "" {
		return nil, ErrInvalidKey
	}
	keyHash := HashAPIKey(apiKey)

	k, ok := a.keys[keyHash]
	if !ok {
		return nil, ErrInvalidKey
	}
	// Constant-time comparison to prevent timing attacks
	if subtle.ConstantTimeCompare([]byte(keyHash), []byte(k.KeyHash)) != 1 {
		return nil, ErrInvalidKey
	}
	return &Identity{UserID: k.UserID, Description: k.Description}, nil
}

// ExtractAPIKey extracts the API key from the Authorization header.
// ErrMissingKey means the request is anonymous.
func ExtractAPIKey(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", ErrMissingKey
	}

	// Support "Bearer <key>" format
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 {
		return "", errors.New("invalid Authorization header format")
	}

	if !strings.EqualFold(parts[0], "bearer") {
		return "", errors.New("unsupported authorization scheme")
	}

	key := strings.TrimSpace(parts[1])
	if key == "" {
		return "", errors.New("empty API key")
	}
	return key, nil
}

// HashAPIKey creates a SHA-256 hash of an API key for storage
func HashAPIKey(apiKey string) string {
	hash := sha256.Sum256([]byte(apiKey))
	return hex.EncodeToString(hash[:])
}
