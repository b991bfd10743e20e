package auth

import (
	"errors"
	"net/http/httptest"
	"testing"
)

func TestAuthenticator_ValidateAPIKey(t *testing.T) {
	a := NewAuthenticator([]APIKey{
		{KeyHash: HashAPIKey("sk-alice"), UserID: "alice", Description: "ops"},
		{KeyHash: "  " + HashAPIKey("sk-bob") + " ", UserID: "bob"},
		{KeyHash: HashAPIKey("sk-nobody")},
	})

	if a.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", a.Len())
	}

	id, err := a.ValidateAPIKey("sk-alice")
	if err != nil {
		t.Fatalf("ValidateAPIKey() error = %v", err)
	}
	if id.UserID != "alice" || id.Description != "ops" {
		t.Errorf("identity = %+v", id)
	}

	if id, err := a.ValidateAPIKey("sk-bob"); err != nil || id.UserID != "bob" {
		t.Errorf("ValidateAPIKey(bob) = %+v, %v", id, err)
	}

	for _, key := range []string{"sk-nobody", "wrong", ""} {
		if _, err := a.ValidateAPIKey(key); !errors.Is(err, ErrInvalidKey) {
			t.Errorf("ValidateAPIKey(%q) error = %v, want ErrInvalidKey", key, err)
		}
	}

	var nilAuth *Authenticator
	if _, err := nilAuth.ValidateAPIKey("sk-alice"); !errors.Is(err, ErrInvalidKey) {
		t.Errorf("nil authenticator error = %v", err)
	}
}

func TestExtractAPIKey(t *testing.T) {
	tests := []struct {
		header  string
		want    string
		wantErr bool
		missing bool
	}{
		{"Bearer sk-1", "sk-1", false, false},
		{"bearer sk-2", "sk-2", false, false},
		{"", "", true, true},
		{"sk-3", "", true, false},
		{"Basic abc", "", true, false},
		{"Bearer  ", "", true, false},
	}
	for _, tt := range tests {
		r := httptest.NewRequest("GET", "/", nil)
		if tt.header != "" {
			r.Header.Set("Authorization", tt.header)
		}
		got, err := ExtractAPIKey(r)
		if (err != nil) != tt.wantErr {
			t.Errorf("ExtractAPIKey(%q) error = %v, wantErr %v", tt.header, err, tt.wantErr)
			continue
		}
		if errors.Is(err, ErrMissingKey) != tt.missing {
			t.Errorf("ExtractAPIKey(%q) missing = %v, want %v", tt.header, errors.Is(err, ErrMissingKey), tt.missing)
		}
		if got != tt.want {
			t.Errorf("ExtractAPIKey(%q) = %q, want %q", tt.header, got, tt.want)
		}
	}
}

func TestHashAPIKey(t *testing.T) {
	// sha256("test")
	want := "9f86d081884c7d659a2feaa0c55ad015a3bf4f1b2b0b822cd15d6c15b0f00a08"
	if got := HashAPIKey("test"); got != want {
		t.Errorf("HashAPIKey() = %q, want %q", got, want)
	}
}
