package domain

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestQueryError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *QueryError
		expected string
	}{
		{
			name:     "kind and message",
			err:      &QueryError{Kind: ErrorKindInvalidRequest, Message: "empty text"},
			expected: "invalid_request: empty text",
		},
		{
			name:     "with state",
			err:      (&QueryError{Kind: ErrorKindGeneration, Message: "backend down"}).WithState("Serialized"),
			expected: "generation: backend down (state Serialized)",
		},
		{
			name:     "with cause",
			err:      ErrFetch(DomainOrder, errors.New("connection refused")),
			expected: "fetch: fetch order: connection refused",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.expected {
				t.Errorf("Error() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestQueryError_HTTPStatusCode(t *testing.T) {
	tests := []struct {
		name     string
		err      *QueryError
		expected int
	}{
		{"invalid request", ErrInvalidRequest("x"), http.StatusBadRequest},
		{"rate limit", ErrRateLimited(3), http.StatusTooManyRequests},
		{"generation", ErrGeneration("x", nil), http.StatusBadGateway},
		{"generation timeout", ErrGenerationDeadline(nil), http.StatusGatewayTimeout},
		{"persistence", ErrPersistence("x", nil), http.StatusInternalServerError},
		{"unauthorized", NewQueryError(ErrorKindUnauthorized, "x", nil), http.StatusUnauthorized},
		{"forbidden", NewQueryError(ErrorKindForbidden, "x", nil), http.StatusForbidden},
		{"not found", NewQueryError(ErrorKindNotFound, "x", nil), http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.HTTPStatusCode(); got != tt.expected {
				t.Errorf("HTTPStatusCode() = %d, want %d", got, tt.expected)
			}
		})
	}
}

func TestQueryError_Is(t *testing.T) {
	timeout := ErrGenerationDeadline(context.DeadlineExceeded)
	wrapped := fmt.Errorf("process: %w", timeout)

	if !errors.Is(wrapped, ErrGenerationTimeout) {
		t.Error("expected wrapped timeout to match ErrGenerationTimeout")
	}
	if !errors.Is(wrapped, context.DeadlineExceeded) {
		t.Error("expected wrapped timeout to unwrap to context.DeadlineExceeded")
	}
	if errors.Is(ErrGeneration("boom", nil), ErrGenerationTimeout) {
		t.Error("plain generation error must not match ErrGenerationTimeout")
	}
}

func TestKindOf(t *testing.T) {
	if got := KindOf(fmt.Errorf("wrap: %w", ErrRateLimited(5))); got != ErrorKindRateLimit {
		t.Errorf("KindOf() = %q, want %q", got, ErrorKindRateLimit)
	}
	if got := KindOf(errors.New("plain")); got != "" {
		t.Errorf("KindOf(plain) = %q, want empty", got)
	}
}

func TestRateLimitedRetryAfter(t *testing.T) {
	err := ErrRateLimited(42)
	if err.RetryAfter != 42 {
		t.Errorf("RetryAfter = %d, want 42", err.RetryAfter)
	}
}

func TestParseDomainTag(t *testing.T) {
	tests := []struct {
		in   string
		want DomainTag
		ok   bool
	}{
		{"product", DomainProduct, true},
		{"priceList", DomainPriceList, true},
		{"all", DomainAll, true},
		{"invoices", "", false},
	}
	for _, tt := range tests {
		got, ok := ParseDomainTag(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("ParseDomainTag(%q) = (%q, %v), want (%q, %v)", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}
