// Package ports defines the core interfaces for the query pipeline.
// This file contains the collaborators the pipeline calls out to.
package ports

import (
	"context"
	"time"

	"github.com/tjfontaine/polyglot-query-gateway/internal/core/domain"
)

// Fetcher supplies fresh rows for one domain. Implementations must be safe
// to call concurrently for different domains.
type Fetcher interface {
	Fetch(ctx context.Context, tag domain.DomainTag) ([]domain.Record, error)
}

// FetcherFunc adapts a function to the Fetcher interface.
type FetcherFunc func(ctx context.Context, tag domain.DomainTag) ([]domain.Record, error)

// Fetch calls f.
func (f FetcherFunc) Fetch(ctx context.Context, tag domain.DomainTag) ([]domain.Record, error) {
	return f(ctx, tag)
}

// Generator is the opaque text-generation backend.
type Generator interface {
	// Generate turns a prompt into text. It must honor ctx cancellation.
	Generate(ctx context.Context, prompt string) (*domain.Generation, error)
}

// GeneratorFunc adapts a function to the Generator interface.
type GeneratorFunc func(ctx context.Context, prompt string) (*domain.Generation, error)

// Generate calls f.
func (f GeneratorFunc) Generate(ctx context.Context, prompt string) (*domain.Generation, error) {
	return f(ctx, prompt)
}

// Clock returns the current time. Injected wherever TTLs, windows or
// relative dates are evaluated.
type Clock func() time.Time
