// Package tokens counts tokens in prompt text for budget enforcement and
// usage reporting.
package tokens

import (
	"strings"
	"unicode/utf8"
)

// Counter counts tokens in plain text for a model.
type Counter interface {
	CountText(model, text string) (int, error)
	SupportsModel(model string) bool
}

// Registry picks the first registered counter that supports a model and
// falls back to the estimator.
type Registry struct {
	counters []Counter
	fallback *Estimator
}

// NewRegistry creates a registry with the tiktoken counter registered.
func NewRegistry() *Registry {
	r := &Registry{fallback: NewEstimator()}
	r.Register(NewTiktokenCounter())
	return r
}

// Register adds a counter. Earlier registrations win.
func (r *Registry) Register(c Counter) {
	r.counters = append(r.counters, c)
}

// Count returns the token count of text for model. Counting never fails:
// encoder errors fall back to the estimate.
func (r *Registry) Count(model, text string) int {
	if text == "" {
		return 0
	}
	for _, c := range r.counters {
		if !c.SupportsModel(model) {
			continue
		}
		if n, err := c.CountText(model, text); err == nil {
			return n
		}
		break
	}
	n, _ := r.fallback.CountText(model, text)
	return n
}

// Estimator approximates tokens from character counts.
type Estimator struct {
	// CharsPerToken is the average characters per token (default: 4)
	CharsPerToken float64
}

// NewEstimator creates a new token estimator.
func NewEstimator() *Estimator {
	return &Estimator{CharsPerToken: 4.0}
}

// CountText estimates tokens, rounding up so non-empty text is never zero.
func (e *Estimator) CountText(_ string, text string) (int, error) {
	chars := utf8.RuneCountInString(text)
	if chars == 0 {
		return 0, nil
	}
	n := int(float64(chars)/e.CharsPerToken + 0.999)
	return max(n, 1), nil
}

// SupportsModel returns true - the estimator is the fallback for every model.
func (e *Estimator) SupportsModel(string) bool {
	return true
}

// ModelMatcher helps match model names to provider patterns.
type ModelMatcher struct {
	prefixes []string
	exact    []string
}

// NewModelMatcher creates a new model matcher.
func NewModelMatcher(prefixes, exact []string) *ModelMatcher {
	return &ModelMatcher{prefixes: prefixes, exact: exact}
}

// Matches returns true if the model matches any pattern.
func (m *ModelMatcher) Matches(model string) bool {
	for _, e := range m.exact {
		if model == e {
			return true
		}
	}
	for _, p := range m.prefixes {
		if strings.HasPrefix(model, p) {
			return true
		}
	}
	return false
}
