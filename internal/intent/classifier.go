package intent

import (
	"math"
	"time"
	"unicode/utf8"

	"github.com/tjfontaine/polyglot-query-gateway/internal/core/domain"
	"github.com/tjfontaine/polyglot-query-gateway/internal/core/ports"
)

const (
	// DefaultConfidence is reported when no rule matches.
	DefaultConfidence = 0.3
	// MaxConfidence caps every rule score.
	MaxConfidence = 0.95
)

// Classifier scores a rule table against normalized text and merges in the
// domains implied by extracted entities. It holds no mutable state and is
// safe for concurrent use.
type Classifier struct {
	rules     []Rule
	extractor *Extractor
	now       ports.Clock
}

// Option configures a Classifier.
type Option func(*Classifier)

// WithClock injects the clock used to resolve relative dates.
func WithClock(now ports.Clock) Option {
	return func(c *Classifier) {
		c.now = now
	}
}

// WithRules replaces the intent rule table.
func WithRules(rules []Rule) Option {
	return func(c *Classifier) {
		c.rules = rules
	}
}

// WithEntityRules replaces the entity rule table.
func WithEntityRules(rules []EntityRule) Option {
	return func(c *Classifier) {
		c.extractor = NewExtractor(rules)
	}
}

// NewClassifier creates a classifier over the default rule tables.
func NewClassifier(opts ...Option) *Classifier {
	c := &Classifier{
		rules:     DefaultRules,
		extractor: NewExtractor(nil),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Classify returns the best-matching intent for raw, the entities found in
// it and the union of the domains both imply.
func (c *Classifier) Classify(raw string) *domain.IntentResult {
	q := Normalize(raw)

	result := &domain.IntentResult{
		PrimaryIntent: domain.IntentGeneral,
		Confidence:    DefaultConfidence,
	}

	total := q.Len()
	var best *Rule
	bestScore := 0.0
	for i := range c.rules {
		rule := &c.rules[i]
		match := rule.Pattern.FindString(q.Text)
		if match == "" {
			continue
		}
		score := Score(utf8.RuneCountInString(match), total)
		if best == nil || score > bestScore {
			best, bestScore = rule, score
		}
	}

	var domains []domain.DomainTag
	if best != nil {
		result.PrimaryIntent = best.Intent
		result.Confidence = bestScore
		domains = appendUnique(domains, best.Domains...)
	} else {
		domains = []domain.DomainTag{domain.DomainAll}
	}

	result.Entities = c.extractor.Extract(q, c.now())
	for _, e := range result.Entities {
		domains = appendUnique(domains, EntityDomains[e.Type]...)
	}

	if len(domains) == 0 {
		domains = []domain.DomainTag{domain.DomainAll}
	}
	result.Domains = domains
	return result
}

// Score is the confidence of a match covering matched of total runes.
func Score(matched, total int) float64 {
	if total == 0 {
		return 0
	}
	return math.Min(0.5+float64(matched)/float64(total)*0.5, MaxConfidence)
}

func appendUnique(dst []domain.DomainTag, tags ...domain.DomainTag) []domain.DomainTag {
	for _, t := range tags {
		dup := false
		for _, d := range dst {
			if d == t {
				dup = true
				break
			}
		}
		if !dup {
			dst = append(dst, t)
		}
	}
	return dst
}
