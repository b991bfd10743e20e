package intent

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/tjfontaine/polyglot-query-gateway/internal/core/domain"
)

// EntityRule extracts one entity type. Resolve receives the submatches of
// one hit and returns the normalized value, or false to discard the hit.
// Group selects which submatch forms the reported raw span.
type EntityRule struct {
	Type       domain.EntityType
	Pattern    *regexp.Regexp
	Group      int
	Confidence float64
	Resolve    func(m []string, now time.Time) (string, bool)
}

const isoDate = "2006-01-02"

func codeRule(t domain.EntityType, prefix string) EntityRule {
	return EntityRule{
		Type:       t,
		Pattern:    regexp.MustCompile(`\b` + prefix + `[-_ ]?(\d{2,})\b`),
		Confidence: 0.95,
		Resolve: func(m []string, _ time.Time) (string, bool) {
			return strings.ToUpper(prefix) + m[1], true
		},
	}
}

// DefaultEntityRules is the built-in extraction table, evaluated in order.
var DefaultEntityRules = []EntityRule{
	codeRule(domain.EntityProductCode, "sp"),
	codeRule(domain.EntityCustomerCode, "kh"),
	codeRule(domain.EntityOrderCode, "dh"),
	codeRule(domain.EntitySupplierCode, "ncc"),
	{
		Type:       domain.EntityDate,
		Pattern:    regexp.MustCompile(`\b(` + alternation(keys(relativeDays)) + `)\b`),
		Confidence: 0.9,
		Resolve: func(m []string, now time.Time) (string, bool) {
			return now.AddDate(0, 0, relativeDays[m[1]]).Format(isoDate), true
		},
	},
	{
		Type:       domain.EntityDate,
		Pattern:    regexp.MustCompile(`\b(\d{1,2})[/-](\d{1,2})(?:[/-](\d{4}))?\b`),
		Confidence: 0.85,
		Resolve:    resolveCalendarDate,
	},
	{
		Type:       domain.EntityDateRange,
		Pattern:    regexp.MustCompile(`\b(` + alternation(relativeRanges) + `)\b`),
		Confidence: 0.85,
		Resolve:    resolveRange,
	},
	{
		Type:       domain.EntityPrice,
		Pattern:    regexp.MustCompile(`\b(\d+(?:[.,]\d+)*)\s*(trieu|tr|nghin|ngan|k|dong|vnd|d)\b`),
		Confidence: 0.85,
		Resolve:    resolvePrice,
	},
	{
		Type:       domain.EntityQuantity,
		Pattern:    regexp.MustCompile(`\b(\d+(?:[.,]\d+)?)\s*(kg|tan|ta|yen|bo|cai|thung|hop|goi|chai|lit|bao|trai)\b`),
		Confidence: 0.8,
		Resolve: func(m []string, _ time.Time) (string, bool) {
			return strings.ReplaceAll(m[1], ",", ".") + " " + m[2], true
		},
	},
	{
		Type:       domain.EntityStatus,
		Pattern:    regexp.MustCompile(`\b(` + alternation(keys(StatusPhrases)) + `)\b`),
		Confidence: 0.9,
		Resolve: func(m []string, _ time.Time) (string, bool) {
			code, ok := StatusPhrases[m[1]]
			return code, ok
		},
	},
	{
		Type:       domain.EntityProductName,
		Pattern:    regexp.MustCompile(`\b(?:san pham|mat hang)\s+([a-z]+(?:\s+[a-z]+){0,2})`),
		Group:      1,
		Confidence: 0.75,
		Resolve:    resolveName,
	},
	{
		Type:       domain.EntityProductName,
		Pattern:    regexp.MustCompile(`\b((?:` + strings.Join(productHeads, "|") + `)\s+[a-z]+(?:\s+[a-z]+)?)\b`),
		Group:      1,
		Confidence: 0.7,
		Resolve:    resolveProduceName,
	},
	{
		Type:       domain.EntityCustomerName,
		Pattern:    regexp.MustCompile(`\b(?:khach hang|khach|cong ty|cty|chi|anh)\s+(?:ten\s+)?([a-z]+(?:\s+[a-z]+){0,2})`),
		Group:      1,
		Confidence: 0.6,
		Resolve:    resolveName,
	},
}

// Extractor runs an ordered entity rule table over normalized text.
type Extractor struct {
	rules []EntityRule
}

// NewExtractor creates an extractor over rules (DefaultEntityRules if nil).
func NewExtractor(rules []EntityRule) *Extractor {
	if rules == nil {
		rules = DefaultEntityRules
	}
	return &Extractor{rules: rules}
}

// Extract returns every entity found in q, in rule order then position
// order. Duplicate (type, value) pairs are dropped.
func (e *Extractor) Extract(q Normalized, now time.Time) []domain.Entity {
	var out []domain.Entity
	seen := make(map[string]bool)
	for _, rule := range e.rules {
		for _, idx := range rule.Pattern.FindAllStringSubmatchIndex(q.Text, -1) {
			m := submatches(q.Text, idx)
			value, ok := rule.Resolve(m, now)
			if !ok || value == "" {
				continue
			}
			key := string(rule.Type) + "\x00" + value
			if seen[key] {
				continue
			}
			seen[key] = true

			start, end := idx[2*rule.Group], idx[2*rule.Group+1]
			if rule.Type == domain.EntityProductName || rule.Type == domain.EntityCustomerName {
				// the span shrinks when trailing stopwords were trimmed
				end = start + len(value)
			}
			out = append(out, domain.Entity{
				Type:       rule.Type,
				Value:      value,
				RawSpan:    q.Span(start, end),
				Confidence: rule.Confidence,
			})
		}
	}
	return out
}

func submatches(text string, idx []int) []string {
	m := make([]string, len(idx)/2)
	for i := range m {
		if idx[2*i] >= 0 {
			m[i] = text[idx[2*i]:idx[2*i+1]]
		}
	}
	return m
}

func resolveCalendarDate(m []string, now time.Time) (string, bool) {
	day, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])
	year := now.Year()
	if m[3] != "" {
		year, _ = strconv.Atoi(m[3])
	}
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return "", false
	}
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, now.Location())
	if t.Day() != day {
		// rolled over, e.g. 31/02
		return "", false
	}
	return t.Format(isoDate), true
}

func resolveRange(m []string, now time.Time) (string, bool) {
	y, mo, d := now.Date()
	today := time.Date(y, mo, d, 0, 0, 0, 0, now.Location())

	var from, to time.Time
	switch m[1] {
	case "tuan nay", "tuan truoc":
		offset := (int(today.Weekday()) + 6) % 7 // days since Monday
		from = today.AddDate(0, 0, -offset)
		if m[1] == "tuan truoc" {
			from = from.AddDate(0, 0, -7)
		}
		to = from.AddDate(0, 0, 6)
	case "thang nay", "thang truoc":
		from = time.Date(y, mo, 1, 0, 0, 0, 0, now.Location())
		if m[1] == "thang truoc" {
			from = from.AddDate(0, -1, 0)
		}
		to = from.AddDate(0, 1, -1)
	case "nam nay":
		from = time.Date(y, time.January, 1, 0, 0, 0, 0, now.Location())
		to = time.Date(y, time.December, 31, 0, 0, 0, 0, now.Location())
	default:
		return "", false
	}
	return from.Format(isoDate) + "/" + to.Format(isoDate), true
}

func resolvePrice(m []string, _ time.Time) (string, bool) {
	number, unit := m[1], m[2]

	var multiplier float64
	switch unit {
	case "trieu", "tr":
		multiplier = 1_000_000
	case "nghin", "ngan", "k":
		multiplier = 1_000
	default:
		// "50.000 dong": separators group thousands
		multiplier = 1
		number = strings.NewReplacer(".", "", ",", "").Replace(number)
	}

	v, err := strconv.ParseFloat(strings.ReplaceAll(number, ",", "."), 64)
	if err != nil {
		return "", false
	}
	return fmt.Sprintf("%d", int64(v*multiplier+0.5)), true
}

// resolveProduceName needs a head word plus at least one qualifier.
func resolveProduceName(m []string, now time.Time) (string, bool) {
	v, ok := resolveName(m, now)
	if !ok || !strings.Contains(v, " ") {
		return "", false
	}
	return v, true
}

// resolveName keeps the leading words of a captured name up to the first
// stopword. A name starting with a stopword is discarded.
func resolveName(m []string, _ time.Time) (string, bool) {
	parts := strings.Fields(m[len(m)-1])
	var kept []string
	for i, p := range parts {
		if nameStopwords[p] {
			break
		}
		if i == 0 && len(p) < 2 {
			break
		}
		kept = append(kept, p)
	}
	if len(kept) == 0 {
		return "", false
	}
	return strings.Join(kept, " "), true
}
