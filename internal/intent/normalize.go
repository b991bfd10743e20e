// Package intent classifies free-text queries into a closed set of intents
// and extracts typed entities from them.
package intent

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Normalized is the matching form of a query: lower-cased, diacritic
// stripped, trimmed, with whitespace runs collapsed. It keeps a byte-level
// map back to the raw text so matched spans can be reported verbatim.
type Normalized struct {
	Text   string
	raw    []rune
	origin []int // byte offset in Text -> rune index in raw
}

// Normalize builds the matching form of raw.
func Normalize(raw string) Normalized {
	src := []rune(norm.NFC.String(raw))
	start, end := 0, len(src)
	for start < end && unicode.IsSpace(src[start]) {
		start++
	}
	for end > start && unicode.IsSpace(src[end-1]) {
		end--
	}

	// transform chains keep state, so each call builds its own
	strip := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

	var b strings.Builder
	origin := make([]int, 0, end-start)
	lastSpace := false
	for i := start; i < end; i++ {
		r := src[i]
		if unicode.IsSpace(r) {
			if lastSpace {
				continue
			}
			lastSpace = true
			b.WriteByte(' ')
			origin = append(origin, i)
			continue
		}
		lastSpace = false
		for _, fr := range foldRune(strip, r) {
			n, _ := b.WriteRune(fr)
			for k := 0; k < n; k++ {
				origin = append(origin, i)
			}
		}
	}

	return Normalized{Text: b.String(), raw: src, origin: origin}
}

// NormalizeText returns only the matching form of s. Used to compare record
// fields against extracted entity values.
func NormalizeText(s string) string {
	return Normalize(s).Text
}

// Span returns the raw text covered by the byte range [start, end) of Text.
func (n Normalized) Span(start, end int) string {
	if start < 0 || end > len(n.origin) || start >= end {
		return ""
	}
	return string(n.raw[n.origin[start] : n.origin[end-1]+1])
}

// Len is the rune length of the normalized text.
func (n Normalized) Len() int {
	return utf8.RuneCountInString(n.Text)
}

func foldRune(strip transform.Transformer, r rune) string {
	switch r {
	case 'đ', 'Đ':
		return "d"
	}
	lower := string(unicode.ToLower(r))
	if r < utf8.RuneSelf {
		return lower
	}
	out, _, err := transform.String(strip, lower)
	if err != nil {
		return lower
	}
	return out
}
