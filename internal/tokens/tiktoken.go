package tokens

import (
	"fmt"
	"strings"
	"sync"

	"github.com/tiktoken-go/tokenizer"
)

// TiktokenCounter counts tokens for OpenAI-compatible models with tiktoken.
type TiktokenCounter struct {
	matcher *ModelMatcher
	// codecCache caches tokenizer codecs by encoding name
	codecCache map[tokenizer.Encoding]tokenizer.Codec
	cacheMu    sync.RWMutex
}

// NewTiktokenCounter creates a new tiktoken counter.
func NewTiktokenCounter() *TiktokenCounter {
	return &TiktokenCounter{
		matcher:    NewModelMatcher([]string{"gpt-", "o1", "o3", "o4"}, nil),
		codecCache: make(map[tokenizer.Encoding]tokenizer.Codec),
	}
}

func (c *TiktokenCounter) getCodec(model string) (tokenizer.Codec, error) {
	encoding := modelToEncoding(model)

	c.cacheMu.RLock()
	if cached, ok := c.codecCache[encoding]; ok {
		c.cacheMu.RUnlock()
		return cached, nil
	}
	c.cacheMu.RUnlock()

	codec, err := tokenizer.Get(encoding)
	if err != nil {
		return nil, fmt.Errorf("failed to get tokenizer encoding: %w", err)
	}

	c.cacheMu.Lock()
	c.codecCache[encoding] = codec
	c.cacheMu.Unlock()

	return codec, nil
}

// modelToEncoding maps model names to encodings.
//
// Encoding reference:
// - O200kBase: GPT-5, GPT-4.1, GPT-4o, O-series and unknown models
// - Cl100kBase: GPT-4, GPT-3.5-turbo
func modelToEncoding(model string) tokenizer.Encoding {
	model = strings.ToLower(model)

	switch {
	case strings.HasPrefix(model, "gpt-4o"), strings.HasPrefix(model, "gpt-4.1"), strings.HasPrefix(model, "gpt-5"):
		return tokenizer.O200kBase
	case strings.HasPrefix(model, "gpt-4"), strings.HasPrefix(model, "gpt-3.5"):
		return tokenizer.Cl100kBase
	default:
		return tokenizer.O200kBase
	}
}

// SupportsModel returns true for OpenAI models.
func (c *TiktokenCounter) SupportsModel(model string) bool {
	return c.matcher.Matches(model)
}

// CountText counts tokens for a plain text string.
func (c *TiktokenCounter) CountText(model, text string) (int, error) {
	codec, err := c.getCodec(model)
	if err != nil {
		return 0, err
	}
	ids, _, err := codec.Encode(text)
	if err != nil {
		return 0, err
	}
	return len(ids), nil
}
