// Package tokenizer estimates token usage for understanding requests when
// the backend does not report it.
package tokenizer

import (
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// Tokenizer counts tokens for understanding requests.
type Tokenizer interface {
	// CountTokens counts tokens in a text string for a given model.
	CountTokens(text string, model string) (int, error)

	// CountPrompt estimates prompt tokens for one image plus an instruction.
	CountPrompt(instruction string, width, height int, model string) int

	// CountCompletion estimates tokens in generated text.
	CountCompletion(text string, model string) int
}

// Encoding names used by tiktoken.
const (
	EncodingCL100kBase = "cl100k_base"
	EncodingO200kBase  = "o200k_base"
)

// modelEncoding pairs a prefix with its encoding.
type modelEncoding struct {
	prefix   string
	encoding string
}

// Longer prefixes first to avoid partial matches.
var modelEncodings = []modelEncoding{
	{"gpt-4o", EncodingO200kBase},
	{"gpt-4", EncodingCL100kBase},
	{"qwen", EncodingCL100kBase},
	{"o1", EncodingO200kBase},
}

// TiktokenTokenizer implements Tokenizer using tiktoken-go. When an
// encoding cannot be loaded it falls back to four characters per token.
type TiktokenTokenizer struct {
	mu        sync.RWMutex
	encodings map[string]*tiktoken.Tiktoken
}

// New creates a new TiktokenTokenizer.
func New() *TiktokenTokenizer {
	return &TiktokenTokenizer{
		encodings: make(map[string]*tiktoken.Tiktoken),
	}
}

// getEncoding returns the tiktoken encoding for a model, with caching.
func (t *TiktokenTokenizer) getEncoding(model string) (*tiktoken.Tiktoken, error) {
	encodingName := t.resolveEncoding(model)

	t.mu.RLock()
	enc, ok := t.encodings[encodingName]
	t.mu.RUnlock()
	if ok {
		return enc, nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	// Double-check after acquiring write lock
	if enc, ok = t.encodings[encodingName]; ok {
		return enc, nil
	}

	enc, err := tiktoken.GetEncoding(encodingName)
	if err != nil {
		return nil, err
	}
	t.encodings[encodingName] = enc
	return enc, nil
}

// resolveEncoding determines the encoding name for a model.
func (t *TiktokenTokenizer) resolveEncoding(model string) string {
	modelLower := strings.ToLower(model)

	for _, me := range modelEncodings {
		if strings.HasPrefix(modelLower, me.prefix) {
			return me.encoding
		}
	}

	return EncodingCL100kBase
}

// CountTokens counts tokens in a text string for a given model.
func (t *TiktokenTokenizer) CountTokens(text string, model string) (int, error) {
	enc, err := t.getEncoding(model)
	if err != nil {
		return 0, err
	}
	tokens := enc.Encode(text, nil, nil)
	return len(tokens), nil
}

// CountCompletion estimates tokens in text, never failing.
func (t *TiktokenTokenizer) CountCompletion(text string, model string) int {
	n, err := t.CountTokens(text, model)
	if err != nil {
		return approximate(text)
	}
	return n
}

func approximate(text string) int {
	return (len(text) + 3) / 4
}
