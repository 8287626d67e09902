package provider

import (
	"sync"

	"github.com/tiktoken-go/tokenizer"
)

var (
	encodingOnce sync.Once
	encoding     tokenizer.Codec
)

// EstimateTokens approximates the prompt token count for request
// logging and oversize warnings. Falls back to the ~4 chars/token rule
// when the encoding is unavailable for this build.
func EstimateTokens(text string) int {
	encodingOnce.Do(func() {
		if codec, err := tokenizer.Get(tokenizer.Cl100kBase); err == nil {
			encoding = codec
		}
	})
	if encoding != nil {
		if count, err := encoding.Count(text); err == nil {
			return count
		}
	}
	return len(text) / 4
}
