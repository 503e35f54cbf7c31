package composer

import (
	"log/slog"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

var (
	encodingOnce sync.Once
	encoding     *tiktoken.Tiktoken
)

func loadEncoding() {
	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		slog.Warn("tiktoken encoding unavailable, using estimate fallback", "error", err)
		return
	}
	encoding = enc
}

// CountTokens counts tokens with cl100k_base, falling back to a
// runes/4 estimate when the encoding cannot be loaded.
func CountTokens(text string) int {
	if text == "" {
		return 0
	}
	encodingOnce.Do(loadEncoding)
	if encoding != nil {
		return len(encoding.Encode(text, nil, nil))
	}
	return estimateTokens(text)
}

// estimateTokens approximates ceil(chars/4), minimum 1 for non-empty
// text.
func estimateTokens(text string) int {
	if text == "" {
		return 0
	}
	n := (len([]rune(text)) + 3) / 4
	if n < 1 {
		n = 1
	}
	return n
}
