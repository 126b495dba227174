package llm

import (
	"errors"
	"math"
	"strings"
)

// ErrPromptTooLarge is returned when a prompt cannot fit the model context
// together with the reserved output tokens.
var ErrPromptTooLarge = errors.New("llm: prompt exceeds model context")

// defaultContextTokens is assumed for models without a known window.
const defaultContextTokens = 8192

// EstimateTokens approximates the token count of s at about four bytes per
// token, rounding up.
func EstimateTokens(s string) int {
	if len(s) == 0 {
		return 0
	}
	return int(math.Ceil(float64(len(s)) / 4.0))
}

// ContextTokens returns the approximate context window of model.
func ContextTokens(model string) int {
	name := strings.ToLower(strings.TrimSpace(model))
	if v, ok := knownContext[name]; ok {
		return v
	}
	for _, s := range contextSuffixes {
		if strings.HasSuffix(name, s.suffix) {
			return s.tokens
		}
	}
	if strings.Contains(name, "-mini") {
		return 128_000
	}
	return defaultContextTokens
}

// headroom is subtracted from the window to absorb tokenizer and message
// framing overhead: 5% of the window, at least 512 tokens.
func headroom(window int) int {
	return max(512, int(math.Ceil(float64(window)*0.05)))
}

// fits reports whether system and prompt leave room for reserved output
// tokens in a window of the given size.
func fits(window, reserved int, system, prompt string) bool {
	used := EstimateTokens(system) + EstimateTokens(prompt) + max(0, reserved) + headroom(window)
	return used <= window
}

var knownContext = map[string]int{
	"gpt-4o":             128_000,
	"gpt-4o-mini":        128_000,
	"gpt-4-turbo":        128_000,
	"gpt-3.5-turbo":      16_384,
	"llama-3":            8_192,
	"llama-3.1":          128_000,
	"gpt-oss-20b":        4_096,
	"openai/gpt-oss-20b": 4_096,
}

var contextSuffixes = []struct {
	suffix string
	tokens int
}{
	{"1m", 1_000_000},
	{"512k", 512_000},
	{"200k", 200_000},
	{"128k", 128_000},
	{"32k", 32_768},
}
