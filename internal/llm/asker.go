package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	openai "github.com/sashabaranov/go-openai"

	"github.com/hyperifyio/goextract/internal/cache"
)

// ErrEmptyCompletion is returned when the model answers with no choices.
var ErrEmptyCompletion = errors.New("llm: empty completion")

// Completion is the text of a chat completion. It implements
// boundary.FieldReader: text is the assistant content, data the raw response.
type Completion struct {
	Model     string
	Content   string
	FromCache bool
	Raw       *openai.ChatCompletionResponse
}

// Field implements boundary.FieldReader.
func (c *Completion) Field(name string) (any, bool) {
	switch name {
	case "text":
		return c.Content, true
	case "data":
		if c.Raw == nil {
			return nil, false
		}
		return c.Raw, true
	case "model":
		return c.Model, true
	}
	return nil, false
}

// Asker sends single-turn prompts to a model.
type Asker struct {
	Client       Client
	Model        string
	SystemPrompt string
	Temperature  float32
	MaxTokens    int

	// ContextTokens overrides the context window guessed from Model.
	ContextTokens int
	// Cache stores completion content by model and prompt.
	Cache *cache.LLMCache
	// CacheOnly answers only from Cache.
	CacheOnly bool
}

// Ask returns the model's answer to prompt, consulting the cache first. One
// retry is made after a short pause on transport errors.
func (a *Asker) Ask(ctx context.Context, prompt string) (*Completion, error) {
	if strings.TrimSpace(a.Model) == "" {
		return nil, errors.New("llm: model is required")
	}
	key := cache.KeyFromParts(a.Model, a.SystemPrompt, prompt)
	if a.Cache != nil {
		if b, ok, err := a.Cache.Get(ctx, key); err == nil && ok {
			log.Debug().Str("model", a.Model).Str("cache", "hit").Msg("llm")
			return &Completion{Model: a.Model, Content: string(b), FromCache: true}, nil
		}
	}
	if a.CacheOnly {
		return nil, fmt.Errorf("llm: no cached completion for prompt (cache-only)")
	}
	if a.Client == nil {
		return nil, errors.New("llm: client not configured")
	}
	window := a.ContextTokens
	if window <= 0 {
		window = ContextTokens(a.Model)
	}
	if !fits(window, a.MaxTokens, a.SystemPrompt, prompt) {
		return nil, fmt.Errorf("%w: ~%d tokens, window %d", ErrPromptTooLarge, EstimateTokens(a.SystemPrompt)+EstimateTokens(prompt), window)
	}

	req := openai.ChatCompletionRequest{
		Model:       a.Model,
		Temperature: a.Temperature,
		MaxTokens:   a.MaxTokens,
		N:           1,
	}
	if a.SystemPrompt != "" {
		req.Messages = append(req.Messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: a.SystemPrompt})
	}
	req.Messages = append(req.Messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: prompt})

	resp, err := a.Client.CreateChatCompletion(ctx, req)
	if err != nil {
		log.Debug().Err(err).Msg("llm call failed; retrying once")
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(200 * time.Millisecond):
		}
		resp, err = a.Client.CreateChatCompletion(ctx, req)
		if err != nil {
			return nil, fmt.Errorf("chat completion: %w", err)
		}
	}
	if len(resp.Choices) == 0 {
		return nil, ErrEmptyCompletion
	}
	content := resp.Choices[0].Message.Content
	if a.Cache != nil {
		if err := a.Cache.Save(ctx, key, []byte(content)); err != nil {
			log.Warn().Err(err).Msg("llm cache save failed")
		}
	}
	return &Completion{Model: a.Model, Content: content, Raw: &resp}, nil
}

// Request adapts Ask to the boundary.Requester signature; target is the
// prompt.
func (a *Asker) Request(ctx context.Context, target string) (any, error) {
	return a.Ask(ctx, target)
}
