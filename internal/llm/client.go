// Package llm wraps the external chat-completion API behind a narrow
// interface so the consultation service can be tested without network access.
// One attempt per request, no retries: a failed call surfaces as an error and
// the caller decides what the visitor sees.
package llm

import (
	"context"
	"errors"

	openai "github.com/sashabaranov/go-openai"

	"github.com/englishschool-ru/go-school-backend/internal/config"
)

// Message roles accepted by the completion API.
const (
	RoleSystem    = openai.ChatMessageRoleSystem
	RoleUser      = openai.ChatMessageRoleUser
	RoleAssistant = openai.ChatMessageRoleAssistant
)

// ErrEmptyCompletion is returned when the API answers without any choices.
var ErrEmptyCompletion = errors.New("completion returned no choices")

// Message is one role-tagged entry in the prompt sent to the model.
type Message struct {
	Role    string
	Content string
}

// Completer produces a single text completion for a role-tagged message list.
//
// Implementations must honor the provided context for cancellation and
// timeouts and must be safe for concurrent use.
type Completer interface {
	Complete(ctx context.Context, messages []Message) (string, error)
}

// Client is the production Completer backed by the OpenAI-compatible API.
// Temperature and the output-token ceiling are fixed per deployment.
type Client struct {
	api         *openai.Client
	model       string
	temperature float32
	maxTokens   int
}

// NewClient builds a Client from configuration. The caller is expected to
// check for a missing credential beforehand; an empty key here produces a
// client whose calls fail with the API's auth error.
func NewClient(cfg config.OpenAIConfig) *Client {
	cc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		cc.BaseURL = cfg.BaseURL
	}
	return &Client{
		api:         openai.NewClientWithConfig(cc),
		model:       cfg.Model,
		temperature: float32(cfg.Temperature),
		maxTokens:   cfg.MaxTokens,
	}
}

// Complete implements Completer with a single chat-completion call.
func (c *Client) Complete(ctx context.Context, messages []Message) (string, error) {
	req := openai.ChatCompletionRequest{
		Model:       c.model,
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
		Messages:    make([]openai.ChatCompletionMessage, 0, len(messages)),
	}
	for _, m := range messages {
		req.Messages = append(req.Messages, openai.ChatCompletionMessage{
			Role:    m.Role,
			Content: m.Content,
		})
	}

	resp, err := c.api.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyCompletion
	}
	return resp.Choices[0].Message.Content, nil
}
