// Package llm implements the LLM Bridge external interface (spec.md §6):
// a single chat(prompt) -> text call used by the llm_row operator for
// per-row prompting. Grounded on smilemakc-mbflow's OpenAI completion
// node (_examples/smilemakc-mbflow/internal/application/executor/node_executors.go),
// which wraps github.com/sashabaranov/go-openai the same way.
package llm

import (
	"context"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// MinTimeout is the floor spec.md §5 requires for per-row LLM calls.
const MinTimeout = 60 * time.Second

// ChatClient issues one prompt -> completion call.
type ChatClient interface {
	Chat(ctx context.Context, prompt string) (string, error)
}

// Client wraps an OpenAI-compatible chat completion endpoint.
type Client struct {
	api     *openai.Client
	model   string
	timeout time.Duration
}

// New builds a Client. If baseURL is non-empty the client targets an
// OpenAI-compatible endpoint other than the default OpenAI API, the way
// self-hosted/proxy deployments are configured.
func New(apiKey, baseURL, model string, timeout time.Duration) *Client {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if timeout < MinTimeout {
		timeout = MinTimeout
	}
	return &Client{
		api:     openai.NewClientWithConfig(cfg),
		model:   model,
		timeout: timeout,
	}
}

// Chat sends prompt as a single user message and returns the first
// choice's content.
func (c *Client) Chat(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return "", fmt.Errorf("llm: chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("llm: chat completion returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}
