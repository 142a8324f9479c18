// Package translate turns Korean utterances into English through an
// OpenAI-compatible chat endpoint, which may be a self-hosted model.
package translate

import (
	"context"
	"errors"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

const DefaultModel = "gpt-4o-mini"

type Client struct {
	client *openai.Client
	model  string
	system string
}

// New builds a translator. An empty baseURL targets the public OpenAI API.
func New(token, baseURL, model, system string) (*Client, error) {
	if strings.TrimSpace(token) == "" {
		return nil, errors.New("translate: token must not be empty")
	}
	if strings.TrimSpace(system) == "" {
		return nil, errors.New("translate: system prompt must not be empty")
	}
	cfg := openai.DefaultConfig(token)
	if s := strings.TrimRight(strings.TrimSpace(baseURL), "/"); s != "" {
		cfg.BaseURL = s
	}
	if model == "" {
		model = DefaultModel
	}
	return &Client{client: openai.NewClientWithConfig(cfg), model: model, system: system}, nil
}

// Translate returns the English rendering of text.
func (c *Client) Translate(ctx context.Context, text string) (string, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Temperature: 0,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: c.system},
			{Role: openai.ChatMessageRoleUser, Content: text},
		},
	})
	if err != nil {
		return "", fmt.Errorf("translate: completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("translate: no choices")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
