package llm

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/sashabaranov/go-openai"

	"shop-assistant-go/internal/config"
)

type openAIClient struct {
	client *openai.Client
	cfg    config.LLMConfig
}

// NewOpenAIClient creates a client backed by go-openai. BaseURL allows OpenRouter-style gateways.
func NewOpenAIClient(cfg config.LLMConfig) Client {
	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}
	return &openAIClient{client: openai.NewClientWithConfig(oc), cfg: cfg}
}

func (c *openAIClient) chatRequest(req Request) openai.ChatCompletionRequest {
	model := req.Model
	if model == "" {
		model = c.cfg.Model
	}
	msgs := make([]openai.ChatCompletionMessage, 0, len(req.Messages)+1)
	if req.System != "" {
		msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: req.System})
	}
	for _, m := range req.Messages {
		msgs = append(msgs, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}
	return openai.ChatCompletionRequest{
		Model:       model,
		Messages:    msgs,
		Stream:      true,
		Temperature: float32(c.cfg.Generation.Temperature),
		TopP:        float32(c.cfg.Generation.TopP),
		MaxTokens:   c.cfg.Generation.MaxTokens,
	}
}

func (c *openAIClient) Stream(ctx context.Context, req Request, onChunk func(string) error) error {
	stream, err := c.client.CreateChatCompletionStream(ctx, c.chatRequest(req))
	if err != nil {
		return fmt.Errorf("failed to create chat completion stream: %w", err)
	}
	defer stream.Close()

	for {
		resp, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to receive chat completion: %w", err)
		}
		if len(resp.Choices) == 0 || resp.Choices[0].Delta.Content == "" {
			continue
		}
		if cbErr := onChunk(resp.Choices[0].Delta.Content); cbErr != nil {
			return cbErr
		}
	}
}
