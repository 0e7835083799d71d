package llm

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"shop-assistant-go/internal/config"
)

type geminiClient struct {
	client *genai.Client
	cfg    config.LLMConfig
}

// NewGeminiClient creates a Gemini client using the Google GenAI SDK.
func NewGeminiClient(ctx context.Context, cfg config.LLMConfig) (Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	return &geminiClient{client: client, cfg: cfg}, nil
}

// geminiContents maps the conversation onto Gemini roles. Gemini calls its own turns
// "model" and takes system text separately, so system messages are folded into it.
func geminiContents(messages []Message, system string) ([]*genai.Content, *genai.Content) {
	contents := make([]*genai.Content, 0, len(messages))
	sys := system
	for _, m := range messages {
		switch m.Role {
		case RoleSystem:
			if sys != "" {
				sys += "\n\n"
			}
			sys += m.Content
		case RoleAssistant:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleModel))
		default:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleUser))
		}
	}
	var sysContent *genai.Content
	if sys != "" {
		sysContent = genai.NewContentFromText(sys, genai.RoleUser)
	}
	return contents, sysContent
}

func (g *geminiClient) generationConfig(system *genai.Content) *genai.GenerateContentConfig {
	gc := &genai.GenerateContentConfig{SystemInstruction: system}
	if g.cfg.Generation.Temperature != 0 {
		t := float32(g.cfg.Generation.Temperature)
		gc.Temperature = &t
	}
	if g.cfg.Generation.TopP != 0 {
		p := float32(g.cfg.Generation.TopP)
		gc.TopP = &p
	}
	if g.cfg.Generation.MaxTokens != 0 {
		gc.MaxOutputTokens = int32(g.cfg.Generation.MaxTokens)
	}
	return gc
}

// Stream calls GenerateContentStream and forwards the text of every candidate part.
func (g *geminiClient) Stream(ctx context.Context, req Request, onChunk func(string) error) error {
	model := req.Model
	if model == "" {
		model = g.cfg.Model
	}
	contents, system := geminiContents(req.Messages, req.System)

	for resp, err := range g.client.Models.GenerateContentStream(ctx, model, contents, g.generationConfig(system)) {
		if err != nil {
			return fmt.Errorf("gemini stream failed: %w", err)
		}
		if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
			continue
		}
		for _, part := range resp.Candidates[0].Content.Parts {
			if part == nil || part.Text == "" || part.Thought {
				continue
			}
			if cbErr := onChunk(part.Text); cbErr != nil {
				return cbErr
			}
		}
	}
	return ctx.Err()
}
