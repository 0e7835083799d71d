// Package llm provides streaming clients for the completion models used by the assistant.
package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"shop-assistant-go/internal/config"
	"shop-assistant-go/pkg/log"
	"shop-assistant-go/pkg/metrics"
)

// Roles accepted in a Message. Providers translate RoleAssistant to their own token.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// Message is one role/content turn of a conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request describes a single completion call.
type Request struct {
	Messages []Message
	// System is sent as the provider's system instruction when non-empty.
	System string
	// Model overrides the configured default model.
	Model string
	// Purpose labels the call in logs and metrics (classify, generate_sql, ...).
	Purpose string
}

// Client streams text fragments for a request. Each fragment is passed to onChunk
// as soon as it arrives; a non-nil error from onChunk stops the stream and is returned.
type Client interface {
	Stream(ctx context.Context, req Request, onChunk func(string) error) error
}

// NewClient creates a client for the provider named in the config.
func NewClient(ctx context.Context, cfg config.LLMConfig) (Client, error) {
	switch strings.ToLower(cfg.Provider) {
	case "", "gemini":
		return NewGeminiClient(ctx, cfg)
	case "openai":
		return NewOpenAIClient(cfg), nil
	case "deepseek":
		return NewDeepseekClient(cfg), nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
}

// Collect runs the request and returns all fragments concatenated.
func Collect(ctx context.Context, c Client, req Request) (string, error) {
	var sb strings.Builder
	err := c.Stream(ctx, req, func(chunk string) error {
		sb.WriteString(chunk)
		return nil
	})
	if err != nil {
		return sb.String(), err
	}
	return sb.String(), nil
}

type instrumented struct {
	next Client
}

// NewInstrumented wraps c with per-call metrics and a log line.
func NewInstrumented(c Client) Client {
	return &instrumented{next: c}
}

func (i *instrumented) Stream(ctx context.Context, req Request, onChunk func(string) error) error {
	start := time.Now()
	chunks := 0
	err := i.next.Stream(ctx, req, func(s string) error {
		chunks++
		return onChunk(s)
	})
	elapsed := time.Since(start)
	metrics.ObserveLLMCall(req.Purpose, err, elapsed)
	if err != nil {
		log.Warnw("llm call failed", "purpose", req.Purpose, "model", req.Model, "latency", elapsed.String(), "error", err)
		return err
	}
	log.Debugw("llm call finished", "purpose", req.Purpose, "model", req.Model, "chunks", chunks, "latency", elapsed.String())
	return nil
}
