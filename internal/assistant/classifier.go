package assistant

import (
	"context"
	"strings"

	"shop-assistant-go/pkg/llm"
	"shop-assistant-go/pkg/log"
)

const positiveClassToken = "evet"

// Classifier decides whether a prompt needs a database lookup.
type Classifier struct {
	client llm.Client
	model  string
}

func NewClassifier(client llm.Client, model string) *Classifier {
	return &Classifier{client: client, model: model}
}

// NeedsData never fails: anything but a clear positive answer, including a
// transport error, counts as conversational.
func (c *Classifier) NeedsData(ctx context.Context, prompt string) bool {
	resp, err := llm.Collect(ctx, c.client, llm.Request{
		Messages: []llm.Message{{Role: llm.RoleUser, Content: classificationPrompt(prompt)}},
		Model:    c.model,
		Purpose:  PurposeClassify,
	})
	if err != nil {
		log.Warnw("intent classification failed, treating as conversation", "error", err)
		return false
	}
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(resp)), positiveClassToken)
}
