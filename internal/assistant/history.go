package assistant

import (
	"shop-assistant-go/internal/model"
	"shop-assistant-go/pkg/llm"
)

// History is the working conversation of one request. It is never shared between
// sessions and is discarded when the request ends.
type History struct {
	msgs []llm.Message
}

// Append adds a turn.
func (h *History) Append(role, content string) {
	h.msgs = append(h.msgs, llm.Message{Role: role, Content: content})
}

// Messages returns a copy of the turns.
func (h *History) Messages() []llm.Message {
	out := make([]llm.Message, len(h.msgs))
	copy(out, h.msgs)
	return out
}

// Clone returns an independent copy.
func (h *History) Clone() *History {
	return &History{msgs: h.Messages()}
}

func (h *History) Len() int { return len(h.msgs) }

// HistoryFromMessages rebuilds the working history from persisted messages. Data-query
// assistant turns are replayed as their explanation only.
func HistoryFromMessages(messages []model.ChatMessage) *History {
	h := &History{msgs: make([]llm.Message, 0, len(messages))}
	for _, m := range messages {
		content := m.Content
		if m.Role == model.RoleAssistant && m.IsDatabaseQuery {
			if explanation, ok := explanationOf(m.Content); ok {
				content = explanation
			}
		}
		h.Append(m.Role, content)
	}
	return h
}
