package capability

import (
	"context"
	"errors"
	"strings"

	"jarvis-webhook/internal/domain"
)

// Chat answers free conversation in the assistant persona.
type Chat struct {
	llm    LLM
	model  string
	system string
	rt     Runtime
}

func NewChat(llm LLM, model, system string, rt Runtime) (*Chat, error) {
	if llm == nil {
		return nil, errors.New("capability: chat llm must not be nil")
	}
	if model == "" {
		return nil, errors.New("capability: chat model must not be empty")
	}
	return &Chat{llm: llm, model: model, system: system, rt: rt.WithDefaults()}, nil
}

// Reply generates the answer to utterance given the remembered turns, oldest
// first.
func (c *Chat) Reply(ctx context.Context, window []domain.ConversationTurn, utterance string) (string, error) {
	messages := make([]domain.ChatMessage, 0, len(window)+1)
	for _, t := range window {
		if strings.TrimSpace(t.Text) == "" {
			continue
		}
		messages = append(messages, t.ChatMessage())
	}
	messages = append(messages, domain.ChatMessage{Role: domain.ChatRoleUser, Content: utterance})

	out, err := c.rt.complete(ctx, c.llm, domain.Completion{
		Model:    c.model,
		System:   c.system,
		Messages: messages,
	}, "chat_completion")
	if err != nil {
		return "", err
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return "", domain.Malformed("chat_empty_answer", nil)
	}
	return out, nil
}
