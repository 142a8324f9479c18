package domain

import "encoding/json"

// ChatMessage is the provider-agnostic chat message shape used by the
// capabilities and LLM integrations.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

const (
	ChatRoleSystem    = "system"
	ChatRoleUser      = "user"
	ChatRoleAssistant = "assistant"
)

// JSONSchema asks the model for a strict structured answer.
type JSONSchema struct {
	Name   string
	Schema json.RawMessage
}

// Completion is a single request to the language model: a system prompt
// followed by the conversation messages.
type Completion struct {
	Model    string
	System   string
	Messages []ChatMessage
	Schema   *JSONSchema
}
