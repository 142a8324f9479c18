package domain

import "time"

// Utterance is one inbound user message. It is created per request and never
// mutated.
type Utterance struct {
	UserID     string
	Text       string
	ReceivedAt time.Time
}

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

// ConversationTurn is a single persisted or remembered message of a dialogue.
type ConversationTurn struct {
	Role      Role      `json:"role"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// Same reports whether two turns describe the same message. Timestamps are
// compared with Equal so that values decoded from storage match in-memory ones.
func (t ConversationTurn) Same(o ConversationTurn) bool {
	return t.Role == o.Role && t.Text == o.Text && t.Timestamp.Equal(o.Timestamp)
}

// ChatMessage maps the turn onto the model message shape.
func (t ConversationTurn) ChatMessage() ChatMessage {
	role := ChatRoleUser
	if t.Role == RoleAssistant {
		role = ChatRoleAssistant
	}
	return ChatMessage{Role: role, Content: t.Text}
}
