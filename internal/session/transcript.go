package session

// Role tags a transcript entry.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one transcript entry. Entries are never edited after
// insertion.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Transcript is the append-only conversation log of a diagnosis session.
// It is not safe for concurrent use on its own; the Manager serializes
// access.
type Transcript struct {
	messages []Message
}

func (t *Transcript) append(role Role, content string) {
	t.messages = append(t.messages, Message{Role: role, Content: content})
}

// Messages returns a copy of the transcript in conversation order.
func (t *Transcript) Messages() []Message {
	out := make([]Message, len(t.messages))
	copy(out, t.messages)
	return out
}

// Len reports the number of entries.
func (t *Transcript) Len() int {
	return len(t.messages)
}
