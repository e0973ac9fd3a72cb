package llm

import (
	"context"
	"fmt"
	"os"
	"strings"
)

// Role tags one side of a conversation turn.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn handed to the reasoning backend.
type Message struct {
	Role    Role
	Content string
}

// Client is the reasoning backend used for diagnosis sessions.
type Client interface {
	Name() string
	Generate(ctx context.Context, messages []Message) (string, error)
	Close() error
}

// NewFromEnv selects a vendor via AI_VENDOR (openai by default) and builds
// the matching client. Unknown vendors are an error, not a silent fallback.
func NewFromEnv(ctx context.Context) (Client, error) {
	vendor := strings.ToLower(strings.TrimSpace(os.Getenv("AI_VENDOR")))
	if vendor == "" {
		vendor = "openai"
	}
	model := strings.TrimSpace(os.Getenv("LLM_MODEL"))
	switch vendor {
	case "openai":
		if model == "" {
			model = "gpt-4"
		}
		return NewOpenAIClient(os.Getenv("OPENAI_API_KEY"), model), nil
	case "gemini":
		if model == "" {
			model = "gemini-2.0-flash"
		}
		return NewGeminiClient(ctx, model)
	case "fake":
		return NewFakeClient(nil), nil
	default:
		return nil, fmt.Errorf("llm: unsupported AI_VENDOR %q", vendor)
	}
}
