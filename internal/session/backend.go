package session

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/google/uuid"

	"enveye/internal/llm"
)

// LLMBackend implements Backend on top of a reasoning model client. The
// gateway is its own session authority: it issues session ids and keeps
// the initial prompt per session so follow-up rounds can replay the whole
// conversation to the model.
type LLMBackend struct {
	cli      llm.Client
	feedback *FeedbackStore

	mu      sync.Mutex
	prompts map[string]string
}

func NewLLMBackend(cli llm.Client, feedback *FeedbackStore) *LLMBackend {
	return &LLMBackend{
		cli:      cli,
		feedback: feedback,
		prompts:  make(map[string]string),
	}
}

func (b *LLMBackend) StartDiagnosis(ctx context.Context, in StartInput) (StartResult, error) {
	prompt := llm.BuildInitialPrompt(llm.PromptInput{
		Records:        in.Records,
		ErrorMessage:   in.Evidence.ErrorMessage,
		ScreenshotText: in.Evidence.ScreenshotText,
		LogContent:     in.Evidence.LogContent,
	})
	response, err := b.cli.Generate(ctx, []llm.Message{
		{Role: llm.RoleSystem, Content: "You are a helpful assistant."},
		{Role: llm.RoleUser, Content: prompt},
	})
	if err != nil {
		return StartResult{}, fmt.Errorf("start diagnosis: %w", err)
	}

	id := uuid.NewString()
	b.mu.Lock()
	b.prompts[id] = prompt
	b.mu.Unlock()
	log.Printf("diagnosis session %s started via %s", id, b.cli.Name())
	return StartResult{SessionID: id, Response: response}, nil
}

func (b *LLMBackend) Followup(ctx context.Context, sessionID string, history []Message, text string) (string, error) {
	b.mu.Lock()
	prompt, ok := b.prompts[sessionID]
	b.mu.Unlock()
	if !ok {
		return "", fmt.Errorf("followup: unknown session %q", sessionID)
	}

	turns := make([]llm.Message, 0, len(history))
	for _, msg := range history {
		role := llm.RoleUser
		if msg.Role == RoleAssistant {
			role = llm.RoleAssistant
		}
		turns = append(turns, llm.Message{Role: role, Content: msg.Content})
	}
	response, err := b.cli.Generate(ctx, llm.CompileSession(prompt, turns, text))
	if err != nil {
		return "", fmt.Errorf("followup: %w", err)
	}
	return response, nil
}

func (b *LLMBackend) CloseSession(_ context.Context, sessionID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.prompts[sessionID]; !ok {
		return fmt.Errorf("close: unknown session %q", sessionID)
	}
	delete(b.prompts, sessionID)
	log.Printf("diagnosis session %s marked as resolved", sessionID)
	return nil
}

func (b *LLMBackend) FlagSession(_ context.Context, sessionID, reason string) error {
	if b.feedback == nil {
		log.Printf("diagnosis session %s flagged (no feedback store): %s", sessionID, reason)
		return nil
	}
	return b.feedback.Append(FeedbackEntry{SessionID: sessionID, Reason: reason})
}
