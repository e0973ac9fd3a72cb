package llm

import (
	"fmt"
	"strings"

	"enveye/internal/diff"
)

const systemPrompt = "You are a highly skilled IT troubleshooting assistant helping diagnose configuration issues across systems."

// PromptInput is the evidence-augmented seed of a diagnosis session.
type PromptInput struct {
	Records        []diff.Record
	ErrorMessage   string
	ScreenshotText string
	LogContent     string
}

// BuildInitialPrompt renders the diagnosis seed prompt. Absent evidence
// sections are rendered as "None" so the model does not invent content for
// them.
func BuildInitialPrompt(in PromptInput) string {
	var b strings.Builder
	b.WriteString("You are an expert in diagnosing system and application configuration issues.\n\n")
	b.WriteString("Analyze the following:\n")
	b.WriteString("- Differences between the two environment snapshots:\n")
	if len(in.Records) == 0 {
		b.WriteString("None\n")
	} else {
		for _, rec := range in.Records {
			fmt.Fprintf(&b, "  [%s] %s: %s -> %s\n", rec.Kind, rec.Path, rec.OldValue, rec.NewValue)
		}
	}
	fmt.Fprintf(&b, "- Error message (if any): %s\n", orNone(in.ErrorMessage))
	fmt.Fprintf(&b, "- OCR from screenshot (if any): %s\n", orNone(in.ScreenshotText))
	fmt.Fprintf(&b, "- Relevant logs (if any): %s\n", orNone(in.LogContent))
	b.WriteString("\nPlease summarize what might have gone wrong, and guide what else should be collected if not enough information is available.\n")
	return b.String()
}

// CompileSession builds the full conversation for a follow-up round: the
// system prompt, the initial diagnosis prompt, and every exchanged turn in
// order, ending with the new user text.
func CompileSession(initialPrompt string, history []Message, followup string) []Message {
	messages := make([]Message, 0, len(history)+3)
	messages = append(messages,
		Message{Role: RoleSystem, Content: systemPrompt},
		Message{Role: RoleUser, Content: initialPrompt},
	)
	messages = append(messages, history...)
	messages = append(messages, Message{Role: RoleUser, Content: followup})
	return messages
}

func orNone(s string) string {
	if strings.TrimSpace(s) == "" {
		return "None"
	}
	return s
}
