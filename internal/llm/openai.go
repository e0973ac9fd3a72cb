package llm

import (
	"context"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIClient speaks the chat completions API.
type OpenAIClient struct {
	cli   *openai.Client
	model string
}

func NewOpenAIClient(apiKey, model string) *OpenAIClient {
	return &OpenAIClient{
		cli:   openai.NewClient(strings.TrimSpace(apiKey)),
		model: model,
	}
}

func (o *OpenAIClient) Name() string { return "OpenAI:" + o.model }
func (o *OpenAIClient) Close() error { return nil }

func (o *OpenAIClient) Generate(ctx context.Context, messages []Message) (string, error) {
	chat := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		chat = append(chat, openai.ChatCompletionMessage{
			Role:    string(m.Role),
			Content: m.Content,
		})
	}
	resp, err := o.cli.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    o.model,
		Messages: chat,
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
