package reporter

import (
	"context"
	"fmt"
	"strings"
	"time"

	"social-tracker/internal/domain"
	openai "social-tracker/internal/infra/openai"
)

type chatClient interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// OpenAI пишет текст отчёта через Chat Completions.
type OpenAI struct {
	client  chatClient
	model   string
	timeout time.Duration
}

var _ domain.ReportGenerator = (*OpenAI)(nil)

// NewOpenAI создаёт генератор отчётов.
func NewOpenAI(client chatClient, model string, timeout time.Duration) *OpenAI {
	if model == "" {
		model = "gpt-4.1-mini"
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &OpenAI{client: client, model: model, timeout: timeout}
}

const systemPrompt = "You are a social media analyst for a pet food company. " +
	"Write a concise monthly performance report from the data you are given. " +
	"Use only the numbers provided and do not invent figures."

// Generate превращает сводку в отчёт.
func (g *OpenAI) Generate(ctx context.Context, summary string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	req := openai.ChatCompletionRequest{
		Model:       g.model,
		Temperature: 0.3,
		MaxTokens:   1200,
		Messages: []openai.ChatMessage{
			{Role: openai.RoleSystem, Content: systemPrompt},
			{Role: openai.RoleUser, Content: fmt.Sprintf("Data for the report:\n%s\nStructure: highlights, what worked, what to improve, recommendations for next month.", summary)},
		},
	}
	resp, err := g.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("openai completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai completion: пустой ответ")
	}
	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return "", fmt.Errorf("openai completion: пустой текст")
	}
	return content, nil
}
