package webchat

import (
	"context"

	"github.com/pkg/errors"
	openai "github.com/sashabaranov/go-openai"
)

// Completer sends an accumulated history plus the system prompt to the
// model and returns the generated text. Single round trip, no retry.
type Completer interface {
	Complete(ctx context.Context, systemPrompt string, turns []Turn) (string, error)
}

// OpenAICompleterOptions configures the chat-completions client.
type OpenAICompleterOptions struct {
	APIKey    string
	BaseURL   string
	Model     string
	MaxTokens int
}

// OpenAICompleter talks to an OpenAI-compatible chat completions endpoint.
type OpenAICompleter struct {
	client    *openai.Client
	model     string
	maxTokens int
}

var _ Completer = &OpenAICompleter{}

func NewOpenAICompleter(opts OpenAICompleterOptions) (*OpenAICompleter, error) {
	if opts.APIKey == "" {
		return nil, errors.New("completion: api key is required")
	}
	cfg := openai.DefaultConfig(opts.APIKey)
	if opts.BaseURL != "" {
		cfg.BaseURL = opts.BaseURL
	}
	model := opts.Model
	if model == "" {
		model = openai.GPT4oMini
	}
	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 1024
	}
	return &OpenAICompleter{
		client:    openai.NewClientWithConfig(cfg),
		model:     model,
		maxTokens: maxTokens,
	}, nil
}

func (c *OpenAICompleter) Complete(ctx context.Context, systemPrompt string, turns []Turn) (string, error) {
	if c == nil || c.client == nil {
		return "", errors.New("completion: client is nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	messages := make([]openai.ChatCompletionMessage, 0, len(turns)+1)
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleSystem,
		Content: systemPrompt,
	})
	for _, t := range turns {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    string(t.Role),
			Content: t.Content,
		})
	}

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     c.model,
		MaxTokens: c.maxTokens,
		Messages:  messages,
	})
	if err != nil {
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) && apiErr.Message != "" {
			return "", errors.New(apiErr.Message)
		}
		return "", errors.Wrap(err, "completion request failed")
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("completion: empty response")
	}
	return resp.Choices[0].Message.Content, nil
}
