// OpenAI chat-completion invoker. The target string is the model name, so a
// fallback chain like {"gpt-4o", "gpt-4o-mini"} degrades to a cheaper model
// when the preferred one is unavailable.
package openai

import (
	"context"
	"errors"

	"github.com/sashabaranov/go-openai"

	"github.com/unkn0wn-root/genguard/upstream"
)

var _ upstream.Invoker = (*Invoker)(nil)

var ErrEmptyCompletion = errors.New("genguard/upstream/openai: completion has no choices")

type Invoker struct {
	client *openai.Client
}

func New(apiKey string) *Invoker {
	return &Invoker{client: openai.NewClient(apiKey)}
}

// NewWithClient wraps a pre-configured client (custom base URL, Azure, proxies).
func NewWithClient(c *openai.Client) *Invoker {
	return &Invoker{client: c}
}

func (i *Invoker) Invoke(ctx context.Context, target string, req upstream.Request) (upstream.Response, error) {
	msgs := make([]openai.ChatCompletionMessage, 0, 2)
	if req.System != "" {
		msgs = append(msgs, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.System,
		})
	}
	msgs = append(msgs, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: req.Prompt,
	})

	ccr := openai.ChatCompletionRequest{
		Model:    target,
		Messages: msgs,
	}
	if req.Temperature > 0 {
		ccr.Temperature = req.Temperature
	}
	if req.MaxTokens > 0 {
		ccr.MaxCompletionTokens = req.MaxTokens
	}

	resp, err := i.client.CreateChatCompletion(ctx, ccr)
	if err != nil {
		return upstream.Response{}, err
	}
	if len(resp.Choices) == 0 {
		return upstream.Response{}, ErrEmptyCompletion
	}

	choice := resp.Choices[0]
	return upstream.Response{
		Text:         choice.Message.Content,
		Model:        resp.Model,
		FinishReason: string(choice.FinishReason),
	}, nil
}
