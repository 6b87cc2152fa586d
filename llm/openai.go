// Package llm generates reply text with a chat completion model.
package llm

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sashabaranov/go-openai"

	"github.com/mrsingh-rishi/voice-relay/logger"
)

// DefaultModel is the chat model used when none is configured.
const DefaultModel = "gpt-4.1-nano"

// ErrEmptyReply is returned when the model answered with no text.
var ErrEmptyReply = errors.New("model returned an empty reply")

// OpenAIGenerator sends one composed prompt per call. It keeps no history and
// makes a single attempt.
type OpenAIGenerator struct {
	client             *openai.Client
	model              string
	systemInstructions string
	logger             *slog.Logger
}

// NewOpenAIGenerator builds a generator. systemInstructions is optional and
// is sent ahead of the prompt when set.
func NewOpenAIGenerator(client *openai.Client, model, systemInstructions string, l *slog.Logger) *OpenAIGenerator {
	if model == "" {
		model = DefaultModel
	}
	return &OpenAIGenerator{
		client:             client,
		model:              model,
		systemInstructions: systemInstructions,
		logger:             logger.OrDiscard(l).With("component", "llm", "model", model),
	}
}

// Generate returns the model's reply to prompt. Any upstream failure or a
// blank reply is an error; callers substitute their own fallback text.
func (g *OpenAIGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	start := time.Now()

	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    g.model,
		Messages: g.messages(prompt),
	})
	if err != nil {
		return "", errors.Wrap(err, "chat completion")
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyReply
	}

	reply := strings.TrimSpace(resp.Choices[0].Message.Content)
	if reply == "" {
		return "", ErrEmptyReply
	}

	g.logger.Debug("reply generated",
		slog.Int("chars", len(reply)),
		slog.Int("total_tokens", resp.Usage.TotalTokens),
		slog.Duration("took", time.Since(start)),
	)
	return reply, nil
}

func (g *OpenAIGenerator) messages(prompt string) []openai.ChatCompletionMessage {
	msgs := make([]openai.ChatCompletionMessage, 0, 2)
	if g.systemInstructions != "" {
		msgs = append(msgs, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: g.systemInstructions,
		})
	}
	return append(msgs, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: prompt,
	})
}
