package stt

import (
	"context"
	"log/slog"

	"github.com/pkg/errors"
	"github.com/sashabaranov/go-openai"

	"github.com/mrsingh-rishi/voice-relay/fallback"
	"github.com/mrsingh-rishi/voice-relay/logger"
)

// OpenAIRemote transcribes through the hosted audio transcription API.
type OpenAIRemote struct {
	client *openai.Client
	model  string
	logger *slog.Logger
}

// NewOpenAIRemote builds the remote strategy on an existing client.
func NewOpenAIRemote(client *openai.Client, model string, l *slog.Logger) *OpenAIRemote {
	if model == "" {
		model = openai.Whisper1
	}
	return &OpenAIRemote{
		client: client,
		model:  model,
		logger: logger.OrDiscard(l).With("component", "stt", "strategy", "openai"),
	}
}

// Name identifies the strategy in logs and metrics.
func (o *OpenAIRemote) Name() string { return "openai" }

// Strategy adapts the transcriber to a fallback chain entry.
func (o *OpenAIRemote) Strategy() fallback.Strategy[string, string] {
	return fallback.Strategy[string, string]{Name: o.Name(), Run: o.Transcribe}
}

// Transcribe uploads the WAV and returns the provider's text. An empty result
// is returned as-is since this is the last resort.
func (o *OpenAIRemote) Transcribe(ctx context.Context, wavPath string) (string, error) {
	resp, err := o.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    o.model,
		FilePath: wavPath,
	})
	if err != nil {
		return "", errors.Wrap(err, "openai transcription")
	}
	o.logger.Debug("remote transcript received", slog.Int("chars", len(resp.Text)))
	return resp.Text, nil
}
