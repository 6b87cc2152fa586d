package tts

import (
	"context"
	"log/slog"
	"strings"

	"github.com/pkg/errors"
	"github.com/sashabaranov/go-openai"

	"github.com/mrsingh-rishi/voice-relay/logger"
	"github.com/mrsingh-rishi/voice-relay/model"
)

// OpenAISynthesizer uses the OpenAI speech endpoint.
type OpenAISynthesizer struct {
	client *openai.Client
	model  openai.SpeechModel
	voice  openai.SpeechVoice
	logger *slog.Logger
}

// NewOpenAISynthesizer builds a synthesizer, defaulting to gpt-4o-mini-tts
// with the alloy voice.
func NewOpenAISynthesizer(client *openai.Client, model, voice string, l *slog.Logger) *OpenAISynthesizer {
	if model == "" {
		model = "gpt-4o-mini-tts"
	}
	if voice == "" {
		voice = string(openai.VoiceAlloy)
	}
	return &OpenAISynthesizer{
		client: client,
		model:  openai.SpeechModel(model),
		voice:  openai.SpeechVoice(voice),
		logger: logger.OrDiscard(l).With("component", "tts", "provider", "openai"),
	}
}

// Synthesize writes the spoken text as mp3 into outputDir.
func (s *OpenAISynthesizer) Synthesize(ctx context.Context, text, outputDir, baseName string) (*model.SynthesizedAudio, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyText
	}

	resp, err := s.client.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          s.model,
		Input:          text,
		Voice:          s.voice,
		ResponseFormat: openai.SpeechResponseFormatMp3,
	})
	if err != nil {
		return nil, errors.Wrap(err, "openai speech")
	}
	defer resp.Close()

	return writeAudio(s.logger, outputDir, baseName, resp)
}
