package main

import (
	"context"
	"log/slog"

	"github.com/pkg/errors"
	"github.com/sashabaranov/go-openai"

	"github.com/mrsingh-rishi/voice-relay/config"
	"github.com/mrsingh-rishi/voice-relay/fallback"
	"github.com/mrsingh-rishi/voice-relay/llm"
	"github.com/mrsingh-rishi/voice-relay/logger"
	"github.com/mrsingh-rishi/voice-relay/metrics"
	"github.com/mrsingh-rishi/voice-relay/model"
	"github.com/mrsingh-rishi/voice-relay/orchestrator"
	"github.com/mrsingh-rishi/voice-relay/retrieval"
	"github.com/mrsingh-rishi/voice-relay/stt"
	"github.com/mrsingh-rishi/voice-relay/tts"
)

// errNotConfigured marks a collaborator left out because its provider has
// no credentials. The orchestrator degrades around it like any other failure.
var errNotConfigured = errors.New("provider not configured")

type unconfiguredRetriever struct{}

func (unconfiguredRetriever) Search(context.Context, string) ([]model.RetrievedPassage, error) {
	return nil, &retrieval.ProviderError{Op: "search", Err: errNotConfigured}
}

type unconfiguredGenerator struct{}

func (unconfiguredGenerator) Generate(context.Context, string) (string, error) {
	return "", errNotConfigured
}

type unconfiguredSynthesizer struct{}

func (unconfiguredSynthesizer) Synthesize(context.Context, string, string, string) (*model.SynthesizedAudio, error) {
	return nil, errNotConfigured
}

func newOpenAIClient(cfg config.OpenAIConfig) *openai.Client {
	if cfg.APIKey == "" {
		return nil
	}
	c := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		c.BaseURL = cfg.BaseURL
	}
	return openai.NewClientWithConfig(c)
}

func buildRetriever(ctx context.Context, cfg *config.Config, oa *openai.Client, log *slog.Logger) (orchestrator.Retriever, func()) {
	noop := func() {}
	if oa == nil || !cfg.HasPinecone() {
		log.Warn("retrieval disabled, replies will have no context")
		return unconfiguredRetriever{}, noop
	}

	index, err := retrieval.NewPineconeIndex(ctx, cfg.Pinecone, log)
	if err != nil {
		log.Error("pinecone unavailable, replies will have no context", logger.Err(err))
		return unconfiguredRetriever{}, noop
	}
	closeIndex := func() {
		if err := index.Close(); err != nil {
			log.Warn("closing pinecone connection", logger.Err(err))
		}
	}
	embedder := retrieval.NewOpenAIEmbedder(oa, cfg.OpenAI.EmbeddingModel)
	return retrieval.New(embedder, index, cfg.Pinecone.TopK, log), closeIndex
}

func buildGenerator(cfg *config.Config, oa *openai.Client, log *slog.Logger) orchestrator.Generator {
	if oa == nil {
		log.Warn("generation disabled, every reply will be the fallback text")
		return unconfiguredGenerator{}
	}
	return llm.NewOpenAIGenerator(oa, cfg.OpenAI.ChatModel, "", log)
}

func buildSynthesizer(cfg *config.Config, oa *openai.Client, log *slog.Logger) orchestrator.Synthesizer {
	s, err := tts.New(cfg.Speech, oa, log)
	if err != nil {
		log.Warn("speech synthesis disabled, replies will be text only", logger.Err(err))
		return unconfiguredSynthesizer{}
	}
	return s
}

func buildTranscriber(cfg *config.Config, oa *openai.Client, log *slog.Logger, m *metrics.Metrics) *stt.Transcriber {
	var strategies []fallback.Strategy[string, string]

	local := stt.NewLocalWhisper(cfg.Transcription.WhisperBin, cfg.Transcription.WhisperModel, cfg.Transcription.WhisperModelDir, log).
		WithTimeout(cfg.Timeouts.LocalTranscription)
	if local.Available() {
		strategies = append(strategies, local.Strategy())
	} else {
		log.Warn("local whisper not found, skipping it",
			slog.String("bin", cfg.Transcription.WhisperBin),
			slog.String("model", cfg.Transcription.WhisperModel),
		)
	}
	if oa != nil {
		strategies = append(strategies, stt.NewOpenAIRemote(oa, cfg.Transcription.RemoteModel, log).Strategy())
	}
	if len(strategies) == 0 {
		log.Error("no transcription strategy available, audio uploads will fail")
	}
	return stt.NewTranscriber(strategies, log, m)
}
