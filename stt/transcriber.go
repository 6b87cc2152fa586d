package stt

import (
	"context"
	"log/slog"

	"github.com/mrsingh-rishi/voice-relay/fallback"
	"github.com/mrsingh-rishi/voice-relay/logger"
)

// ChainName labels the transcription fallback chain in logs and metrics.
const ChainName = "transcription"

// Transcriber runs its strategies in order (local first, remote after) and
// fails only when all of them did.
type Transcriber struct {
	chain  *fallback.Chain[string, string]
	logger *slog.Logger
}

// NewTranscriber builds a transcriber over strategies. observer may be nil.
func NewTranscriber(strategies []fallback.Strategy[string, string], l *slog.Logger, observer fallback.Observer) *Transcriber {
	l = logger.OrDiscard(l).With("component", "stt")
	opts := []fallback.Option{fallback.WithLogger(l)}
	if observer != nil {
		opts = append(opts, fallback.WithObserver(observer))
	}
	return &Transcriber{
		chain:  fallback.New(ChainName, strategies, opts...),
		logger: l,
	}
}

// Strategies lists configured strategy names in order.
func (t *Transcriber) Strategies() []string {
	return t.chain.Strategies()
}

// Transcribe returns the first successful transcript for the normalized WAV.
func (t *Transcriber) Transcribe(ctx context.Context, normalizedPath string) (string, error) {
	res, err := t.chain.Execute(ctx, normalizedPath)
	if err != nil {
		return "", &TranscriptionError{Audio: normalizedPath, Cause: err}
	}
	t.logger.Info("transcription complete",
		slog.String("strategy", res.Strategy),
		slog.Int("chars", len(res.Value)),
	)
	return res.Value, nil
}
