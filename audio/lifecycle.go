package audio

import (
	"context"
	"log/slog"
	"time"

	"github.com/pkg/errors"

	"github.com/mrsingh-rishi/voice-relay/logger"
)

// State is a step in the life of one uploaded file.
type State string

const (
	StateUploaded    State = "uploaded"
	StateNormalized  State = "normalized"
	StateTranscribed State = "transcribed"
	StateCleaned     State = "cleaned"
)

// Transcriber turns a normalized WAV into text.
type Transcriber interface {
	Transcribe(ctx context.Context, normalizedPath string) (string, error)
}

// StageRecorder receives stage timings and failures. *metrics.Metrics
// satisfies it.
type StageRecorder interface {
	ObserveStage(stage string, d time.Duration)
	RecordStageFailure(stage, kind string)
}

// LifecycleConfig holds the per-stage deadlines.
type LifecycleConfig struct {
	ConversionTimeout    time.Duration
	TranscriptionTimeout time.Duration
}

// Lifecycle drives upload -> normalize -> transcribe and always removes the
// upload and the intermediate WAV, whatever the outcome.
type Lifecycle struct {
	normalizer  Normalizer
	transcriber Transcriber
	cfg         LifecycleConfig
	logger      *slog.Logger
	recorder    StageRecorder

	// onTransition is a test hook.
	onTransition func(path string, s State)
}

// NewLifecycle wires a lifecycle manager. recorder may be nil.
func NewLifecycle(n Normalizer, t Transcriber, cfg LifecycleConfig, l *slog.Logger, recorder StageRecorder) *Lifecycle {
	return &Lifecycle{
		normalizer:  n,
		transcriber: t,
		cfg:         cfg,
		logger:      logger.OrDiscard(l).With("component", "audio-lifecycle"),
		recorder:    recorder,
	}
}

// Transcribe consumes the upload at uploadPath. Only conversion and
// transcription errors are returned; cleanup failures are logged.
func (lc *Lifecycle) Transcribe(ctx context.Context, uploadPath string) (text string, err error) {
	log := lc.logger.With("upload", uploadPath)
	lc.transition(uploadPath, StateUploaded)

	var normalizedPath string
	defer func() {
		RemoveQuietly(log, uploadPath)
		RemoveQuietly(log, normalizedPath)
		lc.transition(uploadPath, StateCleaned)
	}()

	log.Info("converting audio")
	convCtx, cancel := withTimeout(ctx, lc.cfg.ConversionTimeout)
	start := time.Now()
	normalized, err := lc.normalizer.Normalize(convCtx, uploadPath)
	cancel()
	lc.observe("conversion", start, err)
	if err != nil {
		log.Error("audio conversion failed", logger.Err(err))
		return "", err
	}
	normalizedPath = normalized.Path
	lc.transition(uploadPath, StateNormalized)

	log.Info("transcribing audio", slog.String("wav", normalizedPath))
	sttCtx, cancel := withTimeout(ctx, lc.cfg.TranscriptionTimeout)
	start = time.Now()
	text, err = lc.transcriber.Transcribe(sttCtx, normalizedPath)
	cancel()
	lc.observe("transcription", start, err)
	if err != nil {
		log.Error("audio transcription failed", logger.Err(err))
		return "", err
	}
	lc.transition(uploadPath, StateTranscribed)
	return text, nil
}

func (lc *Lifecycle) transition(path string, s State) {
	lc.logger.Debug("upload state", slog.String("upload", path), slog.String("state", string(s)))
	if lc.onTransition != nil {
		lc.onTransition(path, s)
	}
}

func (lc *Lifecycle) observe(stage string, start time.Time, err error) {
	if lc.recorder == nil {
		return
	}
	lc.recorder.ObserveStage(stage, time.Since(start))
	if err != nil {
		kind := "error"
		if errors.Is(err, context.DeadlineExceeded) {
			kind = "timeout"
		}
		lc.recorder.RecordStageFailure(stage, kind)
	}
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
