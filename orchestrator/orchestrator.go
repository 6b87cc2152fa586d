// Package orchestrator turns a user query into a text reply and, when
// possible, a spoken rendition of it.
package orchestrator

import (
	"context"
	"log/slog"
	"path"
	"time"

	"github.com/pkg/errors"

	"github.com/mrsingh-rishi/voice-relay/config"
	"github.com/mrsingh-rishi/voice-relay/logger"
	"github.com/mrsingh-rishi/voice-relay/model"
)

//go:generate mockgen -source=orchestrator.go -destination=mocks_test.go -package=orchestrator

// Stage names used in logs and metrics.
const (
	StageRetrieve   = "retrieve"
	StageCompose    = "compose"
	StageGenerate   = "generate"
	StageSynthesize = "synthesize"
	StageEmit       = "emit"
)

// Response outcomes.
const (
	OutcomeAnswered = "answered"
	OutcomeFallback = "fallback"
)

// Retriever finds passages relevant to a query.
type Retriever interface {
	Search(ctx context.Context, query string) ([]model.RetrievedPassage, error)
}

// Generator produces reply text. An error or empty reply means no answer.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Synthesizer renders text to an audio file in outputDir.
type Synthesizer interface {
	Synthesize(ctx context.Context, text, outputDir, baseName string) (*model.SynthesizedAudio, error)
}

// Recorder receives stage timings and outcomes. *metrics.Metrics satisfies it.
type Recorder interface {
	ObserveStage(stage string, d time.Duration)
	RecordStageFailure(stage, kind string)
	RecordResponse(outcome string)
}

type noopRecorder struct{}

func (noopRecorder) ObserveStage(string, time.Duration) {}
func (noopRecorder) RecordStageFailure(string, string)  {}
func (noopRecorder) RecordResponse(string)              {}

// Options configures where replies are written and how long stages may run.
type Options struct {
	OutputDir string
	BaseName  string
	URLPrefix string
	Timeouts  config.TimeoutConfig
	Logger    *slog.Logger
	Recorder  Recorder
}

// Orchestrator runs retrieve, compose, generate, synthesize and emit.
type Orchestrator struct {
	retriever   Retriever
	generator   Generator
	synthesizer Synthesizer
	opts        Options
	logger      *slog.Logger
	recorder    Recorder
}

// New builds an orchestrator. All three collaborators are required; the
// composition root decides which implementations to pass.
func New(r Retriever, g Generator, s Synthesizer, opts Options) (*Orchestrator, error) {
	if r == nil || g == nil || s == nil {
		return nil, errors.New("orchestrator needs a retriever, a generator and a synthesizer")
	}
	if opts.BaseName == "" {
		opts.BaseName = "bot-reply"
	}
	if opts.URLPrefix == "" {
		opts.URLPrefix = "/uploads"
	}
	rec := opts.Recorder
	if rec == nil {
		rec = noopRecorder{}
	}
	return &Orchestrator{
		retriever:   r,
		generator:   g,
		synthesizer: s,
		opts:        opts,
		logger:      logger.OrDiscard(opts.Logger).With("component", "orchestrator"),
		recorder:    rec,
	}, nil
}

// Respond always returns a response with non-empty text. Failures of
// retrieval, generation and synthesis degrade the reply but never surface.
func (o *Orchestrator) Respond(ctx context.Context, query string) model.SemanticResponse {
	text, answered, ok := o.reply(ctx, query)
	if !ok {
		o.recorder.RecordResponse(OutcomeFallback)
		return o.emit(model.SemanticResponse{Text: FallbackText})
	}

	resp := model.SemanticResponse{Text: text, AudioURL: o.synthesize(ctx, text)}
	if answered {
		o.recorder.RecordResponse(OutcomeAnswered)
	} else {
		o.recorder.RecordResponse(OutcomeFallback)
	}
	return o.emit(resp)
}

// reply runs retrieve, compose and generate. ok is false when something
// unexpected escaped them, in which case the whole response falls back.
func (o *Orchestrator) reply(ctx context.Context, query string) (text string, answered, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("semantic response failed", slog.Any("panic", r))
			text, answered, ok = "", false, false
		}
	}()

	passages, err := runStage(ctx, o, StageRetrieve, o.opts.Timeouts.Retrieval,
		func(ctx context.Context) ([]model.RetrievedPassage, error) {
			return o.retriever.Search(ctx, query)
		})
	if err != nil {
		o.logger.Warn("retrieval failed, continuing without context", logger.Err(err))
		passages = nil
	}
	o.logger.Info("context retrieved", slog.Int("passages", len(passages)))

	start := time.Now()
	prompt := ComposePrompt(passages, query)
	o.recorder.ObserveStage(StageCompose, time.Since(start))

	reply, err := runStage(ctx, o, StageGenerate, o.opts.Timeouts.Generation,
		func(ctx context.Context) (string, error) {
			return o.generator.Generate(ctx, prompt)
		})
	if err != nil {
		o.logger.Warn("generation failed, using fallback text", logger.Err(err))
		return FallbackText, false, true
	}
	if reply == "" {
		o.logger.Warn("generation returned an empty reply, using fallback text")
		return FallbackText, false, true
	}
	return reply, true, true
}

// synthesize returns the public URL of the spoken reply, or nil.
func (o *Orchestrator) synthesize(ctx context.Context, text string) (url *string) {
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("speech synthesis panicked", slog.Any("panic", r))
			url = nil
		}
	}()

	audio, err := runStage(ctx, o, StageSynthesize, o.opts.Timeouts.Synthesis,
		func(ctx context.Context) (*model.SynthesizedAudio, error) {
			return o.synthesizer.Synthesize(ctx, text, o.opts.OutputDir, o.opts.BaseName)
		})
	if err != nil {
		o.logger.Error("speech synthesis failed", logger.Err(err))
		return nil
	}
	if audio == nil || audio.Filename == "" {
		return nil
	}
	u := path.Join(o.opts.URLPrefix, audio.Filename)
	return &u
}

func (o *Orchestrator) emit(resp model.SemanticResponse) model.SemanticResponse {
	o.recorder.ObserveStage(StageEmit, 0)
	o.logger.Debug("response emitted",
		slog.Int("chars", len(resp.Text)),
		slog.Bool("audio", resp.HasAudio()),
	)
	return resp
}

type stageResult[T any] struct {
	value T
	err   error
	panic *panicError
}

// runStage runs fn under the stage timeout. A collaborator that ignores its
// context is abandoned when the deadline passes. Panics are re-raised on the
// caller's goroutine.
func runStage[T any](ctx context.Context, o *Orchestrator, stage string, timeout time.Duration, fn func(context.Context) (T, error)) (T, error) {
	sctx, cancel := withTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	done := make(chan stageResult[T], 1)
	go func() {
		var res stageResult[T]
		defer func() {
			if r := recover(); r != nil {
				res.panic = &panicError{stage: stage, value: r}
			}
			done <- res
		}()
		res.value, res.err = fn(sctx)
	}()

	var res stageResult[T]
	select {
	case res = <-done:
	case <-sctx.Done():
		select {
		case res = <-done:
		default:
			res.err = sctx.Err()
		}
	}
	o.recorder.ObserveStage(stage, time.Since(start))

	if res.panic != nil {
		o.recorder.RecordStageFailure(stage, "panic")
		panic(res.panic)
	}
	if res.err != nil {
		kind := "error"
		if timeout > 0 && errors.Is(sctx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			res.err = &TimeoutError{Stage: stage, Timeout: timeout}
			kind = "timeout"
		}
		o.recorder.RecordStageFailure(stage, kind)
		var zero T
		return zero, res.err
	}
	return res.value, nil
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
