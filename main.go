package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mrsingh-rishi/voice-relay/audio"
	"github.com/mrsingh-rishi/voice-relay/config"
	"github.com/mrsingh-rishi/voice-relay/logger"
	"github.com/mrsingh-rishi/voice-relay/metrics"
	"github.com/mrsingh-rishi/voice-relay/orchestrator"
	"github.com/mrsingh-rishi/voice-relay/server"
	"github.com/mrsingh-rishi/voice-relay/storage"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	log := logger.New(cfg.Logging)
	slog.SetDefault(log)
	m := metrics.NewMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("starting voice relay",
		slog.String("environment", cfg.Environment),
		slog.Int("port", cfg.Port),
		slog.Bool("has_openai", cfg.HasOpenAI()),
		slog.Bool("has_pinecone", cfg.HasPinecone()),
		slog.String("tts_provider", cfg.Speech.Provider),
	)

	oa := newOpenAIClient(cfg.OpenAI)

	retriever, closeRetriever := buildRetriever(ctx, cfg, oa, log)
	defer closeRetriever()

	orch, err := orchestrator.New(retriever, buildGenerator(cfg, oa, log), buildSynthesizer(cfg, oa, log), orchestrator.Options{
		OutputDir: cfg.Storage.UploadsDir,
		BaseName:  "bot-reply",
		URLPrefix: "/uploads",
		Timeouts:  cfg.Timeouts,
		Logger:    log,
		Recorder:  m,
	})
	if err != nil {
		return err
	}

	lifecycle := audio.NewLifecycle(
		audio.NewFFmpegNormalizer(cfg.Transcription.FFmpegPath, log),
		buildTranscriber(cfg, oa, log, m),
		audio.LifecycleConfig{
			ConversionTimeout:    cfg.Timeouts.Conversion,
			TranscriptionTimeout: cfg.Timeouts.Transcription,
		},
		log, m,
	)

	sweeper, err := storage.NewSweeper(cfg.Storage.UploadsDir, cfg.Storage.AudioTTL, cfg.Storage.SweepInterval,
		storage.WithRecorder(m),
		storage.WithLogger(log),
	)
	if err != nil {
		return err
	}

	srv, err := server.New(server.Options{
		Config:      cfg,
		Responder:   orch,
		Transcriber: lifecycle,
		Metrics:     m,
		Logger:      log,
	})
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(srv.Listen)
	g.Go(func() error { return sweeper.Run(gctx) })
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("server stopped with error", logger.Err(err))
		return err
	}
	log.Info("server stopped")
	return nil
}
