package stt

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/mrsingh-rishi/voice-relay/audio"
	"github.com/mrsingh-rishi/voice-relay/fallback"
	"github.com/mrsingh-rishi/voice-relay/logger"
)

// LocalWhisper transcribes with a whisper.cpp command line binary. The binary
// writes its transcript to a sidecar .txt, which is read and then removed.
type LocalWhisper struct {
	bin       string
	modelPath string
	timeout   time.Duration
	logger    *slog.Logger
}

// NewLocalWhisper builds the local strategy. model is either a path to a
// ggml model file or a short name such as "base.en", resolved to
// <modelDir>/ggml-<name>.bin.
func NewLocalWhisper(bin, model, modelDir string, l *slog.Logger) *LocalWhisper {
	if bin == "" {
		bin = "whisper-cli"
	}
	return &LocalWhisper{
		bin:       bin,
		modelPath: ResolveModelPath(model, modelDir),
		logger:    logger.OrDiscard(l).With("component", "stt", "strategy", "local-whisper"),
	}
}

// ResolveModelPath maps a model name to its ggml file.
func ResolveModelPath(model, modelDir string) string {
	if strings.ContainsRune(model, os.PathSeparator) || strings.HasSuffix(model, ".bin") {
		return model
	}
	return filepath.Join(modelDir, "ggml-"+model+".bin")
}

// Name identifies the strategy in logs and metrics.
func (w *LocalWhisper) Name() string { return "local-whisper" }

// WithTimeout bounds a single local run. A run that overruns it fails like
// any other local error and leaves the rest of the deadline to the next
// strategy.
func (w *LocalWhisper) WithTimeout(d time.Duration) *LocalWhisper {
	w.timeout = d
	return w
}

// Strategy adapts the transcriber to a fallback chain entry.
func (w *LocalWhisper) Strategy() fallback.Strategy[string, string] {
	return fallback.Strategy[string, string]{Name: w.Name(), Run: w.Transcribe, Timeout: w.timeout}
}

// Available reports whether the binary and model can be found.
func (w *LocalWhisper) Available() bool {
	if _, err := exec.LookPath(w.bin); err != nil {
		return false
	}
	_, err := os.Stat(w.modelPath)
	return err == nil
}

// Transcribe runs the binary on a normalized WAV and returns the transcript
// as written. A blank transcript is reported as ErrEmptyTranscript.
func (w *LocalWhisper) Transcribe(ctx context.Context, wavPath string) (string, error) {
	if _, err := os.Stat(w.modelPath); err != nil {
		return "", errors.Wrapf(err, "whisper model %s", w.modelPath)
	}

	dir := filepath.Dir(wavPath)
	base := strings.TrimSuffix(filepath.Base(wavPath), filepath.Ext(wavPath))
	outPrefix := filepath.Join(dir, base)
	candidates := []string{outPrefix + ".txt", wavPath + ".txt"}

	// The sidecar is removed whether or not it could be read.
	defer func() {
		for _, c := range candidates {
			audio.RemoveQuietly(w.logger, c)
		}
	}()

	cmd := exec.CommandContext(ctx, w.bin,
		"-m", w.modelPath,
		"-f", wavPath,
		"-otxt",
		"-of", outPrefix,
		"-np",
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	cmd.WaitDelay = time.Second
	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		return "", errors.Wrapf(err, "%s: %s", w.bin, strings.TrimSpace(stderr.String()))
	}

	transcriptPath := ""
	for _, c := range candidates {
		if _, err := os.Stat(c); err == nil {
			transcriptPath = c
			break
		}
	}
	if transcriptPath == "" {
		return "", errors.Errorf("%s did not produce a .txt transcript", w.bin)
	}

	raw, err := os.ReadFile(transcriptPath)
	if err != nil {
		return "", errors.Wrap(err, "read transcript")
	}
	if strings.TrimSpace(string(raw)) == "" {
		return "", ErrEmptyTranscript
	}
	return string(raw), nil
}
