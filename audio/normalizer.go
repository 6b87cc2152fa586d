package audio

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-audio/wav"
	"github.com/pkg/errors"

	"github.com/mrsingh-rishi/voice-relay/logger"
	"github.com/mrsingh-rishi/voice-relay/model"
)

const defaultFFmpegPath = "ffmpeg"

// Normalizer converts an input container into a mono 16 kHz WAV next to it.
// The input file is left in place.
type Normalizer interface {
	Normalize(ctx context.Context, inputPath string) (model.NormalizedAudio, error)
}

// FFmpegNormalizer shells out to ffmpeg.
type FFmpegNormalizer struct {
	ffmpegPath string
	logger     *slog.Logger
}

// NewFFmpegNormalizer builds a normalizer using the ffmpeg binary at path
// (looked up on PATH when bare).
func NewFFmpegNormalizer(path string, l *slog.Logger) *FFmpegNormalizer {
	if path == "" {
		path = defaultFFmpegPath
	}
	return &FFmpegNormalizer{
		ffmpegPath: path,
		logger:     logger.OrDiscard(l).With("component", "normalizer"),
	}
}

// OutputPath is where Normalize writes the WAV for inputPath: same directory,
// same base name, .wav extension. A .wav input gets a ".16k.wav" suffix so the
// source is never overwritten.
func OutputPath(inputPath string) string {
	dir := filepath.Dir(inputPath)
	base := strings.TrimSuffix(filepath.Base(inputPath), filepath.Ext(inputPath))
	out := filepath.Join(dir, base+".wav")
	if out == filepath.Clean(inputPath) {
		out = filepath.Join(dir, base+".16k.wav")
	}
	return out
}

// Normalize runs `ffmpeg -ac 1 -ar 16000 -f wav` and checks the header of what
// it wrote.
func (n *FFmpegNormalizer) Normalize(ctx context.Context, inputPath string) (model.NormalizedAudio, error) {
	if _, err := os.Stat(inputPath); err != nil {
		return model.NormalizedAudio{}, &ConversionError{Input: inputPath, Err: err}
	}
	out := OutputPath(inputPath)

	cmd := exec.CommandContext(ctx, n.ffmpegPath,
		"-hide_banner", "-loglevel", "error",
		"-y", "-i", inputPath,
		"-ac", strconv.Itoa(model.NormalizedChannels),
		"-ar", strconv.Itoa(model.NormalizedSampleRate),
		"-f", "wav",
		out,
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	start := time.Now()
	if err := cmd.Run(); err != nil {
		RemoveQuietly(n.logger, out)
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = ctxErr
		}
		return model.NormalizedAudio{}, &ConversionError{
			Input:  inputPath,
			Stderr: strings.TrimSpace(stderr.String()),
			Err:    errors.Wrap(err, "ffmpeg"),
		}
	}

	rate, channels, err := ProbeWAV(out)
	if err != nil {
		RemoveQuietly(n.logger, out)
		return model.NormalizedAudio{}, &ConversionError{Input: inputPath, Err: err}
	}
	if rate != model.NormalizedSampleRate || channels != model.NormalizedChannels {
		RemoveQuietly(n.logger, out)
		return model.NormalizedAudio{}, &ConversionError{
			Input: inputPath,
			Err:   fmt.Errorf("unexpected output format %d Hz / %d ch", rate, channels),
		}
	}

	n.logger.Debug("audio normalized",
		slog.String("input", inputPath),
		slog.String("output", out),
		slog.Duration("took", time.Since(start)),
	)
	return model.NormalizedAudio{Path: out, SampleRate: rate, Channels: channels}, nil
}

// ProbeWAV reads the sample rate and channel count from a WAV header.
func ProbeWAV(path string) (sampleRate, channels int, err error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, errors.Wrap(err, "open wav")
	}
	defer f.Close()

	d := wav.NewDecoder(f)
	if !d.IsValidFile() {
		return 0, 0, errors.Errorf("%s is not a valid wav file", filepath.Base(path))
	}
	return int(d.SampleRate), int(d.NumChans), nil
}
