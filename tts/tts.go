// Package tts turns reply text into an mp3 file under the uploads root.
package tts

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/mrsingh-rishi/voice-relay/model"
)

// ErrEmptyText is returned when there is nothing to speak.
var ErrEmptyText = errors.New("no text to synthesize")

// Synthesizer renders text to an audio file named after baseName in outputDir.
type Synthesizer interface {
	Synthesize(ctx context.Context, text, outputDir, baseName string) (*model.SynthesizedAudio, error)
}

// FileName returns <baseName>-<unixMillis>-<8 hex>.mp3. The random suffix
// keeps two replies in the same millisecond apart.
func FileName(baseName string, now time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("%s-%d-%s.mp3", baseName, now.UnixMilli(), suffix)
}

// writeAudio streams r into a temp file in outputDir and renames it into
// place, so a published name never refers to a partial file.
func writeAudio(l *slog.Logger, outputDir, baseName string, r io.Reader) (*model.SynthesizedAudio, error) {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "create output dir %s", outputDir)
	}

	name := FileName(baseName, time.Now())
	tmp, err := os.CreateTemp(outputDir, "."+name+".*.tmp")
	if err != nil {
		return nil, errors.Wrap(err, "create temp audio file")
	}
	tmpPath := tmp.Name()

	n, copyErr := io.Copy(tmp, r)
	closeErr := tmp.Close()
	if copyErr == nil && closeErr == nil && n == 0 {
		copyErr = errors.New("provider returned no audio")
	}
	if copyErr != nil || closeErr != nil {
		_ = os.Remove(tmpPath)
		if copyErr != nil {
			return nil, errors.Wrap(copyErr, "write audio")
		}
		return nil, errors.Wrap(closeErr, "close audio")
	}

	finalPath := filepath.Join(outputDir, name)
	if err := os.Rename(tmpPath, finalPath); err != nil {
		_ = os.Remove(tmpPath)
		return nil, errors.Wrap(err, "publish audio file")
	}

	l.Debug("audio written", slog.String("file", name), slog.Int64("bytes", n))
	return &model.SynthesizedAudio{FilePath: finalPath, Filename: name}, nil
}
