package audio

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/mrsingh-rishi/voice-relay/logger"
)

// ConversionError is returned when an input container cannot be decoded or
// ffmpeg fails.
type ConversionError struct {
	Input  string
	Stderr string
	Err    error
}

func (e *ConversionError) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("convert %s: %v: %s", e.Input, e.Err, e.Stderr)
	}
	return fmt.Sprintf("convert %s: %v", e.Input, e.Err)
}

func (e *ConversionError) Unwrap() error { return e.Err }

// RemoveQuietly deletes path and only logs a failure. A file that is already
// gone is not reported.
func RemoveQuietly(l *slog.Logger, path string) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		logger.OrDiscard(l).Warn("best-effort cleanup failed",
			slog.String("path", path),
			logger.Err(err),
		)
	}
}
