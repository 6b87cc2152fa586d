// Package storage reaps audio files that outlived their reply cycle.
package storage

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"

	"github.com/mrsingh-rishi/voice-relay/logger"
)

// DefaultPatterns match synthesized replies, their temp files, and uploads.
var DefaultPatterns = []string{"bot-reply-*.mp3", ".bot-reply-*.tmp", "upload-*"}

// Recorder counts removed files. *metrics.Metrics satisfies it.
type Recorder interface {
	RecordSwept(n int)
}

// Sweeper periodically deletes files in dir older than ttl whose names match
// one of its patterns. Subdirectories are left alone.
type Sweeper struct {
	dir      string
	ttl      time.Duration
	interval time.Duration
	patterns []string
	recorder Recorder
	logger   *slog.Logger
	now      func() time.Time
}

// Option configures a Sweeper.
type Option func(*Sweeper)

// WithPatterns replaces the default file name patterns.
func WithPatterns(patterns ...string) Option {
	return func(s *Sweeper) { s.patterns = patterns }
}

// WithRecorder reports removals to r.
func WithRecorder(r Recorder) Option {
	return func(s *Sweeper) { s.recorder = r }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Sweeper) { s.logger = l }
}

// NewSweeper builds a sweeper over dir.
func NewSweeper(dir string, ttl, interval time.Duration, opts ...Option) (*Sweeper, error) {
	if ttl <= 0 {
		return nil, errors.Errorf("sweeper ttl must be positive, got %s", ttl)
	}
	if interval <= 0 {
		return nil, errors.Errorf("sweeper interval must be positive, got %s", interval)
	}
	s := &Sweeper{
		dir:      dir,
		ttl:      ttl,
		interval: interval,
		patterns: DefaultPatterns,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = logger.OrDiscard(s.logger).With("component", "sweeper", "dir", dir)
	for _, p := range s.patterns {
		if _, err := filepath.Match(p, ""); err != nil {
			return nil, errors.Wrapf(err, "bad sweep pattern %q", p)
		}
	}
	return s, nil
}

// Run sweeps every interval until ctx is done. It returns nil on
// cancellation so it can sit in an errgroup next to the server.
func (s *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("sweeper started",
		slog.Duration("ttl", s.ttl),
		slog.Duration("interval", s.interval),
	)
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("sweeper stopped")
			return nil
		case <-ticker.C:
			if _, err := s.Sweep(); err != nil {
				s.logger.Warn("sweep failed", logger.Err(err))
			}
		}
	}
}

// Sweep removes expired files once and returns how many were deleted. A
// missing directory is not an error.
func (s *Sweeper) Sweep() (int, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, errors.Wrapf(err, "read %s", s.dir)
	}

	cutoff := s.now().Add(-s.ttl)
	deleted := 0
	for _, e := range entries {
		if e.IsDir() || !s.matches(e.Name()) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if !info.ModTime().Before(cutoff) {
			continue
		}

		path := filepath.Join(s.dir, e.Name())
		if err := os.Remove(path); err != nil {
			if !os.IsNotExist(err) {
				s.logger.Warn("could not remove expired file", slog.String("file", e.Name()), logger.Err(err))
			}
			continue
		}
		deleted++
		s.logger.Debug("expired file removed", slog.String("file", e.Name()))
	}

	if deleted > 0 {
		s.logger.Info("sweep complete", slog.Int("deleted", deleted))
		if s.recorder != nil {
			s.recorder.RecordSwept(deleted)
		}
	}
	return deleted, nil
}

func (s *Sweeper) matches(name string) bool {
	for _, p := range s.patterns {
		if ok, _ := filepath.Match(p, name); ok {
			return true
		}
	}
	return false
}
