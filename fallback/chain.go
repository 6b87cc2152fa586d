// Package fallback runs an ordered list of named strategies and returns the
// first success.
package fallback

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/mrsingh-rishi/voice-relay/logger"
)

// Strategy is one named way of turning In into Out. A strategy signals an
// unusable result by returning an error. A positive Timeout bounds this
// strategy alone, so the next one still runs under the caller's deadline.
type Strategy[In, Out any] struct {
	Name    string
	Run     func(ctx context.Context, in In) (Out, error)
	Timeout time.Duration
}

// Observer is told about every attempt. *metrics.Metrics satisfies it.
type Observer interface {
	RecordStrategy(chain, strategy string, err error)
}

// Attempt records a failed strategy.
type Attempt struct {
	Strategy string
	Err      error
}

// ExhaustedError is returned when every strategy failed.
type ExhaustedError struct {
	Chain    string
	Attempts []Attempt
}

func (e *ExhaustedError) Error() string {
	if len(e.Attempts) == 0 {
		return fmt.Sprintf("%s: no strategies configured", e.Chain)
	}
	parts := make([]string, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		parts = append(parts, fmt.Sprintf("%s: %v", a.Strategy, a.Err))
	}
	return fmt.Sprintf("%s: all strategies failed (%s)", e.Chain, strings.Join(parts, "; "))
}

// Unwrap exposes each attempt's error to errors.Is and errors.As.
func (e *ExhaustedError) Unwrap() []error {
	errs := make([]error, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		errs = append(errs, a.Err)
	}
	return errs
}

// Result is a successful outcome together with the strategy that produced it.
type Result[Out any] struct {
	Value    Out
	Strategy string
}

// Chain evaluates strategies in order.
type Chain[In, Out any] struct {
	name       string
	strategies []Strategy[In, Out]
	logger     *slog.Logger
	observer   Observer
}

// Option configures a Chain.
type Option func(*options)

type options struct {
	logger   *slog.Logger
	observer Observer
}

// WithLogger sets the logger used to report attempts.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithObserver sets the attempt observer.
func WithObserver(obs Observer) Option {
	return func(o *options) { o.observer = obs }
}

// New builds a chain named name over strategies, tried in the given order.
func New[In, Out any](name string, strategies []Strategy[In, Out], opts ...Option) *Chain[In, Out] {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	return &Chain[In, Out]{
		name:       name,
		strategies: strategies,
		logger:     logger.OrDiscard(o.logger).With("chain", name),
		observer:   o.observer,
	}
}

// Name returns the chain name.
func (c *Chain[In, Out]) Name() string { return c.name }

// Strategies lists strategy names in evaluation order.
func (c *Chain[In, Out]) Strategies() []string {
	names := make([]string, 0, len(c.strategies))
	for _, s := range c.strategies {
		names = append(names, s.Name)
	}
	return names
}

// Execute runs strategies until one succeeds. A cancelled context stops the
// chain before the next strategy starts.
func (c *Chain[In, Out]) Execute(ctx context.Context, in In) (Result[Out], error) {
	exhausted := &ExhaustedError{Chain: c.name}

	for _, s := range c.strategies {
		if err := ctx.Err(); err != nil {
			exhausted.Attempts = append(exhausted.Attempts, Attempt{Strategy: s.Name, Err: err})
			break
		}

		start := time.Now()
		out, err := c.run(ctx, s, in)
		if c.observer != nil {
			c.observer.RecordStrategy(c.name, s.Name, err)
		}
		if err == nil {
			c.logger.Info("strategy succeeded",
				slog.String("strategy", s.Name),
				slog.Duration("took", time.Since(start)),
			)
			return Result[Out]{Value: out, Strategy: s.Name}, nil
		}

		c.logger.Warn("strategy failed, trying next",
			slog.String("strategy", s.Name),
			logger.Err(err),
		)
		exhausted.Attempts = append(exhausted.Attempts, Attempt{Strategy: s.Name, Err: err})
	}

	var zero Result[Out]
	return zero, exhausted
}

func (c *Chain[In, Out]) run(ctx context.Context, s Strategy[In, Out], in In) (out Out, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("strategy %s panicked: %v", s.Name, r)
		}
	}()
	if s.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.Timeout)
		defer cancel()
	}
	return s.Run(ctx, in)
}
