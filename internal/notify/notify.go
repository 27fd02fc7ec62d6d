// Package notify delivers goal notifications to the user.
package notify

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
)

// Sink displays a notification. id is stable per domain, so sinks that
// support replacement show at most one notification per domain.
type Sink interface {
	Show(ctx context.Context, id, title, message string) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, id, title, message string) error

// Show implements Sink.
func (f SinkFunc) Show(ctx context.Context, id, title, message string) error {
	return f(ctx, id, title, message)
}

// Multi fans a notification out to several sinks. Every sink is tried; the
// returned error joins all failures.
type Multi []Sink

// Show implements Sink.
func (m Multi) Show(ctx context.Context, id, title, message string) error {
	var errs []error
	for _, s := range m {
		if err := s.Show(ctx, id, title, message); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// LogSink writes notifications to the log.
type LogSink struct {
	logger zerolog.Logger
}

// NewLogSink creates a log sink.
func NewLogSink(logger zerolog.Logger) *LogSink {
	return &LogSink{logger: logger.With().Str("component", "notify").Logger()}
}

// Show implements Sink.
func (s *LogSink) Show(_ context.Context, id, title, message string) error {
	s.logger.Info().
		Str("id", id).
		Str("title", title).
		Msg(message)
	return nil
}
