package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

var ErrNotConfigured = errors.New("notifier not configured")

// Notifier delivers a rendered text message. A nil error means the message
// was accepted by the channel.
type Notifier interface {
	Name() string
	Deliver(ctx context.Context, message string) error
}

// Multi delivers to every notifier and fails only when all of them fail.
type Multi []Notifier

func (m Multi) Name() string { return "multi" }

func (m Multi) Deliver(ctx context.Context, message string) error {
	if len(m) == 0 {
		return ErrNotConfigured
	}
	var errs []error
	for _, n := range m {
		if err := n.Deliver(ctx, message); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", n.Name(), err))
		}
	}
	if len(errs) == len(m) {
		return errors.Join(errs...)
	}
	return nil
}

// Log writes messages to the logger instead of delivering them. It is used
// when no channel is configured.
type Log struct {
	Logger *slog.Logger
}

func (l Log) Name() string { return "log" }

func (l Log) Deliver(_ context.Context, message string) error {
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("notification", slog.String("category", "notify"), slog.String("message", message))
	return nil
}
