package gallery

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// NoopEventSink is a no-operation implementation of EventSink
type NoopEventSink struct{}

// NewNoopEventSink creates a new no-operation event sink
func NewNoopEventSink() EventSink {
	return &NoopEventSink{}
}

// ListingChanged does nothing and returns nil
func (n *NoopEventSink) ListingChanged(ctx context.Context, event ListingEvent) error {
	return nil
}

// EventSinkFunc adapts a function to EventSink.
type EventSinkFunc func(ctx context.Context, event ListingEvent) error

func (f EventSinkFunc) ListingChanged(ctx context.Context, event ListingEvent) error {
	return f(ctx, event)
}

// LoggingEventSink logs events and takes no other action
type LoggingEventSink struct {
	logger *slog.Logger
}

// NewLoggingEventSink creates a new logging event sink. A nil logger uses slog.Default().
func NewLoggingEventSink(logger *slog.Logger) EventSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoggingEventSink{logger: logger}
}

func (l *LoggingEventSink) ListingChanged(ctx context.Context, event ListingEvent) error {
	l.logger.InfoContext(ctx, "Listing changed", "op", event.Op, "upload_id", event.UploadID, "at", event.At)
	return nil
}

// MultiEventSink delivers each event to every sink in order.
type MultiEventSink []EventSink

func (m MultiEventSink) ListingChanged(ctx context.Context, event ListingEvent) error {
	var errs []error
	for _, sink := range m {
		if sink == nil {
			continue
		}
		if err := sink.ListingChanged(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// noopObserver discards observations.
type noopObserver struct{}

func (noopObserver) ObserveMutation(string, Result, time.Duration) {}
func (noopObserver) ObserveBlob(string, time.Duration, error) {}
