package types

import (
	"context"
	"time"
)

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

// RealClock implements Clock using the real system time (always UTC).
type RealClock struct{}

// Now returns the current time in UTC.
func (RealClock) Now() time.Time { return time.Now().UTC() }

// ChannelSender delivers a normalized message on one channel.
//
// Expected failure modes (missing configuration, upstream HTTP errors) are
// reported through SendResult and never as a panic or error value.
type ChannelSender interface {
	Channel() ChannelType
	Send(ctx context.Context, msg OutboundMessage) SendResult
}

// Dispatcher fans a logical notification out to its recipients.
type Dispatcher interface {
	Dispatch(ctx context.Context, n Notification) (*BatchResult, error)
}

// Logger defines the structured logging interface used by library packages.
type Logger interface {
	Info(msg string, args ...any)
	Error(msg string, args ...any)
	Warn(msg string, args ...any)
	With(args ...any) Logger
}
