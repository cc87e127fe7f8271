// Package core fans a logical notification out to its recipients on one
// channel and records every attempt in the delivery log.
package core

import (
	"context"
	"time"

	"leanpulse/internal/types"
)

// LogStore persists delivery log rows. Rows are created pending and moved
// exactly once to a terminal status.
type LogStore interface {
	Insert(ctx context.Context, e *types.NotificationLogEntry) (string, error)
	Update(ctx context.Context, id string, u types.LogUpdate) error
}

// MetricResult is the Result dimension of a delivery metric.
type MetricResult string

const (
	MetricSuccess MetricResult = "success"
	MetricFailed  MetricResult = "failed"
)

// NotificationMetrics records delivery observability data. Implementations
// must not block delivery; errors are logged and swallowed.
type NotificationMetrics interface {
	RecordDelivery(ctx context.Context, channel types.ChannelType, result MetricResult)
	RecordLatency(ctx context.Context, channel types.ChannelType, duration time.Duration)
}

// NoopMetrics discards all metrics. Used locally and in tests.
type NoopMetrics struct{}

func (NoopMetrics) RecordDelivery(context.Context, types.ChannelType, MetricResult) {}
func (NoopMetrics) RecordLatency(context.Context, types.ChannelType, time.Duration) {}
func (NoopMetrics) RecordReportsFired(context.Context, string, int)                 {}
