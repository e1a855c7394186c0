package otel

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// CommandMetrics instruments the serialized command queue
type CommandMetrics struct {
	latency    metric.Float64Histogram
	total      metric.Int64Counter
	errors     metric.Int64Counter
	queueDepth metric.Int64UpDownCounter
}

// NewCommandMetrics creates the instruments on meter
func NewCommandMetrics(meter metric.Meter) (*CommandMetrics, error) {
	latency, err := meter.Float64Histogram(
		"orderbook.command.duration",
		metric.WithDescription("Time from dequeue to result of one book command"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	total, err := meter.Int64Counter(
		"orderbook.command.total",
		metric.WithDescription("Book commands processed"),
		metric.WithUnit("{command}"),
	)
	if err != nil {
		return nil, err
	}

	errorTotal, err := meter.Int64Counter(
		"orderbook.command.errors",
		metric.WithDescription("Book commands that returned an error"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, err
	}

	queueDepth, err := meter.Int64UpDownCounter(
		"orderbook.command.queued",
		metric.WithDescription("Commands waiting for the worker"),
		metric.WithUnit("{command}"),
	)
	if err != nil {
		return nil, err
	}

	return &CommandMetrics{
		latency:    latency,
		total:      total,
		errors:     errorTotal,
		queueDepth: queueDepth,
	}, nil
}

// RecordCommand records one processed command
func (m *CommandMetrics) RecordCommand(ctx context.Context, command string, duration time.Duration, err error) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String(AttributeCommand, command))
	m.latency.Record(ctx, duration.Seconds(), attrs)
	m.total.Add(ctx, 1, attrs)
	if err != nil {
		m.errors.Add(ctx, 1, attrs)
	}
}

// AddQueued moves the queue depth gauge by delta
func (m *CommandMetrics) AddQueued(ctx context.Context, delta int64) {
	if m == nil {
		return
	}
	m.queueDepth.Add(ctx, delta)
}
