package otel

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	orderBookMetrics     *OrderBookMetrics
	orderBookMetricsOnce sync.Once
)

// OrderBookMetrics holds counters for book operations
type OrderBookMetrics struct {
	ordersAccepted  metric.Int64Counter
	ordersRejected  metric.Int64Counter
	ordersCancelled metric.Int64Counter
	tradesTotal     metric.Int64Counter
	tradedQuantity  metric.Int64Counter
	restingOrders   metric.Int64UpDownCounter
}

// NewOrderBookMetrics creates the instruments on meter
func NewOrderBookMetrics(meter metric.Meter) (*OrderBookMetrics, error) {
	m := &OrderBookMetrics{}
	var err error

	if m.ordersAccepted, err = meter.Int64Counter(
		"orderbook.orders.accepted",
		metric.WithDescription("Orders accepted by the book"),
		metric.WithUnit("{order}"),
	); err != nil {
		return nil, err
	}
	if m.ordersRejected, err = meter.Int64Counter(
		"orderbook.orders.rejected",
		metric.WithDescription("Orders rejected during validation"),
		metric.WithUnit("{order}"),
	); err != nil {
		return nil, err
	}
	if m.ordersCancelled, err = meter.Int64Counter(
		"orderbook.orders.cancelled",
		metric.WithDescription("Resting orders cancelled"),
		metric.WithUnit("{order}"),
	); err != nil {
		return nil, err
	}
	if m.tradesTotal, err = meter.Int64Counter(
		"orderbook.trades.total",
		metric.WithDescription("Trades executed"),
		metric.WithUnit("{trade}"),
	); err != nil {
		return nil, err
	}
	if m.tradedQuantity, err = meter.Int64Counter(
		"orderbook.trades.quantity",
		metric.WithDescription("Base asset quantity traded, in minor units"),
	); err != nil {
		return nil, err
	}
	if m.restingOrders, err = meter.Int64UpDownCounter(
		"orderbook.orders.resting",
		metric.WithDescription("Orders currently resting in the book"),
		metric.WithUnit("{order}"),
	); err != nil {
		return nil, err
	}

	return m, nil
}

// GetOrderBookMetrics returns metrics bound to the global meter provider.
// Instruments created before Init forward to the provider Init installs.
func GetOrderBookMetrics() *OrderBookMetrics {
	orderBookMetricsOnce.Do(func() {
		m, err := NewOrderBookMetrics(GetMeterProvider().Meter(instrumentationName))
		if err != nil {
			m = &OrderBookMetrics{}
		}
		orderBookMetrics = m
	})
	return orderBookMetrics
}

// RecordAccepted counts an accepted order and the trades it produced.
// restingDelta is the net change in resting orders caused by the call.
func (m *OrderBookMetrics) RecordAccepted(ctx context.Context, side string, trades int, traded int64, restingDelta int64) {
	if m == nil || m.ordersAccepted == nil {
		return
	}
	sideAttr := metric.WithAttributes(attribute.String(AttributeOrderSide, side))
	m.ordersAccepted.Add(ctx, 1, sideAttr)
	if trades > 0 {
		m.tradesTotal.Add(ctx, int64(trades), sideAttr)
		m.tradedQuantity.Add(ctx, traded, sideAttr)
	}
	if restingDelta != 0 {
		m.restingOrders.Add(ctx, restingDelta)
	}
}

// RecordRejected counts an order rejected for reason
func (m *OrderBookMetrics) RecordRejected(ctx context.Context, reason string) {
	if m == nil || m.ordersRejected == nil {
		return
	}
	m.ordersRejected.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}

// RecordCancelled counts a successful cancel
func (m *OrderBookMetrics) RecordCancelled(ctx context.Context) {
	if m == nil || m.ordersCancelled == nil {
		return
	}
	m.ordersCancelled.Add(ctx, 1)
	m.restingOrders.Add(ctx, -1)
}

// RecordReset removes n resting orders dropped by a book reset
func (m *OrderBookMetrics) RecordReset(ctx context.Context, n int) {
	if m == nil || m.restingOrders == nil || n == 0 {
		return
	}
	m.restingOrders.Add(ctx, -int64(n))
}
