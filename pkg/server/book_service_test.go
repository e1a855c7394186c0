package server

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/erain9/limitbook/pkg/core"
	"github.com/erain9/limitbook/pkg/messaging"
	pkgotel "github.com/erain9/limitbook/pkg/otel"
)

var testInstrument = core.NewInstrument(
	core.Asset{Symbol: "BTC", Decimals: 6},
	core.Asset{Symbol: "USDT", Decimals: 2},
)

var fixedTime = time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

func newTestService(opts ...Option) (*BookService, *messaging.MockMessageSender) {
	sender := messaging.NewMockMessageSender()
	opts = append([]Option{
		WithSender(sender),
		WithInvariantChecks(true),
		WithClock(func() time.Time { return fixedTime }),
	}, opts...)
	return NewBookService(testInstrument, opts...), sender
}

func TestBookService_PlaceAndMatch(t *testing.T) {
	ctx := context.Background()
	svc, sender := newTestService()

	trades, err := svc.PlaceOrder(ctx, core.Buy, 10050, 1000, 1)
	require.NoError(t, err)
	assert.Empty(t, trades)

	trades, err = svc.PlaceOrder(ctx, core.Sell, 10050, 500, 2)
	require.NoError(t, err)
	require.Len(t, trades, 1)
	assert.Equal(t, core.OrderID(1), trades[0].MakerID)

	bb, ok := svc.BestBuy()
	require.True(t, ok)
	assert.Equal(t, core.PriceQuantity{Price: 10050, Quantity: 500}, bb)
	_, ok = svc.BestSell()
	assert.False(t, ok)

	reports := sender.Reports()
	require.Len(t, reports, 2)

	rested := reports[0]
	assert.Equal(t, messaging.ReportPlace, rested.Type)
	assert.Equal(t, uint64(1), rested.OrderID)
	assert.Equal(t, "BUY", rested.Side)
	assert.True(t, rested.Rested)
	assert.Equal(t, int64(1000), rested.Remaining)
	assert.Equal(t, uint64(1), rested.Sequence)
	assert.Equal(t, fixedTime, rested.Timestamp)
	assert.Empty(t, rested.Trades)

	filled := reports[1]
	assert.False(t, filled.Rested)
	assert.Equal(t, int64(0), filled.Remaining)
	assert.Equal(t, uint64(2), filled.Sequence)
	require.Len(t, filled.Trades, 1)
	assert.Equal(t, messaging.Trade{Sequence: 3, MakerID: 1, TakerID: 2, Price: 10050, Quantity: 500}, filled.Trades[0])
	assert.Equal(t, int64(500), filled.Executed())
}

func TestBookService_RejectionIsNotPublished(t *testing.T) {
	ctx := context.Background()
	svc, sender := newTestService()

	_, err := svc.PlaceOrder(ctx, core.Buy, 0, 10, 1)
	assert.ErrorIs(t, err, core.ErrInvalidPrice)

	err = svc.CancelOrder(ctx, 99)
	assert.ErrorIs(t, err, core.ErrOrderNotFound)

	assert.Empty(t, sender.Reports())
	assert.Equal(t, 0, svc.Len())
}

func TestBookService_Cancel(t *testing.T) {
	ctx := context.Background()
	svc, sender := newTestService()

	_, err := svc.PlaceOrder(ctx, core.Sell, 99, 10, 4)
	require.NoError(t, err)
	_, err = svc.PlaceOrder(ctx, core.Buy, 101, 4, 5)
	require.NoError(t, err)

	order, ok := svc.Order(4)
	require.True(t, ok)
	assert.Equal(t, core.Quantity(6), order.Quantity())

	require.NoError(t, svc.CancelOrder(ctx, 4))
	_, ok = svc.Order(4)
	assert.False(t, ok)

	reports := sender.Reports()
	require.Len(t, reports, 3)
	cancel := reports[2]
	assert.Equal(t, messaging.ReportCancel, cancel.Type)
	assert.Equal(t, "SELL", cancel.Side)
	assert.Equal(t, int64(99), cancel.Price)
	assert.Equal(t, int64(6), cancel.Quantity)
	assert.Equal(t, int64(0), cancel.Remaining)
}

func TestBookService_PublishFailureDoesNotFailOrder(t *testing.T) {
	ctx := context.Background()
	svc, sender := newTestService()
	sender.Err = errors.New("broker unavailable")

	_, err := svc.PlaceOrder(ctx, core.Buy, 100, 1, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, svc.Len())
}

func TestBookService_WithoutSender(t *testing.T) {
	svc := NewBookService(testInstrument)
	_, err := svc.PlaceOrder(context.Background(), core.Buy, 100, 1, 1)
	require.NoError(t, err)
	assert.NoError(t, svc.Close())
}

func TestBookService_SnapshotAndReset(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService()

	for i, p := range []core.Price{98, 99} {
		_, err := svc.PlaceOrder(ctx, core.Buy, p, 10, core.OrderID(i+1))
		require.NoError(t, err)
	}
	_, err := svc.PlaceOrder(ctx, core.Sell, 102, 3, 3)
	require.NoError(t, err)

	snap := svc.Snapshot(5)
	assert.Equal(t, []core.PriceQuantity{{Price: 99, Quantity: 10}, {Price: 98, Quantity: 10}}, snap.Bids)
	assert.Equal(t, []core.PriceQuantity{{Price: 102, Quantity: 3}}, snap.Asks)
	assert.Equal(t, 3, snap.Orders)
	assert.Equal(t, core.Sequence(3), snap.Sequence)
	spread, ok := snap.Spread()
	require.True(t, ok)
	assert.Equal(t, core.Price(3), spread)

	bids, asks := svc.Depth(1)
	assert.Len(t, bids, 1)
	assert.Len(t, asks, 1)

	svc.Reset(ctx)
	assert.Equal(t, 0, svc.Len())
	assert.Equal(t, testInstrument, svc.Instrument())
	empty := svc.Snapshot(5)
	_, ok = empty.Spread()
	assert.False(t, ok)
	_, ok = empty.BestBid()
	assert.False(t, ok)

	// ids are free again after a reset and sequences keep increasing
	_, err = svc.PlaceOrder(ctx, core.Buy, 98, 1, 1)
	require.NoError(t, err)
	assert.Equal(t, core.Sequence(4), svc.Snapshot(1).Sequence)
}

func TestBookService_Tracing(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	pkgotel.InitForTesting(tp.Tracer("test"))
	defer pkgotel.ResetForTesting()

	svc, _ := newTestService()
	_, err := svc.PlaceOrder(context.Background(), core.Buy, 100, 1, 1)
	require.NoError(t, err)
	_, err = svc.PlaceOrder(context.Background(), core.Buy, 100, 1, 1)
	require.Error(t, err)

	var names []string
	for _, s := range recorder.Ended() {
		names = append(names, s.Name())
	}
	assert.Equal(t, []string{pkgotel.SpanSendReport, pkgotel.SpanPlaceOrder, pkgotel.SpanPlaceOrder}, names)
}

func TestBookService_ConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	svc, sender := newTestService()

	const writers = 8
	const perWriter = 50

	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				id := core.OrderID(w*perWriter + i + 1)
				side := core.Buy
				if (w+i)%2 == 0 {
					side = core.Sell
				}
				_, err := svc.PlaceOrder(ctx, side, core.Price(95+i%10), 3, id)
				assert.NoError(t, err)
			}
		}(w)
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			snap := svc.Snapshot(3)
			bid, okBid := snap.BestBid()
			ask, okAsk := snap.BestAsk()
			if okBid && okAsk {
				assert.Less(t, bid.Price, ask.Price)
			}
		}
	}()
	wg.Wait()

	assert.Len(t, sender.Reports(), writers*perWriter)
}

func TestRejectReason(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{core.ErrInvalidQuantity, "invalid_quantity"},
		{core.ErrInvalidPrice, "invalid_price"},
		{core.ErrDuplicateOrderID, "duplicate_order_id"},
		{core.ErrQuantityOverflow, "quantity_overflow"},
		{core.ErrPriceOverflow, "price_overflow"},
		{core.ErrOrderNotFound, "order_not_found"},
		{errors.New("other"), "other"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, RejectReason(tt.err))
	}
}
