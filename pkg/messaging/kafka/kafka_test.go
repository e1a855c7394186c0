package kafka

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erain9/limitbook/pkg/messaging"
	"github.com/erain9/limitbook/pkg/testutil"
)

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error {
	f.closed = true
	return nil
}

type fakeReader struct {
	msgs      chan kafka.Message
	committed []kafka.Message
}

func (f *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	select {
	case m := <-f.msgs:
		return m, nil
	case <-ctx.Done():
		return kafka.Message{}, ctx.Err()
	}
}

func (f *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	f.committed = append(f.committed, msgs...)
	return nil
}

func (f *fakeReader) Close() error { return nil }

func report(id uint64) *messaging.ExecutionReport {
	return &messaging.ExecutionReport{
		Type:      messaging.ReportPlace,
		OrderID:   id,
		Side:      "BUY",
		Price:     100,
		Quantity:  5,
		Remaining: 5,
		Rested:    true,
		Sequence:  1,
		Timestamp: time.Now().UTC(),
	}
}

func TestKafkaMessageSender_SendReport(t *testing.T) {
	w := &fakeWriter{}
	sender := &KafkaMessageSender{writer: w, topic: "reports", timeout: time.Second}

	require.NoError(t, sender.SendReport(context.Background(), report(42)))
	require.Len(t, w.msgs, 1)
	assert.Equal(t, "42", string(w.msgs[0].Key))

	decoded, err := messaging.Decode(w.msgs[0].Value)
	require.NoError(t, err)
	assert.Equal(t, uint64(42), decoded.OrderID)
	assert.True(t, decoded.Rested)

	w.err = errors.New("leader not available")
	assert.ErrorContains(t, sender.SendReport(context.Background(), report(43)), "leader not available")

	require.NoError(t, sender.Close())
	assert.True(t, w.closed)
}

func TestNewKafkaMessageSenderNeedsBrokers(t *testing.T) {
	_, err := NewKafkaMessageSender(nil, "reports")
	assert.Error(t, err)
}

func TestConsumer_Run(t *testing.T) {
	r := &fakeReader{msgs: make(chan kafka.Message, 3)}
	c := &Consumer{reader: r, logger: zerolog.Nop()}

	good, err := messaging.Encode(report(7))
	require.NoError(t, err)
	r.msgs <- kafka.Message{Value: []byte("garbage"), Offset: 1}
	r.msgs <- kafka.Message{Value: good, Offset: 2}

	ctx, cancel := context.WithCancel(context.Background())
	got := make(chan *messaging.ExecutionReport, 1)
	done := make(chan error, 1)
	go func() {
		done <- c.Run(ctx, func(rep *messaging.ExecutionReport) error {
			got <- rep
			return nil
		})
	}()

	select {
	case rep := <-got:
		assert.Equal(t, uint64(7), rep.OrderID)
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for report")
	}

	cancel()
	require.NoError(t, <-done)
	assert.Len(t, r.committed, 2)
}

func TestConsumer_HandlerErrorStops(t *testing.T) {
	r := &fakeReader{msgs: make(chan kafka.Message, 1)}
	c := &Consumer{reader: r, logger: zerolog.Nop()}

	data, err := messaging.Encode(report(1))
	require.NoError(t, err)
	r.msgs <- kafka.Message{Value: data}

	err = c.Run(context.Background(), func(*messaging.ExecutionReport) error {
		return errors.New("boom")
	})
	assert.ErrorContains(t, err, "boom")
	assert.Empty(t, r.committed)
}

func TestKafkaRoundTrip(t *testing.T) {
	broker := testutil.KafkaAddr()
	testutil.SkipIfKafkaUnavailable(t, broker)

	topic := "limitbook-test"
	sender, err := NewKafkaMessageSender([]string{broker}, topic)
	require.NoError(t, err)
	defer sender.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, sender.SendReport(ctx, report(99)))

	consumer := NewConsumer([]string{broker}, topic, "limitbook-test-"+time.Now().Format("150405.000"), zerolog.Nop())
	defer consumer.Close()

	found := errors.New("found")
	err = consumer.Run(ctx, func(rep *messaging.ExecutionReport) error {
		if rep.OrderID == 99 {
			return found
		}
		return nil
	})
	assert.ErrorIs(t, err, found)
}
