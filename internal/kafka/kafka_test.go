package kafka

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	mu     sync.Mutex
	msgs   []kafka.Message
	closed bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	return nil
}

func (w *fakeWriter) snapshot() ([]kafka.Message, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]kafka.Message(nil), w.msgs...), w.closed
}

func TestProducer_FlushesOnClose(t *testing.T) {
	w := &fakeWriter{}
	p := NewProducerWithWriter(w, 8)
	p.Start(context.Background())

	require.NoError(t, p.Publish(context.Background(), "order.created", []byte("o-1"), []byte(`{}`), EventHeaders("OrderCreated", "1")...))
	require.NoError(t, p.Publish(context.Background(), "order.status", []byte("o-1"), []byte(`{}`)))
	p.Close()
	p.WaitClosed()

	msgs, closed := w.snapshot()
	require.Len(t, msgs, 2)
	assert.Equal(t, "order.created", msgs[0].Topic)
	assert.Equal(t, "OrderCreated", Header(msgs[0], HeaderEventType))
	assert.Equal(t, "order.status", msgs[1].Topic)
	assert.True(t, closed)
}

func TestProducer_PublishDoesNotBlockWhenFull(t *testing.T) {
	p := NewProducerWithWriter(&fakeWriter{}, 1)
	// not started: nothing drains the inbox
	require.NoError(t, p.Publish(context.Background(), "t", nil, []byte("a")))

	err := p.Publish(context.Background(), "t", nil, []byte("b"))
	assert.True(t, errors.Is(err, ErrBufferFull))
}

func TestProducer_PublishAfterCloseFails(t *testing.T) {
	w := &fakeWriter{}
	p := NewProducerWithWriter(w, 8)
	p.Start(context.Background())
	p.Close()
	p.WaitClosed()

	var err error
	assert.NotPanics(t, func() {
		err = p.Publish(context.Background(), "order.created", []byte("o-1"), []byte(`{}`))
	})
	assert.True(t, errors.Is(err, ErrProducerClosed))
	assert.NotPanics(t, p.Close)

	msgs, _ := w.snapshot()
	assert.Empty(t, msgs)
}

type fakeReader struct {
	msgs chan kafka.Message

	mu        sync.Mutex
	committed []int64
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	select {
	case m := <-r.msgs:
		return m, nil
	case <-ctx.Done():
		return kafka.Message{}, ctx.Err()
	}
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *fakeReader) Close() error { return nil }

func (r *fakeReader) offsets() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int64(nil), r.committed...)
}

func startConsumer(t *testing.T, r *fakeReader, h Handler) (cancel func()) {
	t.Helper()
	c := NewConsumerWithReader(r, 2)
	c.retryBackoff = time.Millisecond
	c.maxRetryBackoff = 5 * time.Millisecond

	ctx, stop := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Start(ctx, h) }()
	return func() {
		stop()
		require.NoError(t, <-done)
	}
}

func TestConsumer_RetriesFailedMessageBeforeMovingOn(t *testing.T) {
	r := &fakeReader{msgs: make(chan kafka.Message, 3)}
	for i := int64(0); i < 3; i++ {
		r.msgs <- kafka.Message{Topic: "order.created", Partition: 0, Offset: i}
	}

	var mu sync.Mutex
	var handled []int64
	failures := 0
	stop := startConsumer(t, r, func(_ context.Context, m kafka.Message) error {
		mu.Lock()
		defer mu.Unlock()
		if m.Offset == 1 && failures < 2 {
			failures++
			return errors.New("gateway down")
		}
		handled = append(handled, m.Offset)
		return nil
	})

	assert.Eventually(t, func() bool { return len(r.offsets()) == 3 }, time.Second, 5*time.Millisecond)
	stop()

	assert.Equal(t, []int64{0, 1, 2}, r.offsets())
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int64{0, 1, 2}, handled)
	assert.Equal(t, 2, failures)
}

func TestConsumer_NeverCommitsPastAFailingMessage(t *testing.T) {
	r := &fakeReader{msgs: make(chan kafka.Message, 3)}
	for i := int64(0); i < 3; i++ {
		r.msgs <- kafka.Message{Topic: "order.created", Partition: 0, Offset: i}
	}

	var mu sync.Mutex
	attempts := 0
	var seen []int64
	stop := startConsumer(t, r, func(_ context.Context, m kafka.Message) error {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, m.Offset)
		if m.Offset == 1 {
			attempts++
			return errors.New("gateway down")
		}
		return nil
	})

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return attempts >= 3
	}, time.Second, 5*time.Millisecond)
	stop()

	assert.Equal(t, []int64{0}, r.offsets())
	mu.Lock()
	defer mu.Unlock()
	assert.NotContains(t, seen, int64(2))
}

func TestConsumer_PartitionsDoNotBlockEachOther(t *testing.T) {
	r := &fakeReader{msgs: make(chan kafka.Message, 2)}
	r.msgs <- kafka.Message{Topic: "order.status", Partition: 0, Offset: 7}
	r.msgs <- kafka.Message{Topic: "order.status", Partition: 1, Offset: 3}

	stop := startConsumer(t, r, func(_ context.Context, m kafka.Message) error {
		if m.Partition == 0 {
			return errors.New("gateway down")
		}
		return nil
	})

	assert.Eventually(t, func() bool { return len(r.offsets()) == 1 }, time.Second, 5*time.Millisecond)
	stop()
	assert.Equal(t, []int64{3}, r.offsets())
}

func TestUnwrapPayload(t *testing.T) {
	type payload struct {
		OrderID string `json:"order_id"`
	}
	got, err := UnwrapPayload[payload](json.RawMessage(`{"order_id":"o-1"}`))
	require.NoError(t, err)
	assert.Equal(t, "o-1", got.OrderID)

	_, err = UnwrapPayload[payload](json.RawMessage(`{`))
	assert.Error(t, err)
}
