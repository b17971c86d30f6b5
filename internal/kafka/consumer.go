package kafka

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"
)

// Handler must return nil only when the message was handled and its offset
// may be committed.
type Handler func(ctx context.Context, m kafka.Message) error

type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Consumer struct {
	r       MessageReader
	workers int

	retryBackoff    time.Duration
	maxRetryBackoff time.Duration
}

func NewConsumer(brokers []string, group string, topics []string, workers int) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		GroupID:        group,
		GroupTopics:    topics,
		MinBytes:       1,
		MaxBytes:       10e6,
		CommitInterval: 0, // manual commit
	})
	return NewConsumerWithReader(r, workers)
}

func NewConsumerWithReader(r MessageReader, workers int) *Consumer {
	if workers <= 0 {
		workers = 1
	}
	return &Consumer{r: r, workers: workers, retryBackoff: 200 * time.Millisecond, maxRetryBackoff: 10 * time.Second}
}

// Start dispatches messages to a fixed worker pool until ctx is done. It
// returns nil on shutdown and the read error otherwise.
//
// Every partition is owned by one worker, so its messages are handled and
// committed in offset order. A failing message is retried until it succeeds
// or ctx is done; nothing after it in the partition is committed first.
func (c *Consumer) Start(ctx context.Context, h Handler) error {
	defer c.r.Close()

	queues := make([]chan kafka.Message, c.workers)
	var wg sync.WaitGroup
	for i := range queues {
		queues[i] = make(chan kafka.Message, 128)
		wg.Add(1)
		go func(q <-chan kafka.Message) {
			defer wg.Done()
			for m := range q {
				if !c.process(ctx, h, m) {
					return
				}
			}
		}(queues[i])
	}
	stop := func() {
		for _, q := range queues {
			close(q)
		}
		wg.Wait()
	}

	for {
		m, err := c.r.FetchMessage(ctx)
		if err != nil {
			stop()
			select {
			case <-ctx.Done():
				return nil
			default:
				return err
			}
		}
		select {
		case queues[m.Partition%c.workers] <- m:
		case <-ctx.Done():
			stop()
			return nil
		}
	}
}

// process handles m until it succeeds, then commits it. It returns false
// when ctx ended first; m is left uncommitted.
func (c *Consumer) process(ctx context.Context, h Handler, m kafka.Message) bool {
	backoff := c.retryBackoff
	for attempt := 1; ; attempt++ {
		err := h(ctx, m)
		if err == nil {
			break
		}
		log.Error().Err(err).
			Str("topic", m.Topic).
			Int("partition", m.Partition).
			Int64("offset", m.Offset).
			Int("attempt", attempt).
			Msg("kafka: handler failed, retrying")
		select {
		case <-ctx.Done():
			return false
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, c.maxRetryBackoff)
	}
	if err := c.r.CommitMessages(ctx, m); err != nil {
		log.Error().Err(err).Str("topic", m.Topic).Int64("offset", m.Offset).Msg("kafka: commit failed")
	}
	return true
}
