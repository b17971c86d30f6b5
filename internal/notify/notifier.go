// Package notify turns order events into customer messages. Delivery is left
// to a Notifier; this repo ships one that only logs.
package notify

import (
	"context"

	"github.com/rs/zerolog/log"
)

type Message struct {
	OrderID string
	To      string // digits only
	Text    string
	Link    string // wa.me click-to-chat
}

type Notifier interface {
	Send(ctx context.Context, m Message) error
}

type LogNotifier struct{}

func (LogNotifier) Send(_ context.Context, m Message) error {
	log.Info().
		Str("order_id", m.OrderID).
		Str("to", m.To).
		Str("link", m.Link).
		Msg("notify: message ready")
	return nil
}
