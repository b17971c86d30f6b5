package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	kafkax "github.com/ariefcatur/storefront-orders/internal/kafka"
	"github.com/ariefcatur/storefront-orders/internal/money"
	"github.com/ariefcatur/storefront-orders/internal/orders"
	"github.com/ariefcatur/storefront-orders/internal/redisx"
	"github.com/cockroachdb/errors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	kafkago "github.com/segmentio/kafka-go"
)

type Relay struct {
	Redis       redis.Cmdable
	Notifier    Notifier
	ServiceName string
	StoreName   string
	BaseURL     string // public storefront URL, used for secret code links
	CountryCode string
}

// HandleEvent is installed as the consumer handler. Each event id is
// delivered at most once per dedup window; a failed send releases the claim
// so the redelivered message is tried again.
func (r *Relay) HandleEvent(ctx context.Context, m kafkago.Message) error {
	var env orders.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		// poison message: log and commit
		log.Error().Err(err).Str("topic", m.Topic).Int64("offset", m.Offset).Msg("relay: bad envelope")
		return nil
	}

	msg, ok, err := r.render(env)
	if err != nil {
		log.Error().Err(err).Str("event_id", env.EventID).Str("event_type", env.EventType).Msg("relay: bad payload")
		return nil
	}
	if !ok {
		return nil
	}

	dkey := fmt.Sprintf(redisx.KeyDedup, r.ServiceName, env.EventID)
	claimed, err := redisx.Claim(ctx, r.Redis, dkey, redisx.TTLDedup)
	if err != nil {
		return errors.Wrap(err, "relay: claim event")
	}
	if !claimed {
		log.Debug().Str("event_id", env.EventID).Msg("relay: duplicate event skipped")
		return nil
	}

	if err := r.Notifier.Send(ctx, msg); err != nil {
		if delErr := r.Redis.Del(ctx, dkey).Err(); delErr != nil {
			log.Warn().Err(delErr).Str("event_id", env.EventID).Msg("relay: release claim")
		}
		return errors.Wrapf(err, "relay: send %s", env.EventType)
	}
	return nil
}

// render builds the customer message for env. ok is false for events the
// relay does not notify about.
func (r *Relay) render(env orders.Envelope) (Message, bool, error) {
	switch env.EventType {
	case orders.EventOrderCreated:
		p, err := kafkax.UnwrapPayload[orders.OrderCreatedPayload](env.Payload)
		if err != nil {
			return Message{}, false, err
		}
		return r.message(p.OrderID, p.CustomerPhone, r.createdText(p)), true, nil

	case orders.EventStatusChanged:
		p, err := kafkax.UnwrapPayload[orders.StatusChangedPayload](env.Payload)
		if err != nil {
			return Message{}, false, err
		}
		text, ok := r.statusText(p)
		if !ok {
			return Message{}, false, nil
		}
		return r.message(p.OrderID, p.CustomerPhone, text), true, nil

	case orders.EventRewardsIssued:
		p, err := kafkax.UnwrapPayload[orders.RewardsIssuedPayload](env.Payload)
		if err != nil {
			return Message{}, false, err
		}
		return r.message(p.OrderID, p.CustomerPhone, r.rewardsText(p)), true, nil
	}
	return Message{}, false, nil
}

func (r *Relay) message(orderID, phone, text string) Message {
	to := NormalizePhone(phone, r.CountryCode)
	return Message{OrderID: orderID, To: to, Text: text, Link: WhatsAppLink(to, text)}
}

func (r *Relay) createdText(p orders.OrderCreatedPayload) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Hi %s, thanks for ordering from %s!\n", p.CustomerName, r.StoreName)
	fmt.Fprintf(&b, "Order reference: %s\n", p.Reference)
	if p.DiscountCents > 0 {
		fmt.Fprintf(&b, "Discount: -%s\n", money.Format(p.DiscountCents))
	}
	if p.DeliveryFeeCents > 0 {
		fmt.Fprintf(&b, "Delivery: %s\n", money.Format(p.DeliveryFeeCents))
	}
	fmt.Fprintf(&b, "Total: %s\n", money.Format(p.TotalCents))
	b.WriteString("We will confirm once your payment is received.")
	return b.String()
}

func (r *Relay) statusText(p orders.StatusChangedPayload) (string, bool) {
	switch p.To {
	case orders.StatusPaid:
		return fmt.Sprintf("Hi %s, payment for order %s is confirmed. We are preparing it now.", p.CustomerName, p.Reference), true
	case orders.StatusPacked:
		return fmt.Sprintf("Hi %s, order %s is packed and ready.", p.CustomerName, p.Reference), true
	case orders.StatusCollected:
		return fmt.Sprintf("Hi %s, order %s has been collected. Enjoy!", p.CustomerName, p.Reference), true
	}
	return "", false
}

func (r *Relay) rewardsText(p orders.RewardsIssuedPayload) string {
	link := strings.TrimRight(r.BaseURL, "/") + "/secret/" + p.SecretCode
	return fmt.Sprintf(
		"Thank you %s! Order %s earned you a gift card worth %s (code %s) "+
			"and a secret menu with %d%% off: %s (valid until %s).",
		p.CustomerName, p.Reference, money.Format(p.GiftCardValueCents), p.GiftCardCode,
		p.SecretDiscountPercent, link, p.SecretExpiresAt.Format("2 Jan 2006"),
	)
}
