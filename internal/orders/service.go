package orders

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ariefcatur/storefront-orders/internal/clock"
	"github.com/ariefcatur/storefront-orders/internal/codes"
	kafkax "github.com/ariefcatur/storefront-orders/internal/kafka"
	"github.com/ariefcatur/storefront-orders/internal/money"
	"github.com/ariefcatur/storefront-orders/internal/postgres"
	"github.com/ariefcatur/storefront-orders/internal/redisx"
	"github.com/ariefcatur/storefront-orders/internal/rewards"
	"github.com/ariefcatur/storefront-orders/internal/secretcode"
	"github.com/cockroachdb/errors"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	kafkago "github.com/segmentio/kafka-go"
)

const (
	maxReferenceAttempts = 5
	defaultListLimit     = 50
	maxListLimit         = 200
)

type Store interface {
	Insert(ctx context.Context, q postgres.DBTX, o *Order) error
	GetByID(ctx context.Context, q postgres.DBTX, id uuid.UUID) (*Order, error)
	GetByReference(ctx context.Context, q postgres.DBTX, reference string) (*Order, error)
	FindByExternalID(ctx context.Context, q postgres.DBTX, externalID string) (*Order, error)
	LockStatus(ctx context.Context, q postgres.DBTX, id uuid.UUID) (Status, error)
	UpdateStatus(ctx context.Context, q postgres.DBTX, id uuid.UUID, to Status, giftCardID, secretCodeID *uuid.UUID) error
	List(ctx context.Context, q postgres.DBTX, status Status, limit int) ([]Order, error)
	Anonymize(ctx context.Context, q postgres.DBTX, email, phone string, at time.Time) (int64, error)
}

type Inventory interface {
	Reserve(ctx context.Context, q postgres.DBTX, items []ItemInput) ([]LineItem, error)
}

type CodeRedeemer interface {
	Lookup(ctx context.Context, code string) (*secretcode.SecretCode, error)
	RedeemTx(ctx context.Context, q postgres.DBTX, code string, orderID uuid.UUID) error
}

type RewardIssuer interface {
	Issue(ctx context.Context, q postgres.DBTX, orderID uuid.UUID, discountPercent int) (*rewards.GiftCard, *secretcode.SecretCode, error)
}

type DiscountSource interface {
	SecretDiscountPercent(ctx context.Context) (int, error)
}

type Publisher interface {
	Publish(ctx context.Context, topic string, key, value []byte, headers ...kafkago.Header) error
}

type Deps struct {
	Tx        postgres.TxRunner
	DB        postgres.DBTX
	Store     Store
	Inventory Inventory
	Codes     CodeRedeemer
	Rewards   RewardIssuer
	Discount  DiscountSource
	Publisher Publisher
	Redis     redis.Cmdable // optional
	Clock     clock.Clock
	Producer  string
}

// Service is the order lifecycle controller. Every mutation runs in a single
// transaction; events and cache writes happen only after commit.
type Service struct {
	Deps
	validate *validator.Validate
}

func NewService(d Deps) *Service {
	if d.Clock == nil {
		d.Clock = clock.Real()
	}
	return &Service{Deps: d, validate: newValidator()}
}

// CreateOrder validates, reserves stock, writes the pending order and redeems
// the consumed secret code, all or nothing.
func (s *Service) CreateOrder(ctx context.Context, in CreateOrderInput) (*CreateResult, error) {
	in.SecretCode = codes.Normalize(in.SecretCode)
	if err := validateCreate(s.validate, in); err != nil {
		return nil, err
	}

	if in.ExternalID != "" {
		o, err := s.existing(ctx, in.ExternalID)
		if err != nil {
			return nil, err
		}
		if o != nil {
			return &CreateResult{Order: o, Idempotent: true}, nil
		}
	}

	var code *secretcode.SecretCode
	if in.SecretCode != "" {
		c, err := s.Codes.Lookup(ctx, in.SecretCode)
		if err != nil {
			return nil, err
		}
		now := s.Clock.Now()
		switch {
		case c.Expired(now):
			return nil, errors.Wrapf(secretcode.ErrExpired, "code %s", c.Code)
		case c.IsUsed:
			return nil, errors.Wrapf(secretcode.ErrAlreadyUsed, "code %s", c.Code)
		}
		code = c
	}

	var order *Order
	err := s.Tx.InTx(ctx, func(ctx context.Context, q postgres.DBTX) error {
		lines, err := s.Inventory.Reserve(ctx, q, in.Items)
		if err != nil {
			return err
		}
		o := s.newOrder(in, lines, code)
		if err := s.insert(ctx, q, o); err != nil {
			return err
		}
		if code != nil {
			if err := s.Codes.RedeemTx(ctx, q, code.Code, o.ID); err != nil {
				return err
			}
		}
		order = o
		return nil
	})
	if err != nil {
		if in.ExternalID != "" && postgres.IsUniqueViolation(err, constraintExternalID) {
			// lost a race with a concurrent request carrying the same external id
			o, ferr := s.Store.FindByExternalID(ctx, s.DB, in.ExternalID)
			if ferr == nil {
				return &CreateResult{Order: o, Idempotent: true}, nil
			}
		}
		s.logFailure(err, "create order")
		return nil, err
	}

	log.Info().
		Str("order_id", order.ID.String()).
		Str("reference", order.Reference).
		Int64("total_cents", order.TotalCents).
		Msg("order created")

	s.publish(ctx, TopicOrderCreated, EventOrderCreated, order.ID, createdPayload(order))
	if in.ExternalID != "" && s.Redis != nil {
		key := fmt.Sprintf(redisx.KeyIdemOrderCreate, in.ExternalID)
		if err := s.Redis.Set(ctx, key, order.ID.String(), redisx.TTLIdempotency).Err(); err != nil {
			log.Warn().Err(err).Str("order_id", order.ID.String()).Msg("orders: set idempotency key")
		}
	}
	s.cacheStatus(ctx, order)
	return &CreateResult{Order: order}, nil
}

// existing returns the order already created for externalID, or nil. Redis
// is only a shortcut; Postgres decides.
func (s *Service) existing(ctx context.Context, externalID string) (*Order, error) {
	if s.Redis != nil {
		key := fmt.Sprintf(redisx.KeyIdemOrderCreate, externalID)
		if raw, err := s.Redis.Get(ctx, key).Result(); err == nil {
			if id, perr := uuid.Parse(raw); perr == nil {
				if o, gerr := s.Store.GetByID(ctx, s.DB, id); gerr == nil {
					return o, nil
				}
			}
		}
	}
	o, err := s.Store.FindByExternalID(ctx, s.DB, externalID)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return o, nil
}

func (s *Service) newOrder(in CreateOrderInput, lines []LineItem, code *secretcode.SecretCode) *Order {
	var subtotal int64
	for _, li := range lines {
		subtotal += li.TotalCents()
	}
	now := s.Clock.Now()
	o := &Order{
		ID:         uuid.New(),
		ExternalID: in.ExternalID,
		Customer: Customer{
			Name:  in.Customer.Name,
			Phone: in.Customer.Phone,
			Email: in.Customer.Email,
		},
		Delivery: Delivery{
			Method:  in.Delivery.Method,
			Address: in.Delivery.Address,
			City:    in.Delivery.City,
			Notes:   in.Delivery.Notes,
		},
		Items:            lines,
		SubtotalCents:    subtotal,
		DeliveryFeeCents: in.DeliveryFeeCents,
		Status:           StatusPending,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if o.Delivery.Method == DeliveryPickup {
		o.DeliveryFeeCents = 0
	}
	if code != nil {
		o.DiscountCents = money.PercentOf(subtotal, code.DiscountPercent)
		o.ConsumedSecretCodeID = &code.ID
	}
	o.TotalCents = o.SubtotalCents - o.DiscountCents + o.DeliveryFeeCents
	return o
}

// insert assigns a fresh reference until one is free.
func (s *Service) insert(ctx context.Context, q postgres.DBTX, o *Order) error {
	for attempt := 1; ; attempt++ {
		ref, err := codes.Reference()
		if err != nil {
			return err
		}
		o.Reference = ref
		err = s.Store.Insert(ctx, q, o)
		if !errors.Is(err, errReferenceTaken) {
			return err
		}
		if attempt >= maxReferenceAttempts {
			return errors.Wrapf(err, "no free reference after %d attempts", attempt)
		}
		log.Warn().Str("reference", ref).Msg("orders: reference collision, retrying")
	}
}

// Transition moves an order exactly one step forward. Moving to paid also
// issues the order's gift card and secret code in the same transaction.
func (s *Service) Transition(ctx context.Context, id uuid.UUID, to Status) (*TransitionResult, error) {
	var pct int
	if to == StatusPaid {
		p, err := s.Discount.SecretDiscountPercent(ctx)
		if err != nil {
			return nil, errors.Wrap(err, "read secret discount")
		}
		pct = p
	}

	var res *TransitionResult
	err := s.Tx.InTx(ctx, func(ctx context.Context, q postgres.DBTX) error {
		from, err := s.Store.LockStatus(ctx, q, id)
		if err != nil {
			return err
		}
		if !CanTransition(from, to) {
			return &InvalidTransitionError{From: from, To: to}
		}

		r := &TransitionResult{From: from, To: to}
		var giftID, codeID *uuid.UUID
		if to == StatusPaid {
			gift, sc, err := s.Rewards.Issue(ctx, q, id, pct)
			if err != nil {
				return err
			}
			giftID, codeID = &gift.ID, &sc.ID
			r.Gift = &GiftReward{ID: gift.ID, Code: gift.Code, ValueCents: gift.ValueCents}
			r.Code = &CodeReward{ID: sc.ID, Code: sc.Code, DiscountPercent: sc.DiscountPercent, ExpiresAt: sc.ExpiresAt}
		}
		if err := s.Store.UpdateStatus(ctx, q, id, to, giftID, codeID); err != nil {
			return err
		}
		if r.Order, err = s.Store.GetByID(ctx, q, id); err != nil {
			return err
		}
		res = r
		return nil
	})
	if err != nil {
		s.logFailure(err, "transition order")
		return nil, err
	}

	o := res.Order
	log.Info().
		Str("order_id", id.String()).
		Str("from", string(res.From)).
		Str("to", string(res.To)).
		Msg("order status changed")

	s.publish(ctx, TopicOrderStatus, EventStatusChanged, id, StatusChangedPayload{
		OrderID:       id.String(),
		Reference:     o.Reference,
		CustomerName:  o.Customer.Name,
		CustomerPhone: o.Customer.Phone,
		From:          res.From,
		To:            res.To,
	})
	if res.Gift != nil {
		s.publish(ctx, TopicOrderRewards, EventRewardsIssued, id, RewardsIssuedPayload{
			OrderID:               id.String(),
			Reference:             o.Reference,
			CustomerName:          o.Customer.Name,
			CustomerPhone:         o.Customer.Phone,
			GiftCardCode:          res.Gift.Code,
			GiftCardValueCents:    res.Gift.ValueCents,
			SecretCode:            res.Code.Code,
			SecretDiscountPercent: res.Code.DiscountPercent,
			SecretExpiresAt:       res.Code.ExpiresAt,
		})
	}
	s.cacheStatus(ctx, o)
	return res, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Order, error) {
	return s.Store.GetByID(ctx, s.DB, id)
}

func (s *Service) GetByReference(ctx context.Context, reference string) (*Order, error) {
	return s.Store.GetByReference(ctx, s.DB, codes.Normalize(reference))
}

type StatusView struct {
	OrderID   uuid.UUID `json:"order_id"`
	Reference string    `json:"reference"`
	Status    Status    `json:"status"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Status serves the order status from the Redis cache when present.
func (s *Service) Status(ctx context.Context, id uuid.UUID) (*StatusView, error) {
	key := fmt.Sprintf(redisx.KeyOrderStatus, id)
	if s.Redis != nil {
		if raw, err := s.Redis.Get(ctx, key).Bytes(); err == nil {
			var v StatusView
			if json.Unmarshal(raw, &v) == nil {
				return &v, nil
			}
		}
	}
	o, err := s.Store.GetByID(ctx, s.DB, id)
	if err != nil {
		return nil, err
	}
	s.cacheStatus(ctx, o)
	return statusView(o), nil
}

func (s *Service) List(ctx context.Context, status Status, limit int) ([]Order, error) {
	if status != "" && !status.Valid() {
		return nil, &ValidationError{Fields: map[string]string{"status": "must be one of: pending paid packed collected"}}
	}
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	return s.Store.List(ctx, s.DB, status, limit)
}

// Anonymize wipes customer contact data from every order placed with email
// or phone and returns how many orders changed.
func (s *Service) Anonymize(ctx context.Context, email, phone string) (int64, error) {
	if email == "" && phone == "" {
		return 0, &ValidationError{Fields: map[string]string{"email": "email or phone is required"}}
	}
	var n int64
	err := s.Tx.InTx(ctx, func(ctx context.Context, q postgres.DBTX) error {
		var err error
		n, err = s.Store.Anonymize(ctx, q, email, phone, s.Clock.Now())
		return err
	})
	if err != nil {
		return 0, err
	}
	log.Info().Int64("orders", n).Msg("customer anonymized")
	return n, nil
}

func statusView(o *Order) *StatusView {
	return &StatusView{OrderID: o.ID, Reference: o.Reference, Status: o.Status, UpdatedAt: o.UpdatedAt}
}

func (s *Service) cacheStatus(ctx context.Context, o *Order) {
	if s.Redis == nil {
		return
	}
	key := fmt.Sprintf(redisx.KeyOrderStatus, o.ID)
	if err := s.Redis.Set(ctx, key, kafkax.MustMarshal(statusView(o)), redisx.TTLStatusCache).Err(); err != nil {
		log.Warn().Err(err).Str("order_id", o.ID.String()).Msg("orders: cache status")
	}
}

// publish is fire-and-forget: a failed enqueue is logged, never returned.
func (s *Service) publish(ctx context.Context, topic, eventType string, orderID uuid.UUID, payload any) {
	if s.Publisher == nil {
		return
	}
	env := Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    s.Clock.Now(),
		Producer:      s.Producer,
		TraceID:       TraceID(ctx),
		CorrelationID: orderID.String(),
		Payload:       kafkax.MustMarshal(payload),
	}
	err := s.Publisher.Publish(ctx, topic, PartitionKey(orderID.String()), kafkax.MustMarshal(env),
		kafkax.EventHeaders(eventType, "1")...)
	if err != nil {
		log.Error().Err(err).Str("order_id", orderID.String()).Str("topic", topic).Msg("orders: publish event")
	}
}

func (s *Service) logFailure(err error, op string) {
	var (
		stock *InsufficientStockError
		trans *InvalidTransitionError
		valid *ValidationError
	)
	switch {
	case errors.As(err, &stock), errors.As(err, &trans), errors.As(err, &valid),
		errors.Is(err, ErrNotFound), errors.Is(err, ErrProductNotFound),
		errors.Is(err, secretcode.ErrNotFound), errors.Is(err, secretcode.ErrExpired),
		errors.Is(err, secretcode.ErrAlreadyUsed):
		log.Warn().Err(err).Msg("orders: " + op + " rejected")
	default:
		log.Error().Err(err).Msg("orders: " + op + " failed")
	}
}

type traceKey struct{}

// WithTraceID tags ctx so published events carry the request id.
func WithTraceID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, traceKey{}, id)
}

func TraceID(ctx context.Context) string {
	id, _ := ctx.Value(traceKey{}).(string)
	return id
}
