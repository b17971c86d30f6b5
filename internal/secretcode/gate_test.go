package secretcode

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ariefcatur/storefront-orders/internal/catalog"
	"github.com/ariefcatur/storefront-orders/internal/clock"
	"github.com/ariefcatur/storefront-orders/internal/postgres"
	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memStore mirrors the compare-and-set semantics of PGStore.
type memStore struct {
	mu    sync.Mutex
	codes map[string]*SecretCode
}

func newMemStore(cs ...*SecretCode) *memStore {
	s := &memStore{codes: map[string]*SecretCode{}}
	for _, c := range cs {
		s.codes[c.Code] = c
	}
	return s
}

func (s *memStore) Insert(_ context.Context, _ postgres.DBTX, c *SecretCode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.codes[c.Code]; ok {
		return ErrCodeTaken
	}
	cp := *c
	s.codes[c.Code] = &cp
	return nil
}

func (s *memStore) FindByCode(_ context.Context, _ postgres.DBTX, code string) (*SecretCode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.codes[code]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (s *memStore) MarkScanned(_ context.Context, _ postgres.DBTX, code string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.codes[code]
	if !ok || c.IsScanned {
		return false, nil
	}
	c.IsScanned, c.ScannedAt = true, &at
	return true, nil
}

func (s *memStore) MarkUsed(_ context.Context, _ postgres.DBTX, code string, orderID uuid.UUID, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.codes[code]
	if !ok || c.IsUsed || !at.Before(c.ExpiresAt) {
		return false, nil
	}
	c.IsUsed, c.UsedAt, c.UsedByOrderID = true, &at, &orderID
	return true, nil
}

type stubCatalog struct{ products []catalog.Product }

func (s stubCatalog) SecretMenu(context.Context) ([]catalog.Product, error) {
	return s.products, nil
}

var t0 = time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)

func liveCode(code string) *SecretCode {
	return &SecretCode{
		ID:              uuid.New(),
		Code:            code,
		DiscountPercent: 20,
		ExpiresAt:       t0.AddDate(0, 3, 0),
		CreatedAt:       t0,
	}
}

func newGate(store *memStore, clk clock.Clock) *Gate {
	menu := stubCatalog{products: []catalog.Product{
		{ID: uuid.New(), Name: "Midnight Brownie", PriceCents: 5000, Stock: 3, IsSecret: true},
		{ID: uuid.New(), Name: "Pistachio Tart", PriceCents: 1250, Stock: 0, IsSecret: true},
	}}
	return NewGate(store, nil, menu, clk)
}

func TestView_FirstScanRevealsDiscountedMenu(t *testing.T) {
	store := newMemStore(liveCode("ABC234DEF567"))
	g := newGate(store, clock.NewManual(t0))

	v, err := g.View(context.Background(), "abc234def567 ", false)
	require.NoError(t, err)
	assert.False(t, v.AlreadyScanned)
	require.Len(t, v.Products, 2)
	assert.Equal(t, int64(4000), v.Products[0].DiscountedCents)
	assert.True(t, v.Products[0].InStock)
	assert.Equal(t, int64(1000), v.Products[1].DiscountedCents)
	assert.False(t, v.Products[1].InStock)

	stored, _ := store.FindByCode(context.Background(), nil, "ABC234DEF567")
	assert.True(t, stored.IsScanned)
	assert.Equal(t, t0, *stored.ScannedAt)
}

func TestView_SecondScanIsAlreadyUnlocked(t *testing.T) {
	store := newMemStore(liveCode("ABC234DEF567"))
	g := newGate(store, clock.NewManual(t0))
	ctx := context.Background()

	_, err := g.View(ctx, "ABC234DEF567", false)
	require.NoError(t, err)

	v, err := g.View(ctx, "ABC234DEF567", false)
	require.NoError(t, err)
	assert.True(t, v.AlreadyScanned)
	assert.Empty(t, v.Products)
}

func TestView_AdminNeverMutates(t *testing.T) {
	store := newMemStore(liveCode("ABC234DEF567"))
	g := newGate(store, clock.NewManual(t0))
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		v, err := g.View(ctx, "ABC234DEF567", true)
		require.NoError(t, err)
		assert.Len(t, v.Products, 2)
	}
	stored, _ := store.FindByCode(ctx, nil, "ABC234DEF567")
	assert.False(t, stored.IsScanned)

	// the customer still gets their one reveal
	v, err := g.View(ctx, "ABC234DEF567", false)
	require.NoError(t, err)
	assert.Len(t, v.Products, 2)
}

func TestView_AdminSeesExpiredCodeMenu(t *testing.T) {
	store := newMemStore(liveCode("ABC234DEF567"))
	g := newGate(store, clock.NewManual(t0.AddDate(1, 0, 0)))

	v, err := g.View(context.Background(), "ABC234DEF567", true)
	require.NoError(t, err)
	assert.True(t, v.Expired)
	assert.Len(t, v.Products, 2)
}

func TestView_ExpiredShowsNoProductsAndDoesNotScan(t *testing.T) {
	store := newMemStore(liveCode("ABC234DEF567"))
	clk := clock.NewManual(t0.AddDate(0, 3, 0))
	g := newGate(store, clk)

	v, err := g.View(context.Background(), "ABC234DEF567", false)
	require.NoError(t, err)
	assert.True(t, v.Expired)
	assert.False(t, v.AlreadyScanned)
	assert.Empty(t, v.Products)

	stored, _ := store.FindByCode(context.Background(), nil, "ABC234DEF567")
	assert.False(t, stored.IsScanned)
}

func TestView_ExpiredReportsEarlierScan(t *testing.T) {
	store := newMemStore(liveCode("ABC234DEF567"))
	clk := clock.NewManual(t0)
	g := newGate(store, clk)
	ctx := context.Background()

	_, err := g.View(ctx, "ABC234DEF567", false)
	require.NoError(t, err)

	clk.Set(t0.AddDate(0, 4, 0))
	v, err := g.View(ctx, "ABC234DEF567", false)
	require.NoError(t, err)
	assert.True(t, v.Expired)
	assert.True(t, v.AlreadyScanned)
}

func TestView_UnknownCode(t *testing.T) {
	g := newGate(newMemStore(), clock.NewManual(t0))
	_, err := g.View(context.Background(), "NOPE", false)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestView_ConcurrentScansRevealOnce(t *testing.T) {
	store := newMemStore(liveCode("ABC234DEF567"))
	g := newGate(store, clock.NewManual(t0))

	var revealed atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := g.View(context.Background(), "ABC234DEF567", false)
			if err == nil && len(v.Products) > 0 {
				revealed.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), revealed.Load())
}

func TestRedeem_WithoutScan(t *testing.T) {
	store := newMemStore(liveCode("ABC234DEF567"))
	g := newGate(store, clock.NewManual(t0))
	orderID := uuid.New()

	require.NoError(t, g.Redeem(context.Background(), "ABC234DEF567", orderID))

	stored, _ := store.FindByCode(context.Background(), nil, "ABC234DEF567")
	assert.True(t, stored.IsUsed)
	assert.False(t, stored.IsScanned)
	assert.Equal(t, orderID, *stored.UsedByOrderID)
}

func TestRedeem_Outcomes(t *testing.T) {
	used := liveCode("USED23456789")
	used.IsUsed = true

	cases := []struct {
		name string
		code string
		now  time.Time
		want error
	}{
		{"unknown", "MISSING23456", t0, ErrNotFound},
		{"already used", "USED23456789", t0, ErrAlreadyUsed},
		{"expired at boundary", "LIVE23456789", t0.AddDate(0, 3, 0), ErrExpired},
		{"expired and used", "USED23456789", t0.AddDate(0, 6, 0), ErrExpired},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			u := *used
			store := newMemStore(liveCode("LIVE23456789"), &u)
			g := newGate(store, clock.NewManual(tc.now))
			err := g.Redeem(context.Background(), tc.code, uuid.New())
			assert.True(t, errors.Is(err, tc.want), "got %v", err)
		})
	}
}

func TestRedeem_ConcurrentSingleWinner(t *testing.T) {
	store := newMemStore(liveCode("ABC234DEF567"))
	g := newGate(store, clock.NewManual(t0))

	var wins, used atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := g.Redeem(context.Background(), "ABC234DEF567", uuid.New())
			switch {
			case err == nil:
				wins.Add(1)
			case errors.Is(err, ErrAlreadyUsed):
				used.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), wins.Load())
	assert.Equal(t, int32(19), used.Load())
}
