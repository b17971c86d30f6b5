package settings

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeDB is an in-memory settings table.
type fakeDB struct {
	mu      sync.Mutex
	values  map[string]string
	selects int
}

type fakeRow struct {
	v   string
	err error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	*(dest[0].(*string)) = r.v
	return nil
}

func (f *fakeDB) QueryRow(_ context.Context, _ string, args ...any) pgx.Row {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.selects++
	v, ok := f.values[args[0].(string)]
	if !ok {
		return fakeRow{err: pgx.ErrNoRows}
	}
	return fakeRow{v: v}
}

func (f *fakeDB) Exec(_ context.Context, _ string, args ...any) (pgconn.CommandTag, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.values[args[0].(string)] = args[1].(string)
	return pgconn.NewCommandTag("INSERT 0 1"), nil
}

func newStore(t *testing.T) (*Store, *fakeDB, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	db := &fakeDB{values: map[string]string{}}
	return NewStore(db, rdb, 30*time.Second, 20), db, mr
}

func TestSecretDiscountPercent_DefaultWhenUnset(t *testing.T) {
	s, _, _ := newStore(t)
	pct, err := s.SecretDiscountPercent(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 20, pct)
}

func TestSecretDiscountPercent_ReadThroughCache(t *testing.T) {
	s, db, mr := newStore(t)
	ctx := context.Background()
	db.values[KeySecretDiscountPercent] = "35"

	pct, err := s.SecretDiscountPercent(ctx)
	require.NoError(t, err)
	assert.Equal(t, 35, pct)

	pct, err = s.SecretDiscountPercent(ctx)
	require.NoError(t, err)
	assert.Equal(t, 35, pct)
	assert.Equal(t, 1, db.selects, "second read should be served from cache")

	mr.FastForward(31 * time.Second)
	_, err = s.SecretDiscountPercent(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, db.selects, "cache must expire")
}

func TestSetSecretDiscountPercent_InvalidatesCache(t *testing.T) {
	s, _, _ := newStore(t)
	ctx := context.Background()

	require.NoError(t, s.SetSecretDiscountPercent(ctx, 10))
	pct, err := s.SecretDiscountPercent(ctx)
	require.NoError(t, err)
	assert.Equal(t, 10, pct)

	require.NoError(t, s.SetSecretDiscountPercent(ctx, 45))
	pct, err = s.SecretDiscountPercent(ctx)
	require.NoError(t, err)
	assert.Equal(t, 45, pct)
}

func TestSetSecretDiscountPercent_Range(t *testing.T) {
	s, _, _ := newStore(t)
	for _, bad := range []int{-1, 101} {
		err := s.SetSecretDiscountPercent(context.Background(), bad)
		assert.ErrorIs(t, err, ErrInvalidPercent)
	}
}

func TestSecretDiscountPercent_WithoutRedis(t *testing.T) {
	db := &fakeDB{values: map[string]string{KeySecretDiscountPercent: "15"}}
	s := NewStore(db, nil, time.Second, 20)

	pct, err := s.SecretDiscountPercent(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 15, pct)
}

func TestSecretDiscountPercent_CorruptValueFallsBack(t *testing.T) {
	db := &fakeDB{values: map[string]string{KeySecretDiscountPercent: "lots"}}
	s := NewStore(db, nil, time.Second, 20)

	pct, err := s.SecretDiscountPercent(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 20, pct)
}
