// Package settings holds admin-configurable global values. Reads go through a
// short-lived Redis cache so every instance observes a change within the TTL.
package settings

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/ariefcatur/storefront-orders/internal/redisx"
	"github.com/cockroachdb/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const KeySecretDiscountPercent = "secret_discount_percent"

var ErrInvalidPercent = errors.New("discount percent must be within 0..100")

type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Store struct {
	db              Querier
	rdb             redis.Cmdable
	cacheTTL        time.Duration
	defaultDiscount int
}

// NewStore returns a settings store. rdb may be nil, in which case every read
// hits Postgres.
func NewStore(db Querier, rdb redis.Cmdable, cacheTTL time.Duration, defaultDiscount int) *Store {
	return &Store{db: db, rdb: rdb, cacheTTL: cacheTTL, defaultDiscount: defaultDiscount}
}

// SecretDiscountPercent returns the discount applied to newly issued secret
// codes, or the configured default when the setting was never written.
func (s *Store) SecretDiscountPercent(ctx context.Context) (int, error) {
	raw, found, err := s.get(ctx, KeySecretDiscountPercent)
	if err != nil {
		return 0, err
	}
	if !found {
		return s.defaultDiscount, nil
	}
	pct, err := strconv.Atoi(raw)
	if err != nil || pct < 0 || pct > 100 {
		log.Warn().Str("value", raw).Msg("settings: stored discount is invalid, using default")
		return s.defaultDiscount, nil
	}
	return pct, nil
}

func (s *Store) SetSecretDiscountPercent(ctx context.Context, pct int) error {
	if pct < 0 || pct > 100 {
		return errors.Wrapf(ErrInvalidPercent, "got %d", pct)
	}
	return s.set(ctx, KeySecretDiscountPercent, strconv.Itoa(pct))
}

func (s *Store) get(ctx context.Context, key string) (string, bool, error) {
	cacheKey := fmt.Sprintf(redisx.KeySetting, key)
	if s.rdb != nil {
		v, err := s.rdb.Get(ctx, cacheKey).Result()
		switch {
		case err == nil:
			return v, true, nil
		case !errors.Is(err, redis.Nil):
			log.Warn().Err(err).Str("key", key).Msg("settings: cache read failed")
		}
	}

	var v string
	err := s.db.QueryRow(ctx, `SELECT value FROM settings WHERE key = $1`, key).Scan(&v)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, errors.Wrapf(err, "settings: select %s", key)
	}

	if s.rdb != nil {
		if err := s.rdb.Set(ctx, cacheKey, v, s.cacheTTL).Err(); err != nil {
			log.Warn().Err(err).Str("key", key).Msg("settings: cache write failed")
		}
	}
	return v, true, nil
}

func (s *Store) set(ctx context.Context, key, value string) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO settings (key, value, updated_at) VALUES ($1, $2, now())
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at
	`, key, value)
	if err != nil {
		return errors.Wrapf(err, "settings: upsert %s", key)
	}
	if s.rdb != nil {
		if err := s.rdb.Del(ctx, fmt.Sprintf(redisx.KeySetting, key)).Err(); err != nil {
			log.Warn().Err(err).Str("key", key).Msg("settings: cache invalidation failed")
		}
	}
	log.Info().Str("key", key).Str("value", value).Msg("settings: updated")
	return nil
}
