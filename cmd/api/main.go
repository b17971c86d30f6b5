package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ariefcatur/storefront-orders/internal/catalog"
	"github.com/ariefcatur/storefront-orders/internal/clock"
	"github.com/ariefcatur/storefront-orders/internal/config"
	"github.com/ariefcatur/storefront-orders/internal/httpx"
	kafkax "github.com/ariefcatur/storefront-orders/internal/kafka"
	"github.com/ariefcatur/storefront-orders/internal/logx"
	"github.com/ariefcatur/storefront-orders/internal/orders"
	"github.com/ariefcatur/storefront-orders/internal/postgres"
	"github.com/ariefcatur/storefront-orders/internal/redisx"
	"github.com/ariefcatur/storefront-orders/internal/rewards"
	"github.com/ariefcatur/storefront-orders/internal/secretcode"
	"github.com/ariefcatur/storefront-orders/internal/settings"
	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config")
	}
	logx.Setup(cfg.Log, cfg.ServiceName)
	if err := cfg.RequireAdminToken(); err != nil {
		log.Fatal().Err(err).Msg("config")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// DB
	pool, err := postgres.Connect(ctx, cfg.Postgres)
	if err != nil {
		log.Fatal().Err(err).Msg("db connect")
	}
	defer pool.Close()

	// Redis
	rdb := redisx.New(cfg.Redis.Addr)
	defer rdb.Close()

	// Kafka producer
	prod := kafkax.NewProducer(cfg.Kafka.Brokers, 1024)
	prod.Start(ctx)

	clk := clock.Real()
	products := &catalog.Repo{DB: pool}
	discount := settings.NewStore(pool, rdb, cfg.Rewards.SettingCacheTTL, cfg.Rewards.DefaultDiscountPercent)
	gate := secretcode.NewGate(secretcode.PGStore{}, pool, products, clk)
	issuer := rewards.NewIssuer(rewards.PGGiftCardStore{}, secretcode.PGStore{}, clk, cfg.Rewards.SecretCodeTTLMonths)

	svc := orders.NewService(orders.Deps{
		Tx:        postgres.NewDB(pool),
		DB:        pool,
		Store:     orders.Repo{},
		Inventory: orders.Ledger{},
		Codes:     gate,
		Rewards:   issuer,
		Discount:  discount,
		Publisher: prod,
		Redis:     rdb,
		Clock:     clk,
		Producer:  cfg.ServiceName,
	})

	router := httpx.NewRouter(cfg.HTTP.RequestTimeout)
	(&httpx.OrdersHandler{Orders: svc, Products: products}).Register(router)
	(&httpx.SecretHandler{Gate: gate, AdminToken: cfg.AdminToken}).Register(router)
	(&httpx.AdminHandler{
		Orders:   svc,
		Settings: discount,
		Token:    cfg.AdminToken,
		Mint: func(ctx context.Context, pct int) (*secretcode.SecretCode, error) {
			return issuer.MintSecretCode(ctx, pool, pct)
		},
		GiftCard: func(ctx context.Context, orderID uuid.UUID) (*rewards.GiftCard, error) {
			return rewards.PGGiftCardStore{}.FindByOrder(ctx, pool, orderID)
		},
	}).Register(router)

	// HTTP server
	srv := &http.Server{Addr: cfg.HTTP.Addr, Handler: router, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		log.Info().Str("addr", cfg.HTTP.Addr).Msg("http listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("listen")
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info().Msg("shutting down")

	// in-flight requests may run for the full request timeout
	ctx2, cancel2 := context.WithTimeout(context.Background(), cfg.HTTP.RequestTimeout+5*time.Second)
	defer cancel2()
	if err := srv.Shutdown(ctx2); err != nil {
		log.Warn().Err(err).Msg("http shutdown")
	}
	prod.Close()      // close inbox, flush and close writer
	prod.WaitClosed() // drain
	cancel()
}
