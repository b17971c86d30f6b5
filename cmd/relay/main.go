package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/ariefcatur/storefront-orders/internal/config"
	kafkax "github.com/ariefcatur/storefront-orders/internal/kafka"
	"github.com/ariefcatur/storefront-orders/internal/logx"
	"github.com/ariefcatur/storefront-orders/internal/notify"
	"github.com/ariefcatur/storefront-orders/internal/orders"
	"github.com/ariefcatur/storefront-orders/internal/redisx"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config")
	}
	service := cfg.ServiceName + "-relay"
	logx.Setup(cfg.Log, service)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Redis
	rdb := redisx.New(cfg.Redis.Addr)
	defer rdb.Close()

	relay := &notify.Relay{
		Redis:       rdb,
		Notifier:    notify.LogNotifier{},
		ServiceName: service,
		StoreName:   cfg.Notify.StoreName,
		BaseURL:     cfg.Notify.PublicBaseURL,
		CountryCode: cfg.Notify.CountryCode,
	}

	// Consumer
	cons := kafkax.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.Group, orders.Topics, cfg.Kafka.Workers)
	done := make(chan struct{})
	go func() {
		defer close(done)
		log.Info().
			Str("group", cfg.Kafka.Group).
			Strs("topics", orders.Topics).
			Int("workers", cfg.Kafka.Workers).
			Msg("relay consumer started")
		if err := cons.Start(ctx, relay.HandleEvent); err != nil {
			log.Error().Err(err).Msg("consumer exit")
			cancel()
		}
	}()

	// graceful shutdown
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sig:
		log.Info().Msg("shutting down consumer")
	case <-ctx.Done():
	}
	cancel()
	<-done
}
