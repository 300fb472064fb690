package main

import (
	"context"
	"flag"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"clob/internal/market"
	"clob/internal/vault"
	"clob/internal/wire"
)

func main() {
	addr := flag.String("address", "0.0.0.0", "address to listen on")
	port := flag.Int("port", 9001, "port to listen on")
	baseLotSize := flag.Uint64("base-lot-size", 1, "raw base units per lot")
	quoteTickSize := flag.Uint64("quote-tick-size", 1, "raw quote units per tick")
	maxOrders := flag.Int("max-orders", 0, "per-side order book capacity (0 = default)")
	maxEvents := flag.Int("max-events", 0, "fill event queue capacity (0 = default)")
	flag.Parse()

	ctx, stop := signal.NotifyContext(
		context.Background(),
		syscall.SIGTERM,
		syscall.SIGINT,
	)
	defer stop()

	m := market.New()
	srv := wire.New(*addr, *port, m, func() int64 { return time.Now().UnixNano() })

	cfg := market.Config{
		BaseMint:      uuid.New(),
		QuoteMint:     uuid.New(),
		BaseLotSize:   *baseLotSize,
		QuoteTickSize: *quoteTickSize,
		MaxOrders:     *maxOrders,
		MaxEvents:     *maxEvents,
	}
	if err := m.Initialize(cfg, vault.NewMemVault(), srv); err != nil {
		log.Fatal().Err(err).Msg("unable to initialize market")
	}

	go func() {
		if err := srv.Run(ctx); err != nil {
			log.Error().Err(err).Msg("server exited with error")
		}
	}()

	<-ctx.Done()
}
