package main

import (
	"context"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/gavel/internal/auctiontimer"
	"github.com/mcdev12/gavel/internal/auth"
	"github.com/mcdev12/gavel/internal/bid"
	"github.com/mcdev12/gavel/internal/gateway"
	"github.com/mcdev12/gavel/internal/httpapi"
	"github.com/mcdev12/gavel/internal/keymutex"
	"github.com/mcdev12/gavel/internal/metrics"
	"github.com/mcdev12/gavel/internal/seed"
	"github.com/mcdev12/gavel/internal/store"
)

type Services struct {
	Store   *store.Store
	Auth    *auth.Service
	Bids    *bid.Processor
	Timer   *auctiontimer.Service
	Gateway *gateway.Service
	API     *httpapi.Handler
	Metrics *metrics.Metrics
}

// setupServices wires the dependency chain. The gateway and timer reference
// each other (broadcasts one way, anti-snipe the other), so the extender hook
// is attached after both exist.
func setupServices(ctx context.Context, cfg *Config, clock clockwork.Clock) (*Services, error) {
	st := store.NewStore(clock)
	if err := st.Load(cfg.Snapshot.Path); err != nil {
		return nil, err
	}
	if st.AuctionCount() == 0 {
		if err := seed.Auctions(st, clock); err != nil {
			return nil, err
		}
	}

	locks := keymutex.New()
	m := metrics.New(clock)
	authService := auth.NewService(st, cfg.Auth.JWTSecret, cfg.JWTExpiry(), clock)
	processor := bid.NewProcessor(st, locks, clock)

	gw := gateway.NewService(ctx, gateway.DefaultConfig(), processor, st, authService, m, clock)
	timer := auctiontimer.NewService(st, gw, locks, clock)
	gw.SetExtender(timer)

	api := httpapi.NewHandler(st, authService, m, clock)

	log.Info().Int("auctions", st.AuctionCount()).Int("users", st.UserCount()).Msg("services initialized")

	return &Services{
		Store:   st,
		Auth:    authService,
		Bids:    processor,
		Timer:   timer,
		Gateway: gw,
		API:     api,
		Metrics: m,
	}, nil
}
