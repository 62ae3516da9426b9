package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	router "github.com/dkeye/Presence/internal/adapters/http"
	sig "github.com/dkeye/Presence/internal/adapters/signal"
	"github.com/dkeye/Presence/internal/app"
	"github.com/dkeye/Presence/internal/app/orch"
	"github.com/dkeye/Presence/internal/config"
	"github.com/dkeye/Presence/internal/core"
	"github.com/dkeye/Presence/internal/relay"
	"github.com/dkeye/Presence/internal/telemetry"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize zerolog global logger early so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	// Human-friendly output for terminal; in production you may want JSON only.
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Error().Err(err).Msg("failed to load config")
	}

	rooms := core.NewRegistry()
	states := app.NewVoiceStateStore()
	agg := app.NewAggregator(rooms, states)
	metrics := telemetry.New(prometheus.DefaultRegisterer)
	sched := app.NewBroadcastScheduler(cfg.DebounceWindow, agg.Snapshot, metrics)
	gate := relay.NewHTTPGate(relay.Config{
		URL:       cfg.Relay.TokenURL,
		APIKey:    cfg.Relay.APIKey,
		APISecret: cfg.Relay.APISecret,
		Timeout:   cfg.Relay.Timeout,
	})

	coord := orch.New(rooms, states, agg, gate, sched, metrics)

	ctl := sig.NewController()
	ctl.Coord = coord
	ctl.ReadLimit = cfg.ReadLimit
	// The scheduler learns its fan-out target late so the coordinator
	// never depends on the transport package.
	sched.Bind(ctl)

	r := router.SetupRouter(ctx, cfg, ctl)
	addr := fmt.Sprintf(":%d", cfg.Port)

	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("Presence server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	log.Info().Msg("Server exited gracefully")
}
