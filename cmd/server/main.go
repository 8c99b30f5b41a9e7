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

	router "github.com/dkeye/Parley/internal/adapters/http"
	"github.com/dkeye/Parley/internal/adapters/memstore"
	"github.com/dkeye/Parley/internal/app"
	"github.com/dkeye/Parley/internal/app/orch"
	"github.com/dkeye/Parley/internal/config"
	"github.com/dkeye/Parley/internal/metrics"
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
		// Load returns no config on a parse failure; nothing to run with.
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if cfg.Mode == "debug" {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	promReg := prometheus.NewRegistry()
	m := metrics.New(promReg)

	registry := app.NewRegistry()
	rooms := app.NewRoomManager()
	guard := app.NewOfferGuard()
	relay := app.NewRelay(registry, guard, m)
	fanout := app.NewFanout(registry, m)
	store := memstore.New()

	o := orch.New(registry, rooms, relay, guard, m)

	r := router.SetupRouter(ctx, router.Deps{
		Cfg:      cfg,
		Orch:     o,
		Store:    store,
		Fanout:   fanout,
		Gatherer: promReg,
	})
	addr := fmt.Sprintf(":%d", cfg.Port)

	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("Parley relay started")
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
