package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"

	router "github.com/dkeye/huddle/internal/adapters/http"
	"github.com/dkeye/huddle/internal/adapters/rtc"
	events "github.com/dkeye/huddle/internal/adapters/signal"
	"github.com/dkeye/huddle/internal/app"
	"github.com/dkeye/huddle/internal/app/locusapi"
	"github.com/dkeye/huddle/internal/app/orch"
	"github.com/dkeye/huddle/internal/config"
	"github.com/dkeye/huddle/internal/domain"
	transport "github.com/dkeye/huddle/internal/transport/http"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize zerolog global logger early so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	fs := pflag.NewFlagSet("huddle", pflag.ExitOnError)
	config.Flags(fs)
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[1:])
	if *debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	cfg, err := config.Load(fs)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	tr := transport.NewClient(transport.Options{
		Token:   cfg.AccessToken,
		Timeout: cfg.Session.RequestTimeout,
		Logger:  log.Logger,
	})
	uploader := transport.NewLogUploader(tr, cfg.LogUploadURL)
	api := locusapi.New(tr, locusapi.Options{
		LocusURL:       cfg.LocusURL,
		MeetingInfoURL: cfg.MeetingInfoURL,
		DeviceURL:      cfg.DeviceURL,
		RequestTimeout: cfg.Session.RequestTimeout,
		Logger:         log.Logger,
	})
	reg := app.NewRegistry()

	deps := orch.Deps{
		API:       api,
		Transport: tr,
		NewMedia: rtc.Factory(rtc.Config{
			ICEServers:    cfg.ICEServers,
			StatsInterval: cfg.Session.StatsInterval,
		}, log.Logger),
		Uploader: uploader,
		Policy:   app.SimplePolicy{AutoRejoin: cfg.Session.AutoRejoin},
		Logger:   log.Logger,
		NewID:    uuid.NewString,
	}
	sessionCfg := orch.Config{
		KeepAliveMinSecs:     cfg.Session.KeepAliveMinSecs,
		ReconnectRetries:     cfg.Session.ReconnectRetries,
		ReconnectBackoff:     cfg.Session.ReconnectBackoff,
		RenegotiationRetries: cfg.Session.RenegotiationRetries,
		RequestTimeout:       cfg.Session.RequestTimeout,
		InfoRetryMin:         cfg.Session.InfoRetryMin,
		InfoRetryMax:         cfg.Session.InfoRetryMax,
	}
	factory := func(destination string) (router.Meeting, error) {
		s := orch.New(destination, deps, sessionCfg)
		s.Failures().Subscribe(func(f orch.BehavioralFailure) {
			log.Warn().Str("module", "main").
				Str("op", f.Op).
				Str("correlation_id", f.CorrelationID).
				Str("locus_id", f.LocusID).
				Err(f.Err).
				Msg("behavioral failure")
		})
		return s, nil
	}

	src := events.NewWSEventSource(events.Options{
		URL:        cfg.EventURL,
		Token:      cfg.AccessToken,
		ReadLimit:  cfg.ReadLimit,
		PingPeriod: cfg.PingPeriod,
		Logger:     log.Logger,
	})
	listener := &events.Listener{Source: src, Backoff: cfg.Session.ReconnectBackoff, Logger: log.Logger}
	go listener.Run(ctx, func(ev domain.LocusEvent) {
		if n := reg.Dispatch(ctx, ev); n == 0 {
			log.Debug().Str("module", "main").Str("locus_url", ev.LocusURL).Msg("event for no session")
		}
	})

	r := router.SetupRouter(cfg, reg, factory)
	addr := fmt.Sprintf(":%d", cfg.Port)

	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("Huddle server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	if err := reg.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("some sessions did not close cleanly")
	}
	log.Info().Msg("Server exited gracefully")
}
