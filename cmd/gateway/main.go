package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/rangecrew/matchlive/internal/config"
	"github.com/rangecrew/matchlive/internal/gateway"
	"github.com/rangecrew/matchlive/internal/identity"
	"github.com/rangecrew/matchlive/internal/presence"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Warn().Err(err).Msg("could not load .env file")
	}

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load(os.Getenv("GATEWAY_CONFIG"))
	if err != nil {
		log.Fatal().Err(err).Msg("load configuration")
	}
	if cfg.JWTSecret == "" {
		log.Warn().Msg("no JWT secret configured, bearer identity disabled")
	}

	log.Info().
		Str("port", cfg.Port).
		Str("nats_url", cfg.NATS.URL).
		Msg("starting match gateway")

	registry := presence.NewRegistry()
	// The membership directory behind cookie sessions belongs to the
	// hosting deployment; without one the session strategy resolves
	// nothing and viewers fall back to bearer identity or anonymous.
	resolver := identity.NewChain(nil, log.Logger)
	gw := gateway.New(registry, resolver, gateway.DefaultConnConfig(), clockwork.NewRealClock(), log.Logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go gw.Run(ctx)

	if cfg.NATS.URL != "" {
		consumer, err := gateway.NewEventConsumer(gw, gateway.JetStreamConsumerConfig{
			URL:           cfg.NATS.URL,
			StreamName:    cfg.NATS.Stream,
			ConsumerName:  cfg.NATS.Consumer,
			SubjectFilter: cfg.NATS.SubjectFilter,
			MaxDeliver:    5,
			AckWait:       30 * time.Second,
			MaxAckPending: 100,
			MaxReconnects: -1,
			ReconnectWait: 2 * time.Second,
		}, log.Logger)
		if err != nil {
			log.Fatal().Err(err).Msg("create event consumer")
		}
		defer consumer.Stop()
		go func() {
			if err := consumer.Start(ctx); err != nil {
				log.Error().Err(err).Msg("event consumer failed")
			}
		}()
	} else {
		log.Warn().Msg("no NATS URL configured, upstream events disabled")
	}

	mux := http.NewServeMux()
	gateway.NewHandler(gw, []byte(cfg.JWTSecret), nil).RegisterRoutes(mux)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	c := cors.New(cors.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		AllowedMethods: []string{http.MethodHead, http.MethodGet, http.MethodPost},
		AllowedHeaders: []string{"*"},
	})

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           c.Handler(mux),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("HTTP server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	sig := <-sigChan
	log.Info().Str("signal", sig.String()).Msg("received shutdown signal")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown failed")
	}
	cancel()

	log.Info().Msg("match gateway shutdown complete")
}
