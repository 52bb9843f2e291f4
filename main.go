package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"relay-node/internal/config"
	"relay-node/internal/fanout"
	"relay-node/internal/handlers"
	"relay-node/internal/log"
	"relay-node/internal/middleware"
	"relay-node/internal/netinfo"
	"relay-node/internal/observability"
	"relay-node/internal/rabbitmq"
	"relay-node/internal/telemetry"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger := log.WithComponent("main")
		logger.Fatal().Err(err).Msg("invalid configuration")
	}

	log.Configure(log.Config{Level: cfg.LogLevel, Service: cfg.ServiceName})
	logger := log.WithComponent("main")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tracing, err := telemetry.NewProvider(ctx, telemetry.Config{
		Enabled:      cfg.Tracing.Enabled,
		ServiceName:  cfg.ServiceName,
		Environment:  cfg.Environment,
		ExporterType: cfg.Tracing.Exporter,
		Endpoint:     cfg.Tracing.Endpoint,
		SamplingRate: cfg.Tracing.SamplingRate,
		Node:         netinfo.Hostname(),
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialise tracing")
	}
	if tracing.Enabled() {
		logger.Info().
			Str("exporter", cfg.Tracing.Exporter).
			Str("endpoint", cfg.Tracing.Endpoint).
			Float64("sampling_rate", cfg.Tracing.SamplingRate).
			Msg("exporting fan-out spans")
	} else {
		logger.Info().Msg("tracing disabled")
	}
	defer func() {
		if err := tracing.Shutdown(context.Background()); err != nil {
			logger.Warn().Err(err).Msg("tracing shutdown failed")
		}
	}()

	aggregator, err := fanout.New(cfg.Downstream,
		fanout.WithTimeout(cfg.PeerTimeout),
		fanout.WithObserver(observability.PeerCallObserver{}),
	)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build fan-out aggregator")
	}
	logger.Info().Interface("downstream", aggregator.Peers()).Msg("relaying to peers")

	publisher := rabbitmq.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange)
	defer publisher.Close()
	logger.Info().
		Str("mode", rabbitmq.PublisherMode(publisher)).
		Str("reason", rabbitmq.PublisherNoopReason(publisher)).
		Msg("event publisher ready")

	emitter := telemetry.NewFanoutEmitter(publisher, cfg.ServiceName, cfg.Environment, netinfo.Hostname())
	relayHandler := handlers.NewRelayHandler(aggregator, emitter)

	router := gin.New()

	// middlewares
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(cfg.ServiceName))
	router.Use(observability.HTTPMetricsMiddleware())
	router.Use(middleware.RequestLogger(log.WithComponent("http")))

	handlers.RegisterRoutes(router, relayHandler, observability.MetricsHandler())

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", cfg.Addr()).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			logger.Fatal().Err(err).Msg("server error")
		}
	case <-ctx.Done():
		logger.Info().Msg("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}
}
