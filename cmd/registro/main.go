package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"registro/internal/amqp"
	"registro/internal/backend"
	"registro/internal/cli"
	apphttp "registro/internal/http"
	"registro/internal/log"
	"registro/internal/registry"
	"registro/internal/settings"
	"registro/internal/theme"
)

func main() {
	cfg, logger := cli.Bootstrap()

	ctx, cancel := cli.SignalContext(logger)
	defer cancel()

	backendConfig, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", log.FieldError, err)
		os.Exit(1)
	}
	result, err := backend.NewFactory(logger).CreateBackend(ctx, backendConfig)
	if err != nil {
		logger.Error("Failed to initialize backend", log.FieldError, err, "backend", cfg.DataBackend)
		os.Exit(1)
	}
	defer func() {
		if err := result.Close(); err != nil {
			logger.Error("Failed to close backend", log.FieldError, err)
		}
	}()

	reg := registry.New(result.Store, nil, logger)
	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
		Registry: reg,
		Settings: settings.New(result.Store, reg, logger),
		Theme:    theme.NewState(ctx, result.Store, logger),
		Store:    result.Store,
		Logger:   logger,
	}, apphttp.Options{
		RateLimitRPM:   cfg.RateLimitRPM,
		AllowedOrigins: cfg.AllowedOrigins,
		WindowSize:     cfg.WindowSize,
		CacheSize:      cfg.CacheSize,
		CacheTTL:       cfg.CacheTTL,
	})

	g, gctx := errgroup.WithContext(ctx)

	if cfg.AMQPEnabled() {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", log.FieldError, err)
			os.Exit(1)
		}
		defer client.Close()

		forwarder := amqp.NewForwarder(client, 0, logger)
		detach := forwarder.Attach(reg.Bus())
		defer detach()
		g.Go(func() error { return forwarder.Run(gctx) })
		logger.Info("Publishing changes", "exchange", cfg.AMQPExchange)
	} else {
		logger.Info("AMQP disabled - changes stay in process")
	}

	g.Go(func() error {
		logger.Info("Starting registro server",
			log.FieldOperation, log.OpStartup,
			"port", cfg.Port,
			"backend", cfg.DataBackend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer shutdownCancel()
		logger.Info("Shutting down server", log.FieldOperation, log.OpShutdown)
		return srv.Shutdown(shutdownCtx)
	})

	start := time.Now()
	if err := g.Wait(); err != nil {
		logger.Error("Server error", log.FieldError, err, "uptime", time.Since(start).String())
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}
