// Command registro-watch follows the change messages published by registro
// and logs the new total of every collection that changed.
package main

import (
	"context"
	"errors"
	"os"

	"registro/internal/amqp"
	"registro/internal/backend"
	"registro/internal/cli"
	"registro/internal/core"
	"registro/internal/log"
	"registro/internal/registry"
)

func main() {
	cfg, logger := cli.Bootstrap()
	if !cfg.AMQPEnabled() {
		logger.Error("AMQP_URL is required")
		os.Exit(1)
	}

	ctx, cancel := cli.SignalContext(logger)
	defer cancel()

	backendConfig, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", log.FieldError, err)
		os.Exit(1)
	}
	result, err := backend.NewFactory(logger).CreateBackend(ctx, backendConfig)
	if err != nil {
		logger.Error("Failed to initialize backend", log.FieldError, err)
		os.Exit(1)
	}
	defer result.Close()
	reg := registry.New(result.Store, nil, logger)

	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", log.FieldError, err)
		os.Exit(1)
	}
	defer client.Close()

	logger.Info("Watching changes", "queue", cfg.AMQPQueue, "backend", cfg.DataBackend)
	err = client.ConsumeChanges(ctx, func(msg *amqp.ChangeMessage) error {
		name, err := core.ParseCollection(msg.Collection)
		if err != nil {
			logger.Warn("Ignoring change for unknown collection",
				log.FieldCollection, msg.Collection,
				"message_id", msg.ID)
			return nil
		}
		logger.InfoContext(ctx, "Collection changed",
			log.FieldCollection, name.String(),
			"message_id", msg.ID,
			"published_at", msg.Timestamp,
			"total", reg.TotalAll(ctx, name).String(),
			log.FieldLength, len(reg.Load(ctx, name)))
		return nil
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Message consumption failed", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Watcher stopped")
}
