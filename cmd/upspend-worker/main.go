package main

import (
	"context"
	"errors"
	"os"
	"time"

	"upspend/internal/amqp"
	"upspend/internal/cli"
	"upspend/internal/log"
	"upspend/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"))
	logger.Info("Starting upspend-worker", log.FieldOperation, log.OpStartup)

	cfg := cli.LoadAndValidateConfig(logger)
	if err := cfg.RequireToken(); err != nil {
		logger.Error("Worker cannot apply corrections", log.FieldError, err)
		os.Exit(1)
	}
	if cfg.AMQPURL == "" {
		logger.Error("Worker requires AMQP_URL")
		os.Exit(1)
	}

	client := cli.NewUpClient(logger, cfg)

	// Only the sqlite backend keeps a correction log; other backends apply
	// redelivered messages again.
	be := cli.InitBackend(context.Background(), logger, cfg)
	if be.Cleanup != nil {
		defer be.Cleanup()
	}
	if be.Backend.Corrections == nil {
		logger.Warn("Backend has no correction log, redeliveries will be reapplied", "backend", cfg.DataBackend)
	}

	queue, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", log.FieldError, err)
		os.Exit(1)
	}
	defer queue.Close()

	w := worker.NewCorrectionWorker(client, be.Backend.Corrections, logger)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, nil)
	consumeErr := make(chan error, 1)
	go func() {
		consumeErr <- queue.ConsumeCorrections(ctx, w.HandleCorrection)
	}()

	select {
	case err := <-consumeErr:
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Message consumption failed", log.FieldError, err)
			queue.Close()
			if be.Cleanup != nil {
				be.Cleanup()
			}
			os.Exit(1)
		}
	case <-ctx.Done():
		<-consumeErr
	}
	<-done
	logger.Info("Worker stopped gracefully")
}
