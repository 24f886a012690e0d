package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	_ "time/tzdata"

	"github.com/coordinate-system/meeting-system/internal/app"
	"github.com/coordinate-system/meeting-system/internal/config"
	"github.com/coordinate-system/meeting-system/internal/logger"
	"github.com/coordinate-system/meeting-system/internal/mq"
	amqp "github.com/rabbitmq/amqp091-go"
)

func main() {
	log := logger.New()
	if err := run(log); err != nil {
		log.Error("Worker error", logger.Error(err))
		os.Exit(1)
	}
}

func run(log *logger.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	envPath := config.EnvFile()
	cfg, err := config.LoadWithFile(envPath)
	if err != nil {
		log.Error("Failed to load infrastructure config", logger.Error(err), logger.Path(envPath))
		return err
	}
	if err := cfg.RequireAMQP(); err != nil {
		return err
	}
	features, err := config.LoadFeatureConfigOrDefault(cfg.ConfigPath)
	if err != nil {
		log.Error("Failed to load feature config", logger.Error(err), logger.Path(cfg.ConfigPath))
		return err
	}

	a := app.New(cfg, features, log)
	if err := a.Initialize(ctx); err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	dispatcher, err := a.Dispatcher()
	if err != nil {
		return err
	}

	conn, err := amqp.Dial(cfg.AMQPURL)
	if err != nil {
		return fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("failed to open channel: %w", err)
	}
	defer ch.Close()

	if _, err := ch.QueueDeclare(cfg.BookingQueue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare queue: %w", err)
	}
	// One command at a time keeps replies in delivery order.
	if err := ch.Qos(1, 0, false); err != nil {
		return fmt.Errorf("failed to set qos: %w", err)
	}
	deliveries, err := ch.Consume(cfg.BookingQueue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("failed to register consumer: %w", err)
	}

	log.Info("MQ worker listening", logger.Queue(cfg.BookingQueue))
	mq.NewWorker(dispatcher, ch, log).Serve(ctx, deliveries)
	log.Info("MQ worker stopped", logger.Queue(cfg.BookingQueue))
	return nil
}
