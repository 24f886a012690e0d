package mq

import (
	"context"
	"encoding/json"
	"time"

	"github.com/coordinate-system/meeting-system/internal/logger"
	amqp "github.com/rabbitmq/amqp091-go"
)

const DefaultCommandTimeout = 5 * time.Second

// Publisher is the part of *amqp.Channel the worker replies through.
type Publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

type Worker struct {
	dispatcher *Dispatcher
	pub        Publisher
	timeout    time.Duration
	log        *logger.Logger
}

func NewWorker(dispatcher *Dispatcher, pub Publisher, log *logger.Logger) *Worker {
	if log == nil {
		log = logger.Discard()
	}
	return &Worker{dispatcher: dispatcher, pub: pub, timeout: DefaultCommandTimeout, log: log}
}

// Serve handles deliveries until ctx is done or the channel closes.
func (w *Worker) Serve(ctx context.Context, deliveries <-chan amqp.Delivery) {
	for {
		select {
		case <-ctx.Done():
			return
		case d, ok := <-deliveries:
			if !ok {
				return
			}
			w.Handle(ctx, d)
		}
	}
}

// Handle runs one command and acks it. Commands are never requeued: a reply
// already describes the failure.
func (w *Worker) Handle(ctx context.Context, d amqp.Delivery) {
	defer func() {
		if err := d.Ack(false); err != nil {
			w.log.Error("failed to ack message", logger.Correlation(d.CorrelationId), logger.Error(err))
		}
	}()

	cmdCtx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	reply := w.dispatcher.Dispatch(cmdCtx, d.Body)
	w.log.Info("command handled", logger.Correlation(d.CorrelationId), logger.Code(reply.Code))

	if d.ReplyTo == "" {
		return
	}
	body, err := json.Marshal(reply)
	if err != nil {
		w.log.Error("failed to marshal reply", logger.Correlation(d.CorrelationId), logger.Error(err))
		return
	}
	err = w.pub.PublishWithContext(cmdCtx, "", d.ReplyTo, false, false, amqp.Publishing{
		ContentType:   "application/json",
		CorrelationId: d.CorrelationId,
		Body:          body,
	})
	if err != nil {
		w.log.Error("failed to publish reply", logger.Correlation(d.CorrelationId), logger.Queue(d.ReplyTo), logger.Error(err))
	}
}
