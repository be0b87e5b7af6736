package queue

import (
	"context"
	"errors"
	"time"

	logging "github.com/ipfs/go-log/v2"
)

var log = logging.Logger("queue")

// Handler processes a single dequeued message. Returning an error leaves
// the message unacked so the queue's own redelivery/backoff and eventual
// dead-lettering take over.
type Handler func(ctx context.Context, msg Message) error

// ListenerConfig configures Listener.Run.
type ListenerConfig struct {
	BatchSize        int32
	WaitTime         time.Duration
	VisibilityExtend time.Duration
	VisibilityPeriod time.Duration
}

// Run starts a long-lived consumer on queueURL: it fetches up to
// BatchSize messages, processes them concurrently, acks on handler
// success, and leaves unacked messages for the queue's own
// redelivery/dead-letter policy to handle. It returns only when ctx is
// canceled or the queue reports a fatal error.
func Run(ctx context.Context, q Queue, queueURL string, cfg ListenerConfig, handler Handler) error {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 10
	}
	if cfg.WaitTime <= 0 {
		cfg.WaitTime = 20 * time.Second
	}
	if cfg.VisibilityPeriod <= 0 {
		cfg.VisibilityPeriod = 30 * time.Second
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		msgs, err := q.Receive(ctx, queueURL, cfg.BatchSize, cfg.WaitTime)
		if err != nil {
			var fatal *ErrFatal
			if errors.As(err, &fatal) {
				log.Errorf("fatal queue error, stopping listener: %s", err)
				return err
			}
			log.Warnf("receive error, retrying: %s", err)
			continue
		}

		for _, msg := range msgs {
			go runOne(ctx, q, queueURL, cfg, handler, msg)
		}
	}
}

func runOne(ctx context.Context, q Queue, queueURL string, cfg ListenerConfig, handler Handler, msg Message) {
	done := make(chan struct{})
	defer close(done)
	if cfg.VisibilityExtend > 0 {
		go extendWhileRunning(ctx, q, queueURL, msg, cfg, done)
	}

	if err := handler(ctx, msg); err != nil {
		log.Warnw("handler failed, leaving message for redelivery", "err", err, "receiveCount", msg.ReceiveCount)
		return
	}
	if err := q.Ack(ctx, queueURL, msg); err != nil {
		log.Errorw("failed to ack message", "err", err)
	}
}

func extendWhileRunning(ctx context.Context, q Queue, queueURL string, msg Message, cfg ListenerConfig, done <-chan struct{}) {
	ticker := time.NewTicker(cfg.VisibilityExtend)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := q.ExtendVisibility(ctx, queueURL, msg, cfg.VisibilityPeriod); err != nil {
				log.Warnw("failed to extend message visibility", "err", err)
			}
		}
	}
}

// DeadHandler processes a raw dead-lettered message body. It receives the
// raw body (rather than a parsed Job) because a parse failure may be the
// very reason the message was dead-lettered.
type DeadHandler func(ctx context.Context, body []byte)

// RunDeadLetterDrain periodically drains deadLetterURL, invoking handler
// for each message and acking it (dead-lettered messages are terminal;
// there is nowhere further for them to redeliver to).
func RunDeadLetterDrain(ctx context.Context, q Queue, deadLetterURL string, interval time.Duration, handler DeadHandler) {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			msgs, err := q.Receive(ctx, deadLetterURL, 10, 5*time.Second)
			if err != nil {
				log.Warnw("dead-letter drain receive failed", "err", err)
				continue
			}
			for _, msg := range msgs {
				handler(ctx, msg.Body)
				if err := q.Ack(ctx, deadLetterURL, msg); err != nil {
					log.Warnw("failed to ack dead-letter message", "err", err)
				}
			}
		}
	}
}
