// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package migrate

import (
	"context"
	"log/slog"
	"time"
)

// DefaultReceiveTimeout bounds each receive in the drain loop.
const DefaultReceiveTimeout = time.Second

// Drainer moves every queued message of one destination to the remote.
type Drainer struct {
	source         Source
	remote         Remote
	receiveTimeout time.Duration
	limiter        Limiter
	observer       Observer
	logger         *slog.Logger
}

// NewDrainer creates a drainer. A non-positive receiveTimeout selects
// DefaultReceiveTimeout; limiter, observer and logger may be nil.
func NewDrainer(source Source, remote Remote, receiveTimeout time.Duration, limiter Limiter, observer Observer, logger *slog.Logger) *Drainer {
	if receiveTimeout <= 0 {
		receiveTimeout = DefaultReceiveTimeout
	}
	if observer == nil {
		observer = noopObserver{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Drainer{
		source:         source,
		remote:         remote,
		receiveTimeout: receiveTimeout,
		limiter:        limiter,
		observer:       observer,
		logger:         logger,
	}
}

// Drain transfers the destination's messages and returns how many were
// migrated. It returns only after an empty receive followed by an empty
// probe, or on the first error. The consumer and producer are closed on
// every path.
func (d *Drainer) Drain(ctx context.Context, name string) (migrated int64, err error) {
	consumer, err := d.source.OpenConsumer(ctx, name)
	if err != nil {
		return 0, newError(ErrTransfer, "open consumer", name, err)
	}
	defer d.close("consumer", name, consumer.Close)

	producer, err := d.remote.OpenProducer(ctx, name)
	if err != nil {
		return 0, newError(ErrConnectivity, "open producer", name, err)
	}
	defer d.close("producer", name, producer.Close)

	for {
		delivery, err := consumer.Receive(ctx, d.receiveTimeout)
		if err != nil {
			return migrated, newError(ErrTransfer, "receive", name, err)
		}

		if delivery != nil {
			if err := d.forward(ctx, name, producer, delivery); err != nil {
				return migrated, err
			}
			migrated++
			continue
		}

		// An empty receive alone is not proof of an empty queue.
		empty, err := d.source.IsQueueEmpty(ctx, name)
		if err != nil {
			return migrated, newError(ErrProbe, "probe", name, err)
		}
		if empty {
			return migrated, nil
		}
		d.logger.Debug("Empty receive but queue not drained, polling again", "destination", name)
	}
}

// forward sends one message and, only once the send succeeded, acknowledges
// it at the source.
func (d *Drainer) forward(ctx context.Context, name string, producer Producer, delivery Delivery) error {
	msg := delivery.Message()

	if d.limiter != nil {
		if err := d.limiter.Wait(ctx, name); err != nil {
			return newError(ErrTransfer, "throttle", name, err)
		}
	}

	start := time.Now()
	if err := producer.Send(ctx, msg); err != nil {
		return newError(ErrTransfer, "send", name, err)
	}
	sent := time.Since(start)

	if err := delivery.Ack(ctx); err != nil {
		return newError(ErrTransfer, "ack", name, err)
	}

	d.observer.MessageMigrated(ctx, name, msg.Size(), sent)
	return nil
}

func (d *Drainer) close(what, name string, fn func() error) {
	if err := fn(); err != nil {
		d.logger.Warn("Failed to close "+what, "destination", name, "error", err)
	}
}
