// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package amqp091

import (
	"context"
	"fmt"
	"sync"

	"github.com/absmach/fluxdrain/types"
	amqp091 "github.com/rabbitmq/amqp091-go"
)

// channel is the part of an AMQP channel a producer publishes through.
type channel interface {
	publish(ctx context.Context, queue string, msg amqp091.Publishing) (confirmation, error)
	IsClosed() bool
	Close() error
}

type confirmation interface {
	WaitContext(ctx context.Context) (bool, error)
}

type amqpChannel struct {
	*amqp091.Channel
}

func (c amqpChannel) publish(ctx context.Context, queue string, msg amqp091.Publishing) (confirmation, error) {
	// Mandatory: an unroutable message comes back as basic.return.
	dc, err := c.PublishWithDeferredConfirmWithContext(ctx, "", queue, true, false, msg)
	if err != nil {
		return nil, err
	}
	return dc, nil
}

// Producer publishes to one queue over a dedicated channel in confirm mode.
// Send returns only after the broker has confirmed the message.
type Producer struct {
	client *Client
	queue  string

	ch      channel
	returns chan amqp091.Return
	closes  chan *amqp091.Error

	mu     sync.Mutex
	closed bool
}

// Producer opens a producer for the named queue. The queue name is used
// verbatim as the routing key on the default exchange.
func (c *Client) Producer(ctx context.Context, queue string) (*Producer, error) {
	if queue == "" {
		return nil, ErrInvalidQueueName
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ch, err := c.channel()
	if err != nil {
		return nil, err
	}

	if err := ch.Confirm(false); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("failed to enable confirms on %s: %w", queue, err)
	}

	if c.opts.DeclareQueues {
		_, err = ch.QueueDeclare(queue, true, false, false, false, nil)
	} else {
		_, err = ch.QueueDeclarePassive(queue, true, false, false, false, nil)
	}
	if err != nil {
		// A failed declare closes the channel on the broker side.
		_ = ch.Close()
		return nil, fmt.Errorf("failed to declare queue %s: %w", queue, err)
	}

	p := &Producer{
		client:  c,
		queue:   queue,
		ch:      amqpChannel{Channel: ch},
		returns: ch.NotifyReturn(make(chan amqp091.Return, 1)),
		closes:  ch.NotifyClose(make(chan *amqp091.Error, 1)),
	}
	c.track(p)

	return p, nil
}

// Queue returns the target queue name.
func (p *Producer) Queue() string {
	return p.queue
}

// Send publishes msg and waits for the broker confirm.
func (p *Producer) Send(ctx context.Context, msg *types.Message) error {
	if msg == nil {
		return ErrNilMessage
	}

	pub := ToPublishing(msg)

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrProducerClosed
	}

	select {
	case amqpErr, ok := <-p.closes:
		p.closed = true
		if ok && amqpErr != nil {
			return fmt.Errorf("%w: %v", ErrChannelClosed, amqpErr)
		}
		return ErrChannelClosed
	default:
	}

	if timeout := p.client.opts.ConfirmTimeout; timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	dc, err := p.ch.publish(ctx, p.queue, pub)
	if err != nil {
		return err
	}

	acked, err := dc.WaitContext(ctx)
	if err != nil {
		return err
	}

	// basic.return precedes the confirm for unroutable mandatory messages.
	select {
	case r := <-p.returns:
		return fmt.Errorf("%w: %d %s", ErrReturned, r.ReplyCode, r.ReplyText)
	default:
	}

	if !acked {
		return ErrNacked
	}
	return nil
}

// Close closes the producer's channel.
func (p *Producer) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		p.client.untrack(p)
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	p.client.untrack(p)
	if p.ch.IsClosed() {
		return nil
	}
	return p.ch.Close()
}
