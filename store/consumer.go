// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"context"
	"sync"
	"time"

	"github.com/absmach/fluxdrain/types"
	"github.com/dgraph-io/badger/v4"
)

// Consumer reads one destination in FIFO order under client acknowledgement:
// a received message stays in the store until its Delivery is acknowledged.
// A consumer never hands out the same message twice; a message left
// unacknowledged is seen again only by a later consumer.
type Consumer struct {
	store *Store
	name  string

	mu     sync.Mutex
	cursor uint64 // Sequence of the last delivered message
	closed bool
}

// Delivery is a received, not yet acknowledged message.
type Delivery struct {
	msg   *types.Message
	store *Store

	mu    sync.Mutex
	acked bool
}

// Consumer opens a consumer on a registered destination.
func (s *Store) Consumer(ctx context.Context, name string) (*Consumer, error) {
	if _, err := s.GetDestination(ctx, name); err != nil {
		return nil, err
	}
	return &Consumer{store: s, name: name}, nil
}

// Destination returns the consumed destination name.
func (c *Consumer) Destination() string {
	return c.name
}

// Receive returns the next message, waiting up to timeout for one to arrive.
// It returns nil, nil when the timeout elapses with nothing to deliver.
func (c *Consumer) Receive(ctx context.Context, timeout time.Duration) (*Delivery, error) {
	deadline := time.Now().Add(timeout)

	for {
		d, err := c.next(ctx)
		if err != nil || d != nil {
			return d, err
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, nil
		}

		wait := c.store.cfg.PollInterval
		if remaining < wait {
			wait = remaining
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}

func (c *Consumer) next(ctx context.Context) (*Delivery, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, ErrConsumerClosed
	}

	var msg *types.Message
	err := c.store.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = makeMessagePrefix(c.name)
		opts.PrefetchSize = 1

		it := txn.NewIterator(opts)
		defer it.Close()

		it.Seek(makeMessageKey(c.name, c.cursor+1))
		if !it.Valid() {
			return nil
		}

		return it.Item().Value(func(val []byte) error {
			m, err := decodeRecord(c.name, val)
			if err != nil {
				return err
			}
			msg = m
			return nil
		})
	})
	if err != nil || msg == nil {
		return nil, err
	}

	c.cursor = msg.Sequence
	return &Delivery{msg: msg, store: c.store}, nil
}

// Close releases the consumer. Unacknowledged messages remain stored.
func (c *Consumer) Close() error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	return nil
}

// Message returns the delivered message.
func (d *Delivery) Message() *types.Message {
	return d.msg
}

// Ack removes the message from the store and decrements the destination
// depth in a single transaction.
func (d *Delivery) Ack(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.acked {
		return ErrAlreadyAcknowledged
	}

	name := d.msg.Destination
	key := makeMessageKey(name, d.msg.Sequence)

	err := d.store.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(key); err != nil {
			if err == badger.ErrKeyNotFound {
				return ErrMessageNotFound
			}
			return err
		}
		if err := txn.Delete(key); err != nil {
			return err
		}
		return incrementCounter(txn, makeCountKey(name), -1)
	})
	if err != nil {
		return err
	}

	d.acked = true
	return nil
}
