// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package migrate

import (
	"context"
	"time"

	"github.com/absmach/fluxdrain/client/amqp091"
	"github.com/absmach/fluxdrain/store"
	"github.com/absmach/fluxdrain/types"
)

var (
	_ Source      = (*storeSource)(nil)
	_ DepthSource = (*storeSource)(nil)
	_ Remote      = (*amqpRemote)(nil)
)

type storeSource struct {
	store *store.Store
}

// NewStoreSource exposes a source store to the migration.
func NewStoreSource(s *store.Store) Source {
	return &storeSource{store: s}
}

func (s *storeSource) ListDestinations(ctx context.Context) ([]types.Destination, error) {
	return s.store.ListDestinations(ctx)
}

func (s *storeSource) IsQueueEmpty(ctx context.Context, name string) (bool, error) {
	return s.store.IsQueueEmpty(ctx, name)
}

func (s *storeSource) Depth(ctx context.Context, name string) (int64, error) {
	return s.store.Depth(ctx, name)
}

func (s *storeSource) OpenConsumer(ctx context.Context, name string) (Consumer, error) {
	c, err := s.store.Consumer(ctx, name)
	if err != nil {
		return nil, err
	}
	return &storeConsumer{consumer: c}, nil
}

type storeConsumer struct {
	consumer *store.Consumer
}

func (c *storeConsumer) Receive(ctx context.Context, timeout time.Duration) (Delivery, error) {
	d, err := c.consumer.Receive(ctx, timeout)
	if err != nil || d == nil {
		// Keep a nil *store.Delivery out of the interface.
		return nil, err
	}
	return d, nil
}

func (c *storeConsumer) Close() error {
	return c.consumer.Close()
}

type amqpRemote struct {
	client *amqp091.Client
}

// NewAMQPRemote exposes a connected AMQP 0.9.1 client as the migration target.
func NewAMQPRemote(c *amqp091.Client) Remote {
	return &amqpRemote{client: c}
}

func (r *amqpRemote) OpenProducer(ctx context.Context, name string) (Producer, error) {
	p, err := r.client.Producer(ctx, name)
	if err != nil {
		return nil, err
	}
	return p, nil
}
