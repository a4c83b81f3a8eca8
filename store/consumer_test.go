// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"context"
	"testing"
	"time"

	"github.com/absmach/fluxdrain/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConsumer_UnknownDestination(t *testing.T) {
	s := setupTestStore(t, Config{})

	_, err := s.Consumer(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrDestinationNotFound)
}

func TestConsumer_FIFOWithAck(t *testing.T) {
	s := setupTestStore(t, Config{})
	ctx := context.Background()

	enqueueText(t, s, "orders", "A", "B", "C")

	c, err := s.Consumer(ctx, "orders")
	require.NoError(t, err)
	defer c.Close()

	for i, want := range []string{"A", "B", "C"} {
		d, err := c.Receive(ctx, time.Second)
		require.NoError(t, err)
		require.NotNil(t, d)
		assert.Equal(t, []byte(want), d.Message().Payload)
		assert.Equal(t, "orders", d.Message().Destination)

		require.NoError(t, d.Ack(ctx))

		depth, err := s.Depth(ctx, "orders")
		require.NoError(t, err)
		assert.Equal(t, int64(2-i), depth)
	}

	d, err := c.Receive(ctx, 20*time.Millisecond)
	require.NoError(t, err)
	assert.Nil(t, d)
}

func TestConsumer_NoRedeliveryWithinConsumer(t *testing.T) {
	s := setupTestStore(t, Config{})
	ctx := context.Background()

	enqueueText(t, s, "orders", "A", "B")

	c, err := s.Consumer(ctx, "orders")
	require.NoError(t, err)

	first, err := c.Receive(ctx, time.Second)
	require.NoError(t, err)
	require.NotNil(t, first)

	second, err := c.Receive(ctx, time.Second)
	require.NoError(t, err)
	require.NotNil(t, second)
	assert.Equal(t, []byte("B"), second.Message().Payload)

	none, err := c.Receive(ctx, 10*time.Millisecond)
	require.NoError(t, err)
	assert.Nil(t, none)
	require.NoError(t, c.Close())

	// Nothing was acknowledged: both messages remain for the next consumer.
	depth, err := s.Depth(ctx, "orders")
	require.NoError(t, err)
	assert.Equal(t, int64(2), depth)

	c2, err := s.Consumer(ctx, "orders")
	require.NoError(t, err)
	again, err := c2.Receive(ctx, time.Second)
	require.NoError(t, err)
	require.NotNil(t, again)
	assert.Equal(t, first.Message().ID, again.Message().ID)
}

func TestConsumer_WaitsForArrival(t *testing.T) {
	s := setupTestStore(t, Config{})
	ctx := context.Background()

	require.NoError(t, s.CreateDestination(ctx, types.Destination{Name: "orders", Kind: types.KindQueue}))

	c, err := s.Consumer(ctx, "orders")
	require.NoError(t, err)

	go func() {
		time.Sleep(30 * time.Millisecond)
		_ = s.Enqueue(context.Background(), "orders", &types.Message{Payload: []byte("late")})
	}()

	d, err := c.Receive(ctx, 2*time.Second)
	require.NoError(t, err)
	require.NotNil(t, d)
	assert.Equal(t, []byte("late"), d.Message().Payload)
}

func TestConsumer_ContextCancel(t *testing.T) {
	s := setupTestStore(t, Config{})
	require.NoError(t, s.CreateDestination(context.Background(), types.Destination{Name: "orders", Kind: types.KindQueue}))

	c, err := s.Consumer(context.Background(), "orders")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err = c.Receive(ctx, 5*time.Second)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestConsumer_Closed(t *testing.T) {
	s := setupTestStore(t, Config{})
	ctx := context.Background()
	enqueueText(t, s, "orders", "A")

	c, err := s.Consumer(ctx, "orders")
	require.NoError(t, err)
	require.NoError(t, c.Close())

	_, err = c.Receive(ctx, time.Millisecond)
	assert.ErrorIs(t, err, ErrConsumerClosed)
}

func TestDelivery_DoubleAck(t *testing.T) {
	s := setupTestStore(t, Config{})
	ctx := context.Background()
	enqueueText(t, s, "orders", "A")

	c, err := s.Consumer(ctx, "orders")
	require.NoError(t, err)

	d, err := c.Receive(ctx, time.Second)
	require.NoError(t, err)
	require.NoError(t, d.Ack(ctx))
	assert.ErrorIs(t, d.Ack(ctx), ErrAlreadyAcknowledged)

	depth, err := s.Depth(ctx, "orders")
	require.NoError(t, err)
	assert.Equal(t, int64(0), depth)
}
