// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package migrate

import (
	"context"
	"time"

	"github.com/absmach/fluxdrain/types"
)

// Source is the store being drained.
type Source interface {
	// ListDestinations returns every registered destination.
	ListDestinations(ctx context.Context) ([]types.Destination, error)
	// IsQueueEmpty is a live depth probe; it must never be cached.
	IsQueueEmpty(ctx context.Context, name string) (bool, error)
	// OpenConsumer opens a client-acknowledge consumer on a destination.
	OpenConsumer(ctx context.Context, name string) (Consumer, error)
}

// DepthSource is implemented by sources that can report exact depths. It is
// used for reporting only; the drain loop relies on IsQueueEmpty.
type DepthSource interface {
	Depth(ctx context.Context, name string) (int64, error)
}

// Consumer receives messages from one source destination.
type Consumer interface {
	// Receive waits up to timeout for a message and returns nil, nil when
	// none arrived.
	Receive(ctx context.Context, timeout time.Duration) (Delivery, error)
	Close() error
}

// Delivery is a received message awaiting acknowledgement.
type Delivery interface {
	Message() *types.Message
	// Ack commits the message's removal from the source.
	Ack(ctx context.Context) error
}

// Remote is the broker receiving the migrated messages.
type Remote interface {
	OpenProducer(ctx context.Context, name string) (Producer, error)
}

// Producer sends to one remote destination. Send is synchronous: it returns
// once the remote has accepted the message.
type Producer interface {
	Send(ctx context.Context, msg *types.Message) error
	Close() error
}

// Limiter throttles sends. Wait blocks until a message may be sent to the
// named destination.
type Limiter interface {
	Wait(ctx context.Context, destination string) error
}

// Observer receives progress notifications, e.g. for metrics.
type Observer interface {
	MessageMigrated(ctx context.Context, destination string, size int, send time.Duration)
	DestinationDrained(ctx context.Context, destination string, migrated int64, elapsed time.Duration)
}

type noopObserver struct{}

func (noopObserver) MessageMigrated(context.Context, string, int, time.Duration) {}

func (noopObserver) DestinationDrained(context.Context, string, int64, time.Duration) {}
