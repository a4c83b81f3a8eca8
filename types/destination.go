// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package types

import (
	"errors"
	"strings"
	"time"
)

var (
	ErrInvalidDestinationName = errors.New("destination name cannot be empty")
	ErrInvalidDestinationKind = errors.New("destination kind must be queue or topic")
)

// DestinationKind distinguishes point-to-point queues from pub/sub topics.
type DestinationKind string

const (
	KindQueue DestinationKind = "queue"
	KindTopic DestinationKind = "topic"
)

// Destination is a named endpoint registered in the source store. The same
// name identifies the destination on the remote broker.
type Destination struct {
	Name      string          `json:"name"`
	Kind      DestinationKind `json:"kind"`
	CreatedAt time.Time       `json:"created_at"`
}

// IsQueue reports whether the destination is a queue.
func (d Destination) IsQueue() bool {
	return d.Kind == KindQueue
}

func (d Destination) String() string {
	return string(d.Kind) + "://" + d.Name
}

// Validate checks the destination name and kind.
func (d Destination) Validate() error {
	if strings.TrimSpace(d.Name) == "" {
		return ErrInvalidDestinationName
	}
	switch d.Kind {
	case KindQueue, KindTopic:
		return nil
	default:
		return ErrInvalidDestinationKind
	}
}
