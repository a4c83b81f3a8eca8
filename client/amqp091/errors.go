// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package amqp091

import "errors"

// Client errors.
var (
	ErrNoAddress        = errors.New("no broker address configured")
	ErrNotConnected     = errors.New("client not connected")
	ErrAlreadyConnected = errors.New("client already connected")
	ErrInvalidQueueName = errors.New("queue name cannot be empty")
	ErrProducerClosed   = errors.New("producer closed")
	ErrNilMessage       = errors.New("message cannot be nil")
	ErrNacked           = errors.New("broker rejected the message")
	ErrReturned         = errors.New("broker returned the message as unroutable")
	ErrChannelClosed    = errors.New("channel closed by broker")
)
