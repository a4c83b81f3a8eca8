// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package store

import "errors"

// Store errors.
var (
	ErrInvalidDir            = errors.New("invalid store directory")
	ErrDestinationNotFound   = errors.New("destination not found")
	ErrDestinationKind       = errors.New("destination registered with a different kind")
	ErrMessageNotFound       = errors.New("message not found")
	ErrAlreadyAcknowledged   = errors.New("message already acknowledged")
	ErrConsumerClosed        = errors.New("consumer closed")
	ErrUnknownCompression    = errors.New("unknown compression codec")
	ErrInvalidDestinationKey = errors.New("destination name contains a NUL byte")
)
