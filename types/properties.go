// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package types

import "strings"

const (
	// Well-known message properties. They map onto AMQP basic properties;
	// any other key is carried as an application header.
	PropContentType     = "content-type"
	PropContentEncoding = "content-encoding"
	PropCorrelationID   = "correlation-id"
	PropReplyTo         = "reply-to"
	PropMessageID       = "message-id"
	PropType            = "type"
	PropAppID           = "app-id"
	PropUserID          = "user-id"
	PropExpiration      = "expiration"
	PropPriority        = "priority"
	PropDeliveryMode    = "delivery-mode"
	PropTimestamp       = "timestamp"
)

// IsStandardProperty returns true for keys carried as AMQP basic properties
// rather than headers.
func IsStandardProperty(key string) bool {
	switch strings.ToLower(key) {
	case PropContentType, PropContentEncoding, PropCorrelationID, PropReplyTo,
		PropMessageID, PropType, PropAppID, PropUserID, PropExpiration,
		PropPriority, PropDeliveryMode, PropTimestamp:
		return true
	default:
		return false
	}
}
