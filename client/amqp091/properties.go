// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package amqp091

import (
	"strconv"
	"strings"
	"time"

	"github.com/absmach/fluxdrain/types"
	amqp091 "github.com/rabbitmq/amqp091-go"
)

// ToPublishing maps a stored message onto an AMQP publishing. Well-known
// properties become basic properties, everything else becomes a header. A
// well-known property whose value does not fit its AMQP field is carried as a
// header under its original key, so no stored message is unpublishable. The
// payload is passed through untouched. Messages without a delivery mode are
// published persistent, and the store timestamp is used when the message
// carries none.
func ToPublishing(msg *types.Message) amqp091.Publishing {
	p := amqp091.Publishing{
		Body:         msg.Payload,
		DeliveryMode: amqp091.Persistent,
		Timestamp:    msg.CreatedAt,
	}
	applyProperties(&p, msg.Properties)
	return p
}

func applyProperties(p *amqp091.Publishing, props map[string]string) {
	for key, value := range props {
		switch strings.ToLower(key) {
		case types.PropContentType:
			p.ContentType = value
		case types.PropContentEncoding:
			p.ContentEncoding = value
		case types.PropCorrelationID:
			p.CorrelationId = value
		case types.PropReplyTo:
			p.ReplyTo = value
		case types.PropMessageID:
			p.MessageId = value
		case types.PropType:
			p.Type = value
		case types.PropAppID:
			p.AppId = value
		case types.PropUserID:
			p.UserId = value
		case types.PropExpiration:
			p.Expiration = value
		case types.PropPriority:
			// Priority is an octet on the wire.
			v, err := strconv.ParseUint(strings.TrimSpace(value), 10, 8)
			if err != nil {
				setHeader(p, key, value)
				continue
			}
			p.Priority = uint8(v)
		case types.PropDeliveryMode:
			mode, ok := parseDeliveryMode(value)
			if !ok {
				setHeader(p, key, value)
				continue
			}
			p.DeliveryMode = mode
		case types.PropTimestamp:
			ts, ok := parseTimestamp(value)
			if !ok {
				setHeader(p, key, value)
				continue
			}
			p.Timestamp = ts
		default:
			setHeader(p, key, value)
		}
	}
}

func setHeader(p *amqp091.Publishing, key, value string) {
	if p.Headers == nil {
		p.Headers = amqp091.Table{}
	}
	p.Headers[key] = value
}

func parseDeliveryMode(v string) (uint8, bool) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "2", "persistent":
		return amqp091.Persistent, true
	case "1", "transient", "non-persistent":
		return amqp091.Transient, true
	default:
		return 0, false
	}
}

// parseTimestamp accepts RFC 3339 or Unix seconds. AMQP timestamps are
// unsigned, so instants before the epoch are rejected.
func parseTimestamp(v string) (time.Time, bool) {
	v = strings.TrimSpace(v)
	if ts, err := time.Parse(time.RFC3339Nano, v); err == nil {
		return ts, ts.Unix() >= 0
	}
	secs, err := strconv.ParseInt(v, 10, 64)
	if err != nil || secs < 0 {
		return time.Time{}, false
	}
	return time.Unix(secs, 0).UTC(), true
}
