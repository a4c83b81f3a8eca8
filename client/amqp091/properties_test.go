// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package amqp091

import (
	"strconv"
	"testing"
	"time"

	"github.com/absmach/fluxdrain/types"
	amqp091 "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
)

func TestToPublishing(t *testing.T) {
	created := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	msg := &types.Message{
		ID:        "store-id",
		Payload:   []byte{0x00, 0xff, 'A'},
		CreatedAt: created,
		Properties: map[string]string{
			"Content-Type":   "application/json",
			"correlation-id": "c-1",
			"message-id":     "m-1",
			"reply-to":       "replies",
			"type":           "order.created",
			"app-id":         "shop",
			"expiration":     "60000",
			"priority":       "5",
			"x-tenant":       "acme",
		},
	}

	p := ToPublishing(msg)

	assert.Equal(t, msg.Payload, p.Body)
	assert.Equal(t, "application/json", p.ContentType)
	assert.Equal(t, "c-1", p.CorrelationId)
	assert.Equal(t, "m-1", p.MessageId)
	assert.Equal(t, "replies", p.ReplyTo)
	assert.Equal(t, "order.created", p.Type)
	assert.Equal(t, "shop", p.AppId)
	assert.Equal(t, "60000", p.Expiration)
	assert.Equal(t, uint8(5), p.Priority)
	assert.Equal(t, amqp091.Persistent, p.DeliveryMode)
	assert.Equal(t, created, p.Timestamp)
	assert.Equal(t, amqp091.Table{"x-tenant": "acme"}, p.Headers)
}

func TestToPublishing_NoProperties(t *testing.T) {
	p := ToPublishing(&types.Message{Payload: []byte("x")})
	assert.Nil(t, p.Headers)
	assert.Empty(t, p.MessageId, "store IDs are not injected")
}

func TestToPublishing_DeliveryModeAndTimestamp(t *testing.T) {
	p := ToPublishing(&types.Message{Properties: map[string]string{
		"delivery-mode": "transient",
		"timestamp":     "1700000000",
	}})
	assert.Equal(t, amqp091.Transient, p.DeliveryMode)
	assert.Equal(t, time.Unix(1700000000, 0).UTC(), p.Timestamp)

	p = ToPublishing(&types.Message{Properties: map[string]string{
		"timestamp": "2024-03-01T12:00:00Z",
	}})
	assert.Equal(t, time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC), p.Timestamp)
}

func TestToPublishing_PriorityIsAnOctet(t *testing.T) {
	for _, v := range []string{"0", "9", "12", "255"} {
		p := ToPublishing(&types.Message{Properties: map[string]string{"priority": v}})
		assert.Equal(t, v, strconv.Itoa(int(p.Priority)))
		assert.Nil(t, p.Headers, v)
	}
}

func TestToPublishing_UnparsableBasicPropertiesBecomeHeaders(t *testing.T) {
	created := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	cases := []struct {
		desc  string
		key   string
		value string
	}{
		{desc: "priority not a number", key: "priority", value: "high"},
		{desc: "priority above an octet", key: "priority", value: "300"},
		{desc: "negative priority", key: "priority", value: "-1"},
		{desc: "unknown delivery mode", key: "Delivery-Mode", value: "PERSISTENT_X"},
		{desc: "delivery mode out of range", key: "delivery-mode", value: "3"},
		{desc: "free-form timestamp", key: "timestamp", value: "yesterday"},
		{desc: "timestamp before the epoch", key: "timestamp", value: "1960-01-01T00:00:00Z"},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			msg := &types.Message{
				Payload:    []byte("A"),
				CreatedAt:  created,
				Properties: map[string]string{tc.key: tc.value, "content-type": "text/plain"},
			}

			p := ToPublishing(msg)
			assert.Equal(t, amqp091.Table{tc.key: tc.value}, p.Headers)
			assert.Equal(t, "text/plain", p.ContentType)
			assert.Equal(t, []byte("A"), p.Body)
			assert.Zero(t, p.Priority)
			assert.Equal(t, amqp091.Persistent, p.DeliveryMode)
			assert.Equal(t, created, p.Timestamp)
		})
	}
}
