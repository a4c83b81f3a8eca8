// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package types

import "time"

// Message is a persisted queue message. Payload and Properties are opaque to
// the migration: they are forwarded as they were stored.
type Message struct {
	ID          string            `json:"id"`
	Destination string            `json:"destination"`
	Sequence    uint64            `json:"sequence"`
	Payload     []byte            `json:"payload,omitempty"`
	Properties  map[string]string `json:"properties,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
}

// Size returns the payload length in bytes.
func (m *Message) Size() int {
	if m == nil {
		return 0
	}
	return len(m.Payload)
}

// Property returns the named property, or "" when absent.
func (m *Message) Property(key string) string {
	if m == nil || m.Properties == nil {
		return ""
	}
	return m.Properties[key]
}

// Clone returns a deep copy of the message.
func (m *Message) Clone() *Message {
	if m == nil {
		return nil
	}
	c := *m
	if m.Payload != nil {
		c.Payload = append([]byte(nil), m.Payload...)
	}
	if m.Properties != nil {
		c.Properties = make(map[string]string, len(m.Properties))
		for k, v := range m.Properties {
			c.Properties[k] = v
		}
	}
	return &c
}
