// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

// Package migrate drains queues from a source store into a remote broker.
//
// The Enumerator lists the source's queue destinations and keeps the
// non-empty ones. The Drainer moves one destination at a time: receive with
// a bounded wait, send to the remote, acknowledge at the source, and stop only
// after an empty receive is confirmed by an empty depth probe. Acknowledgement
// always follows a successful send, so delivery is at-least-once: a crash
// between the two may duplicate one message at the remote, never lose it.
package migrate
