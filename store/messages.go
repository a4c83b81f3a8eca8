// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/absmach/fluxdrain/types"
	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

// record is the persisted form of a message.
type record struct {
	ID         string            `json:"id"`
	Sequence   uint64            `json:"seq"`
	Codec      byte              `json:"codec,omitempty"`
	Payload    []byte            `json:"payload,omitempty"`
	Properties map[string]string `json:"props,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
}

func encodeRecord(msg *types.Message, codec byte) ([]byte, error) {
	return json.Marshal(record{
		ID:         msg.ID,
		Sequence:   msg.Sequence,
		Codec:      codec,
		Payload:    compress(msg.Payload, codec),
		Properties: msg.Properties,
		CreatedAt:  msg.CreatedAt,
	})
}

func decodeRecord(name string, val []byte) (*types.Message, error) {
	var r record
	if err := json.Unmarshal(val, &r); err != nil {
		return nil, err
	}

	payload, err := decompress(r.Payload, r.Codec)
	if err != nil {
		return nil, err
	}

	return &types.Message{
		ID:          r.ID,
		Destination: name,
		Sequence:    r.Sequence,
		Payload:     payload,
		Properties:  r.Properties,
		CreatedAt:   r.CreatedAt,
	}, nil
}

// Enqueue appends msg to the named queue, registering the queue if needed.
// The message ID is generated when empty; the sequence is always assigned.
func (s *Store) Enqueue(ctx context.Context, name string, msg *types.Message) error {
	return s.enqueue(ctx, name, types.KindQueue, msg)
}

// Publish appends msg to the named topic's retained log. Topics are never
// migrated; they exist so that the registry mirrors a real broker's.
func (s *Store) Publish(ctx context.Context, name string, msg *types.Message) error {
	return s.enqueue(ctx, name, types.KindTopic, msg)
}

func (s *Store) enqueue(ctx context.Context, name string, kind types.DestinationKind, msg *types.Message) error {
	dest := types.Destination{Name: name, Kind: kind}
	if err := dest.Validate(); err != nil {
		return err
	}
	if err := validName(name); err != nil {
		return err
	}

	codec, err := s.cfg.Compression.codec()
	if err != nil {
		return err
	}

	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	msg.Destination = name

	return s.db.Update(func(txn *badger.Txn) error {
		if _, err := ensureDestination(txn, name, kind); err != nil {
			return err
		}

		seq, _, err := readUint64(txn, makeSeqKey(name))
		if err != nil {
			return err
		}
		seq++
		if err := writeUint64(txn, makeSeqKey(name), seq); err != nil {
			return err
		}
		msg.Sequence = seq

		data, err := encodeRecord(msg, codec)
		if err != nil {
			return err
		}
		if err := txn.Set(makeMessageKey(name, seq), data); err != nil {
			return err
		}

		return incrementCounter(txn, makeCountKey(name), 1)
	})
}

// Depth returns the number of messages currently stored for a destination.
// It reads the persisted counter, so it reflects every committed enqueue and
// acknowledgement at the time of the call.
func (s *Store) Depth(ctx context.Context, name string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	var depth uint64
	err := s.db.View(func(txn *badger.Txn) error {
		v, found, err := readUint64(txn, makeCountKey(name))
		if err != nil {
			return err
		}
		if !found {
			return ErrDestinationNotFound
		}
		depth = v
		return nil
	})

	return int64(depth), err
}

// IsQueueEmpty reports whether the named destination currently holds no
// messages.
func (s *Store) IsQueueEmpty(ctx context.Context, name string) (bool, error) {
	depth, err := s.Depth(ctx, name)
	if err != nil {
		return false, err
	}
	return depth == 0, nil
}

// Peek returns up to limit messages from the head of a destination without
// delivering them. A limit of zero returns all messages.
func (s *Store) Peek(ctx context.Context, name string, limit int) ([]*types.Message, error) {
	messages := make([]*types.Message, 0)

	err := s.db.View(func(txn *badger.Txn) error {
		if _, err := getDestination(txn, name); err != nil {
			return err
		}

		opts := badger.DefaultIteratorOptions
		opts.Prefix = makeMessagePrefix(name)
		opts.PrefetchValues = true

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid() && (limit == 0 || len(messages) < limit); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				msg, err := decodeRecord(name, val)
				if err != nil {
					return err
				}
				messages = append(messages, msg)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return messages, nil
}
