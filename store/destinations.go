// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/absmach/fluxdrain/types"
	"github.com/dgraph-io/badger/v4"
)

// CreateDestination registers a destination. Registering an existing
// destination with the same kind is a no-op.
func (s *Store) CreateDestination(ctx context.Context, dest types.Destination) error {
	if err := dest.Validate(); err != nil {
		return err
	}
	if err := validName(dest.Name); err != nil {
		return err
	}

	return s.db.Update(func(txn *badger.Txn) error {
		_, err := ensureDestination(txn, dest.Name, dest.Kind)
		return err
	})
}

// ensureDestination returns the registered destination, creating it with the
// given kind when missing.
func ensureDestination(txn *badger.Txn, name string, kind types.DestinationKind) (types.Destination, error) {
	existing, err := getDestination(txn, name)
	if err == nil {
		if existing.Kind != kind {
			return existing, fmt.Errorf("%w: %s is a %s", ErrDestinationKind, name, existing.Kind)
		}
		return existing, nil
	}
	if err != ErrDestinationNotFound {
		return types.Destination{}, err
	}

	dest := types.Destination{
		Name:      name,
		Kind:      kind,
		CreatedAt: time.Now().UTC(),
	}
	data, err := json.Marshal(dest)
	if err != nil {
		return types.Destination{}, err
	}
	if err := txn.Set(makeMetaKey(name), data); err != nil {
		return types.Destination{}, err
	}
	if err := writeUint64(txn, makeCountKey(name), 0); err != nil {
		return types.Destination{}, err
	}
	return dest, nil
}

func getDestination(txn *badger.Txn, name string) (types.Destination, error) {
	var dest types.Destination

	item, err := txn.Get(makeMetaKey(name))
	if err == badger.ErrKeyNotFound {
		return dest, ErrDestinationNotFound
	}
	if err != nil {
		return dest, err
	}

	err = item.Value(func(val []byte) error {
		return json.Unmarshal(val, &dest)
	})
	return dest, err
}

// GetDestination returns a registered destination.
func (s *Store) GetDestination(ctx context.Context, name string) (types.Destination, error) {
	var dest types.Destination
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		dest, err = getDestination(txn, name)
		return err
	})
	return dest, err
}

// ListDestinations returns every registered destination, queues and topics,
// in key order.
func (s *Store) ListDestinations(ctx context.Context) ([]types.Destination, error) {
	dests := make([]types.Destination, 0)

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(destMetaPrefix)

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			err := it.Item().Value(func(val []byte) error {
				var dest types.Destination
				if err := json.Unmarshal(val, &dest); err != nil {
					return err
				}
				dests = append(dests, dest)
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

	return dests, nil
}
