// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/dgraph-io/badger/v4"
)

const (
	destMetaPrefix    = "dest:meta:"
	destMessagePrefix = "dest:msg:"
	destCountPrefix   = "dest:count:" // Counter for O(1) depth probes
	destSeqPrefix     = "dest:seq:"
)

// Message keys separate the name from the sequence with a NUL byte so that
// one destination's prefix never matches another destination's keys.
const keySep = "\x00"

func validName(name string) error {
	if strings.Contains(name, keySep) {
		return ErrInvalidDestinationKey
	}
	return nil
}

func makeMetaKey(name string) []byte {
	return []byte(destMetaPrefix + name)
}

func makeMessagePrefix(name string) []byte {
	return []byte(destMessagePrefix + name + keySep)
}

func makeMessageKey(name string, sequence uint64) []byte {
	return []byte(fmt.Sprintf("%s%s%s%020d", destMessagePrefix, name, keySep, sequence))
}

func makeCountKey(name string) []byte {
	return []byte(destCountPrefix + name)
}

func makeSeqKey(name string) []byte {
	return []byte(destSeqPrefix + name)
}

// readUint64 reads an 8-byte big-endian value. A missing key reads as zero
// with found == false.
func readUint64(txn *badger.Txn, key []byte) (v uint64, found bool, err error) {
	item, err := txn.Get(key)
	if err == badger.ErrKeyNotFound {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}

	err = item.Value(func(val []byte) error {
		if len(val) == 8 {
			v = binary.BigEndian.Uint64(val)
		}
		return nil
	})
	return v, true, err
}

func writeUint64(txn *badger.Txn, key []byte, v uint64) error {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, v)
	return txn.Set(key, buf)
}

// incrementCounter adds delta to the counter at key, clamping at zero.
func incrementCounter(txn *badger.Txn, key []byte, delta int64) error {
	current, _, err := readUint64(txn, key)
	if err != nil {
		return err
	}

	next := int64(current) + delta
	if next < 0 {
		next = 0
	}
	return writeUint64(txn, key, uint64(next))
}
