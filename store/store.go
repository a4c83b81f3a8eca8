// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// Default values.
const (
	DefaultGCInterval   = 5 * time.Minute
	DefaultPollInterval = 50 * time.Millisecond
)

// Config holds source store configuration.
type Config struct {
	Dir string // Directory holding the BadgerDB files

	// Create allows opening a directory that holds no store yet.
	// Used by tooling and tests; the migration requires an existing store.
	Create bool

	SyncWrites   bool
	Compression  Compression   // Codec for newly enqueued payloads
	GCInterval   time.Duration // Value log GC period
	PollInterval time.Duration // Consumer poll period while waiting for messages

	Logger *slog.Logger
}

// Store is the file-backed source store: a destination registry plus one
// FIFO message log and depth counter per destination.
type Store struct {
	db  *badger.DB
	cfg Config

	logger *slog.Logger

	gcStopCh chan struct{}
	gcDone   chan struct{}
	closed   bool
	mu       sync.Mutex
}

// CheckDir verifies that dir points to a usable store directory.
func CheckDir(dir string, create bool) error {
	if dir == "" {
		return fmt.Errorf("%w: no directory given", ErrInvalidDir)
	}

	info, err := os.Stat(dir)
	if err != nil {
		if os.IsNotExist(err) && create {
			return nil
		}
		return fmt.Errorf("%w: %s: %v", ErrInvalidDir, dir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s is not a directory", ErrInvalidDir, dir)
	}
	if create {
		return nil
	}

	if _, err := os.Stat(filepath.Join(dir, badger.ManifestFilename)); err != nil {
		return fmt.Errorf("%w: %s holds no store", ErrInvalidDir, dir)
	}
	return nil
}

// Open opens the store in cfg.Dir. The returned store must be closed on every
// exit path.
func Open(cfg Config) (*Store, error) {
	if err := CheckDir(cfg.Dir, cfg.Create); err != nil {
		return nil, err
	}
	if cfg.GCInterval <= 0 {
		cfg.GCInterval = DefaultGCInterval
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.Compression == "" {
		cfg.Compression = CompressionNone
	}
	if _, err := cfg.Compression.codec(); err != nil {
		return nil, err
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	opts := badger.DefaultOptions(cfg.Dir)
	opts.Logger = newBadgerLogger(logger)
	opts.SyncWrites = cfg.SyncWrites
	opts.NumVersionsToKeep = 1
	opts.NumCompactors = 2

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open store %s: %w", cfg.Dir, err)
	}

	s := &Store{
		db:       db,
		cfg:      cfg,
		logger:   logger,
		gcStopCh: make(chan struct{}),
		gcDone:   make(chan struct{}),
	}

	go s.runGC()

	return s, nil
}

// Dir returns the store directory.
func (s *Store) Dir() string {
	return s.cfg.Dir
}

// Close stops background GC and closes the database. Safe to call twice.
func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	close(s.gcStopCh)
	<-s.gcDone

	return s.db.Close()
}

func (s *Store) runGC() {
	defer close(s.gcDone)

	ticker := time.NewTicker(s.cfg.GCInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			// Returns ErrNoRewrite when there is nothing to reclaim.
			_ = s.db.RunValueLogGC(0.5)
		case <-s.gcStopCh:
			return
		}
	}
}
