// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package migrate

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

const tracerName = "github.com/absmach/fluxdrain/migrate"

// Options configures a Migrator.
type Options struct {
	ReceiveTimeout time.Duration
	// Workers is the number of destinations drained at once. One (the
	// default) drains strictly in enumeration order. Messages of a single
	// destination are always moved sequentially.
	Workers int
	Filter  Filter
	// DryRun enumerates and reports without opening consumers or producers.
	DryRun bool

	Limiter  Limiter
	Observer Observer
	Logger   *slog.Logger

	// RemoteName labels the remote in log lines.
	RemoteName string
}

// Result summarises one drained destination.
type Result struct {
	Destination string
	Depth       int64 // Depth at enumeration, -1 if unknown
	Migrated    int64
	Duration    time.Duration
	Err         error
}

// Report summarises a run.
type Report struct {
	Results  []Result
	Started  time.Time
	Finished time.Time
	DryRun   bool
}

// Migrated returns the total number of migrated messages.
func (r Report) Migrated() int64 {
	var total int64
	for _, res := range r.Results {
		total += res.Migrated
	}
	return total
}

// releaser is implemented by limiters that keep per-destination state.
type releaser interface {
	Done(destination string)
}

// Migrator runs a full migration: enumerate, then drain each candidate.
type Migrator struct {
	source  Source
	remote  Remote
	opts    Options
	drainer *Drainer
	logger  *slog.Logger
	tracer  trace.Tracer
}

// New creates a Migrator.
func New(source Source, remote Remote, opts Options) *Migrator {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Observer == nil {
		opts.Observer = noopObserver{}
	}

	return &Migrator{
		source:  source,
		remote:  remote,
		opts:    opts,
		drainer: NewDrainer(source, remote, opts.ReceiveTimeout, opts.Limiter, opts.Observer, opts.Logger),
		logger:  opts.Logger,
		tracer:  otel.Tracer(tracerName),
	}
}

// Run migrates every non-empty queue. The report is returned even on error
// and holds the destinations processed so far.
func (m *Migrator) Run(ctx context.Context) (Report, error) {
	report := Report{Started: time.Now(), DryRun: m.opts.DryRun}

	if err := m.opts.Filter.Validate(); err != nil {
		report.Finished = time.Now()
		return report, ConfigurationError("filter", err)
	}

	candidates, err := Enumerate(ctx, m.source, m.opts.Filter)
	if err != nil {
		report.Finished = time.Now()
		return report, err
	}

	m.logger.Info("Enumerated destinations", "candidates", len(candidates), "workers", m.opts.Workers)

	if m.opts.DryRun {
		for _, c := range candidates {
			m.logger.Info("Would migrate destination", "destination", c.Destination.Name, "depth", c.Depth, "remote", m.opts.RemoteName)
			report.Results = append(report.Results, Result{Destination: c.Destination.Name, Depth: c.Depth})
		}
		report.Finished = time.Now()
		return report, nil
	}

	if m.opts.Workers == 1 {
		err = m.runSequential(ctx, candidates, &report)
	} else {
		err = m.runConcurrent(ctx, candidates, &report)
	}
	report.Finished = time.Now()
	return report, err
}

func (m *Migrator) runSequential(ctx context.Context, candidates []Candidate, report *Report) error {
	for _, c := range candidates {
		res := m.drain(ctx, c)
		report.Results = append(report.Results, res)
		if res.Err != nil {
			return res.Err
		}
	}
	return nil
}

func (m *Migrator) runConcurrent(ctx context.Context, candidates []Candidate, report *Report) error {
	results := make([]Result, len(candidates))
	started := make([]bool, len(candidates))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.opts.Workers)

	for i, c := range candidates {
		if gctx.Err() != nil {
			break
		}
		i, c := i, c
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			started[i] = true
			results[i] = m.drain(gctx, c)
			return results[i].Err
		})
	}
	err := g.Wait()

	for i, res := range results {
		if started[i] {
			report.Results = append(report.Results, res)
		}
	}
	return err
}

func (m *Migrator) drain(ctx context.Context, c Candidate) Result {
	name := c.Destination.Name

	ctx, span := m.tracer.Start(ctx, "migrate.drain", trace.WithAttributes(
		attribute.String("destination", name),
		attribute.Int64("depth", c.Depth),
	))
	defer span.End()

	m.logger.Info("Migrating messages", "destination", name, "depth", c.Depth, "remote", m.opts.RemoteName)

	start := time.Now()
	migrated, err := m.drainer.Drain(ctx, name)
	elapsed := time.Since(start)
	if r, ok := m.opts.Limiter.(releaser); ok {
		r.Done(name)
	}

	span.SetAttributes(attribute.Int64("migrated", migrated))
	res := Result{
		Destination: name,
		Depth:       c.Depth,
		Migrated:    migrated,
		Duration:    elapsed,
		Err:         err,
	}

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		m.logger.Error("Migration aborted", "destination", name, "migrated", migrated, "error", err)
		return res
	}

	m.opts.Observer.DestinationDrained(ctx, name, migrated, elapsed)
	m.logger.Info("Finished migrating messages", "destination", name, "migrated", migrated, "remote", m.opts.RemoteName, "duration", elapsed)
	return res
}
