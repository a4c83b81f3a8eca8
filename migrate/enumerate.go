// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package migrate

import (
	"context"
	"fmt"
	"path"

	"github.com/absmach/fluxdrain/types"
)

// Candidate is a non-empty queue selected for draining.
type Candidate struct {
	Destination types.Destination
	Depth       int64 // Depth at enumeration time, -1 when the source cannot tell
}

// Filter narrows destinations by name using path.Match patterns. An empty
// Include matches everything; Exclude always wins.
type Filter struct {
	Include []string
	Exclude []string
}

// Validate checks every pattern.
func (f Filter) Validate() error {
	for _, p := range append(append([]string{}, f.Include...), f.Exclude...) {
		if _, err := path.Match(p, ""); err != nil {
			return fmt.Errorf("pattern %q: %w", p, err)
		}
	}
	return nil
}

// Match reports whether name passes the filter.
func (f Filter) Match(name string) bool {
	for _, p := range f.Exclude {
		if ok, _ := path.Match(p, name); ok {
			return false
		}
	}
	if len(f.Include) == 0 {
		return true
	}
	for _, p := range f.Include {
		if ok, _ := path.Match(p, name); ok {
			return true
		}
	}
	return false
}

// Enumerate returns the source's non-empty queues in registry order. Topics
// and already drained queues are skipped without opening anything on them.
// Any registry or probe failure fails the whole enumeration.
func Enumerate(ctx context.Context, src Source, filter Filter) ([]Candidate, error) {
	dests, err := src.ListDestinations(ctx)
	if err != nil {
		return nil, newError(ErrProbe, "list destinations", "", err)
	}

	depths, _ := src.(DepthSource)

	candidates := make([]Candidate, 0, len(dests))
	for _, dest := range dests {
		if !dest.IsQueue() || !filter.Match(dest.Name) {
			continue
		}

		empty, err := src.IsQueueEmpty(ctx, dest.Name)
		if err != nil {
			return nil, newError(ErrProbe, "probe", dest.Name, err)
		}
		if empty {
			continue
		}

		depth := int64(-1)
		if depths != nil {
			if depth, err = depths.Depth(ctx, dest.Name); err != nil {
				return nil, newError(ErrProbe, "depth", dest.Name, err)
			}
		}

		candidates = append(candidates, Candidate{Destination: dest, Depth: depth})
	}

	return candidates, nil
}
