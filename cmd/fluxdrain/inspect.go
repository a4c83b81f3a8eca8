// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"text/tabwriter"

	"github.com/absmach/fluxdrain/config"
	"github.com/absmach/fluxdrain/migrate"
	"github.com/absmach/fluxdrain/store"
	"github.com/absmach/fluxdrain/types"
	"github.com/spf13/cobra"
)

// destinationInfo is one row of the inspect output.
type destinationInfo struct {
	Name  string                `json:"name"`
	Kind  types.DestinationKind `json:"kind"`
	Depth int64                 `json:"depth"`
	Head  []*types.Message      `json:"head,omitempty"`
}

func newInspectCommand(opts *options) *cobra.Command {
	var (
		asJSON bool
		peek   int
	)

	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "List the source store's destinations and their depths",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}
			logger, err := setupLogger(cmd, cfg)
			if err != nil {
				return err
			}

			infos, err := inspect(cmd.Context(), cfg.Source, peek, logger)
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(infos)
			}
			return printTable(cmd.OutOrStdout(), infos)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON instead of a table")
	cmd.Flags().IntVar(&peek, "peek", 0, "Include up to N messages from the head of each destination")
	return cmd
}

func inspect(ctx context.Context, cfg config.SourceConfig, peek int, logger *slog.Logger) ([]destinationInfo, error) {
	if err := store.CheckDir(cfg.Dir, false); err != nil {
		return nil, migrate.ConfigurationError("source.dir", err)
	}

	s, err := store.Open(store.Config{Dir: cfg.Dir, GCInterval: cfg.GCInterval})
	if err != nil {
		return nil, migrate.ConnectivityError("open store", err)
	}
	defer func() {
		if err := s.Close(); err != nil {
			logger.Warn("Failed to close source store", "error", err)
		}
	}()

	dests, err := s.ListDestinations(ctx)
	if err != nil {
		return nil, fmt.Errorf("list destinations: %w", err)
	}

	infos := make([]destinationInfo, 0, len(dests))
	for _, d := range dests {
		depth, err := s.Depth(ctx, d.Name)
		if err != nil {
			return nil, fmt.Errorf("depth of %q: %w", d.Name, err)
		}
		info := destinationInfo{Name: d.Name, Kind: d.Kind, Depth: depth}
		if peek > 0 && depth > 0 {
			if info.Head, err = s.Peek(ctx, d.Name, peek); err != nil {
				return nil, fmt.Errorf("peek %q: %w", d.Name, err)
			}
		}
		infos = append(infos, info)
	}
	return infos, nil
}

func printTable(w io.Writer, infos []destinationInfo) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tKIND\tDEPTH")
	for _, info := range infos {
		fmt.Fprintf(tw, "%s\t%s\t%d\n", info.Name, info.Kind, info.Depth)
		for _, msg := range info.Head {
			fmt.Fprintf(tw, "  #%d\t%s\t%d bytes\n", msg.Sequence, msg.ID, len(msg.Payload))
		}
	}
	return tw.Flush()
}
