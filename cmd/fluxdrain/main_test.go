// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/absmach/fluxdrain/migrate"
	"github.com/absmach/fluxdrain/store"
	"github.com/absmach/fluxdrain/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()

	var stdout, stderr bytes.Buffer
	root := newRootCommand()
	root.SetArgs(args)
	root.SetOut(&stdout)
	root.SetErr(&stderr)

	err := root.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

// seedStore creates a closed store holding the given queues.
func seedStore(t *testing.T, queues map[string][]string) string {
	t.Helper()

	dir := t.TempDir()
	s, err := store.Open(store.Config{Dir: dir, Create: true})
	require.NoError(t, err)
	defer func() { require.NoError(t, s.Close()) }()

	ctx := context.Background()
	for name, bodies := range queues {
		if len(bodies) == 0 {
			require.NoError(t, s.CreateDestination(ctx, types.Destination{Name: name, Kind: types.KindQueue}))
		}
		for _, b := range bodies {
			require.NoError(t, s.Enqueue(ctx, name, &types.Message{Payload: []byte(b)}))
		}
	}
	return dir
}

func depth(t *testing.T, dir, name string) int64 {
	t.Helper()

	s, err := store.Open(store.Config{Dir: dir})
	require.NoError(t, err)
	defer s.Close()

	d, err := s.Depth(context.Background(), name)
	require.NoError(t, err)
	return d
}

func TestVersion(t *testing.T) {
	out, _, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "fluxdrain dev\n", out)
}

func TestMigrateConfigurationErrors(t *testing.T) {
	storeDir := seedStore(t, map[string][]string{"orders": {"A"}})

	cases := []struct {
		desc string
		args []string
	}{
		{desc: "missing store", args: []string{"migrate", "--broker-url", "amqp://127.0.0.1:1/"}},
		{desc: "store is not a directory", args: []string{"migrate", "--store", filepath.Join(storeDir, "MANIFEST"), "--broker-url", "amqp://127.0.0.1:1/"}},
		{desc: "empty directory", args: []string{"migrate", "--store", t.TempDir(), "--broker-url", "amqp://127.0.0.1:1/"}},
		{desc: "missing broker url", args: []string{"migrate", "--store", storeDir}},
		{desc: "invalid workers", args: []string{"migrate", "--store", storeDir, "--broker-url", "amqp://127.0.0.1:1/", "--workers", "0"}},
		{desc: "invalid log level", args: []string{"migrate", "--store", storeDir, "--broker-url", "amqp://127.0.0.1:1/", "--log-level", "loud"}},
		{desc: "missing config file", args: []string{"migrate", "--config", filepath.Join(t.TempDir(), "none.yaml")}},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			_, _, err := execute(t, tc.args...)
			require.Error(t, err)
			assert.ErrorIs(t, err, migrate.ErrConfiguration)
		})
	}

	assert.Equal(t, int64(1), depth(t, storeDir, "orders"))
}

func TestMigrateConnectivityError(t *testing.T) {
	storeDir := seedStore(t, map[string][]string{"orders": {"A", "B"}})

	_, _, err := execute(t, "migrate", "--store", storeDir, "--broker-url", "amqp://127.0.0.1:1/")
	require.Error(t, err)
	assert.ErrorIs(t, err, migrate.ErrConnectivity)
	assert.Equal(t, int64(2), depth(t, storeDir, "orders"))
}

func TestMigrateDryRun(t *testing.T) {
	storeDir := seedStore(t, map[string][]string{
		"orders": {"A", "B"},
		"events": nil,
	})

	_, logs, err := execute(t, "migrate",
		"--store", storeDir,
		"--broker-url", "amqp://127.0.0.1:1/",
		"--dry-run",
		"--log-format", "json")
	require.NoError(t, err)
	assert.Contains(t, logs, `"destination":"orders"`)
	assert.NotContains(t, logs, `"destination":"events"`)
	assert.Equal(t, int64(2), depth(t, storeDir, "orders"))
}

func TestMigrateDryRunWithoutBroker(t *testing.T) {
	storeDir := seedStore(t, map[string][]string{"orders": {"A"}})

	_, _, err := execute(t, "migrate", "--store", storeDir, "--dry-run")
	require.NoError(t, err)
	assert.Equal(t, int64(1), depth(t, storeDir, "orders"))
}

func TestMigratePasswordWithoutUsername(t *testing.T) {
	storeDir := seedStore(t, map[string][]string{"orders": {"A"}})

	_, logs, err := execute(t, "migrate",
		"--store", storeDir,
		"--broker-url", "amqp://127.0.0.1:1/",
		"--password", "secret")
	assert.ErrorIs(t, err, migrate.ErrConnectivity)
	assert.NotErrorIs(t, err, migrate.ErrConfiguration)
	assert.Contains(t, logs, "connecting anonymously")
}

func TestMigrateConfigFile(t *testing.T) {
	storeDir := seedStore(t, map[string][]string{"orders": {"A"}})

	file := filepath.Join(t.TempDir(), "fluxdrain.yaml")
	data := "source:\n  dir: " + storeDir + "\nremote:\n  url: amqp://127.0.0.1:1/\nmigration:\n  dry_run: true\n"
	require.NoError(t, os.WriteFile(file, []byte(data), 0o600))

	_, _, err := execute(t, "migrate", "--config", file)
	require.NoError(t, err)

	// Flags override the file.
	_, _, err = execute(t, "migrate", "--config", file, "--dry-run=false")
	assert.ErrorIs(t, err, migrate.ErrConnectivity)
}

func TestInspect(t *testing.T) {
	storeDir := seedStore(t, map[string][]string{
		"orders": {"A", "B", "C"},
		"events": nil,
	})

	out, _, err := execute(t, "inspect", "--store", storeDir)
	require.NoError(t, err)
	assert.Contains(t, out, "NAME")
	assert.Regexp(t, `events\s+queue\s+0`, out)
	assert.Regexp(t, `orders\s+queue\s+3`, out)

	out, _, err = execute(t, "inspect", "--store", storeDir, "--json", "--peek", "2")
	require.NoError(t, err)

	var infos []destinationInfo
	require.NoError(t, json.Unmarshal([]byte(out), &infos))
	require.Len(t, infos, 2)
	assert.Equal(t, "events", infos[0].Name)
	assert.Equal(t, "orders", infos[1].Name)
	assert.Equal(t, int64(3), infos[1].Depth)
	require.Len(t, infos[1].Head, 2)
	assert.Equal(t, "A", string(infos[1].Head[0].Payload))
}

func TestInspectMissingStore(t *testing.T) {
	_, _, err := execute(t, "inspect", "--store", filepath.Join(t.TempDir(), "nope"))
	assert.ErrorIs(t, err, migrate.ErrConfiguration)
}
