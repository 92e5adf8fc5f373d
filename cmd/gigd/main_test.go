package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"gigchain/config"
	"gigchain/core"
	"gigchain/core/genesis"
	"gigchain/core/types"
	"gigchain/integrations/indexer"
	"gigchain/native/dispute"
	"gigchain/storage"
)

func TestResolveGenesisPathPrecedence(t *testing.T) {
	lookup := func(key string) (string, bool) {
		if key != genesisPathEnv {
			t.Fatalf("unexpected lookup key: %s", key)
		}
		return "env-path", true
	}
	require.Equal(t, "cli-path", resolveGenesisPath(" cli-path ", "cfg-path", lookup))
	require.Equal(t, "env-path", resolveGenesisPath("", "cfg-path", lookup))

	empty := func(string) (string, bool) { return "  ", true }
	require.Equal(t, "cfg-path", resolveGenesisPath("", " cfg-path", empty))
	require.Empty(t, resolveGenesisPath("", "", nil))
}

func TestSettingsFromConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Policy.ReputationReward = 0
	cfg.Policy.DisputeFee = 9
	cfg.Policy.FeePolicy = "refund"
	cfg.Policy.Arbiters = []string{"0x00000000000000000000000000000000000000aa"}
	cfg.Policy.Paused = []string{"escrow"}

	settings, err := settingsFromConfig(cfg, slog.New(slog.NewJSONHandler(io.Discard, nil)))
	require.NoError(t, err)
	require.True(t, settings.ReputationReward.IsZero())
	require.Equal(t, uint64(9), settings.DisputePolicy.MinFee.Uint64())
	require.Equal(t, dispute.FeePolicyRefund, settings.DisputePolicy.FeePolicy)
	require.Len(t, settings.Arbiters, 1)
	require.Equal(t, []string{"escrow"}, settings.Paused)

	cfg.Policy.Arbiters = []string{"bogus"}
	_, err = settingsFromConfig(cfg, nil)
	require.Error(t, err)
}

func TestLoggingOptions(t *testing.T) {
	cfg := config.Default()
	require.Nil(t, loggingOptions(cfg).File)

	cfg.Logging.File = "/var/log/gigd.log"
	cfg.Logging.MaxSizeMB = 50
	opts := loggingOptions(cfg)
	require.NotNil(t, opts.File)
	require.Equal(t, 50, opts.File.MaxSizeMB)
	require.Equal(t, serviceName, opts.Service)
}

func TestTelemetryConfigParsesHeaders(t *testing.T) {
	cfg := config.Default()
	cfg.Telemetry.Headers = "authorization=token"
	cfg.Telemetry.Traces = true
	tc := telemetryConfig(cfg)
	require.Equal(t, "token", tc.Headers["authorization"])
	require.True(t, tc.Traces)
}

func TestRunExport(t *testing.T) {
	dir := t.TempDir()
	dsn := filepath.Join(dir, "index.db")
	configPath := filepath.Join(dir, "config.toml")
	contents := fmt.Sprintf("DataDir = %q\n\n[indexer]\nDriver = \"sqlite\"\nDSN = %q\n", filepath.Join(dir, "data"), dsn)
	require.NoError(t, os.WriteFile(configPath, []byte(contents), 0o644))

	client := types.MustParseAddress("0x1000000000000000000000000000000000000001")
	freelancer := types.MustParseAddress("0x2000000000000000000000000000000000000002")
	spec, err := genesis.ParseGenesisSpec([]byte(fmt.Sprintf("networkName: gig-export\nalloc:\n  %q: \"500\"\n", client.Hex())))
	require.NoError(t, err)
	settings := core.DefaultSettings()
	settings.Logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	node, err := core.NewNode(storage.NewMemDB(), settings, spec)
	require.NoError(t, err)
	_, err = node.CreateJob(context.Background(), client, freelancer, uint256.NewInt(75))
	require.NoError(t, err)

	gdb, err := indexer.Open(indexer.DriverSQLite, dsn)
	require.NoError(t, err)
	ix, err := indexer.New(gdb, node, nil)
	require.NoError(t, err)
	_, err = ix.CatchUp(context.Background())
	require.NoError(t, err)
	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	var stdout, stderr bytes.Buffer
	code := runExport([]string{"-config", configPath, "-format", "jsonl"}, &stdout, &stderr)
	require.Equal(t, 0, code, stderr.String())
	require.Contains(t, stdout.String(), `"amount":"75"`)
	require.Contains(t, stdout.String(), `"status":"Created"`)

	out := filepath.Join(dir, "jobs.csv")
	stdout.Reset()
	code = runExport([]string{"-config", configPath, "-out", out}, &stdout, &stderr)
	require.Equal(t, 0, code, stderr.String())
	require.True(t, strings.HasPrefix(stdout.String(), "wrote "+out))
	data, err := os.ReadFile(out)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(string(data), "id,client,freelancer"))

	code = runExport([]string{"-config", configPath, "-dataset", "votes"}, &stdout, &stderr)
	require.Equal(t, 1, code)
}
