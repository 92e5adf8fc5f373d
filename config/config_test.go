package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadCreatesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, DefaultRPCAddress, cfg.RPCAddress)
	require.Equal(t, uint64(DefaultDisputeFee), cfg.Policy.DisputeFee)
	require.Equal(t, uint64(DefaultReputationBonus), cfg.Policy.ReputationReward)

	_, err = os.Stat(path)
	require.NoError(t, err)

	again, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, cfg.DataDir, again.DataDir)
	require.Equal(t, cfg.Policy.FeePolicy, again.Policy.FeePolicy)
}

func TestLoadParsesSections(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	contents := `RPCAddress = "127.0.0.1:9000"
DataDir = "/var/lib/gig"
NetworkName = "testnet"

[policy]
ReputationReward = 25
DisputeFee = 7
FeePolicy = "refund"
ReputationTransferable = true
Arbiters = ["0x00000000000000000000000000000000000000aa"]
Paused = ["escrow"]

[logging]
Level = "debug"
File = "/tmp/gig.log"

[rpc]
JWTSecret = "s3cret"
RateLimit = 5
Burst = 10

[indexer]
Driver = "sqlite"
DSN = "file::memory:"

[telemetry]
Endpoint = "collector:4318"
Traces = true
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "127.0.0.1:9000", cfg.RPCAddress)
	require.Equal(t, "testnet", cfg.NetworkName)
	require.Equal(t, uint64(25), cfg.Policy.ReputationReward)
	require.Equal(t, "refund", cfg.Policy.FeePolicy)
	require.True(t, cfg.Policy.ReputationTransferable)
	require.Equal(t, []string{"escrow"}, cfg.Policy.Paused)
	require.Equal(t, DefaultReasonLength, cfg.Policy.MaxReasonLength)
	require.Equal(t, "debug", cfg.Logging.Level)
	require.Equal(t, "s3cret", cfg.RPC.JWTSecret)
	require.Equal(t, "sqlite", cfg.Indexer.Driver)
	require.True(t, cfg.Telemetry.Traces)

	arbiters, err := cfg.ArbiterAddresses()
	require.NoError(t, err)
	require.Len(t, arbiters, 1)
}

func TestValidateRejects(t *testing.T) {
	cases := map[string]func(*Config){
		"fee policy":     func(c *Config) { c.Policy.FeePolicy = "burn" },
		"arbiter":        func(c *Config) { c.Policy.Arbiters = []string{"nope"} },
		"null arbiter":   func(c *Config) { c.Policy.Arbiters = []string{"0x0000000000000000000000000000000000000000"} },
		"data dir":       func(c *Config) { c.DataDir = " " },
		"indexer driver": func(c *Config) { c.Indexer.Driver = "mysql"; c.Indexer.DSN = "x" },
		"indexer dsn":    func(c *Config) { c.Indexer.Driver = "postgres" },
		"burst":          func(c *Config) { c.RPC.Burst = 0 },
		"reason length":  func(c *Config) { c.Policy.MaxReasonLength = -1 },
		"webhook secret": func(c *Config) { c.Webhook.URL = "https://hooks.example" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := Default()
			mutate(cfg)
			require.Error(t, cfg.Validate())
		})
	}
}

func TestApplyEnv(t *testing.T) {
	cfg := Default()
	env := map[string]string{"GIG_ENV": "prod", "GIG_RPC_JWT_SECRET": "abc", "GIG_WEBHOOK_SECRET": "hook"}
	cfg.ApplyEnv(func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	})
	require.Equal(t, "prod", cfg.Env)
	require.Equal(t, "abc", cfg.RPC.JWTSecret)
	require.Equal(t, "hook", cfg.Webhook.Secret)
}
