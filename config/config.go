package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

const (
	DefaultRPCAddress      = ":8080"
	DefaultNetworkName     = "gig-local"
	DefaultReasonLength    = 1024
	DefaultDisputeFee      = 5
	DefaultReputationBonus = 10
	DefaultFeePolicy       = "juror-split"
)

type Config struct {
	RPCAddress  string `toml:"RPCAddress"`
	DataDir     string `toml:"DataDir"`
	GenesisFile string `toml:"GenesisFile"`
	NetworkName string `toml:"NetworkName"`
	Env         string `toml:"Env"`

	Policy    Policy    `toml:"policy"`
	Logging   Logging   `toml:"logging"`
	RPC       RPC       `toml:"rpc"`
	Indexer   Indexer   `toml:"indexer"`
	Telemetry Telemetry `toml:"telemetry"`
	Webhook   Webhook   `toml:"webhook"`
}

// Load loads the configuration from the given path, writing a default file
// when none exists.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	cfg := &Config{}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the configuration written by Load for a missing file.
func Default() *Config {
	cfg := &Config{
		RPCAddress:  DefaultRPCAddress,
		DataDir:     "./gig-data",
		NetworkName: DefaultNetworkName,
		Env:         "dev",
		Policy: Policy{
			ReputationReward: DefaultReputationBonus,
			DisputeFee:       DefaultDisputeFee,
			MaxReasonLength:  DefaultReasonLength,
			FeePolicy:        DefaultFeePolicy,
			Arbiters:         []string{},
			Paused:           []string{},
		},
		Logging: Logging{Level: "info"},
		RPC: RPC{
			JWTIssuer:    "gigchain",
			RateLimit:    20,
			Burst:        40,
			ReadTimeout:  15,
			WriteTimeout: 15,
		},
	}
	return cfg
}

func (c *Config) applyDefaults() {
	if strings.TrimSpace(c.NetworkName) == "" {
		c.NetworkName = DefaultNetworkName
	}
	if strings.TrimSpace(c.RPCAddress) == "" {
		c.RPCAddress = DefaultRPCAddress
	}
	if strings.TrimSpace(c.Env) == "" {
		c.Env = "dev"
	}
	if c.Policy.MaxReasonLength == 0 {
		c.Policy.MaxReasonLength = DefaultReasonLength
	}
	if strings.TrimSpace(c.Policy.FeePolicy) == "" {
		c.Policy.FeePolicy = DefaultFeePolicy
	}
	if c.Policy.Arbiters == nil {
		c.Policy.Arbiters = []string{}
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.RPC.ReadTimeout == 0 {
		c.RPC.ReadTimeout = 15
	}
	if c.RPC.WriteTimeout == 0 {
		c.RPC.WriteTimeout = 15
	}
}

// ApplyEnv overlays GIG_ENV, GIG_RPC_JWT_SECRET and GIG_WEBHOOK_SECRET onto
// the loaded values.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	if v, ok := lookup("GIG_ENV"); ok && strings.TrimSpace(v) != "" {
		c.Env = strings.TrimSpace(v)
	}
	if v, ok := lookup("GIG_RPC_JWT_SECRET"); ok && v != "" {
		c.RPC.JWTSecret = v
	}
	if v, ok := lookup("GIG_WEBHOOK_SECRET"); ok && v != "" {
		c.Webhook.Secret = v
	}
}

// createDefault creates and saves a default configuration file.
func createDefault(path string) (*Config, error) {
	cfg := Default()
	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}
