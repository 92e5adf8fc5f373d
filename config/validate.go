package config

import (
	"fmt"
	"strings"

	"gigchain/core/types"
)

// Validate rejects configurations the node cannot start with.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.DataDir) == "" {
		return fmt.Errorf("config: DataDir required")
	}
	switch c.Policy.FeePolicy {
	case "juror-split", "refund":
	default:
		return fmt.Errorf("policy: unknown FeePolicy %q", c.Policy.FeePolicy)
	}
	if c.Policy.MaxReasonLength <= 0 {
		return fmt.Errorf("policy: MaxReasonLength must be positive")
	}
	if _, err := c.ArbiterAddresses(); err != nil {
		return err
	}
	if c.RPC.RateLimit < 0 || c.RPC.Burst < 0 {
		return fmt.Errorf("rpc: RateLimit and Burst must not be negative")
	}
	if c.RPC.RateLimit > 0 && c.RPC.Burst == 0 {
		return fmt.Errorf("rpc: Burst required when RateLimit is set")
	}
	switch strings.ToLower(c.Indexer.Driver) {
	case "":
	case "sqlite", "postgres":
		if strings.TrimSpace(c.Indexer.DSN) == "" {
			return fmt.Errorf("indexer: DSN required for driver %s", c.Indexer.Driver)
		}
	default:
		return fmt.Errorf("indexer: unsupported driver %q", c.Indexer.Driver)
	}
	if strings.TrimSpace(c.Webhook.URL) != "" && c.Webhook.Secret == "" {
		return fmt.Errorf("webhook: Secret required when URL is set")
	}
	return nil
}

// ArbiterAddresses parses the configured arbiter identities.
func (c *Config) ArbiterAddresses() ([]types.Address, error) {
	out := make([]types.Address, 0, len(c.Policy.Arbiters))
	for i, raw := range c.Policy.Arbiters {
		addr, err := types.ParseAddress(raw)
		if err != nil {
			return nil, fmt.Errorf("policy: Arbiters[%d]: %w", i, err)
		}
		if addr.IsZero() {
			return nil, fmt.Errorf("policy: Arbiters[%d]: null address", i)
		}
		out = append(out, addr)
	}
	return out, nil
}
