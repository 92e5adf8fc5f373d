package config

// Policy holds the protocol knobs of the escrow, reputation and dispute
// modules.
type Policy struct {
	// ReputationReward is minted to the freelancer on confirmed delivery.
	// Zero disables minting.
	ReputationReward uint64 `toml:"ReputationReward"`
	// DisputeFee is the minimum fee accompanying createDispute.
	DisputeFee             uint64   `toml:"DisputeFee"`
	MaxReasonLength        int      `toml:"MaxReasonLength"`
	ReputationTransferable bool     `toml:"ReputationTransferable"`
	FeePolicy              string   `toml:"FeePolicy"`
	Arbiters               []string `toml:"Arbiters"`
	// Paused lists module names whose transitions are rejected.
	Paused []string `toml:"Paused"`
}

type Logging struct {
	Level      string `toml:"Level"`
	File       string `toml:"File"`
	MaxSizeMB  int    `toml:"MaxSizeMB"`
	MaxBackups int    `toml:"MaxBackups"`
	MaxAgeDays int    `toml:"MaxAgeDays"`
	Compress   bool   `toml:"Compress"`
}

// RPC configures the JSON-RPC listener and its auth/rate limits.
type RPC struct {
	JWTSecret      string   `toml:"JWTSecret"`
	JWTIssuer      string   `toml:"JWTIssuer"`
	RateLimit      float64  `toml:"RateLimit"`
	Burst          int      `toml:"Burst"`
	AllowedOrigins []string `toml:"AllowedOrigins"`
	ReadTimeout    int      `toml:"ReadTimeout"`
	WriteTimeout   int      `toml:"WriteTimeout"`
}

// Indexer selects the SQL projection store. An empty driver disables it.
type Indexer struct {
	Driver string `toml:"Driver"`
	DSN    string `toml:"DSN"`
}

type Telemetry struct {
	Endpoint string `toml:"Endpoint"`
	Insecure bool   `toml:"Insecure"`
	Metrics  bool   `toml:"Metrics"`
	Traces   bool   `toml:"Traces"`
	Headers  string `toml:"Headers"`
}

// Webhook forwards committed events to an external endpoint. An empty URL
// disables forwarding.
type Webhook struct {
	URL         string   `toml:"URL"`
	Secret      string   `toml:"Secret"`
	EventTypes  []string `toml:"EventTypes"`
	MaxAttempts int      `toml:"MaxAttempts"`
}
