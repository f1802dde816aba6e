package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// envPrefix namespaces every variable, e.g. TOLLGATE_SERVER_ADDR.
const envPrefix = "TOLLGATE"

// Config is the full process configuration.
type Config struct {
	NodeID      string `envconfig:"NODE_ID" default:"edge-local"`
	Server      Server
	Logging     Logging
	Issuer      Issuer
	Keys        Keys
	Pricing     Pricing
	Enforcement Enforcement
	Ledger      Ledger
	Reconcile   Reconcile
	Postgres    Postgres
	Redis       RedisConfig
	Kafka       Kafka
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr            string        `envconfig:"ADDR" default:":8080"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`
	// AdminToken guards issuance and reconciliation endpoints. Empty disables them.
	AdminToken string `envconfig:"ADMIN_TOKEN"`
	// EdgeToken guards enforcement, reservation settlement and enforcer usage
	// reports. Empty disables them; consumer usage submission stays open.
	EdgeToken string `envconfig:"EDGE_TOKEN"`
}

// Logging selects the slog handler.
type Logging struct {
	Level  string `envconfig:"LEVEL" default:"info"`
	Format string `envconfig:"FORMAT" default:"json"`
}

// Issuer configures license minting on nodes that run the issuing authority.
type Issuer struct {
	ID          string        `envconfig:"ID" default:"tollgate-issuer"`
	KeyFile     string        `envconfig:"KEY_FILE"`
	KeyID       string        `envconfig:"KEY_ID"`
	DefaultTTL  time.Duration `envconfig:"DEFAULT_TTL" default:"1h"`
	MaxTTL      time.Duration `envconfig:"MAX_TTL" default:"24h"`
	ManifestKey string        `envconfig:"MANIFEST_KEY_FILE"`
	ManifestKID string        `envconfig:"MANIFEST_KEY_ID"`
}

// Keys configures the trust store refresh.
type Keys struct {
	RefreshInterval time.Duration `envconfig:"REFRESH_INTERVAL" default:"30s"`
	// StaticFile is a YAML key list loaded alongside the database source.
	StaticFile string `envconfig:"STATIC_FILE"`
}

// Pricing configures the consumed pricing catalog.
type Pricing struct {
	CatalogFile     string        `envconfig:"CATALOG_FILE" default:"pricing.yaml"`
	RefreshInterval time.Duration `envconfig:"REFRESH_INTERVAL" default:"1m"`
}

// Enforcement configures the per-request decision engine.
type Enforcement struct {
	ClockSkew           time.Duration `envconfig:"CLOCK_SKEW" default:"300s"`
	ReplayCacheSize     int           `envconfig:"REPLAY_CACHE_SIZE" default:"100000"`
	DefaultGracePeriod  time.Duration `envconfig:"DEFAULT_GRACE_PERIOD" default:"5m"`
	DefaultFailoverMode string        `envconfig:"DEFAULT_FAILOVER_MODE" default:"deny"`
	SignManifests       bool          `envconfig:"SIGN_MANIFESTS" default:"true"`
	UsageQueueSize      int           `envconfig:"USAGE_QUEUE_SIZE" default:"4096"`
	CachedResourceTTL   time.Duration `envconfig:"CACHED_RESOURCE_TTL" default:"24h"`
	MaxTokenBytes       int           `envconfig:"MAX_TOKEN_BYTES" default:"8192"`
}

// Ledger configures local budget accounting.
type Ledger struct {
	ReservationTTL time.Duration `envconfig:"RESERVATION_TTL" default:"30s"`
	SweepInterval  time.Duration `envconfig:"SWEEP_INTERVAL" default:"5s"`
	// OverdraftAllowance is the per-license amount a node may reserve beyond
	// the granted budget. Cross-node overspend is bounded by nodes × allowance.
	OverdraftAllowance int64 `envconfig:"OVERDRAFT_ALLOWANCE" default:"0"`
}

// Reconcile configures bilateral usage reconciliation.
type Reconcile struct {
	LagWindow          time.Duration `envconfig:"LAG_WINDOW" default:"15m"`
	OverspendTolerance int64         `envconfig:"OVERSPEND_TOLERANCE" default:"0"`
}

// Postgres configures the shared database. Empty DSN selects in-memory stores.
type Postgres struct {
	DSN string `envconfig:"DSN"`
}

// RedisConfig configures the replay cache and cached-resource index.
type RedisConfig struct {
	URL          string        `envconfig:"URL"`
	PoolSize     int           `envconfig:"POOL_SIZE" default:"20"`
	MinIdleConns int           `envconfig:"MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"DIAL_TIMEOUT" default:"2s"`
	ReadTimeout  time.Duration `envconfig:"READ_TIMEOUT" default:"500ms"`
	WriteTimeout time.Duration `envconfig:"WRITE_TIMEOUT" default:"500ms"`
}

// Kafka configures usage event streaming. Empty brokers keeps
// events in process.
type Kafka struct {
	Brokers       []string `envconfig:"BROKERS"`
	UsageTopic    string   `envconfig:"USAGE_TOPIC" default:"tollgate.usage.v1"`
	ConsumerGroup string   `envconfig:"CONSUMER_GROUP" default:"tollgate-reconciler"`
	Partitions    int32    `envconfig:"PARTITIONS" default:"6"`
	Replication   int16    `envconfig:"REPLICATION" default:"1"`
}

// FromEnv loads configuration from TOLLGATE_* variables and validates it.
func FromEnv() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(envPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("load config from env: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Enforcement.ClockSkew <= 0 {
		return fmt.Errorf("enforcement clock skew must be positive")
	}
	if c.Ledger.ReservationTTL <= 0 {
		return fmt.Errorf("ledger reservation ttl must be positive")
	}
	if c.Ledger.OverdraftAllowance < 0 {
		return fmt.Errorf("ledger overdraft allowance must not be negative")
	}
	if c.Reconcile.LagWindow < 0 {
		return fmt.Errorf("reconcile lag window must not be negative")
	}
	if c.Issuer.MaxTTL < c.Issuer.DefaultTTL {
		return fmt.Errorf("issuer max ttl must be at least the default ttl")
	}
	switch c.Enforcement.DefaultFailoverMode {
	case "deny", "allow", "cache_only":
	default:
		return fmt.Errorf("unsupported default failover mode %q", c.Enforcement.DefaultFailoverMode)
	}
	return nil
}
