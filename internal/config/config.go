// Package config loads runtime configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates all runtime settings.
type Config struct {
	API     APIConfig
	Sync    SyncConfig
	Network NetworkConfig
	Storage StorageConfig
	Logging LoggingConfig
}

// APIConfig configures the remote PastoralCare Pro client.
type APIConfig struct {
	BaseURL        string
	Timeout        time.Duration
	RetryAttempts  int
	RetryBaseDelay time.Duration
}

// SyncConfig configures the sync orchestrator.
type SyncConfig struct {
	AutoSync         bool
	Interval         time.Duration
	BatchSize        int
	ConflictStrategy string
}

// NetworkConfig configures the connectivity monitor.
type NetworkConfig struct {
	PollInterval time.Duration
	ProbeURL     string
	ProbeTimeout time.Duration
	// FallbackPolicy decides the connectivity belief when a probe itself
	// fails: "optimistic" assumes connected, "hold_last" keeps the
	// previous belief.
	FallbackPolicy string
}

// StorageConfig configures the local store.
type StorageConfig struct {
	DataDir string
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	Level string
}

// Conflict strategy names accepted by SyncConfig.ConflictStrategy.
const (
	StrategyLatestWins   = "latest_wins"
	StrategyPreferLocal  = "prefer_local"
	StrategyPreferServer = "prefer_server"
	StrategyManual       = "manual"
)

// Fallback policy names accepted by NetworkConfig.FallbackPolicy.
const (
	FallbackOptimistic = "optimistic"
	FallbackHoldLast   = "hold_last"
)

// Load reads configuration from the environment. A .env file in the
// working directory is honored when present.
func Load() (*Config, error) {
	// .env is optional; ignore the error when the file is absent.
	_ = godotenv.Load()

	cfg := &Config{
		API: APIConfig{
			BaseURL:        getEnv("PCP_API_BASE_URL", "https://api.pastoralcarepro.com"),
			Timeout:        getDuration("PCP_API_TIMEOUT", 15*time.Second),
			RetryAttempts:  getInt("PCP_API_RETRY_ATTEMPTS", 3),
			RetryBaseDelay: getDuration("PCP_API_RETRY_DELAY", time.Second),
		},
		Sync: SyncConfig{
			AutoSync:         getBool("SYNC_AUTO", true),
			Interval:         getDuration("SYNC_INTERVAL", 30*time.Minute),
			BatchSize:        getInt("SYNC_BATCH_SIZE", 50),
			ConflictStrategy: getEnv("SYNC_CONFLICT_STRATEGY", StrategyLatestWins),
		},
		Network: NetworkConfig{
			PollInterval:   getDuration("NET_POLL_INTERVAL", 10*time.Second),
			ProbeURL:       getEnv("NET_PROBE_URL", "https://api.pastoralcarepro.com/api/mobile/health"),
			ProbeTimeout:   getDuration("NET_PROBE_TIMEOUT", 5*time.Second),
			FallbackPolicy: getEnv("NET_FALLBACK_POLICY", FallbackOptimistic),
		},
		Storage: StorageConfig{
			DataDir: getEnv("DATA_DIR", defaultDataDir()),
		},
		Logging: LoggingConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Sync.ConflictStrategy {
	case StrategyLatestWins, StrategyPreferLocal, StrategyPreferServer, StrategyManual:
	default:
		return fmt.Errorf("invalid SYNC_CONFLICT_STRATEGY %q", c.Sync.ConflictStrategy)
	}

	switch c.Network.FallbackPolicy {
	case FallbackOptimistic, FallbackHoldLast:
	default:
		return fmt.Errorf("invalid NET_FALLBACK_POLICY %q", c.Network.FallbackPolicy)
	}

	if c.Sync.BatchSize <= 0 {
		return fmt.Errorf("SYNC_BATCH_SIZE must be positive, got %d", c.Sync.BatchSize)
	}

	if c.API.RetryAttempts <= 0 {
		return fmt.Errorf("PCP_API_RETRY_ATTEMPTS must be positive, got %d", c.API.RetryAttempts)
	}

	return nil
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".visitation-log"
	}
	return home + "/.visitation-log"
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
