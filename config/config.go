// Package config handles application configuration.
//
// Configuration is split into two categories:
//   - Protocol rules: defined in genesis, fixed for the lifetime of a chain
//   - Node settings: runtime configuration, can vary per node
package config

import (
	"os"
	"path/filepath"
	"runtime"
	"time"
)

// Storage backends.
const (
	BackendBadger = "badger"
	BackendMemory = "memory"
)

// =============================================================================
// Node Configuration (runtime, per-node settings)
// =============================================================================

// Config holds node-specific runtime configuration.
type Config struct {
	DataDir     string `conf:"datadir"`
	GenesisFile string `conf:"genesis"` // Empty = built-in DefaultGenesis.

	Storage StorageConfig
	RPC     RPCConfig
	Mining  MiningConfig
	Pool    PoolConfig
	Log     LogConfig
}

// StorageConfig selects where sealed blocks are kept.
type StorageConfig struct {
	Backend string `conf:"storage.backend"` // badger or memory
}

// RPCConfig holds HTTP API settings.
type RPCConfig struct {
	Enabled     bool     `conf:"rpc.enabled"`
	Addr        string   `conf:"rpc.addr"`
	Port        int      `conf:"rpc.port"`
	AllowedIPs  []string `conf:"rpc.allowed"`
	CORSOrigins []string `conf:"rpc.cors"` // Allowed CORS origins ("*" = all).
}

// MiningConfig holds block production settings.
type MiningConfig struct {
	// Enabled runs the background miner. GET /mine works either way.
	Enabled bool `conf:"mining.enabled"`
	// NodeID receives mining rewards. Empty = generated once and stored.
	NodeID        string        `conf:"mining.nodeid"`
	Threads       int           `conf:"mining.threads"`
	Interval      time.Duration `conf:"mining.interval"`      // Pause between background blocks.
	MaxIterations uint64        `conf:"mining.maxiterations"` // 0 = unbounded search.
}

// PoolConfig holds pending-transaction pool settings.
type PoolConfig struct {
	MaxSize int `conf:"pool.maxsize"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `conf:"log.level"`
	File  string `conf:"log.file"`
	JSON  bool   `conf:"log.json"`
}

// =============================================================================
// Directory helpers
// =============================================================================

// DefaultDataDir returns the platform-specific default data directory.
//
//	Linux:   ~/.klingledger
//	macOS:   ~/Library/Application Support/Klingledger
//	Windows: %APPDATA%\Klingledger
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".klingledger"
	}
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", "Klingledger")
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData != "" {
			return filepath.Join(appData, "Klingledger")
		}
		return filepath.Join(home, "AppData", "Roaming", "Klingledger")
	default:
		return filepath.Join(home, ".klingledger")
	}
}

// BlocksDir returns the block database directory.
func (c *Config) BlocksDir() string {
	return filepath.Join(c.DataDir, "blocks")
}

// LogsDir returns the logs directory.
func (c *Config) LogsDir() string {
	return filepath.Join(c.DataDir, "logs")
}

// ConfigFile returns the config file path.
func (c *Config) ConfigFile() string {
	return filepath.Join(c.DataDir, "klingledger.conf")
}
