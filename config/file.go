package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// LoadFile loads node configuration from a .conf file.
// Format: key = value (one per line, # for comments).
// A missing file yields an empty map.
func LoadFile(path string) (map[string]string, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return make(map[string]string), nil
		}
		return nil, err
	}
	defer file.Close()

	values := make(map[string]string)
	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			return nil, fmt.Errorf("line %d: invalid format (expected key = value)", lineNum)
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)

		if len(value) >= 2 {
			if (value[0] == '"' && value[len(value)-1] == '"') ||
				(value[0] == '\'' && value[len(value)-1] == '\'') {
				value = value[1 : len(value)-1]
			}
		}

		values[key] = value
	}

	return values, scanner.Err()
}

// ApplyFileConfig applies file configuration to a Config struct.
func ApplyFileConfig(cfg *Config, values map[string]string) error {
	for key, value := range values {
		if err := setConfigValue(cfg, key, value); err != nil {
			return fmt.Errorf("config key %q: %w", key, err)
		}
	}
	return nil
}

// setConfigValue sets a node config value by key.
// Protocol rules live in the genesis file, not here.
func setConfigValue(cfg *Config, key, value string) error {
	switch key {
	case "datadir":
		cfg.DataDir = value
	case "genesis":
		cfg.GenesisFile = value

	case "storage.backend", "storage":
		cfg.Storage.Backend = strings.ToLower(value)

	// RPC
	case "rpc.enabled", "rpc":
		cfg.RPC.Enabled = parseBool(value)
	case "rpc.addr":
		cfg.RPC.Addr = value
	case "rpc.port":
		port, err := strconv.Atoi(value)
		if err != nil {
			return err
		}
		cfg.RPC.Port = port
	case "rpc.allowed":
		cfg.RPC.AllowedIPs = parseStringList(value)
	case "rpc.cors":
		cfg.RPC.CORSOrigins = parseStringList(value)

	// Mining
	case "mining.enabled", "mine":
		cfg.Mining.Enabled = parseBool(value)
	case "mining.nodeid", "nodeid":
		cfg.Mining.NodeID = value
	case "mining.threads":
		n, err := strconv.Atoi(value)
		if err != nil {
			return err
		}
		cfg.Mining.Threads = n
	case "mining.interval":
		d, err := time.ParseDuration(value)
		if err != nil {
			return err
		}
		cfg.Mining.Interval = d
	case "mining.maxiterations":
		n, err := strconv.ParseUint(value, 10, 64)
		if err != nil {
			return err
		}
		cfg.Mining.MaxIterations = n

	case "pool.maxsize":
		n, err := strconv.Atoi(value)
		if err != nil {
			return err
		}
		cfg.Pool.MaxSize = n

	// Logging
	case "log.level":
		cfg.Log.Level = value
	case "log.file":
		cfg.Log.File = value
	case "log.json":
		cfg.Log.JSON = parseBool(value)

	default:
		// Unknown keys are ignored
	}
	return nil
}

// parseBool parses a boolean value.
func parseBool(s string) bool {
	s = strings.ToLower(s)
	return s == "true" || s == "1" || s == "yes" || s == "on"
}

// parseStringList parses a comma-separated list.
func parseStringList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}

// WriteDefaultConfig writes a default node configuration file.
func WriteDefaultConfig(path string) error {
	content := `# Klingnet Ledger Node Configuration
#
# This file contains NODE settings only.
# Protocol rules (genesis proof, difficulty, mining reward) come from the
# genesis file and cannot change for the lifetime of a chain.

# Data directory (default: ~/.klingledger)
# datadir = ~/.klingledger

# Genesis file (default: built-in genesis)
# genesis = /path/to/genesis.json

# ============================================================================
# Storage
# ============================================================================

# badger (persistent) or memory (lost on restart)
storage.backend = badger

# ============================================================================
# HTTP API
# ============================================================================

rpc.enabled = true
rpc.addr = 127.0.0.1
rpc.port = ` + strconv.Itoa(DefaultRPCPort) + `
rpc.allowed = 127.0.0.1
# CORS allowed origins ("*" for all)
# rpc.cors = http://localhost:3000

# ============================================================================
# Mining
# ============================================================================

# Mine blocks in the background (GET /mine works regardless)
mining.enabled = false

# Identifier that receives mining rewards (default: generated on first start)
# mining.nodeid =

# Proof search goroutines
# mining.threads = 1

# Pause between background blocks
# mining.interval = 10s

# Give up a proof search after this many candidates (0 = never)
# mining.maxiterations = 0

# ============================================================================
# Pending pool
# ============================================================================

# pool.maxsize = 5000

# ============================================================================
# Logging
# ============================================================================

log.level = info
# log.file =
log.json = false
`
	return os.WriteFile(path, []byte(content), 0644)
}
