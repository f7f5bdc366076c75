package config

import (
	"fmt"
	"net"
	"strings"
)

// Validate checks runtime node config for obvious operator mistakes.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}
	if cfg.DataDir == "" && cfg.Storage.Backend == BackendBadger {
		return fmt.Errorf("datadir is required for the badger backend")
	}
	switch cfg.Storage.Backend {
	case BackendBadger, BackendMemory:
	default:
		return fmt.Errorf("storage.backend must be %q or %q", BackendBadger, BackendMemory)
	}
	if cfg.RPC.Port < 0 || cfg.RPC.Port > 65535 {
		return fmt.Errorf("rpc.port must be in range [0, 65535]")
	}
	for i, entry := range cfg.RPC.AllowedIPs {
		entry = strings.TrimSpace(entry)
		if strings.Contains(entry, "/") {
			if _, _, err := net.ParseCIDR(entry); err != nil {
				return fmt.Errorf("rpc.allowed[%d]: invalid CIDR %q", i, entry)
			}
		} else if net.ParseIP(entry) == nil {
			return fmt.Errorf("rpc.allowed[%d]: invalid IP %q", i, entry)
		}
	}
	if cfg.Mining.Threads < 0 {
		return fmt.Errorf("mining.threads must not be negative")
	}
	if cfg.Mining.Threads == 0 {
		cfg.Mining.Threads = 1
	}
	if cfg.Mining.Interval < 0 {
		return fmt.Errorf("mining.interval must not be negative")
	}
	if strings.TrimSpace(cfg.Mining.NodeID) != cfg.Mining.NodeID {
		return fmt.Errorf("mining.nodeid must not have surrounding whitespace")
	}
	if cfg.Pool.MaxSize < 0 {
		return fmt.Errorf("pool.maxsize must not be negative")
	}
	return nil
}
