package config

import "time"

// DefaultRPCPort is the HTTP API port.
const DefaultRPCPort = 5000

// Default returns the default node configuration.
func Default() *Config {
	return &Config{
		DataDir: DefaultDataDir(),
		Storage: StorageConfig{
			Backend: BackendBadger,
		},
		RPC: RPCConfig{
			Enabled:    true,
			Addr:       "127.0.0.1",
			Port:       DefaultRPCPort,
			AllowedIPs: []string{"127.0.0.1"},
		},
		Mining: MiningConfig{
			Enabled:  false,
			Threads:  1,
			Interval: 10 * time.Second,
		},
		Pool: PoolConfig{
			MaxSize: 5000,
		},
		Log: LogConfig{
			Level: "info",
			JSON:  false,
		},
	}
}
