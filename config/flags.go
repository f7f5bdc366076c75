package config

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
)

// Version is reported by --version.
const Version = "0.1.0"

// Flags holds parsed command-line flags.
type Flags struct {
	// Commands
	Help    bool
	Version bool

	// Core
	DataDir string
	Config  string
	Genesis string
	Storage string

	// RPC
	RPC        bool
	RPCAddr    string
	RPCPort    int
	RPCAllowed string
	RPCCORS    string

	// Mining
	Mine          bool
	NodeID        string
	Threads       int
	MineInterval  time.Duration
	MaxIterations uint64

	// Pool
	PoolSize int

	// Logging
	LogLevel string
	LogFile  string
	LogJSON  bool

	// Remaining args
	Args []string

	// Explicitly-set bool flags (for true/false overrides).
	SetRPC     bool
	SetMine    bool
	SetLogJSON bool
}

// ParseFlags parses command-line flags (without the program name).
func ParseFlags(args []string) (*Flags, error) {
	f := &Flags{}
	fs := flag.NewFlagSet("klingledgerd", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	// Commands
	fs.BoolVar(&f.Help, "help", false, "Show help message")
	fs.BoolVar(&f.Help, "h", false, "Show help message (shorthand)")
	fs.BoolVar(&f.Version, "version", false, "Show version information")
	fs.BoolVar(&f.Version, "v", false, "Show version (shorthand)")

	// Core
	fs.StringVar(&f.DataDir, "datadir", "", "Data directory path")
	fs.StringVar(&f.Config, "config", "", "Config file path")
	fs.StringVar(&f.Config, "c", "", "Config file path (shorthand)")
	fs.StringVar(&f.Genesis, "genesis", "", "Genesis file path")
	fs.StringVar(&f.Storage, "storage", "", "Storage backend (badger or memory)")

	// RPC
	fs.BoolVar(&f.RPC, "rpc", true, "Enable HTTP API")
	fs.StringVar(&f.RPCAddr, "rpc-addr", "", "HTTP API listen address")
	fs.IntVar(&f.RPCPort, "rpc-port", 0, "HTTP API listen port")
	fs.StringVar(&f.RPCAllowed, "rpc-allowed", "", "Allowed IPs for the HTTP API")
	fs.StringVar(&f.RPCCORS, "rpc-cors", "", "Allowed CORS origins (comma-separated)")

	// Mining
	fs.BoolVar(&f.Mine, "mine", false, "Mine blocks in the background")
	fs.StringVar(&f.NodeID, "nodeid", "", "Identifier that receives mining rewards")
	fs.IntVar(&f.Threads, "threads", 0, "Proof search goroutines")
	fs.DurationVar(&f.MineInterval, "mine-interval", 0, "Pause between background blocks")
	fs.Uint64Var(&f.MaxIterations, "max-iterations", 0, "Proof search candidate cap (0 = unbounded)")

	// Pool
	fs.IntVar(&f.PoolSize, "pool-size", 0, "Maximum pending transactions")

	// Logging
	fs.StringVar(&f.LogLevel, "log-level", "", "Log level (debug, info, warn, error)")
	fs.StringVar(&f.LogFile, "log-file", "", "Log file path")
	fs.BoolVar(&f.LogJSON, "log-json", false, "Output logs as JSON")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	f.SetRPC = isFlagSet(fs, "rpc")
	f.SetMine = isFlagSet(fs, "mine")
	f.SetLogJSON = isFlagSet(fs, "log-json")

	f.Args = fs.Args()

	// A positional argument stops the flag parser; anything flag-like after
	// it would be silently ignored.
	for _, arg := range f.Args {
		if strings.HasPrefix(arg, "-") {
			return nil, fmt.Errorf("flag %q was not parsed (positional argument stopped parsing)", arg)
		}
	}

	return f, nil
}

// ApplyFlags applies command-line flags to a Config struct.
func ApplyFlags(cfg *Config, f *Flags) {
	// Core
	if f.DataDir != "" {
		cfg.DataDir = f.DataDir
	}
	if f.Genesis != "" {
		cfg.GenesisFile = f.Genesis
	}
	if f.Storage != "" {
		cfg.Storage.Backend = strings.ToLower(f.Storage)
	}

	// RPC
	if f.SetRPC {
		cfg.RPC.Enabled = f.RPC
	}
	if f.RPCAddr != "" {
		cfg.RPC.Addr = f.RPCAddr
	}
	if f.RPCPort != 0 {
		cfg.RPC.Port = f.RPCPort
	}
	if f.RPCAllowed != "" {
		cfg.RPC.AllowedIPs = parseStringList(f.RPCAllowed)
	}
	if f.RPCCORS != "" {
		cfg.RPC.CORSOrigins = parseStringList(f.RPCCORS)
	}

	// Mining
	if f.SetMine {
		cfg.Mining.Enabled = f.Mine
	}
	if f.NodeID != "" {
		cfg.Mining.NodeID = f.NodeID
	}
	if f.Threads != 0 {
		cfg.Mining.Threads = f.Threads
	}
	if f.MineInterval != 0 {
		cfg.Mining.Interval = f.MineInterval
	}
	if f.MaxIterations != 0 {
		cfg.Mining.MaxIterations = f.MaxIterations
	}

	if f.PoolSize != 0 {
		cfg.Pool.MaxSize = f.PoolSize
	}

	// Logging
	if f.LogLevel != "" {
		cfg.Log.Level = f.LogLevel
	}
	if f.LogFile != "" {
		cfg.Log.File = f.LogFile
	}
	if f.SetLogJSON {
		cfg.Log.JSON = f.LogJSON
	}
}

// isFlagSet checks if a flag was explicitly set.
func isFlagSet(fs *flag.FlagSet, name string) bool {
	found := false
	fs.Visit(func(f *flag.Flag) {
		if f.Name == name {
			found = true
		}
	})
	return found
}

// PrintUsage writes the daemon help text to stdout.
func PrintUsage() {
	usage := `Klingnet Ledger - append-only proof-of-work ledger node

Usage:
  klingledgerd [options]
  klingledgerd --help

Commands:
  --help, -h        Show this help message
  --version, -v     Show version information

Core Options:
  --datadir         Data directory (default: ~/.klingledger)
  --config, -c      Config file path (default: <datadir>/klingledger.conf)
  --genesis         Genesis file (default: built-in genesis)
  --storage         Storage backend: badger (default) or memory

HTTP API Options:
  --rpc             Enable the HTTP API (default: true)
  --rpc-addr        Listen address (default: 127.0.0.1)
  --rpc-port        Listen port (default: 5000)
  --rpc-allowed     Allowed client IPs or CIDRs (comma-separated)
  --rpc-cors        Allowed CORS origins (comma-separated)

Mining Options:
  --mine            Mine blocks in the background
  --nodeid          Identifier that receives mining rewards
  --threads         Proof search goroutines (default: 1)
  --mine-interval   Pause between background blocks (default: 10s)
  --max-iterations  Give up a proof search after N candidates (default: 0 = never)

Pool Options:
  --pool-size       Maximum pending transactions (default: 5000)

Logging Options:
  --log-level       Log level: debug, info, warn, error (default: info)
  --log-file        Log file path (default: stdout)
  --log-json        Output logs as JSON

Examples:
  # Start a node with the HTTP API on 127.0.0.1:5000
  klingledgerd

  # Mine in the background with four search goroutines
  klingledgerd --mine --threads=4

  # Throwaway in-memory node reachable from the LAN
  klingledgerd --storage=memory --rpc-addr=0.0.0.0 --rpc-allowed=192.168.0.0/16

Note:
  Protocol rules (genesis proof, difficulty, mining reward) are fixed by the
  genesis file. Data directories are created automatically on first start.
`
	fmt.Print(usage)
}

// Load loads configuration with the following precedence:
// 1. Default values
// 2. Auto-create data dirs + default config (idempotent)
// 3. Config file
// 4. Command-line flags
func Load(args []string) (*Config, *Flags, error) {
	flags, err := ParseFlags(args)
	if err != nil {
		return nil, nil, err
	}

	if flags.Help {
		PrintUsage()
		os.Exit(0)
	}
	if flags.Version {
		fmt.Println("klingledgerd version " + Version)
		os.Exit(0)
	}

	cfg := Default()
	if flags.DataDir != "" {
		cfg.DataDir = flags.DataDir
	}

	if err := EnsureDataDirs(cfg); err != nil {
		return nil, nil, fmt.Errorf("ensuring data dirs: %w", err)
	}

	configPath := flags.Config
	if configPath == "" {
		configPath = cfg.ConfigFile()
	}

	fileValues, err := LoadFile(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("loading config file: %w", err)
	}
	if err := ApplyFileConfig(cfg, fileValues); err != nil {
		return nil, nil, fmt.Errorf("applying config file: %w", err)
	}

	ApplyFlags(cfg, flags)
	if err := Validate(cfg); err != nil {
		return nil, nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, flags, nil
}

// EnsureDataDirs creates the data directory structure and a default config
// file if they don't already exist. Safe to call on every startup.
func EnsureDataDirs(cfg *Config) error {
	dirs := []string{
		cfg.DataDir,
		cfg.BlocksDir(),
		cfg.LogsDir(),
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating directory %s: %w", dir, err)
		}
	}

	configPath := cfg.ConfigFile()
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		if err := WriteDefaultConfig(configPath); err != nil {
			return fmt.Errorf("writing config file: %w", err)
		}
	}

	return nil
}
