// Package node provides a reusable ledger node that can be embedded
// in any binary.
package node

import (
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/Klingon-tech/klingnet-ledger/config"
	"github.com/Klingon-tech/klingnet-ledger/internal/chain"
	"github.com/Klingon-tech/klingnet-ledger/internal/consensus"
	klog "github.com/Klingon-tech/klingnet-ledger/internal/log"
	"github.com/Klingon-tech/klingnet-ledger/internal/mempool"
	"github.com/Klingon-tech/klingnet-ledger/internal/miner"
	"github.com/Klingon-tech/klingnet-ledger/internal/rpc"
	"github.com/Klingon-tech/klingnet-ledger/internal/storage"
	"github.com/rs/zerolog"
)

// Storage namespaces.
var (
	chainPrefix = []byte("chain/")
	nodePrefix  = []byte("node/")
)

// Node is a fully-initialized ledger node.
type Node struct {
	cfg     *config.Config
	genesis *config.Genesis
	logger  zerolog.Logger

	// Core
	db     storage.DB
	pow    *consensus.PoW
	pool   *mempool.Pool
	ch     *chain.Chain
	miner  *miner.Miner
	nodeID string

	// RPC
	rpcServer *rpc.Server

	// Lifecycle
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates and initializes a new Node. It performs all setup steps
// (logger, storage, genesis, consensus, chain, miner, RPC) but does NOT
// start the API server or background mining. Call Start() for that.
func New(cfg *config.Config) (*Node, error) {
	// ── 1. Init logger ──────────────────────────────────────────────
	logFile := cfg.Log.File
	if logFile == "" && cfg.DataDir != "" {
		logsDir := cfg.LogsDir()
		if err := os.MkdirAll(logsDir, 0755); err != nil {
			return nil, fmt.Errorf("creating logs dir: %w", err)
		}
		logFile = filepath.Join(logsDir, "klingledger.log")
	}
	if err := klog.Init(cfg.Log.Level, cfg.Log.JSON, logFile); err != nil {
		return nil, fmt.Errorf("initializing logger: %w", err)
	}
	logger := klog.Node

	// ── 2. Genesis ──────────────────────────────────────────────────
	genesis, err := loadGenesis(cfg.GenesisFile)
	if err != nil {
		return nil, err
	}

	logger.Info().
		Str("chain", genesis.ChainName).
		Int("difficulty", genesis.Difficulty).
		Str("reward", genesis.MiningReward.String()).
		Msg("Starting ledger node")

	// ── 3. Open storage ─────────────────────────────────────────────
	db, err := openStorage(cfg)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}
	logger.Info().Str("backend", cfg.Storage.Backend).Str("path", cfg.BlocksDir()).Msg("Storage opened")

	// ── 4. Consensus ────────────────────────────────────────────────
	pow, err := consensus.NewPoW(genesis.Difficulty)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create pow: %w", err)
	}
	pow.Threads = cfg.Mining.Threads
	pow.MaxIterations = cfg.Mining.MaxIterations

	// ── 5. Pool and chain ───────────────────────────────────────────
	pool := mempool.New(cfg.Pool.MaxSize)
	store := chain.NewBlockStore(storage.NewPrefixDB(db, chainPrefix))

	done := klog.Benchmark("load chain")
	ch, err := chain.New(genesis, pow, chain.WithStore(store), chain.WithPool(pool))
	done()
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create chain: %w", err)
	}

	// ── 6. Node identity and miner ──────────────────────────────────
	nodeID, err := resolveNodeID(cfg.Mining.NodeID, storage.NewPrefixDB(db, nodePrefix))
	if err != nil {
		db.Close()
		return nil, err
	}
	m := miner.New(ch, pow, nodeID, genesis.MiningReward, genesis.RewardSender)

	ctx, cancel := context.WithCancel(context.Background())
	n := &Node{
		cfg:     cfg,
		genesis: genesis,
		logger:  logger,
		db:      db,
		pow:     pow,
		pool:    pool,
		ch:      ch,
		miner:   m,
		nodeID:  nodeID,
		ctx:     ctx,
		cancel:  cancel,
	}

	// ── 7. RPC ──────────────────────────────────────────────────────
	if cfg.RPC.Enabled {
		addr := net.JoinHostPort(cfg.RPC.Addr, strconv.Itoa(cfg.RPC.Port))
		n.rpcServer = rpc.New(addr, ch, m, cfg.RPC)
	}

	return n, nil
}

// Start starts the API server and, when enabled, background mining.
func (n *Node) Start() error {
	if n.rpcServer != nil {
		if err := n.rpcServer.Start(); err != nil {
			return err
		}
	}

	if n.cfg.Mining.Enabled {
		n.logger.Info().
			Str("node_id", n.nodeID).
			Int("threads", n.pow.Threads).
			Dur("interval", n.cfg.Mining.Interval).
			Msg("Block production enabled")

		n.wg.Add(1)
		go func() {
			defer n.wg.Done()
			n.miner.Run(n.ctx, n.cfg.Mining.Interval)
		}()
	}

	last, err := n.ch.LastBlock()
	if err != nil {
		return err
	}
	n.logger.Info().
		Uint64("index", last.Index).
		Str("tip", last.Hash().String()[:16]+"...").
		Str("node_id", n.nodeID).
		Bool("mining", n.cfg.Mining.Enabled).
		Msg("Node started successfully")

	return nil
}

// Stop stops mining and the API server, then closes storage.
func (n *Node) Stop() {
	n.cancel()
	n.wg.Wait()

	if n.rpcServer != nil {
		if err := n.rpcServer.Stop(); err != nil {
			n.logger.Warn().Err(err).Msg("RPC shutdown")
		}
	}
	if n.db != nil {
		if err := n.db.Close(); err != nil {
			n.logger.Warn().Err(err).Msg("Closing storage")
		}
	}

	n.logger.Info().Msg("Goodbye!")
}

// RPCAddr returns the API listen address, or "" when the API is disabled.
func (n *Node) RPCAddr() string {
	if n.rpcServer == nil {
		return ""
	}
	return n.rpcServer.Addr()
}

// Chain returns the node's ledger.
func (n *Node) Chain() *chain.Chain {
	return n.ch
}

// Miner returns the node's miner.
func (n *Node) Miner() *miner.Miner {
	return n.miner
}

// NodeID returns the identifier credited with mining rewards.
func (n *Node) NodeID() string {
	return n.nodeID
}
