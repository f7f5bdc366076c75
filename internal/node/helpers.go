package node

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Klingon-tech/klingnet-ledger/config"
	"github.com/Klingon-tech/klingnet-ledger/internal/storage"
	"github.com/google/uuid"
)

// nodeIDKey holds the generated node identifier in the node namespace.
var nodeIDKey = []byte("id")

// expandHome replaces a leading ~ with the user's home directory.
func expandHome(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}

// openStorage opens the configured storage backend.
func openStorage(cfg *config.Config) (storage.DB, error) {
	switch cfg.Storage.Backend {
	case config.BackendMemory:
		return storage.NewMemory(), nil
	case config.BackendBadger, "":
		if err := os.MkdirAll(cfg.BlocksDir(), 0755); err != nil {
			return nil, fmt.Errorf("creating blocks dir: %w", err)
		}
		db, err := storage.NewBadger(cfg.BlocksDir())
		if err != nil {
			return nil, err
		}
		return db, nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}

// loadGenesis reads the genesis file, or returns the built-in genesis.
func loadGenesis(path string) (*config.Genesis, error) {
	if path == "" {
		return config.DefaultGenesis(), nil
	}
	return config.LoadGenesis(expandHome(path))
}

// resolveNodeID returns the configured node ID, or the one stored in db.
// Without either, a new random ID is generated and stored so the node keeps
// its identity across restarts.
func resolveNodeID(configured string, db storage.DB) (string, error) {
	if configured != "" {
		return configured, nil
	}

	stored, err := db.Get(nodeIDKey)
	if err == nil && len(stored) > 0 {
		return string(stored), nil
	}
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return "", fmt.Errorf("read node id: %w", err)
	}

	id := newNodeID()
	if err := db.Put(nodeIDKey, []byte(id)); err != nil {
		return "", fmt.Errorf("store node id: %w", err)
	}
	return id, nil
}

// newNodeID returns a random UUID in its 32-character hex form.
func newNodeID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}
