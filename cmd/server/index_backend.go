package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"hivenet.ai/internal/persistence/indexdb"
	"hivenet.ai/internal/persistence/snapshot"
	"hivenet.ai/internal/sim/catalogs"
	"hivenet.ai/internal/sim/tuning"
	"hivenet.ai/internal/sim/world"
)

type runtimeIndex interface {
	world.EventLogger
	Close() error
	UpsertCatalogs(configDir string, cats *catalogs.Catalogs, tune tuning.Tuning) error
	RecordSnapshot(path string, snap snapshot.SnapshotV1)
}

func openRuntimeIndex(worldDir string, disableDB bool) (runtimeIndex, error) {
	if disableDB {
		return nil, nil
	}

	backend := strings.ToLower(strings.TrimSpace(os.Getenv("HIVENET_INDEX_BACKEND")))
	if backend == "" {
		backend = "sqlite"
	}

	switch backend {
	case "none", "off", "disabled":
		return nil, nil
	case "sqlite":
		return indexdb.OpenSQLite(indexPath(worldDir))
	default:
		return nil, fmt.Errorf("unsupported HIVENET_INDEX_BACKEND: %s", backend)
	}
}

func indexPath(worldDir string) string {
	return filepath.Join(worldDir, "index", "world.sqlite")
}
