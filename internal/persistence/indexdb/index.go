package indexdb

import (
	"voxelspawn.ai/internal/sim/catalogs"
	"voxelspawn.ai/internal/sim/tuning"
	"voxelspawn.ai/internal/spawn/config"
	"voxelspawn.ai/internal/spawn/placement"
)

// Index is the secondary, queryable record of placements and config changes.
// Implementations never block callers; backlog is dropped and counted.
type Index interface {
	placement.Recorder
	RecordConfig(source string, cfg *config.Config) error
	UpsertCatalogs(configDir string, cats *catalogs.Catalogs, tune tuning.Tuning) error
	Close() error
}

var (
	_ Index = (*SQLiteIndex)(nil)
	_ Index = (*D1Index)(nil)
)
