package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"voxelspawn.ai/internal/persistence/indexdb"
	"voxelspawn.ai/internal/persistence/r2s3"
	"voxelspawn.ai/internal/spawn/config"
	"voxelspawn.ai/internal/spawn/placement"
)

func openRuntimeIndex(worldDir, worldID string, disableDB bool, logger *log.Logger) (indexdb.Index, error) {
	if disableDB {
		return nil, nil
	}

	backend := strings.ToLower(strings.TrimSpace(os.Getenv("VS_INDEX_BACKEND")))
	if backend == "" {
		backend = "sqlite"
	}

	switch backend {
	case "none", "off", "disabled":
		return nil, nil
	case "sqlite":
		dbPath := filepath.Join(worldDir, "index", "spawn.sqlite")
		return indexdb.OpenSQLite(dbPath)
	case "d1":
		endpoint := strings.TrimSpace(os.Getenv("VS_INDEX_D1_INGEST_URL"))
		token := strings.TrimSpace(os.Getenv("VS_INDEX_D1_TOKEN"))
		if endpoint == "" {
			return nil, fmt.Errorf("VS_INDEX_BACKEND=d1 but VS_INDEX_D1_INGEST_URL is empty")
		}
		flushMS := envInt("VS_INDEX_D1_FLUSH_MS", 500)
		batchSize := envInt("VS_INDEX_D1_BATCH_SIZE", 128)
		idx, err := indexdb.OpenD1(indexdb.D1Config{
			Endpoint:      endpoint,
			Token:         token,
			WorldID:       worldID,
			BatchSize:     batchSize,
			FlushInterval: time.Duration(flushMS) * time.Millisecond,
			Logger:        logger,
		})
		if err != nil {
			return nil, err
		}
		return idx, nil
	default:
		return nil, fmt.Errorf("unsupported VS_INDEX_BACKEND: %s", backend)
	}
}

// openSnapshotMirror returns nil unless VS_SNAPSHOT_R2_ENDPOINT is set.
func openSnapshotMirror(worldDir, worldID string, logger *log.Logger) (*r2s3.Mirror, error) {
	endpoint := strings.TrimSpace(os.Getenv("VS_SNAPSHOT_R2_ENDPOINT"))
	if endpoint == "" {
		return nil, nil
	}
	client, err := r2s3.New(
		endpoint,
		os.Getenv("VS_SNAPSHOT_R2_BUCKET"),
		os.Getenv("VS_SNAPSHOT_R2_REGION"),
		os.Getenv("VS_SNAPSHOT_R2_ACCESS_KEY_ID"),
		os.Getenv("VS_SNAPSHOT_R2_SECRET_ACCESS_KEY"),
	)
	if err != nil {
		return nil, fmt.Errorf("snapshot mirror: %w", err)
	}
	prefix := strings.TrimSpace(os.Getenv("VS_SNAPSHOT_R2_PREFIX"))
	if prefix == "" {
		prefix = "worlds/" + worldID
	}
	return r2s3.NewMirror(client, worldDir, prefix, logger), nil
}

func envInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func envBool(key string, def bool) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	switch v {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return def
	}
}

// multiRecorder fans placements and config snapshots out to the JSONL logs and
// the optional index. Nil members are skipped.
type multiRecorder struct {
	placements []placement.Recorder
	configs    []configRecorder
}

type configRecorder interface {
	RecordConfig(source string, cfg *config.Config) error
}

func (m multiRecorder) RecordPlacement(e placement.Entry) {
	for _, r := range m.placements {
		if r != nil {
			r.RecordPlacement(e)
		}
	}
}

func (m multiRecorder) RecordConfig(source string, cfg *config.Config) error {
	var first error
	for _, r := range m.configs {
		if r == nil {
			continue
		}
		if err := r.RecordConfig(source, cfg); err != nil && first == nil {
			first = err
		}
	}
	return first
}
