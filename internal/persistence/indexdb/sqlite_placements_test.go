package indexdb

import (
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"voxelspawn.ai/internal/sim/catalogs"
	"voxelspawn.ai/internal/sim/tuning"
	"voxelspawn.ai/internal/spawn/config"
	"voxelspawn.ai/internal/spawn/placement"
)

func TestSQLiteIndex_PlacementsAndConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index", "spawn.sqlite")
	idx, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}

	at := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	idx.RecordPlacement(placement.Entry{Time: at, ActorID: "a1", World: "overworld", OK: true, Outcome: placement.OutcomeFound, Attempts: 3, MoveFaults: 1, Pos: [3]float64{10.5, 70, -4.5}, DurationMS: 12})
	idx.RecordPlacement(placement.Entry{Time: at, ActorID: "a2", World: "overworld", Outcome: placement.OutcomeExhausted, Attempts: 75, LoadFaults: 2})
	cfg := config.Defaults()
	if err := idx.RecordConfig("startup", cfg); err != nil {
		t.Fatalf("RecordConfig: %v", err)
	}
	cats, err := catalogs.FromDefs([]catalogs.BlockDef{{ID: "AIR", Passable: true}, {ID: "STONE", Solid: true}})
	if err != nil {
		t.Fatal(err)
	}
	if err := idx.UpsertCatalogs("", cats, tuning.Defaults()); err != nil {
		t.Fatalf("UpsertCatalogs: %v", err)
	}
	if err := idx.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()

	var n, okCount int
	if err := db.QueryRow(`SELECT COUNT(*), SUM(ok) FROM placements`).Scan(&n, &okCount); err != nil {
		t.Fatalf("query placements: %v", err)
	}
	if n != 2 || okCount != 1 {
		t.Fatalf("placements n=%d ok=%d", n, okCount)
	}

	var outcome string
	var attempts, moveFaults int
	var x float64
	if err := db.QueryRow(`SELECT outcome, attempts, move_faults, x FROM placements WHERE actor_id='a1'`).Scan(&outcome, &attempts, &moveFaults, &x); err != nil {
		t.Fatalf("query a1: %v", err)
	}
	if outcome != "FOUND" || attempts != 3 || moveFaults != 1 || x != 10.5 {
		t.Fatalf("a1 row: %s %d %d %v", outcome, attempts, moveFaults, x)
	}

	var source, blocks string
	var radius int
	if err := db.QueryRow(`SELECT source, radius, unsafe_blocks FROM config`).Scan(&source, &radius, &blocks); err != nil {
		t.Fatalf("query config: %v", err)
	}
	if source != "startup" || radius != 300 || blocks != "CACTUS,MAGMA_BLOCK" {
		t.Fatalf("config row: %s %d %s", source, radius, blocks)
	}

	var catalogsN int
	if err := db.QueryRow(`SELECT COUNT(*) FROM catalogs`).Scan(&catalogsN); err != nil {
		t.Fatalf("query catalogs: %v", err)
	}
	if catalogsN != 2 {
		t.Fatalf("catalog rows=%d want 2 (palette + tuning)", catalogsN)
	}
}
