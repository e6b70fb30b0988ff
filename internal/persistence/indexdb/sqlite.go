package indexdb

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"voxelspawn.ai/internal/sim/catalogs"
	"voxelspawn.ai/internal/sim/tuning"
	"voxelspawn.ai/internal/spawn/config"
	"voxelspawn.ai/internal/spawn/placement"
)

type SQLiteIndex struct {
	db *sql.DB

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool

	dropPlacement atomic.Uint64
	dropConfig    atomic.Uint64
	writeErrors   atomic.Uint64
}

type reqKind int

const (
	reqPlacement reqKind = iota + 1
	reqConfig
)

type req struct {
	kind reqKind

	placement placement.Entry
	config    configRow
}

type configRow struct {
	RecordedAt      string
	Source          string
	Radius          int
	MaxAttempts     int
	CooldownSeconds int
	UnsafeBlocks    string
}

type SQLiteStats struct {
	QueueDepth         int    `json:"queue_depth"`
	QueueCapacity      int    `json:"queue_capacity"`
	DropPlacementTotal uint64 `json:"drop_placement_total"`
	DropConfigTotal    uint64 `json:"drop_config_total"`
	WriteErrorTotal    uint64 `json:"write_error_total"`
}

func OpenSQLite(path string) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SQLiteIndex{
		db: db,
		ch: make(chan req, 65536),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS catalogs (
			name TEXT PRIMARY KEY,
			digest TEXT NOT NULL,
			json TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS placements (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			recorded_at TEXT NOT NULL,
			actor_id TEXT NOT NULL,
			world TEXT NOT NULL,
			ok INTEGER NOT NULL,
			outcome TEXT NOT NULL,
			attempts INTEGER NOT NULL,
			load_faults INTEGER NOT NULL,
			move_faults INTEGER NOT NULL,
			x REAL NOT NULL,
			y REAL NOT NULL,
			z REAL NOT NULL,
			duration_ms INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_placements_actor ON placements(actor_id, id);`,
		`CREATE INDEX IF NOT EXISTS idx_placements_outcome ON placements(outcome, id);`,
		`CREATE TABLE IF NOT EXISTS config (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			recorded_at TEXT NOT NULL,
			source TEXT NOT NULL,
			radius INTEGER NOT NULL,
			max_attempts INTEGER NOT NULL,
			cooldown_seconds INTEGER NOT NULL,
			unsafe_blocks TEXT NOT NULL
		);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteIndex) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

// RecordPlacement queues e. When the writer falls behind the entry is dropped;
// the JSONL log remains the source of truth.
func (s *SQLiteIndex) RecordPlacement(e placement.Entry) {
	if s == nil || s.closed.Load() {
		return
	}
	select {
	case s.ch <- req{kind: reqPlacement, placement: e}:
	default:
		s.dropPlacement.Add(1)
	}
}

func (s *SQLiteIndex) RecordConfig(source string, cfg *config.Config) error {
	if s == nil || s.closed.Load() || cfg == nil {
		return nil
	}
	r := configRow{
		RecordedAt:      time.Now().UTC().Format(time.RFC3339Nano),
		Source:          source,
		Radius:          cfg.Radius,
		MaxAttempts:     cfg.MaxAttempts,
		CooldownSeconds: cfg.CooldownSeconds,
		UnsafeBlocks:    strings.Join(cfg.SortedUnsafeBlocks(), ","),
	}
	select {
	case s.ch <- req{kind: reqConfig, config: r}:
	default:
		s.dropConfig.Add(1)
	}
	return nil
}

func (s *SQLiteIndex) Stats() SQLiteStats {
	return SQLiteStats{
		QueueDepth:         len(s.ch),
		QueueCapacity:      cap(s.ch),
		DropPlacementTotal: s.dropPlacement.Load(),
		DropConfigTotal:    s.dropConfig.Load(),
		WriteErrorTotal:    s.writeErrors.Load(),
	}
}

func tuningDigest(tune tuning.Tuning) (string, []byte) {
	b, _ := json.Marshal(tune)
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:]), b
}

func (s *SQLiteIndex) UpsertCatalogs(configDir string, cats *catalogs.Catalogs, tune tuning.Tuning) error {
	if s == nil || cats == nil {
		return nil
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)

	type kv struct {
		name   string
		digest string
		json   []byte
	}
	var rows []kv
	if configDir != "" {
		if b, err := os.ReadFile(filepath.Join(configDir, "blocks.json")); err == nil {
			rows = append(rows, kv{name: "blocks_defs", digest: cats.Blocks.DefsDigest, json: b})
		}
	}
	if b, _ := json.Marshal(cats.Blocks.Palette); len(b) > 0 {
		rows = append(rows, kv{name: "blocks_palette", digest: cats.Blocks.PaletteDigest, json: b})
	}
	digest, b := tuningDigest(tune)
	rows = append(rows, kv{name: "tuning", digest: digest, json: b})

	tx, err := s.db.BeginTx(context.Background(), nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version','1')`); err != nil {
		return err
	}
	stmt, err := tx.Prepare(`INSERT OR REPLACE INTO catalogs(name,digest,json,updated_at) VALUES(?,?,?,?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, r := range rows {
		if r.name == "" || r.digest == "" || len(r.json) == 0 {
			continue
		}
		if _, err := stmt.Exec(r.name, r.digest, string(r.json), now); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *SQLiteIndex) loop() {
	ctx := context.Background()

	insertPlacement, _ := s.db.Prepare(`INSERT INTO placements(recorded_at,actor_id,world,ok,outcome,attempts,load_faults,move_faults,x,y,z,duration_ms) VALUES(?,?,?,?,?,?,?,?,?,?,?,?)`)
	insertConfig, _ := s.db.Prepare(`INSERT INTO config(recorded_at,source,radius,max_attempts,cooldown_seconds,unsafe_blocks) VALUES(?,?,?,?,?,?)`)
	defer func() {
		if insertPlacement != nil {
			_ = insertPlacement.Close()
		}
		if insertConfig != nil {
			_ = insertConfig.Close()
		}
	}()

	var (
		tx            *sql.Tx
		opCount       int
		lastCommit    = time.Now()
		commitEvery   = 500
		commitMaxWait = time.Second
	)

	begin := func() {
		if tx != nil {
			return
		}
		txx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			time.Sleep(50 * time.Millisecond)
			return
		}
		tx = txx
		opCount = 0
		lastCommit = time.Now()
	}
	commit := func() {
		if tx == nil {
			return
		}
		if err := tx.Commit(); err != nil {
			s.writeErrors.Add(1)
		}
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	rollback := func() {
		if tx == nil {
			return
		}
		_ = tx.Rollback()
		s.writeErrors.Add(1)
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	flushIfNeeded := func() {
		if tx == nil {
			return
		}
		if opCount >= commitEvery || time.Since(lastCommit) >= commitMaxWait || len(s.ch) == 0 {
			commit()
		}
	}

	for r := range s.ch {
		begin()
		if tx == nil {
			continue
		}
		switch r.kind {
		case reqPlacement:
			e := r.placement
			if insertPlacement == nil {
				continue
			}
			ok := 0
			if e.OK {
				ok = 1
			}
			if _, err := tx.Stmt(insertPlacement).Exec(
				e.Time.UTC().Format(time.RFC3339Nano),
				e.ActorID,
				e.World,
				ok,
				string(e.Outcome),
				e.Attempts,
				e.LoadFaults,
				e.MoveFaults,
				e.Pos[0], e.Pos[1], e.Pos[2],
				e.DurationMS,
			); err != nil {
				rollback()
				continue
			}
			opCount++

		case reqConfig:
			c := r.config
			if insertConfig == nil {
				continue
			}
			if _, err := tx.Stmt(insertConfig).Exec(
				c.RecordedAt,
				c.Source,
				c.Radius,
				c.MaxAttempts,
				c.CooldownSeconds,
				c.UnsafeBlocks,
			); err != nil {
				rollback()
				continue
			}
			opCount++
		}
		flushIfNeeded()
	}

	commit()
}
