package main

import (
	"database/sql"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

func dbCmd(args []string) {
	fs := flag.NewFlagSet("db", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	worldID := fs.String("world", "overworld", "world name (ignored with -db)")
	dbPath := fs.String("db", "", "sqlite db path (optional)")
	limit := fs.Int("limit", 20, "result limit")
	actor := fs.String("actor", "", "actor_id filter (placements)")
	_ = fs.Parse(args)

	q := "placements"
	if fs.NArg() > 0 {
		q = strings.TrimSpace(fs.Arg(0))
	}

	path := strings.TrimSpace(*dbPath)
	if path == "" {
		path = filepath.Join(*dataDir, "worlds", *worldID, "index", "spawn.sqlite")
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "open:", err)
		os.Exit(1)
	}
	defer db.Close()
	if *limit <= 0 {
		*limit = 20
	}

	var rowsErr error
	switch q {
	case "placements":
		rowsErr = queryPlacements(db, strings.TrimSpace(*actor), *limit)
	case "outcomes":
		rowsErr = queryOutcomes(db)
	case "config":
		rowsErr = queryConfig(db, *limit)
	case "catalogs":
		rowsErr = queryCatalogs(db)
	default:
		fmt.Fprintln(os.Stderr, "unknown query:", q)
		fmt.Fprintln(os.Stderr, "usage: admin db [-data ./data] [-world NAME|-db PATH] [-actor ID] placements|outcomes|config|catalogs")
		os.Exit(2)
	}
	if rowsErr != nil {
		fmt.Fprintln(os.Stderr, "query:", rowsErr)
		os.Exit(1)
	}
}

func queryPlacements(db *sql.DB, actor string, limit int) error {
	q := `SELECT recorded_at,actor_id,world,ok,outcome,attempts,load_faults,move_faults,x,y,z,duration_ms FROM placements ORDER BY id DESC LIMIT ?`
	args := []any{limit}
	if actor != "" {
		q = `SELECT recorded_at,actor_id,world,ok,outcome,attempts,load_faults,move_faults,x,y,z,duration_ms FROM placements WHERE actor_id=? ORDER BY id DESC LIMIT ?`
		args = []any{actor, limit}
	}
	rows, err := db.Query(q, args...)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var r struct {
			RecordedAt string  `json:"recorded_at"`
			ActorID    string  `json:"actor_id"`
			World      string  `json:"world"`
			OK         bool    `json:"ok"`
			Outcome    string  `json:"outcome"`
			Attempts   int     `json:"attempts"`
			LoadFaults int     `json:"load_faults"`
			MoveFaults int     `json:"move_faults"`
			X          float64 `json:"x"`
			Y          float64 `json:"y"`
			Z          float64 `json:"z"`
			DurationMS int64   `json:"duration_ms"`
		}
		if err := rows.Scan(&r.RecordedAt, &r.ActorID, &r.World, &r.OK, &r.Outcome, &r.Attempts, &r.LoadFaults, &r.MoveFaults, &r.X, &r.Y, &r.Z, &r.DurationMS); err != nil {
			return err
		}
		printJSON(r)
	}
	return rows.Err()
}

func queryOutcomes(db *sql.DB) error {
	rows, err := db.Query(`SELECT outcome,COUNT(*),AVG(attempts),MAX(attempts),AVG(duration_ms) FROM placements GROUP BY outcome ORDER BY outcome`)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var r struct {
			Outcome     string  `json:"outcome"`
			Count       int64   `json:"count"`
			AvgAttempts float64 `json:"avg_attempts"`
			MaxAttempts int     `json:"max_attempts"`
			AvgDuration float64 `json:"avg_duration_ms"`
		}
		if err := rows.Scan(&r.Outcome, &r.Count, &r.AvgAttempts, &r.MaxAttempts, &r.AvgDuration); err != nil {
			return err
		}
		printJSON(r)
	}
	return rows.Err()
}

func queryConfig(db *sql.DB, limit int) error {
	rows, err := db.Query(`SELECT recorded_at,source,radius,max_attempts,cooldown_seconds,unsafe_blocks FROM config ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var r struct {
			RecordedAt      string `json:"recorded_at"`
			Source          string `json:"source"`
			Radius          int    `json:"radius"`
			MaxAttempts     int    `json:"max_attempts"`
			CooldownSeconds int    `json:"cooldown_seconds"`
			UnsafeBlocks    string `json:"unsafe_blocks"`
		}
		if err := rows.Scan(&r.RecordedAt, &r.Source, &r.Radius, &r.MaxAttempts, &r.CooldownSeconds, &r.UnsafeBlocks); err != nil {
			return err
		}
		printJSON(r)
	}
	return rows.Err()
}

func queryCatalogs(db *sql.DB) error {
	rows, err := db.Query(`SELECT name,digest,updated_at FROM catalogs ORDER BY name`)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var r struct {
			Name      string `json:"name"`
			Digest    string `json:"digest"`
			UpdatedAt string `json:"updated_at"`
		}
		if err := rows.Scan(&r.Name, &r.Digest, &r.UpdatedAt); err != nil {
			return err
		}
		printJSON(r)
	}
	return rows.Err()
}
