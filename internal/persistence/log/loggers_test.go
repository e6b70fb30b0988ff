package log

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/klauspost/compress/zstd"

	"voxelspawn.ai/internal/spawn/config"
	"voxelspawn.ai/internal/spawn/placement"
)

func readJSONL(t *testing.T, path string) []map[string]any {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()
	dec, err := zstd.NewReader(f)
	if err != nil {
		t.Fatalf("zstd: %v", err)
	}
	defer dec.Close()

	var out []map[string]any
	sc := bufio.NewScanner(dec)
	for sc.Scan() {
		var m map[string]any
		if err := json.Unmarshal(sc.Bytes(), &m); err != nil {
			t.Fatalf("line %q: %v", sc.Text(), err)
		}
		out = append(out, m)
	}
	if err := sc.Err(); err != nil {
		t.Fatalf("scan: %v", err)
	}
	return out
}

func TestPlacementLoggerWritesEntries(t *testing.T) {
	dir := t.TempDir()
	l := NewPlacementLogger(dir)
	at := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)
	l.w.now = func() time.Time { return at }

	l.RecordPlacement(placement.Entry{Time: at, ActorID: "a", OK: true, Outcome: placement.OutcomeFound, Attempts: 2, Pos: [3]float64{1.5, 65, -3.5}})
	l.RecordPlacement(placement.Entry{Time: at, ActorID: "b", Outcome: placement.OutcomeExhausted, Attempts: 75})
	if err := l.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if l.Errors() != 0 {
		t.Fatalf("errors=%d", l.Errors())
	}

	rows := readJSONL(t, filepath.Join(dir, "placements", "placements-2026-03-04-05.jsonl.zst"))
	if len(rows) != 2 {
		t.Fatalf("rows=%d want 2", len(rows))
	}
	if rows[0]["outcome"] != "FOUND" || rows[0]["attempts"].(float64) != 2 {
		t.Fatalf("row0=%v", rows[0])
	}
	if rows[1]["ok"] != false || rows[1]["outcome"] != "EXHAUSTED" {
		t.Fatalf("row1=%v", rows[1])
	}
}

func TestWriterRotatesHourly(t *testing.T) {
	dir := t.TempDir()
	w := NewJSONLZstdWriter(dir, "x")
	at := time.Date(2026, 1, 1, 10, 59, 0, 0, time.UTC)
	w.now = func() time.Time { return at }
	if err := w.Write(map[string]int{"n": 1}); err != nil {
		t.Fatal(err)
	}
	at = at.Add(2 * time.Minute)
	if err := w.Write(map[string]int{"n": 2}); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"x-2026-01-01-10.jsonl.zst", "x-2026-01-01-11.jsonl.zst"} {
		if rows := readJSONL(t, filepath.Join(dir, name)); len(rows) != 1 {
			t.Fatalf("%s rows=%d want 1", name, len(rows))
		}
	}
}

func TestAuditLoggerConfigEntry(t *testing.T) {
	dir := t.TempDir()
	l := NewAuditLogger(dir)
	at := time.Date(2026, 2, 2, 2, 0, 0, 0, time.UTC)
	l.w.now = func() time.Time { return at }
	cfg := config.Defaults()
	cfg.Radius = 64
	if err := l.RecordConfig("reload", cfg); err != nil {
		t.Fatal(err)
	}
	if err := l.Close(); err != nil {
		t.Fatal(err)
	}
	rows := readJSONL(t, filepath.Join(dir, "audit", "audit-2026-02-02-02.jsonl.zst"))
	if len(rows) != 1 || rows[0]["source"] != "reload" || rows[0]["radius"].(float64) != 64 {
		t.Fatalf("rows=%v", rows)
	}
	if blocks := rows[0]["unsafe_blocks"].([]any); len(blocks) != 2 || blocks[0] != "CACTUS" {
		t.Fatalf("rows=%v", rows)
	}
}
