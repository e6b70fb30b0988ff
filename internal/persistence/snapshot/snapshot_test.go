package snapshot

import (
	"os"
	"path/filepath"
	"testing"
)

func TestWriteReadSnapshot(t *testing.T) {
	dir := t.TempDir()
	in := SnapshotV1{
		Header: Header{Version: Version, World: "overworld", Tick: 420},
		Seed:   1337,
		Actors: []ActorV1{
			{Name: "alice", ID: "6f1c2d2e-8a55-4a39-9c3e-2f1d6f3b7a10", Pos: [3]float64{10.5, 71, -3.5}},
			{Name: "bob", ID: "0b7c8f0e-21b2-4c5f-8f0e-5a8e2c1d9b33"},
		},
	}
	path := PathFor(dir, in.Header.Tick)
	if err := WriteSnapshot(path, in); err != nil {
		t.Fatalf("WriteSnapshot: %v", err)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Fatalf("temp file left behind: %v", err)
	}

	out, err := ReadSnapshot(path)
	if err != nil {
		t.Fatalf("ReadSnapshot: %v", err)
	}
	if out.Header != in.Header || out.Seed != in.Seed || len(out.Actors) != 2 {
		t.Fatalf("got %+v", out)
	}
	if out.Actors[0] != in.Actors[0] {
		t.Fatalf("actor mismatch: %+v vs %+v", out.Actors[0], in.Actors[0])
	}
}

func TestReadSnapshotRejectsVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "1.snap.zst")
	if err := WriteSnapshot(path, SnapshotV1{Header: Header{Version: 99}}); err != nil {
		t.Fatal(err)
	}
	if _, err := ReadSnapshot(path); err == nil {
		t.Fatalf("expected version error")
	}
}

func TestLatest(t *testing.T) {
	dir := t.TempDir()
	if got := Latest(dir); got != "" {
		t.Fatalf("empty dir latest=%q", got)
	}
	for _, tick := range []uint64{9, 120, 40} {
		if err := WriteSnapshot(PathFor(dir, tick), SnapshotV1{Header: Header{Version: Version, Tick: tick}}); err != nil {
			t.Fatal(err)
		}
	}
	_ = os.WriteFile(filepath.Join(dir, "snapshots", "junk.snap.zst"), []byte("x"), 0o644)
	if got, want := Latest(dir), PathFor(dir, 120); got != want {
		t.Fatalf("Latest=%q want %q", got, want)
	}
}
