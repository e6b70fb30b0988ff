package tuning

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadRepoTuning(t *testing.T) {
	tu, err := Load(filepath.Join("..", "..", "..", "configs", "tuning.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if tu.WorldName != "overworld" || tu.MinHeight != -64 || tu.MaxHeight != 320 {
		t.Fatalf("unexpected tuning %+v", tu)
	}
}

func TestLoadClampsAndValidates(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "tuning.yaml")
	raw := "loader_workers: 0\nteleport_reject_permille: 5000\ntick_rate_hz: -1\n"
	if err := os.WriteFile(p, []byte(raw), 0o644); err != nil {
		t.Fatal(err)
	}
	tu, err := Load(p)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if tu.LoaderWorkers != 1 || tu.TeleportRejectPermille != 1000 || tu.TickRateHz != 20 {
		t.Fatalf("unexpected tuning %+v", tu)
	}

	bad := "min_height: 0\nmax_height: 2\n"
	if err := os.WriteFile(p, []byte(bad), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(p); err == nil {
		t.Fatalf("expected height range error")
	}
}

func TestEmptyPathUsesDefaults(t *testing.T) {
	tu, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if tu != Defaults() {
		t.Fatalf("got %+v", tu)
	}
}
