package service

import (
	"io"
	"log"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"voxelspawn.ai/internal/spawn/config"
	wq "voxelspawn.ai/internal/spawn/worldquery"
)

// flatWorld runs every task inline on a stone floor at y=64.
type flatWorld struct{}

func (flatWorld) IsSolid(b wq.BlockID) bool    { return b != wq.Air }
func (flatWorld) IsPassable(b wq.BlockID) bool { return b == wq.Air }
func (flatWorld) Name() string                 { return "flat" }

func (flatWorld) LoadChunk(pos wq.ChunkPos, done func(error))        { done(nil) }
func (w flatWorld) ExecRegion(pos wq.ChunkPos, task func(wq.Region)) { task(flatRegion{}) }
func (flatWorld) ExecGlobal(task func())                             { task() }

type flatRegion struct{}

func (flatRegion) MinHeight() int             { return -64 }
func (flatRegion) MaxHeight() int             { return 320 }
func (flatRegion) HighestBlockY(x, z int) int { return 64 }

func (flatRegion) Block(x, y, z int) wq.BlockID {
	if y <= 64 {
		return "STONE"
	}
	return wq.Air
}

type testActor struct {
	id      uuid.UUID
	online  bool
	retired bool

	delays []int
	moves  []wq.Location
}

func newActor() *testActor { return &testActor{id: uuid.New(), online: true} }

func (a *testActor) ID() uuid.UUID   { return a.id }
func (a *testActor) Online() bool    { return a.online }
func (a *testActor) World() wq.World { return flatWorld{} }

func (a *testActor) Exec(delayTicks int, task func(wq.ActorTx)) bool {
	if a.retired {
		return false
	}
	a.delays = append(a.delays, delayTicks)
	task(testTx{a})
	return true
}

type testTx struct{ a *testActor }

func (tx testTx) Teleport(loc wq.Location, done func(bool)) {
	tx.a.moves = append(tx.a.moves, loc)
	done(true)
}

type configRecorder struct{ sources []string }

func (r *configRecorder) RecordConfig(source string, cfg *config.Config) error {
	r.sources = append(r.sources, source)
	return nil
}

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func newTestService(t *testing.T, path string, now func() time.Time) (*Service, *configRecorder) {
	t.Helper()
	rec := &configRecorder{}
	s, err := New(Options{
		ConfigPath:      path,
		Initial:         &config.Config{Radius: 32, MaxAttempts: 3, CooldownSeconds: 5, UnsafeBlocks: config.DefaultUnsafeBlocks()},
		ConfigRecorders: []ConfigRecorder{rec},
		Logger:          log.New(io.Discard, "", 0),
		Now:             now,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s, rec
}

func TestOnJoinPlacesFirstJoinOnly(t *testing.T) {
	s, _ := newTestService(t, "", nil)
	a := newActor()

	var got []bool
	if !s.OnJoin(a, true, func(ok bool) { got = append(got, ok) }) {
		t.Fatalf("first join not placed")
	}
	if len(got) != 1 || !got[0] || len(a.moves) != 1 {
		t.Fatalf("got=%v moves=%d", got, len(a.moves))
	}
	if s.OnJoin(a, false, func(ok bool) { got = append(got, ok) }) {
		t.Fatalf("returning join placed")
	}
	if len(got) != 1 || len(a.moves) != 1 {
		t.Fatalf("returning join moved the actor")
	}
}

func TestOnRespawnSkipsBedAndDelaysOneTick(t *testing.T) {
	s, _ := newTestService(t, "", nil)
	a := newActor()

	if s.OnRespawn(a, true, nil) {
		t.Fatalf("bed respawn re-placed")
	}
	if len(a.delays) != 0 || len(a.moves) != 0 {
		t.Fatalf("bed respawn touched the actor")
	}

	if !s.OnRespawn(a, false, nil) {
		t.Fatalf("death respawn not scheduled")
	}
	if len(a.delays) == 0 || a.delays[0] != 1 {
		t.Fatalf("delays=%v want first delay 1", a.delays)
	}
	if len(a.moves) != 1 {
		t.Fatalf("moves=%d want 1", len(a.moves))
	}
	p := a.moves[0].Pos
	if p.Y() != 65 || p.X()-float64(int(p.X())) == 0 {
		t.Fatalf("unexpected position %v", p)
	}
}

func TestOnRespawnRetiredActorReportsFailure(t *testing.T) {
	s, _ := newTestService(t, "", nil)
	a := newActor()
	a.retired = true

	var got []bool
	if s.OnRespawn(a, false, func(ok bool) { got = append(got, ok) }) {
		t.Fatalf("retired actor accepted respawn")
	}
	if len(got) != 1 || got[0] {
		t.Fatalf("got=%v want [false]", got)
	}
}

func TestSpawnCooldown(t *testing.T) {
	c := &clock{t: time.Unix(1_700_000_000, 0)}
	s, _ := newTestService(t, "", c.now)
	a := newActor()

	calls := 0
	if v := s.Spawn(a, func(bool) { calls++ }); !v.Allowed {
		t.Fatalf("first spawn denied")
	}
	c.t = c.t.Add(1500 * time.Millisecond)
	v := s.Spawn(a, func(bool) { calls++ })
	if v.Allowed || v.RemainingSeconds != 3 {
		t.Fatalf("verdict=%+v want denied with 3s", v)
	}
	if calls != 1 || len(a.moves) != 1 {
		t.Fatalf("denied spawn started a search: calls=%d moves=%d", calls, len(a.moves))
	}
	if msg := CooldownMessage(v.RemainingSeconds); msg != "wait 3 s" {
		t.Fatalf("message=%q", msg)
	}

	c.t = c.t.Add(4 * time.Second)
	if v := s.Spawn(a, func(bool) { calls++ }); !v.Allowed {
		t.Fatalf("spawn after window denied")
	}
	if calls != 2 {
		t.Fatalf("calls=%d want 2", calls)
	}

	s.Close()
	if n := s.Cooldowns().Len(); n != 0 {
		t.Fatalf("cooldowns survive Close: %d", n)
	}
}

func TestSpawnOfflineActor(t *testing.T) {
	s, _ := newTestService(t, "", nil)
	a := newActor()
	a.online = false

	var got []bool
	if v := s.Spawn(a, func(ok bool) { got = append(got, ok) }); !v.Allowed {
		t.Fatalf("offline actor should pass the cooldown gate")
	}
	if len(got) != 1 || got[0] {
		t.Fatalf("got=%v want [false]", got)
	}
}

func TestReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "spawn.yaml")
	if err := os.WriteFile(path, []byte("spawn_radius: 64\nmax_spawn_attempts: 9\nspawn_cooldown: 0\nunsafe_blocks: [sand]\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	s, rec := newTestService(t, path, nil)
	if s.Config().Radius != 32 {
		t.Fatalf("initial radius=%d", s.Config().Radius)
	}

	cfg, err := s.Reload()
	if err != nil {
		t.Fatalf("Reload: %v", err)
	}
	if cfg.Radius != 64 || cfg.MaxAttempts != 9 || cfg.CooldownSeconds != 0 || !cfg.IsUnsafe("SAND") {
		t.Fatalf("reloaded %+v", cfg)
	}
	if s.Config() != cfg {
		t.Fatalf("store not swapped")
	}
	if len(rec.sources) != 2 || rec.sources[0] != "startup" || rec.sources[1] != "reload" {
		t.Fatalf("recorded sources %v", rec.sources)
	}

	// A zero cooldown lets back-to-back spawns through.
	a := newActor()
	s.Spawn(a, func(bool) {})
	if v := s.Spawn(a, func(bool) {}); !v.Allowed {
		t.Fatalf("cooldown still applied after reload to 0")
	}

	if err := os.WriteFile(path, []byte("spawn_radius: [\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Reload(); err == nil {
		t.Fatalf("expected parse error")
	}
	if s.Config() != cfg {
		t.Fatalf("failed reload replaced the config")
	}
}
