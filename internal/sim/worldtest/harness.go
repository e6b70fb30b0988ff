package worldtest

import (
	"context"
	"io"
	"log"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl64"

	"voxelspawn.ai/internal/sim/catalogs"
	world "voxelspawn.ai/internal/sim/world"
	"voxelspawn.ai/internal/spawn/config"
	"voxelspawn.ai/internal/spawn/placement"
	"voxelspawn.ai/internal/spawn/safety"
	wq "voxelspawn.ai/internal/spawn/worldquery"
)

// Harness drives the real placement core against a running host world using
// only exported APIs.
type Harness struct {
	T     *testing.T
	Cats  *catalogs.Catalogs
	W     *world.World
	Store *config.Store
	Coord *placement.Coordinator
	Rec   *Recorder
}

func configDir() string {
	return filepath.Join("..", "..", "..", "configs")
}

func NewHarness(t *testing.T, mutate func(*world.WorldConfig), cfg *config.Config) *Harness {
	t.Helper()
	cats, err := catalogs.Load(configDir())
	if err != nil {
		t.Fatalf("catalogs: %v", err)
	}
	wcfg := world.WorldConfig{
		Name:          "overworld",
		Seed:          2024,
		MinHeight:     -64,
		MaxHeight:     320,
		SeaLevel:      62,
		RegionShift:   2,
		TickRateHz:    50,
		LoaderWorkers: 4,
	}
	if mutate != nil {
		mutate(&wcfg)
	}
	w, err := world.New(wcfg, cats, log.New(io.Discard, "", 0))
	if err != nil {
		t.Fatalf("world.New: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	go w.Run(ctx)
	t.Cleanup(func() {
		cancel()
		w.Close()
	})

	if cfg == nil {
		cfg, err = config.Load(filepath.Join(configDir(), "spawn.yaml"), cats.Blocks.Known)
		if err != nil {
			t.Fatalf("spawn config: %v", err)
		}
	}
	store := config.NewStore(cfg)
	rec := &Recorder{ch: make(chan placement.Entry, 256)}
	coord := placement.NewCoordinator(store, nil)
	coord.SetRecorder(rec)
	return &Harness{T: t, Cats: cats, W: w, Store: store, Coord: coord, Rec: rec}
}

func (h *Harness) Join(name string) *world.Actor {
	h.T.Helper()
	a, _, err := h.W.Join(name)
	if err != nil {
		h.T.Fatalf("Join(%s): %v", name, err)
	}
	return a
}

func (h *Harness) Place(a *world.Actor) bool {
	h.T.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()
	ok, err := h.Coord.Place(ctx, a)
	if err != nil {
		h.T.Fatalf("Place: %v", err)
	}
	return ok
}

// AssertStandable checks the block under pos is safe ground with two airy
// blocks above it, read on the owning region worker.
func (h *Harness) AssertStandable(pos mgl64.Vec3) {
	h.T.Helper()
	x, y, z := int(math.Floor(pos.X())), int(pos.Y()), int(math.Floor(pos.Z()))
	type cell struct{ ground, feet, head wq.BlockID }
	res := make(chan cell, 1)
	h.W.ExecRegion(wq.ChunkPosAt(x, z), func(r wq.Region) {
		res <- cell{r.Block(x, y-1, z), r.Block(x, y, z), r.Block(x, y+1, z)}
	})
	var c cell
	select {
	case c = <-res:
	case <-time.After(5 * time.Second):
		h.T.Fatalf("region read timed out")
	}
	cl := safety.NewClassifier(h.W, h.Store.Load().UnsafeBlocks)
	if !cl.Safe(c.ground, c.feet, c.head) {
		h.T.Fatalf("placed at %v on %s/%s/%s", pos, c.ground, c.feet, c.head)
	}
}

// Recorder collects entries from any worker goroutine.
type Recorder struct {
	ch chan placement.Entry
}

func (r *Recorder) RecordPlacement(e placement.Entry) {
	select {
	case r.ch <- e:
	default:
	}
}

func (r *Recorder) Next(t *testing.T) placement.Entry {
	t.Helper()
	select {
	case e := <-r.ch:
		return e
	case <-time.After(5 * time.Second):
		t.Fatalf("no placement entry")
	}
	return placement.Entry{}
}
