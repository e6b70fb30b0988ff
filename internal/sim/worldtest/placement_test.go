package worldtest

import (
	"sync"
	"testing"

	world "voxelspawn.ai/internal/sim/world"
	"voxelspawn.ai/internal/spawn/config"
	"voxelspawn.ai/internal/spawn/placement"
)

func TestPlaceOnGeneratedTerrain(t *testing.T) {
	h := NewHarness(t, nil, nil)
	a := h.Join("alice")
	if !h.Place(a) {
		t.Fatalf("no safe spot found with default config")
	}
	pos := a.Pos()
	r := float64(h.Store.Load().Radius)
	if pos.X() < -r || pos.X() > r+1 || pos.Z() < -r || pos.Z() > r+1 {
		t.Fatalf("pos %v outside radius %v", pos, r)
	}
	h.AssertStandable(pos)

	e := h.Rec.Next(t)
	if !e.OK || e.Outcome != placement.OutcomeFound || e.Attempts < 1 || e.World != "overworld" {
		t.Fatalf("unexpected entry %+v", e)
	}
}

func TestConcurrentChainsAllLandSafely(t *testing.T) {
	h := NewHarness(t, nil, nil)
	var wg sync.WaitGroup
	actors := make([]*world.Actor, 16)
	results := make([]bool, len(actors))
	for i := range actors {
		actors[i] = h.Join(string(rune('a'+i)) + "-bot")
	}
	for i, a := range actors {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = h.Place(a)
		}()
	}
	wg.Wait()
	for i, a := range actors {
		if !results[i] {
			t.Fatalf("actor %s not placed", a.Name())
		}
		h.AssertStandable(a.Pos())
	}
}

func TestRejectedTeleportsExhaustBudget(t *testing.T) {
	cfg := config.Defaults()
	cfg.MaxAttempts = 3
	h := NewHarness(t, func(c *world.WorldConfig) { c.TeleportRejectPermille = 1000 }, cfg)
	a := h.Join("unlucky")
	if h.Place(a) {
		t.Fatalf("placement should fail when every move is rejected")
	}
	e := h.Rec.Next(t)
	if e.Outcome != placement.OutcomeExhausted || e.Attempts != 3 {
		t.Fatalf("unexpected entry %+v", e)
	}
	if e.MoveFaults+e.LoadFaults == 0 {
		t.Fatalf("expected recorded move faults: %+v", e)
	}
	if a.Moves() != 0 {
		t.Fatalf("actor moved %d times", a.Moves())
	}
}

func TestLoadFailuresExhaustBudget(t *testing.T) {
	cfg := config.Defaults()
	cfg.MaxAttempts = 4
	h := NewHarness(t, func(c *world.WorldConfig) { c.ChunkLoadFailPermille = 1000 }, cfg)
	a := h.Join("stuck")
	if h.Place(a) {
		t.Fatalf("placement should fail when no chunk loads")
	}
	if e := h.Rec.Next(t); e.LoadFaults != 4 {
		t.Fatalf("unexpected entry %+v", e)
	}
}

func TestLeaveDuringSearch(t *testing.T) {
	cfg := config.Defaults()
	h := NewHarness(t, func(c *world.WorldConfig) { c.ChunkLoadPerSec = 1; c.ChunkLoadBurst = 1 }, cfg)
	// Spend the only burst token so the search parks on the limiter.
	warm := h.Join("warm")
	h.Place(warm)
	h.Rec.Next(t)

	a := h.Join("leaver")
	res := make(chan bool, 1)
	h.Coord.PlaceActor(a, func(ok bool) { res <- ok })
	h.W.Leave(a)
	if <-res {
		t.Fatalf("left actor was placed")
	}
	if e := h.Rec.Next(t); e.OK || (e.Outcome != placement.OutcomeOffline && e.Outcome != placement.OutcomeUnscheduled) {
		t.Fatalf("unexpected entry %+v", e)
	}
	if a.Moves() != 0 {
		t.Fatalf("left actor moved")
	}
}

func TestOfflineActorFailsImmediately(t *testing.T) {
	h := NewHarness(t, nil, nil)
	a := h.Join("ghost")
	h.W.Leave(a)
	if h.Place(a) {
		t.Fatalf("offline actor placed")
	}
	if m := h.W.Metrics(); m.LoadRequests != 0 {
		t.Fatalf("offline placement touched the world: %+v", m)
	}
}
