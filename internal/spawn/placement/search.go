package placement

import (
	"time"

	"voxelspawn.ai/internal/spawn/config"
	"voxelspawn.ai/internal/spawn/safety"
	wq "voxelspawn.ai/internal/spawn/worldquery"
)

type Outcome string

const (
	OutcomeFound       Outcome = "FOUND"
	OutcomeExhausted   Outcome = "EXHAUSTED"
	OutcomeOffline     Outcome = "OFFLINE"
	OutcomeUnscheduled Outcome = "UNSCHEDULED"
)

// Search is the state of one placement chain, carried across every
// suspension point. Only one step of a chain runs at a time, so its fields
// need no locking.
type Search struct {
	actor      wq.Actor
	world      wq.World
	cfg        *config.Config
	classifier safety.Classifier
	started    time.Time

	attempts   int
	loadFaults int
	moveFaults int
	finished   bool
}

func newSearch(a wq.Actor, w wq.World, cfg *config.Config, now time.Time) *Search {
	return &Search{
		actor:      a,
		world:      w,
		cfg:        cfg,
		classifier: safety.NewClassifier(w, cfg.UnsafeBlocks),
		started:    now,
	}
}
