package placement

import (
	"context"
	"time"

	"voxelspawn.ai/internal/spawn/config"
	wq "voxelspawn.ai/internal/spawn/worldquery"
)

// Recorder receives one Entry per finished chain. It may be nil. Recorders
// must not block; they are called from world and actor workers.
type Recorder interface {
	RecordPlacement(e Entry)
}

type Entry struct {
	Time       time.Time  `json:"time"`
	ActorID    string     `json:"actor_id"`
	World      string     `json:"world,omitempty"`
	OK         bool       `json:"ok"`
	Outcome    Outcome    `json:"outcome"`
	Attempts   int        `json:"attempts"`
	LoadFaults int        `json:"load_faults,omitempty"`
	MoveFaults int        `json:"move_faults,omitempty"`
	Pos        [3]float64 `json:"pos,omitempty"`
	DurationMS int64      `json:"duration_ms"`
}

// Coordinator places actors at resolved locations, restarting the search when
// the host rejects a move. All retries of one PlaceActor call share a single
// attempt budget.
type Coordinator struct {
	cfg      *config.Store
	resolver *Resolver
	recorder Recorder
	now      func() time.Time
}

func NewCoordinator(cfg *config.Store, r *Resolver) *Coordinator {
	if r == nil {
		r = NewResolver(nil)
	}
	return &Coordinator{cfg: cfg, resolver: r, now: time.Now}
}

func (c *Coordinator) SetRecorder(r Recorder) { c.recorder = r }

// PlaceActor starts an independent chain for a. onResult is called exactly
// once; false means the budget ran out or the actor went away.
func (c *Coordinator) PlaceActor(a wq.Actor, onResult func(ok bool)) {
	if !a.Online() {
		c.report(nil, a, OutcomeOffline, nil)
		onResult(false)
		return
	}
	s := newSearch(a, a.World(), c.cfg.Load(), c.now())
	c.run(s, onResult)
}

// Place blocks until the chain finishes or ctx is done.
func (c *Coordinator) Place(ctx context.Context, a wq.Actor) (bool, error) {
	res := make(chan bool, 1)
	c.PlaceActor(a, func(ok bool) { res <- ok })
	select {
	case ok := <-res:
		return ok, nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

func (c *Coordinator) run(s *Search, onResult func(bool)) {
	c.resolver.Resolve(s,
		func(loc wq.Location) { c.move(s, loc, onResult) },
		func(o Outcome) { c.finish(s, o, nil, onResult) },
	)
}

func (c *Coordinator) move(s *Search, loc wq.Location, onResult func(bool)) {
	accepted := s.actor.Exec(0, func(tx wq.ActorTx) {
		if !s.actor.Online() {
			c.finish(s, OutcomeOffline, nil, onResult)
			return
		}
		tx.Teleport(loc, func(moved bool) {
			if !moved {
				s.moveFaults++
				s.world.ExecGlobal(func() { c.run(s, onResult) })
				return
			}
			c.finish(s, OutcomeFound, &loc, onResult)
		})
	})
	if !accepted {
		c.finish(s, OutcomeUnscheduled, nil, onResult)
	}
}

func (c *Coordinator) finish(s *Search, o Outcome, loc *wq.Location, onResult func(bool)) {
	if s.finished {
		return
	}
	s.finished = true
	c.report(s, s.actor, o, loc)
	onResult(o == OutcomeFound)
}

func (c *Coordinator) report(s *Search, a wq.Actor, o Outcome, loc *wq.Location) {
	if c.recorder == nil {
		return
	}
	now := c.now()
	e := Entry{
		Time:    now.UTC(),
		ActorID: a.ID().String(),
		OK:      o == OutcomeFound,
		Outcome: o,
	}
	if s != nil {
		e.World = s.world.Name()
		e.Attempts = s.attempts
		e.LoadFaults = s.loadFaults
		e.MoveFaults = s.moveFaults
		e.DurationMS = now.Sub(s.started).Milliseconds()
	}
	if loc != nil {
		e.Pos = [3]float64{loc.Pos.X(), loc.Pos.Y(), loc.Pos.Z()}
	}
	c.recorder.RecordPlacement(e)
}
