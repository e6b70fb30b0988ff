package placement

import (
	"errors"

	"github.com/google/uuid"

	wq "voxelspawn.ai/internal/spawn/worldquery"
)

// fakeWorld queues every task on a single FIFO so tests decide exactly when
// each suspension point resumes.
type fakeWorld struct {
	minY, maxY int
	column     func(x, y, z int) wq.BlockID

	inline bool
	queue  []func()

	loads   []wq.ChunkPos
	regions int
	globals int
	touches int

	loadErr func(n int) error
}

var errLoad = errors.New("chunk load failed")

func newFlatWorld(groundY int, surface wq.BlockID) *fakeWorld {
	return &fakeWorld{
		minY: -64,
		maxY: 320,
		column: func(x, y, z int) wq.BlockID {
			switch {
			case y < groundY:
				return "STONE"
			case y == groundY:
				return surface
			default:
				return wq.Air
			}
		},
	}
}

func (w *fakeWorld) push(task func()) {
	if w.inline {
		task()
		return
	}
	w.queue = append(w.queue, task)
}

// drain runs queued tasks until the queue is empty. It returns the number of
// tasks run.
func (w *fakeWorld) drain() int {
	n := 0
	for len(w.queue) > 0 && n < 100_000 {
		task := w.queue[0]
		w.queue = w.queue[1:]
		task()
		n++
	}
	return n
}

func (w *fakeWorld) IsSolid(b wq.BlockID) bool {
	switch b {
	case wq.Air, wq.Water, wq.Lava, wq.Fire, wq.PowderSnow, "GRASS_PLANT":
		return false
	}
	return true
}

func (w *fakeWorld) IsPassable(b wq.BlockID) bool {
	return !w.IsSolid(b)
}

func (w *fakeWorld) Name() string { return "overworld" }

func (w *fakeWorld) LoadChunk(pos wq.ChunkPos, done func(error)) {
	w.touches++
	w.loads = append(w.loads, pos)
	n := len(w.loads)
	w.push(func() {
		var err error
		if w.loadErr != nil {
			err = w.loadErr(n)
		}
		done(err)
	})
}

func (w *fakeWorld) ExecRegion(pos wq.ChunkPos, task func(wq.Region)) {
	w.touches++
	w.regions++
	w.push(func() { task(fakeRegion{w}) })
}

func (w *fakeWorld) ExecGlobal(task func()) {
	w.touches++
	w.globals++
	w.push(task)
}

type fakeRegion struct{ w *fakeWorld }

func (r fakeRegion) MinHeight() int { return r.w.minY }
func (r fakeRegion) MaxHeight() int { return r.w.maxY }

func (r fakeRegion) HighestBlockY(x, z int) int {
	for y := r.w.maxY - 1; y >= r.w.minY; y-- {
		if r.w.column(x, y, z) != wq.Air {
			return y
		}
	}
	return r.w.minY
}

func (r fakeRegion) Block(x, y, z int) wq.BlockID {
	if y < r.w.minY || y >= r.w.maxY {
		return wq.Air
	}
	return r.w.column(x, y, z)
}

type fakeActor struct {
	id      uuid.UUID
	world   *fakeWorld
	online  bool
	retired bool

	// reject decides whether the n-th teleport (1-based) is refused.
	reject   func(n int) bool
	moves    []wq.Location
	teleJobs int
}

func newFakeActor(w *fakeWorld) *fakeActor {
	return &fakeActor{id: uuid.New(), world: w, online: true}
}

func (a *fakeActor) ID() uuid.UUID { return a.id }
func (a *fakeActor) Online() bool  { return a.online }

func (a *fakeActor) World() wq.World {
	a.world.touches++
	return a.world
}

func (a *fakeActor) Exec(delayTicks int, task func(wq.ActorTx)) bool {
	if a.retired {
		return false
	}
	a.world.push(func() { task(fakeTx{a}) })
	return true
}

type fakeTx struct{ a *fakeActor }

func (tx fakeTx) Teleport(loc wq.Location, done func(bool)) {
	a := tx.a
	a.teleJobs++
	n := a.teleJobs
	a.world.push(func() {
		if a.reject != nil && a.reject(n) {
			done(false)
			return
		}
		a.moves = append(a.moves, loc)
		done(true)
	})
}

type recordingRecorder struct {
	entries []Entry
}

func (r *recordingRecorder) RecordPlacement(e Entry) {
	r.entries = append(r.entries, e)
}
