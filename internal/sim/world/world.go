package world

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/uuid"

	"voxelspawn.ai/internal/sim/catalogs"
	"voxelspawn.ai/internal/sim/terrain/gen"
	"voxelspawn.ai/internal/sim/terrain/store"
	"voxelspawn.ai/internal/sim/tuning"
	wq "voxelspawn.ai/internal/spawn/worldquery"
)

var (
	ErrClosed        = errors.New("world closed")
	ErrAlreadyOnline = errors.New("actor already online")
	ErrChunkLoad     = errors.New("chunk load failed")
)

type WorldConfig struct {
	Name      string
	Seed      int64
	MinHeight int
	MaxHeight int
	SeaLevel  int

	RegionShift int
	TickRateHz  int

	ChunkLoadPerSec       float64
	ChunkLoadBurst        int
	LoaderWorkers         int
	ChunkLoadFailPermille int

	TeleportRejectPermille int
}

func ConfigFromTuning(t tuning.Tuning) WorldConfig {
	return WorldConfig{
		Name:                   t.WorldName,
		Seed:                   t.Seed,
		MinHeight:              t.MinHeight,
		MaxHeight:              t.MaxHeight,
		SeaLevel:               t.SeaLevel,
		RegionShift:            t.RegionShift,
		TickRateHz:             t.TickRateHz,
		ChunkLoadPerSec:        t.ChunkLoadPerSec,
		ChunkLoadBurst:         t.ChunkLoadBurst,
		LoaderWorkers:          t.LoaderWorkers,
		ChunkLoadFailPermille:  t.ChunkLoadFailPermille,
		TeleportRejectPermille: t.TeleportRejectPermille,
	}
}

func (c *WorldConfig) applyDefaults() {
	if c.Name == "" {
		c.Name = "overworld"
	}
	if c.TickRateHz <= 0 {
		c.TickRateHz = 20
	}
	if c.LoaderWorkers <= 0 {
		c.LoaderWorkers = 1
	}
	if c.ChunkLoadBurst <= 0 {
		c.ChunkLoadBurst = 1
	}
	if c.MaxHeight <= c.MinHeight {
		c.MinHeight, c.MaxHeight = -64, 320
	}
}

type regionKey struct {
	X int
	Z int
}

type region struct {
	key    regionKey
	box    *mailbox
	chunks *store.Store
}

// World is an in-memory host for the spawn search. Chunk data is partitioned
// into regions, each owned by its own worker goroutine; cross-region work
// goes through the global worker.
type World struct {
	cfg    WorldConfig
	cats   *catalogs.Catalogs
	gen    *gen.Generator
	logger *log.Logger

	global *mailbox
	loader *loader

	mu      sync.Mutex
	regions map[regionKey]*region
	actors  map[uuid.UUID]*Actor
	byName  map[string]*Actor
	known   map[string]uuid.UUID
	lastPos map[uuid.UUID]mgl64.Vec3

	tick    atomic.Uint64
	metrics counters

	wg           sync.WaitGroup
	stop         chan struct{}
	stopOnce     sync.Once
	shutdownOnce sync.Once
	closed       atomic.Bool

	// rejectRoll returns [0,1000); replaced in tests.
	rejectRoll func() int
}

func New(cfg WorldConfig, cats *catalogs.Catalogs, logger *log.Logger) (*World, error) {
	cfg.applyDefaults()
	if cats == nil {
		return nil, fmt.Errorf("world: nil catalogs")
	}
	for _, b := range []wq.BlockID{"BEDROCK", "STONE", "DIRT", "GRASS", "TALL_GRASS", "SAND", "SANDSTONE", "GRAVEL", "SNOW_BLOCK",
		wq.PowderSnow, wq.Water, wq.Lava, wq.MagmaBlock, wq.Fire, wq.Cactus, wq.Campfire} {
		if !cats.Blocks.Known(b) {
			return nil, fmt.Errorf("missing block id in palette: %s", b)
		}
	}
	if logger == nil {
		logger = log.New(log.Writer(), "[world] ", log.LstdFlags|log.Lmicroseconds)
	}

	g := gen.New(gen.Params{
		Seed:      cfg.Seed,
		MinHeight: cfg.MinHeight,
		MaxHeight: cfg.MaxHeight,
		SeaLevel:  cfg.SeaLevel,
	}, gen.PaletteFrom(&cats.Blocks))

	w := &World{
		cfg:        cfg,
		cats:       cats,
		gen:        g,
		logger:     logger,
		global:     newMailbox(),
		regions:    map[regionKey]*region{},
		actors:     map[uuid.UUID]*Actor{},
		byName:     map[string]*Actor{},
		known:      map[string]uuid.UUID{},
		lastPos:    map[uuid.UUID]mgl64.Vec3{},
		stop:       make(chan struct{}),
		rejectRoll: func() int { return rand.IntN(1000) },
	}
	w.loader = newLoader(w)

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.global.run(func(n int) { w.metrics.globalTasks.Add(uint64(n)) })
	}()
	w.loader.start(&w.wg)
	return w, nil
}

func (w *World) Config() WorldConfig { return w.cfg }

func (w *World) Catalogs() *catalogs.Catalogs { return w.cats }

func (w *World) Name() string { return w.cfg.Name }

func (w *World) IsSolid(b wq.BlockID) bool { return w.cats.Blocks.IsSolid(b) }

func (w *World) IsPassable(b wq.BlockID) bool { return w.cats.Blocks.IsPassable(b) }

func (w *World) CurrentTick() uint64 { return w.tick.Load() }

func (w *World) tickInterval() time.Duration {
	return time.Second / time.Duration(w.cfg.TickRateHz)
}

// Run advances the tick counter until ctx is done or Close is called, then
// shuts the workers down.
func (w *World) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.tickInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.shutdown()
			return ctx.Err()
		case <-w.stop:
			w.shutdown()
			return nil
		case <-ticker.C:
			w.tick.Add(1)
		}
	}
}

// Close stops Run and waits for every worker to drain.
func (w *World) Close() {
	w.stopOnce.Do(func() { close(w.stop) })
	w.shutdown()
}

func (w *World) shutdown() {
	w.shutdownOnce.Do(func() {
		w.closed.Store(true)

		w.mu.Lock()
		actors := make([]*Actor, 0, len(w.actors))
		for _, a := range w.actors {
			actors = append(actors, a)
		}
		w.mu.Unlock()
		for _, a := range actors {
			w.Leave(a)
		}

		w.loader.close()
		w.global.close()
		w.mu.Lock()
		for _, r := range w.regions {
			r.box.close()
		}
		w.mu.Unlock()
		w.wg.Wait()
		w.logger.Printf("world %s stopped at tick %d", w.cfg.Name, w.tick.Load())
	})
}

// ExecGlobal runs task on the global worker. Once the world has shut down
// the task runs on the caller so in-flight chains can still finish.
func (w *World) ExecGlobal(task func()) {
	if !w.global.post(task) {
		task()
	}
}

func (w *World) regionKeyFor(pos wq.ChunkPos) regionKey {
	return regionKey{X: pos.X >> w.cfg.RegionShift, Z: pos.Z >> w.cfg.RegionShift}
}

func (w *World) region(pos wq.ChunkPos) *region {
	key := w.regionKeyFor(pos)
	w.mu.Lock()
	defer w.mu.Unlock()
	if r, ok := w.regions[key]; ok {
		return r
	}
	r := &region{key: key, box: newMailbox(), chunks: store.New()}
	w.regions[key] = r
	if w.closed.Load() {
		r.box.close()
		return r
	}
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		r.box.run(func(n int) { w.metrics.regionTasks.Add(uint64(n)) })
	}()
	return r
}

func (w *World) ExecRegion(pos wq.ChunkPos, task func(wq.Region)) {
	r := w.region(pos)
	run := func() { task(regionView{w: w, r: r}) }
	if !r.box.post(run) {
		run()
	}
}

// LoadChunk completes on the global worker once pos is resident.
func (w *World) LoadChunk(pos wq.ChunkPos, done func(error)) {
	w.metrics.loadRequests.Add(1)
	w.ExecRegion(pos, func(wq.Region) {
		r := w.region(pos)
		if _, ok := r.chunks.Get(pos); ok {
			w.ExecGlobal(func() { done(nil) })
			return
		}
		if !w.loader.request(pos, true, done) {
			w.ExecGlobal(func() { done(ErrClosed) })
		}
	})
}

// Preload queues background loads for every chunk within radius chunks of the
// origin.
func (w *World) Preload(radius int) int {
	n := 0
	for cz := -radius; cz <= radius; cz++ {
		for cx := -radius; cx <= radius; cx++ {
			pos := wq.ChunkPos{X: cx, Z: cz}
			w.ExecRegion(pos, func(wq.Region) {
				if _, ok := w.region(pos).chunks.Get(pos); ok {
					return
				}
				w.loader.request(pos, false, nil)
			})
			n++
		}
	}
	return n
}

func (w *World) install(ch *store.Chunk) {
	w.region(ch.Pos).chunks.Put(ch)
	w.metrics.chunksLoaded.Add(1)
}

type regionView struct {
	w *World
	r *region
}

func (v regionView) MinHeight() int { return v.w.cfg.MinHeight }
func (v regionView) MaxHeight() int { return v.w.cfg.MaxHeight }

func (v regionView) chunk(x, z int) (*store.Chunk, int, int, bool) {
	pos, lx, lz := store.Local(x, z)
	if v.w.regionKeyFor(pos) != v.r.key {
		return nil, 0, 0, false
	}
	ch, ok := v.r.chunks.Get(pos)
	return ch, lx, lz, ok
}

// HighestBlockY reads MinHeight for columns outside this region or not yet
// resident.
func (v regionView) HighestBlockY(x, z int) int {
	ch, lx, lz, ok := v.chunk(x, z)
	if !ok {
		return v.w.cfg.MinHeight
	}
	return ch.HighestY(lx, lz)
}

func (v regionView) Block(x, y, z int) wq.BlockID {
	ch, lx, lz, ok := v.chunk(x, z)
	if !ok {
		return wq.Air
	}
	return v.w.cats.Blocks.Name(ch.Get(lx, y, lz))
}
