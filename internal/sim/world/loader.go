package world

import (
	"context"
	"math/rand/v2"
	"sync"

	"golang.org/x/time/rate"

	"voxelspawn.ai/internal/sim/terrain/store"
	wq "voxelspawn.ai/internal/spawn/worldquery"
)

// loader generates chunks on a small goroutine pool. Urgent requests always
// go before background ones, and all generation is paced by limiter.
type loader struct {
	w       *World
	limiter *rate.Limiter
	workers int

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	urgent  []wq.ChunkPos
	normal  []wq.ChunkPos
	waiting map[wq.ChunkPos][]func(error)
	closed  bool
	wake    chan struct{}

	failRoll func() int
}

func newLoader(w *World) *loader {
	limit := rate.Inf
	if w.cfg.ChunkLoadPerSec > 0 {
		limit = rate.Limit(w.cfg.ChunkLoadPerSec)
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &loader{
		w:        w,
		limiter:  rate.NewLimiter(limit, w.cfg.ChunkLoadBurst),
		workers:  w.cfg.LoaderWorkers,
		ctx:      ctx,
		cancel:   cancel,
		waiting:  map[wq.ChunkPos][]func(error){},
		wake:     make(chan struct{}, 1),
		failRoll: func() int { return rand.IntN(1000) },
	}
}

func (l *loader) start(wg *sync.WaitGroup) {
	for i := 0; i < l.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l.run()
		}()
	}
}

func (l *loader) signal() {
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// request queues pos. Requests for a chunk already in flight are coalesced;
// an urgent request for a queued background chunk promotes it. done may be
// nil. It returns false after close.
func (l *loader) request(pos wq.ChunkPos, urgent bool, done func(error)) bool {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return false
	}
	waiters, inFlight := l.waiting[pos]
	if done != nil {
		waiters = append(waiters, done)
	}
	l.waiting[pos] = waiters
	switch {
	case !inFlight && urgent:
		l.urgent = append(l.urgent, pos)
	case !inFlight:
		l.normal = append(l.normal, pos)
	case urgent:
		for i, p := range l.normal {
			if p == pos {
				l.normal = append(l.normal[:i], l.normal[i+1:]...)
				l.urgent = append(l.urgent, pos)
				break
			}
		}
	}
	l.mu.Unlock()
	l.signal()
	return true
}

func (l *loader) next() (wq.ChunkPos, bool, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return wq.ChunkPos{}, false, false
	}
	var pos wq.ChunkPos
	switch {
	case len(l.urgent) > 0:
		pos, l.urgent = l.urgent[0], l.urgent[1:]
	case len(l.normal) > 0:
		pos, l.normal = l.normal[0], l.normal[1:]
	default:
		return pos, false, true
	}
	if len(l.urgent)+len(l.normal) > 0 {
		// Hand the wake token on so another worker picks up the rest.
		l.signal()
	}
	return pos, true, true
}

func (l *loader) run() {
	for {
		pos, ok, alive := l.next()
		if !alive {
			return
		}
		if !ok {
			select {
			case <-l.wake:
			case <-l.ctx.Done():
				return
			}
			continue
		}
		if err := l.limiter.Wait(l.ctx); err != nil {
			l.finish(pos, ErrClosed)
			return
		}
		l.load(pos)
	}
}

func (l *loader) load(pos wq.ChunkPos) {
	if l.failRoll() < l.w.cfg.ChunkLoadFailPermille {
		l.w.metrics.loadFailures.Add(1)
		l.finish(pos, ErrChunkLoad)
		return
	}
	ch := store.Generate(l.w.gen, pos)
	l.w.ExecRegion(pos, func(wq.Region) {
		l.w.install(ch)
		l.finish(pos, nil)
	})
}

// finish hands the result to every waiter on the global worker.
func (l *loader) finish(pos wq.ChunkPos, err error) {
	l.mu.Lock()
	waiters := l.waiting[pos]
	delete(l.waiting, pos)
	l.mu.Unlock()
	for _, done := range waiters {
		l.w.ExecGlobal(func() { done(err) })
	}
}

// close fails every queued request with ErrClosed.
func (l *loader) close() {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	l.closed = true
	pending := append(append([]wq.ChunkPos{}, l.urgent...), l.normal...)
	l.urgent, l.normal = nil, nil
	l.mu.Unlock()
	l.cancel()

	for _, pos := range pending {
		l.finish(pos, ErrClosed)
	}
}

func (l *loader) queued() (urgent, normal int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.urgent), len(l.normal)
}
