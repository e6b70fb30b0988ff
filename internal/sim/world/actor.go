package world

import (
	"math"
	"strings"
	"sync/atomic"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/uuid"

	wq "voxelspawn.ai/internal/spawn/worldquery"
)

// Actor is a joined participant. Its position is written only by its own
// worker; other goroutines read it through Pos.
type Actor struct {
	w    *World
	id   uuid.UUID
	name string

	online atomic.Bool
	box    *mailbox
	pos    atomic.Pointer[mgl64.Vec3]
	moves  atomic.Uint64
}

func (a *Actor) ID() uuid.UUID   { return a.id }
func (a *Actor) Name() string    { return a.name }
func (a *Actor) Online() bool    { return a.online.Load() }
func (a *Actor) World() wq.World { return a.w }
func (a *Actor) Moves() uint64   { return a.moves.Load() }

func (a *Actor) Pos() mgl64.Vec3 {
	if p := a.pos.Load(); p != nil {
		return *p
	}
	return mgl64.Vec3{}
}

// Exec runs task on the actor's worker after delayTicks world ticks. An
// accepted task always runs, even if the actor leaves before it is due.
func (a *Actor) Exec(delayTicks int, task func(wq.ActorTx)) bool {
	run := func() { task(actorTx{a: a}) }
	if delayTicks <= 0 {
		return a.box.post(run)
	}
	return a.box.postAfter(time.Duration(delayTicks)*a.w.tickInterval(), run)
}

type actorTx struct {
	a *Actor
}

// Teleport completes on the global worker. The move is refused when the target
// belongs to another world, the actor has left, the chunk cannot be loaded, or
// the injected rejection rate fires.
func (tx actorTx) Teleport(loc wq.Location, done func(bool)) {
	a, w := tx.a, tx.a.w
	reply := func(ok bool) {
		if ok {
			w.metrics.teleports.Add(1)
		} else {
			w.metrics.teleportRejects.Add(1)
		}
		w.ExecGlobal(func() { done(ok) })
	}

	if target, ok := loc.World.(*World); !ok || target != w || !a.Online() {
		reply(false)
		return
	}
	if w.rejectRoll() < w.cfg.TeleportRejectPermille {
		reply(false)
		return
	}
	pos := wq.ChunkPosAt(int(math.Floor(loc.Pos.X())), int(math.Floor(loc.Pos.Z())))
	w.LoadChunk(pos, func(err error) {
		if err != nil {
			reply(false)
			return
		}
		posted := a.box.post(func() {
			if !a.Online() {
				reply(false)
				return
			}
			p := loc.Pos
			a.pos.Store(&p)
			a.moves.Add(1)
			reply(true)
		})
		if !posted {
			reply(false)
		}
	})
}

// Join brings name online. firstJoin is true when the world has never seen the
// name before; returning names keep their id.
func (w *World) Join(name string) (a *Actor, firstJoin bool, err error) {
	name = strings.TrimSpace(name)
	if name == "" {
		name = "actor"
	}
	if w.closed.Load() {
		return nil, false, ErrClosed
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	// shutdown stores closed before it copies the roster under mu, so an actor
	// added here after that copy would never be left.
	if w.closed.Load() {
		return nil, false, ErrClosed
	}
	if _, ok := w.byName[name]; ok {
		return nil, false, ErrAlreadyOnline
	}
	id, seen := w.known[name]
	if !seen {
		id = uuid.New()
		w.known[name] = id
	}
	a = &Actor{w: w, id: id, name: name, box: newMailbox()}
	if p, ok := w.lastPos[id]; ok {
		a.pos.Store(&p)
	}
	a.online.Store(true)
	w.actors[id] = a
	w.byName[name] = a

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		a.box.run(func(n int) { w.metrics.actorTasks.Add(uint64(n)) })
	}()
	w.logger.Printf("join name=%s id=%s first=%v", name, id, !seen)
	return a, !seen, nil
}

// Leave takes a offline and retires its worker once already accepted tasks
// have run.
func (w *World) Leave(a *Actor) {
	if a == nil || !a.online.CompareAndSwap(true, false) {
		return
	}
	a.box.close()
	w.mu.Lock()
	if p := a.pos.Load(); p != nil {
		w.lastPos[a.id] = *p
	}
	delete(w.actors, a.id)
	if w.byName[a.name] == a {
		delete(w.byName, a.name)
	}
	w.mu.Unlock()
	w.logger.Printf("leave name=%s id=%s", a.name, a.id)
}

func (w *World) Actor(id uuid.UUID) (*Actor, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	a, ok := w.actors[id]
	return a, ok
}

func (w *World) OnlineCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.actors)
}
