package world

import (
	"fmt"
	"sort"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/uuid"

	"voxelspawn.ai/internal/persistence/snapshot"
)

// ExportSnapshot captures every name the world has seen. Online actors report
// their live position, offline ones the position they left at.
func (w *World) ExportSnapshot() snapshot.SnapshotV1 {
	w.mu.Lock()
	actors := make([]snapshot.ActorV1, 0, len(w.known))
	for name, id := range w.known {
		var p mgl64.Vec3
		if a, ok := w.byName[name]; ok {
			p = a.Pos()
		} else {
			p = w.lastPos[id]
		}
		actors = append(actors, snapshot.ActorV1{Name: name, ID: id.String(), Pos: [3]float64{p.X(), p.Y(), p.Z()}})
	}
	w.mu.Unlock()

	sort.Slice(actors, func(i, j int) bool { return actors[i].Name < actors[j].Name })
	return snapshot.SnapshotV1{
		Header: snapshot.Header{Version: snapshot.Version, World: w.cfg.Name, Tick: w.tick.Load()},
		Seed:   w.cfg.Seed,
		Actors: actors,
	}
}

// ImportSnapshot restores the roster. It must run before the first Join;
// names in the snapshot are no longer first joins.
func (w *World) ImportSnapshot(snap snapshot.SnapshotV1) error {
	if snap.Header.World != "" && snap.Header.World != w.cfg.Name {
		return fmt.Errorf("snapshot world mismatch: world=%s snap=%s", w.cfg.Name, snap.Header.World)
	}
	if snap.Seed != w.cfg.Seed {
		w.logger.Printf("snapshot seed %d differs from world seed %d; positions may be unsafe", snap.Seed, w.cfg.Seed)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.actors) > 0 {
		return fmt.Errorf("import snapshot: %d actors already online", len(w.actors))
	}
	for _, a := range snap.Actors {
		id, err := uuid.Parse(a.ID)
		if err != nil {
			return fmt.Errorf("import snapshot: actor %q: %w", a.Name, err)
		}
		w.known[a.Name] = id
		w.lastPos[id] = mgl64.Vec3{a.Pos[0], a.Pos[1], a.Pos[2]}
	}
	w.tick.Store(snap.Header.Tick)
	return nil
}
