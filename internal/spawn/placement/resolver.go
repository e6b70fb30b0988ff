package placement

import (
	"math/rand/v2"

	"github.com/go-gl/mathgl/mgl64"

	wq "voxelspawn.ai/internal/spawn/worldquery"
)

// Resolver finds a safe standing location for a Search. Every step runs as
// its own task on the worker that owns the data it touches.
type Resolver struct {
	intn func(n int) int
}

// NewResolver uses intn for sampling; nil selects math/rand/v2.
func NewResolver(intn func(n int) int) *Resolver {
	if intn == nil {
		intn = rand.IntN
	}
	return &Resolver{intn: intn}
}

// Sample returns a column uniformly distributed over [-radius, radius]².
func (r *Resolver) Sample(radius int) (x, z int) {
	span := 2*radius + 1
	return r.intn(span) - radius, r.intn(span) - radius
}

// Resolve runs one attempt of s and keeps going until found or notFound has
// been called. Neither callback is invoked on the caller's stack for attempts
// after the first.
func (r *Resolver) Resolve(s *Search, found func(wq.Location), notFound func(Outcome)) {
	if !s.actor.Online() {
		notFound(OutcomeOffline)
		return
	}
	if s.attempts >= s.cfg.MaxAttempts {
		notFound(OutcomeExhausted)
		return
	}
	s.attempts++

	x, z := r.Sample(s.cfg.Radius)
	pos := wq.ChunkPosAt(x, z)
	retry := func() {
		s.world.ExecGlobal(func() { r.Resolve(s, found, notFound) })
	}

	s.world.LoadChunk(pos, func(err error) {
		if err != nil {
			s.loadFaults++
			retry()
			return
		}
		s.world.ExecRegion(pos, func(reg wq.Region) {
			if !s.actor.Online() {
				notFound(OutcomeOffline)
				return
			}
			y, ok := s.classifier.ScanColumn(reg, x, z)
			if !ok {
				retry()
				return
			}
			found(wq.Location{
				World: s.world,
				Pos:   mgl64.Vec3{float64(x) + 0.5, float64(y + 1), float64(z) + 0.5},
			})
		})
	})
}
