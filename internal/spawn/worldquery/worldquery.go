// Package worldquery is the surface the spawn search consumes from a host world.
//
// Block reads are only valid through a Region handed to an ExecRegion task, and
// actor mutation is only valid through an ActorTx handed to an Actor.Exec task.
// Hosts guarantee those tasks run on the worker that owns the chunk or actor.
package worldquery

import (
	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/uuid"
)

// BlockID is the upper-case block identifier used by catalogs and config ("LAVA", "GRASS").
type BlockID string

const (
	Air          BlockID = "AIR"
	Water        BlockID = "WATER"
	Lava         BlockID = "LAVA"
	Fire         BlockID = "FIRE"
	Campfire     BlockID = "CAMPFIRE"
	SoulCampfire BlockID = "SOUL_CAMPFIRE"
	MagmaBlock   BlockID = "MAGMA_BLOCK"
	Cactus       BlockID = "CACTUS"
	PowderSnow   BlockID = "POWDER_SNOW"
)

const ChunkSize = 16

type ChunkPos struct {
	X int
	Z int
}

// ChunkPosAt returns the chunk containing block column (x, z). Arithmetic shift
// floors toward negative infinity, so x=-1 lands in chunk -1.
func ChunkPosAt(x, z int) ChunkPos {
	return ChunkPos{X: x >> 4, Z: z >> 4}
}

type Materials interface {
	IsSolid(b BlockID) bool
	IsPassable(b BlockID) bool
}

// Region is the read capability a region worker hands to its tasks. It must
// not be retained past the task.
type Region interface {
	MinHeight() int
	MaxHeight() int
	HighestBlockY(x, z int) int
	Block(x, y, z int) BlockID
}

type World interface {
	Materials

	Name() string

	// LoadChunk requests an urgent asynchronous load; done runs once, off the
	// caller's stack, with a nil error once the chunk is resident.
	LoadChunk(pos ChunkPos, done func(err error))
	// ExecRegion runs task on the worker owning pos.
	ExecRegion(pos ChunkPos, task func(r Region))
	// ExecGlobal runs task on the neutral worker.
	ExecGlobal(task func())
}

type Location struct {
	World World
	Pos   mgl64.Vec3
}

type ActorTx interface {
	// Teleport moves the actor; done reports whether the move was applied.
	Teleport(loc Location, done func(ok bool))
}

type Actor interface {
	ID() uuid.UUID
	// Online is safe to call from any goroutine.
	Online() bool
	World() World
	// Exec schedules task on the actor's own worker after delayTicks. It
	// returns false when the actor's worker is retired and the task will
	// never run.
	Exec(delayTicks int, task func(tx ActorTx)) bool
}
