package store

import (
	"voxelspawn.ai/internal/sim/terrain/gen"
	wq "voxelspawn.ai/internal/spawn/worldquery"
)

type Chunk struct {
	Pos    wq.ChunkPos
	MinY   int
	Height int
	Blocks []uint16 // len = 16*16*Height; x fastest, then z, then y

	highest [wq.ChunkSize * wq.ChunkSize]int
}

func NewChunk(pos wq.ChunkPos, minY, maxY int) *Chunk {
	h := maxY - minY
	return &Chunk{
		Pos:    pos,
		MinY:   minY,
		Height: h,
		Blocks: make([]uint16, wq.ChunkSize*wq.ChunkSize*h),
	}
}

// Generate builds a fully populated chunk. It touches no shared state, so
// loader goroutines call it concurrently.
func Generate(g *gen.Generator, pos wq.ChunkPos) *Chunk {
	p := g.Params()
	ch := NewChunk(pos, p.MinHeight, p.MaxHeight)
	col := make([]uint16, ch.Height)
	for z := 0; z < wq.ChunkSize; z++ {
		for x := 0; x < wq.ChunkSize; x++ {
			g.Column(pos.X*wq.ChunkSize+x, pos.Z*wq.ChunkSize+z, col)
			for i, b := range col {
				ch.Blocks[ch.index(x, i, z)] = b
			}
		}
	}
	ch.recomputeHighest()
	return ch
}

func (c *Chunk) index(lx, ly, lz int) int {
	return lx + lz*wq.ChunkSize + ly*wq.ChunkSize*wq.ChunkSize
}

// Get takes chunk-local x/z and world y. Out-of-range y reads as 0 (AIR).
func (c *Chunk) Get(lx, y, lz int) uint16 {
	ly := y - c.MinY
	if ly < 0 || ly >= c.Height {
		return 0
	}
	return c.Blocks[c.index(lx, ly, lz)]
}

// HighestY returns the world y of the topmost non-air block in the column,
// or MinY when the column is empty.
func (c *Chunk) HighestY(lx, lz int) int {
	return c.highest[lx+lz*wq.ChunkSize]
}

func (c *Chunk) recomputeHighest() {
	for z := 0; z < wq.ChunkSize; z++ {
		for x := 0; x < wq.ChunkSize; x++ {
			c.updateHighest(x, z)
		}
	}
}

func (c *Chunk) updateHighest(lx, lz int) {
	top := c.MinY
	for ly := c.Height - 1; ly >= 0; ly-- {
		if c.Blocks[c.index(lx, ly, lz)] != 0 {
			top = c.MinY + ly
			break
		}
	}
	c.highest[lx+lz*wq.ChunkSize] = top
}

// Store holds resident chunks for one region worker. Not safe for concurrent
// use; only the owning worker touches it.
type Store struct {
	chunks map[wq.ChunkPos]*Chunk
}

func New() *Store {
	return &Store{chunks: map[wq.ChunkPos]*Chunk{}}
}

func (s *Store) Get(pos wq.ChunkPos) (*Chunk, bool) {
	ch, ok := s.chunks[pos]
	return ch, ok
}

// Put installs ch unless a chunk already exists at its position; it returns
// the resident chunk either way.
func (s *Store) Put(ch *Chunk) *Chunk {
	if cur, ok := s.chunks[ch.Pos]; ok {
		return cur
	}
	s.chunks[ch.Pos] = ch
	return ch
}

func (s *Store) Len() int { return len(s.chunks) }

// Local splits world column coordinates into a chunk position and in-chunk
// offsets.
func Local(x, z int) (wq.ChunkPos, int, int) {
	return wq.ChunkPosAt(x, z), x & (wq.ChunkSize - 1), z & (wq.ChunkSize - 1)
}
