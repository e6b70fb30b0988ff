// Package gen produces deterministic terrain columns from a seed.
package gen

import (
	"voxelspawn.ai/internal/sim/catalogs"
	wq "voxelspawn.ai/internal/spawn/worldquery"
)

type Biome string

const (
	Plains   Biome = "PLAINS"
	Desert   Biome = "DESERT"
	Snowy    Biome = "SNOWY"
	Volcanic Biome = "VOLCANIC"
)

type Params struct {
	Seed      int64
	MinHeight int
	MaxHeight int
	SeaLevel  int

	BiomeRegionSize int
}

// Palette ids for the blocks the generator places.
type Palette struct {
	Air        uint16
	Bedrock    uint16
	Stone      uint16
	Dirt       uint16
	Grass      uint16
	TallGrass  uint16
	Sand       uint16
	Sandstone  uint16
	Gravel     uint16
	SnowBlock  uint16
	PowderSnow uint16
	Water      uint16
	Lava       uint16
	Magma      uint16
	Fire       uint16
	Cactus     uint16
	Campfire   uint16
}

func PaletteFrom(c *catalogs.BlockCatalog) Palette {
	return Palette{
		Air:        c.MustID(wq.Air),
		Bedrock:    c.MustID("BEDROCK"),
		Stone:      c.MustID("STONE"),
		Dirt:       c.MustID("DIRT"),
		Grass:      c.MustID("GRASS"),
		TallGrass:  c.MustID("TALL_GRASS"),
		Sand:       c.MustID("SAND"),
		Sandstone:  c.MustID("SANDSTONE"),
		Gravel:     c.MustID("GRAVEL"),
		SnowBlock:  c.MustID("SNOW_BLOCK"),
		PowderSnow: c.MustID(wq.PowderSnow),
		Water:      c.MustID(wq.Water),
		Lava:       c.MustID(wq.Lava),
		Magma:      c.MustID(wq.MagmaBlock),
		Fire:       c.MustID(wq.Fire),
		Cactus:     c.MustID(wq.Cactus),
		Campfire:   c.MustID(wq.Campfire),
	}
}

type Generator struct {
	p   Params
	pal Palette
}

func New(p Params, pal Palette) *Generator {
	if p.BiomeRegionSize <= 0 {
		p.BiomeRegionSize = 96
	}
	return &Generator{p: p, pal: pal}
}

func (g *Generator) Params() Params { return g.p }

func (g *Generator) Biome(x, z int) Biome {
	rx := floorDiv(x, g.p.BiomeRegionSize)
	rz := floorDiv(z, g.p.BiomeRegionSize)
	switch hash2(g.p.Seed+7, rx, rz) % 10 {
	case 4, 5:
		return Desert
	case 6, 7:
		return Snowy
	case 8:
		return Volcanic
	default:
		return Plains
	}
}

// SurfaceHeight is the y of the topmost terrain block before decoration.
func (g *Generator) SurfaceHeight(x, z int) int {
	broad := valueNoise(g.p.Seed+11, x, z, 64)
	detail := valueNoise(g.p.Seed+12, x, z, 16)
	h := g.p.SeaLevel - 12 + int(broad*36+detail*6)
	if h < g.p.MinHeight+1 {
		h = g.p.MinHeight + 1
	}
	if h > g.p.MaxHeight-4 {
		h = g.p.MaxHeight - 4
	}
	return h
}

// Column fills out (len MaxHeight-MinHeight, index y-MinHeight) for (x, z).
func (g *Generator) Column(x, z int, out []uint16) {
	minY := g.p.MinHeight
	h := g.SurfaceHeight(x, z)
	biome := g.Biome(x, z)
	submerged := h < g.p.SeaLevel
	pal := g.pal

	set := func(y int, b uint16) {
		if i := y - minY; i >= 0 && i < len(out) {
			out[i] = b
		}
	}
	for i := range out {
		out[i] = pal.Air
	}

	for y := minY; y <= h; y++ {
		switch {
		case y == minY:
			set(y, pal.Bedrock)
		case y < h-3:
			set(y, pal.Stone)
		case y < h:
			set(y, g.subsoil(biome, submerged))
		default:
			set(y, g.surface(biome, submerged, x, z))
		}
	}

	if submerged {
		for y := h + 1; y <= g.p.SeaLevel; y++ {
			set(y, pal.Water)
		}
		return
	}

	switch biome {
	case Volcanic:
		if inCluster(g.p.Seed+301, x, z, 40, 5, 450) {
			set(h, pal.Lava)
			set(h-1, pal.Lava)
			return
		}
		if hash3(g.p.Seed+302, x, h+1, z)%1000 < 40 {
			set(h+1, pal.Fire)
		}
	case Desert:
		roll := hash3(g.p.Seed+401, x, h+1, z)
		if roll%1000 < 12 {
			tall := 1 + int((roll>>12)%3)
			for i := 1; i <= tall; i++ {
				set(h+i, pal.Cactus)
			}
		}
	case Snowy:
		if inCluster(g.p.Seed+501, x, z, 24, 3, 500) {
			set(h, pal.PowderSnow)
			set(h-1, pal.PowderSnow)
		}
	default:
		roll := hash3(g.p.Seed+601, x, h+1, z) % 1000
		switch {
		case roll < 3:
			set(h+1, pal.Campfire)
		case roll < 150:
			set(h+1, pal.TallGrass)
		}
	}
}

func (g *Generator) subsoil(b Biome, submerged bool) uint16 {
	switch {
	case submerged:
		return g.pal.Sand
	case b == Desert:
		return g.pal.Sandstone
	case b == Volcanic:
		return g.pal.Stone
	default:
		return g.pal.Dirt
	}
}

func (g *Generator) surface(b Biome, submerged bool, x, z int) uint16 {
	if submerged {
		if hash2(g.p.Seed+21, x, z)%4 == 0 {
			return g.pal.Gravel
		}
		return g.pal.Sand
	}
	switch b {
	case Desert:
		return g.pal.Sand
	case Snowy:
		return g.pal.SnowBlock
	case Volcanic:
		if hash2(g.p.Seed+22, x, z)%1000 < 350 {
			return g.pal.Magma
		}
		return g.pal.Stone
	default:
		return g.pal.Grass
	}
}
