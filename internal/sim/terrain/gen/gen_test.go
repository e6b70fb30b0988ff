package gen

import (
	"path/filepath"
	"testing"

	"voxelspawn.ai/internal/sim/catalogs"
)

func testGenerator(t *testing.T, seed int64) (*Generator, *catalogs.BlockCatalog) {
	t.Helper()
	c, err := catalogs.Load(filepath.Join("..", "..", "..", "..", "configs"))
	if err != nil {
		t.Fatalf("catalogs: %v", err)
	}
	p := Params{Seed: seed, MinHeight: -64, MaxHeight: 320, SeaLevel: 62}
	return New(p, PaletteFrom(&c.Blocks)), &c.Blocks
}

func TestColumnDeterministic(t *testing.T) {
	g, _ := testGenerator(t, 42)
	a := make([]uint16, 384)
	b := make([]uint16, 384)
	for _, xz := range [][2]int{{0, 0}, {-1, -1}, {1000, -2000}, {-513, 77}} {
		g.Column(xz[0], xz[1], a)
		g.Column(xz[0], xz[1], b)
		for i := range a {
			if a[i] != b[i] {
				t.Fatalf("column %v differs at %d", xz, i)
			}
		}
	}
}

func TestColumnLayers(t *testing.T) {
	g, cat := testGenerator(t, 7)
	col := make([]uint16, 384)
	submerged, dry := 0, 0
	for x := -200; x < 200; x += 13 {
		for z := -200; z < 200; z += 11 {
			g.Column(x, z, col)
			if cat.Name(col[0]) != "BEDROCK" {
				t.Fatalf("(%d,%d) bottom=%s", x, z, cat.Name(col[0]))
			}
			h := g.SurfaceHeight(x, z)
			if h < -63 || h > 316 {
				t.Fatalf("height %d out of range", h)
			}
			if h < 62 {
				submerged++
				if got := cat.Name(col[62+64]); got != "WATER" {
					t.Fatalf("(%d,%d) sea level block %s want WATER", x, z, got)
				}
				continue
			}
			dry++
			if top := cat.Name(col[len(col)-1]); top != "AIR" {
				t.Fatalf("(%d,%d) top=%s", x, z, top)
			}
		}
	}
	if submerged == 0 || dry == 0 {
		t.Fatalf("expected both land and sea, got submerged=%d dry=%d", submerged, dry)
	}
}

func TestBiomeStableWithinRegion(t *testing.T) {
	g, _ := testGenerator(t, 1)
	if g.Biome(0, 0) != g.Biome(95, 95) {
		t.Fatalf("biome should be constant inside a region")
	}
	seen := map[Biome]bool{}
	for rx := -20; rx < 20; rx++ {
		for rz := -20; rz < 20; rz++ {
			seen[g.Biome(rx*96, rz*96)] = true
		}
	}
	for _, b := range []Biome{Plains, Desert, Snowy, Volcanic} {
		if !seen[b] {
			t.Fatalf("biome %s never generated", b)
		}
	}
}

func TestFloorDiv(t *testing.T) {
	cases := []struct{ a, b, q, m int }{
		{0, 16, 0, 0},
		{-1, 16, -1, 15},
		{-16, 16, -1, 0},
		{-17, 16, -2, 15},
		{31, 16, 1, 15},
	}
	for _, c := range cases {
		if q := floorDiv(c.a, c.b); q != c.q {
			t.Fatalf("floorDiv(%d,%d)=%d want %d", c.a, c.b, q, c.q)
		}
		if m := mod(c.a, c.b); m != c.m {
			t.Fatalf("mod(%d,%d)=%d want %d", c.a, c.b, m, c.m)
		}
	}
}
