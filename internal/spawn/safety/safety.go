package safety

import wq "voxelspawn.ai/internal/spawn/worldquery"

var hazards = map[wq.BlockID]struct{}{
	wq.Lava:         {},
	wq.Fire:         {},
	wq.Campfire:     {},
	wq.SoulCampfire: {},
	wq.MagmaBlock:   {},
	wq.Cactus:       {},
	wq.PowderSnow:   {},
}

// Liquids and powder snow never count as headroom even when the host reports
// them passable.
var notAiry = map[wq.BlockID]struct{}{
	wq.Water:      {},
	wq.Lava:       {},
	wq.PowderSnow: {},
}

func IsHazard(b wq.BlockID) bool {
	_, ok := hazards[b]
	return ok
}

// Classifier decides standability of a column. The unsafe set is never
// mutated after construction.
type Classifier struct {
	materials wq.Materials
	unsafe    map[wq.BlockID]struct{}
}

func NewClassifier(m wq.Materials, unsafe map[wq.BlockID]struct{}) Classifier {
	return Classifier{materials: m, unsafe: unsafe}
}

func (c Classifier) SafeGround(b wq.BlockID) bool {
	if !c.materials.IsSolid(b) {
		return false
	}
	if _, ok := c.unsafe[b]; ok {
		return false
	}
	return !IsHazard(b)
}

func (c Classifier) Airy(b wq.BlockID) bool {
	if b != wq.Air && !c.materials.IsPassable(b) {
		return false
	}
	_, bad := notAiry[b]
	return !bad
}

func (c Classifier) Safe(ground, feet, head wq.BlockID) bool {
	return c.SafeGround(ground) && c.Airy(feet) && c.Airy(head)
}

// ScanColumn walks down from the surface at (x, z) and returns the highest
// safe ground y. The start is clamped to [min, max-2] and the bottom layer is
// never used as ground.
func (c Classifier) ScanColumn(r wq.Region, x, z int) (int, bool) {
	minY, maxY := r.MinHeight(), r.MaxHeight()
	y := r.HighestBlockY(x, z)
	if y > maxY-2 {
		y = maxY - 2
	}
	if y < minY {
		y = minY
	}
	for ; y > minY; y-- {
		if !c.SafeGround(r.Block(x, y, z)) {
			continue
		}
		if c.Airy(r.Block(x, y+1, z)) && c.Airy(r.Block(x, y+2, z)) {
			return y, true
		}
	}
	return 0, false
}
