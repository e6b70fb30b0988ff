package catalogs

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	wq "voxelspawn.ai/internal/spawn/worldquery"
)

type Catalogs struct {
	Blocks BlockCatalog
}

type BlockCatalog struct {
	Palette       []string
	Index         map[string]uint16
	Defs          map[string]BlockDef
	PaletteDigest string
	DefsDigest    string
}

type BlockDef struct {
	ID       string `json:"id"`
	Solid    bool   `json:"solid"`
	Passable bool   `json:"passable"`
}

func Load(configDir string) (*Catalogs, error) {
	var c Catalogs
	if err := loadBlocks(filepath.Join(configDir, "blocks.json"), &c.Blocks); err != nil {
		return nil, err
	}
	return &c, nil
}

// FromDefs builds a catalog without touching disk. Used by tests and tools.
func FromDefs(defs []BlockDef) (*Catalogs, error) {
	raw, err := json.Marshal(defs)
	if err != nil {
		return nil, err
	}
	var c Catalogs
	if err := parseBlocks(raw, &c.Blocks); err != nil {
		return nil, err
	}
	return &c, nil
}

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

func loadBlocks(path string, out *BlockCatalog) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return parseBlocks(raw, out)
}

func parseBlocks(raw []byte, out *BlockCatalog) error {
	out.DefsDigest = sha256Hex(raw)

	var defs []BlockDef
	if err := json.Unmarshal(raw, &defs); err != nil {
		return fmt.Errorf("blocks.json: %w", err)
	}
	out.Defs = map[string]BlockDef{}
	for _, d := range defs {
		d.ID = strings.ToUpper(strings.TrimSpace(d.ID))
		if d.ID == "" {
			return fmt.Errorf("blocks.json: empty id")
		}
		if d.Solid && d.Passable {
			return fmt.Errorf("blocks.json: %s is both solid and passable", d.ID)
		}
		out.Defs[d.ID] = d
	}

	ids := make([]string, 0, len(out.Defs))
	for id := range out.Defs {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	// AIR is always palette id 0 so zeroed chunks read as empty.
	if _, ok := out.Defs[string(wq.Air)]; !ok {
		return fmt.Errorf("blocks.json: missing AIR")
	}
	ids = append([]string{string(wq.Air)}, filterOut(ids, string(wq.Air))...)

	out.Palette = ids
	out.Index = make(map[string]uint16, len(ids))
	for i, id := range ids {
		out.Index[id] = uint16(i)
	}
	palJSON, _ := json.Marshal(ids)
	out.PaletteDigest = sha256Hex(palJSON)
	return nil
}

func filterOut(in []string, remove string) []string {
	out := make([]string, 0, len(in))
	for _, v := range in {
		if v != remove {
			out = append(out, v)
		}
	}
	return out
}

func (c *BlockCatalog) Known(b wq.BlockID) bool {
	_, ok := c.Defs[string(b)]
	return ok
}

func (c *BlockCatalog) IsSolid(b wq.BlockID) bool {
	return c.Defs[string(b)].Solid
}

func (c *BlockCatalog) IsPassable(b wq.BlockID) bool {
	if b == wq.Air {
		return true
	}
	return c.Defs[string(b)].Passable
}

// ID returns the palette id for b, or false when the block is not in the
// catalog.
func (c *BlockCatalog) ID(b wq.BlockID) (uint16, bool) {
	id, ok := c.Index[string(b)]
	return id, ok
}

// MustID panics on unknown blocks; only for generator setup where a missing
// core block is a broken catalog.
func (c *BlockCatalog) MustID(b wq.BlockID) uint16 {
	id, ok := c.Index[string(b)]
	if !ok {
		panic(fmt.Sprintf("catalogs: block %s missing from palette", b))
	}
	return id
}

func (c *BlockCatalog) Name(id uint16) wq.BlockID {
	if int(id) >= len(c.Palette) {
		return wq.Air
	}
	return wq.BlockID(c.Palette[id])
}
