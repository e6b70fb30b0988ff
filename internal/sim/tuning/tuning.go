package tuning

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

type Tuning struct {
	WorldName string `yaml:"world_name"`
	Seed      int64  `yaml:"seed"`
	MinHeight int    `yaml:"min_height"`
	MaxHeight int    `yaml:"max_height"`
	SeaLevel  int    `yaml:"sea_level"`

	RegionShift int `yaml:"region_shift"`
	TickRateHz  int `yaml:"tick_rate_hz"`

	ChunkLoadPerSec       float64 `yaml:"chunk_load_per_sec"`
	ChunkLoadBurst        int     `yaml:"chunk_load_burst"`
	LoaderWorkers         int     `yaml:"loader_workers"`
	ChunkLoadFailPermille int     `yaml:"chunk_load_fail_permille"`

	TeleportRejectPermille int `yaml:"teleport_reject_permille"`
}

func Defaults() Tuning {
	return Tuning{
		WorldName:       "overworld",
		Seed:            1337,
		MinHeight:       -64,
		MaxHeight:       320,
		SeaLevel:        62,
		RegionShift:     2,
		TickRateHz:      20,
		ChunkLoadPerSec: 400,
		ChunkLoadBurst:  64,
		LoaderWorkers:   4,
	}
}

func Load(path string) (Tuning, error) {
	t := Defaults()
	if strings.TrimSpace(path) == "" {
		return t, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	t.Normalize()
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}

func (t *Tuning) Normalize() {
	t.WorldName = strings.TrimSpace(t.WorldName)
	if t.WorldName == "" {
		t.WorldName = "overworld"
	}
	if t.TickRateHz <= 0 {
		t.TickRateHz = 20
	}
	if t.LoaderWorkers <= 0 {
		t.LoaderWorkers = 1
	}
	if t.ChunkLoadBurst <= 0 {
		t.ChunkLoadBurst = 1
	}
	if t.RegionShift < 0 {
		t.RegionShift = 0
	}
	t.ChunkLoadFailPermille = clampPermille(t.ChunkLoadFailPermille)
	t.TeleportRejectPermille = clampPermille(t.TeleportRejectPermille)
}

func (t Tuning) Validate() error {
	if t.MaxHeight-t.MinHeight < 4 {
		return fmt.Errorf("height range [%d,%d) too small", t.MinHeight, t.MaxHeight)
	}
	if t.SeaLevel < t.MinHeight || t.SeaLevel >= t.MaxHeight {
		return fmt.Errorf("sea_level %d outside height range", t.SeaLevel)
	}
	if t.RegionShift > 8 {
		return fmt.Errorf("region_shift %d too large", t.RegionShift)
	}
	return nil
}

func clampPermille(v int) int {
	if v < 0 {
		return 0
	}
	if v > 1000 {
		return 1000
	}
	return v
}
