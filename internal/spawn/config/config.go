package config

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"gopkg.in/yaml.v3"

	wq "voxelspawn.ai/internal/spawn/worldquery"
)

const (
	DefaultRadius          = 300
	DefaultMaxAttempts     = 75
	DefaultCooldownSeconds = 5

	MinRadius = 16
)

// File is the on-disk shape of spawn.yaml.
type File struct {
	SpawnRadius      int      `yaml:"spawn_radius"`
	MaxSpawnAttempts int      `yaml:"max_spawn_attempts"`
	SpawnCooldown    int      `yaml:"spawn_cooldown"`
	UnsafeBlocks     []string `yaml:"unsafe_blocks"`
}

// Config is the normalized, immutable search configuration. Share it by
// pointer; never mutate a Config after Normalize returned it.
type Config struct {
	Radius          int
	MaxAttempts     int
	CooldownSeconds int
	UnsafeBlocks    map[wq.BlockID]struct{}
}

func DefaultUnsafeBlocks() map[wq.BlockID]struct{} {
	return map[wq.BlockID]struct{}{
		wq.MagmaBlock: {},
		wq.Cactus:     {},
	}
}

func Defaults() *Config {
	return &Config{
		Radius:          DefaultRadius,
		MaxAttempts:     DefaultMaxAttempts,
		CooldownSeconds: DefaultCooldownSeconds,
		UnsafeBlocks:    DefaultUnsafeBlocks(),
	}
}

func (c *Config) Cooldown() time.Duration {
	return time.Duration(c.CooldownSeconds) * time.Second
}

func (c *Config) IsUnsafe(b wq.BlockID) bool {
	_, ok := c.UnsafeBlocks[b]
	return ok
}

// SortedUnsafeBlocks is used for stable logging and digests.
func (c *Config) SortedUnsafeBlocks() []string {
	out := make([]string, 0, len(c.UnsafeBlocks))
	for b := range c.UnsafeBlocks {
		out = append(out, string(b))
	}
	sort.Strings(out)
	return out
}

// Normalize clamps numeric fields and resolves block names. Names that known
// rejects are skipped; if nothing survives the default unsafe set is used.
func (f File) Normalize(known func(wq.BlockID) bool) *Config {
	cfg := &Config{
		Radius:          max(MinRadius, f.SpawnRadius),
		MaxAttempts:     max(1, f.MaxSpawnAttempts),
		CooldownSeconds: max(0, f.SpawnCooldown),
		UnsafeBlocks:    map[wq.BlockID]struct{}{},
	}
	for _, s := range f.UnsafeBlocks {
		id := wq.BlockID(strings.ToUpper(strings.TrimSpace(s)))
		if id == "" {
			continue
		}
		if known != nil && !known(id) {
			continue
		}
		cfg.UnsafeBlocks[id] = struct{}{}
	}
	if len(cfg.UnsafeBlocks) == 0 {
		cfg.UnsafeBlocks = DefaultUnsafeBlocks()
	}
	return cfg
}

func defaultFile() File {
	return File{
		SpawnRadius:      DefaultRadius,
		MaxSpawnAttempts: DefaultMaxAttempts,
		SpawnCooldown:    DefaultCooldownSeconds,
	}
}

func Parse(raw []byte, known func(wq.BlockID) bool) (*Config, error) {
	f := defaultFile()
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("spawn.yaml: %w", err)
	}
	return f.Normalize(known), nil
}

func Load(path string, known func(wq.BlockID) bool) (*Config, error) {
	if strings.TrimSpace(path) == "" {
		return defaultFile().Normalize(known), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(raw, known)
}

// Store holds the active Config. Reload swaps the pointer, so readers see
// either the previous or the next snapshot in full.
type Store struct {
	cur atomic.Pointer[Config]
}

func NewStore(cfg *Config) *Store {
	if cfg == nil {
		cfg = Defaults()
	}
	s := &Store{}
	s.cur.Store(cfg)
	return s
}

func (s *Store) Load() *Config {
	return s.cur.Load()
}

func (s *Store) Reload(cfg *Config) {
	if cfg == nil {
		return
	}
	s.cur.Store(cfg)
}
