// Package service wires the spawn search to the events a host raises: first
// join, respawn, the spawn command and config reload.
package service

import (
	"fmt"
	"log"
	"time"

	"voxelspawn.ai/internal/spawn/config"
	"voxelspawn.ai/internal/spawn/cooldown"
	"voxelspawn.ai/internal/spawn/placement"
	wq "voxelspawn.ai/internal/spawn/worldquery"
)

const (
	MsgNoSafeSpot     = "could not find a safe spawn :("
	MsgConfigReloaded = "config reloaded"
)

func CooldownMessage(remaining int) string {
	return fmt.Sprintf("wait %d s", remaining)
}

// ConfigRecorder is told about every config snapshot that becomes active.
type ConfigRecorder interface {
	RecordConfig(source string, cfg *config.Config) error
}

type Options struct {
	ConfigPath string
	// Known filters unsafe_blocks names; nil accepts all.
	Known func(wq.BlockID) bool
	// Initial is the startup config. When nil it is loaded from ConfigPath.
	Initial *config.Config

	Resolver        *placement.Resolver
	Recorder        placement.Recorder
	ConfigRecorders []ConfigRecorder
	Logger          *log.Logger
	Now             func() time.Time
}

type Service struct {
	cfgPath string
	known   func(wq.BlockID) bool

	store     *config.Store
	cooldowns *cooldown.Tracker
	coord     *placement.Coordinator

	configRecorders []ConfigRecorder
	logger          *log.Logger
	now             func() time.Time
}

func New(opts Options) (*Service, error) {
	cfg := opts.Initial
	if cfg == nil {
		var err error
		cfg, err = config.Load(opts.ConfigPath, opts.Known)
		if err != nil {
			return nil, err
		}
	}
	if opts.Logger == nil {
		opts.Logger = log.New(log.Writer(), "[spawn] ", log.LstdFlags|log.Lmicroseconds)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	store := config.NewStore(cfg)
	coord := placement.NewCoordinator(store, opts.Resolver)
	if opts.Recorder != nil {
		coord.SetRecorder(opts.Recorder)
	}
	s := &Service{
		cfgPath:         opts.ConfigPath,
		known:           opts.Known,
		store:           store,
		coord:           coord,
		configRecorders: opts.ConfigRecorders,
		logger:          opts.Logger,
		now:             opts.Now,
	}
	s.cooldowns = cooldown.NewTracker(func() time.Duration { return s.store.Load().Cooldown() })
	s.recordConfig("startup", cfg)
	s.logger.Printf("spawn config radius=%d attempts=%d cooldown=%ds unsafe=%v",
		cfg.Radius, cfg.MaxAttempts, cfg.CooldownSeconds, cfg.SortedUnsafeBlocks())
	return s, nil
}

func (s *Service) Config() *config.Config { return s.store.Load() }

func (s *Service) Cooldowns() *cooldown.Tracker { return s.cooldowns }

func (s *Service) Coordinator() *placement.Coordinator { return s.coord }

// OnJoin places actors joining for the first time. It returns false without
// calling onResult for returning actors.
func (s *Service) OnJoin(a wq.Actor, firstJoin bool, onResult func(ok bool)) bool {
	if !firstJoin {
		return false
	}
	s.coord.PlaceActor(a, func(ok bool) {
		if !ok {
			s.logger.Printf("join placement failed actor=%s", a.ID())
		}
		if onResult != nil {
			onResult(ok)
		}
	})
	return true
}

// OnRespawn re-places an actor one tick after a death respawn, on the actor's
// own worker. Bed and anchor respawns are left alone. onResult may be nil.
func (s *Service) OnRespawn(a wq.Actor, bedSpawn bool, onResult func(ok bool)) bool {
	if bedSpawn {
		return false
	}
	done := func(ok bool) {
		if onResult != nil {
			onResult(ok)
		}
	}
	accepted := a.Exec(1, func(wq.ActorTx) {
		s.coord.PlaceActor(a, done)
	})
	if !accepted {
		done(false)
	}
	return accepted
}

// Spawn is the player-issued spawn command. A denied verdict starts no
// search and does not call onResult.
func (s *Service) Spawn(a wq.Actor, onResult func(ok bool)) cooldown.Verdict {
	v := s.cooldowns.CheckAndStamp(a.ID(), s.now())
	if !v.Allowed {
		return v
	}
	s.coord.PlaceActor(a, onResult)
	return v
}

// Reload re-reads the config file and swaps it in. Chains already running
// keep the snapshot they started with.
func (s *Service) Reload() (*config.Config, error) {
	cfg, err := config.Load(s.cfgPath, s.known)
	if err != nil {
		s.logger.Printf("spawn config reload failed: %v", err)
		return nil, err
	}
	s.store.Reload(cfg)
	s.recordConfig("reload", cfg)
	s.logger.Printf("spawn config reloaded radius=%d attempts=%d cooldown=%ds unsafe=%v",
		cfg.Radius, cfg.MaxAttempts, cfg.CooldownSeconds, cfg.SortedUnsafeBlocks())
	return cfg, nil
}

// Close drops all cooldown state.
func (s *Service) Close() {
	s.cooldowns.Clear()
}

func (s *Service) recordConfig(source string, cfg *config.Config) {
	for _, r := range s.configRecorders {
		if err := r.RecordConfig(source, cfg); err != nil {
			s.logger.Printf("record config: %v", err)
		}
	}
}
