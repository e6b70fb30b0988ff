package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	persistlog "voxelspawn.ai/internal/persistence/log"
	"voxelspawn.ai/internal/persistence/snapshot"
	"voxelspawn.ai/internal/sim/catalogs"
	"voxelspawn.ai/internal/sim/tuning"
	"voxelspawn.ai/internal/sim/world"
	"voxelspawn.ai/internal/spawn/placement"
	"voxelspawn.ai/internal/spawn/service"
	"voxelspawn.ai/internal/transport/ws"
)

func main() {
	var (
		addr       = flag.String("addr", ":8080", "http listen address")
		configDir  = flag.String("configs", "./configs", "config directory")
		dataDir    = flag.String("data", "./data", "runtime data directory")
		tuningPath = flag.String("tuning", "", "path to tuning.yaml (default: <configs>/tuning.yaml)")
		spawnPath  = flag.String("spawn_config", "", "path to spawn.yaml (default: <configs>/spawn.yaml)")
		seed       = flag.Int64("seed", 0, "override the tuning seed (0 keeps tuning.yaml)")
		preload    = flag.Int("preload_chunks", 4, "chunk radius around the origin to generate at startup")
		disableDB  = flag.Bool("disable_db", false, "disable indexing (placements + config + catalogs)")

		snapPath   = flag.String("snapshot", "", "path to roster snapshot to load (optional)")
		loadLatest = flag.Bool("load_latest_snapshot", true, "load latest snapshot from data dir if present (when -snapshot is empty)")
		snapEvery  = flag.Duration("snapshot_every", 5*time.Minute, "roster snapshot interval (0 disables periodic snapshots)")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	cats, err := catalogs.Load(*configDir)
	if err != nil {
		logger.Fatalf("load catalogs: %v", err)
	}

	tp := strings.TrimSpace(*tuningPath)
	if tp == "" {
		tp = filepath.Join(*configDir, "tuning.yaml")
	}
	tune, err := tuning.Load(tp)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Fatalf("load tuning: %v", err)
		}
		logger.Printf("tuning not found (%s); using defaults", tp)
		tune = tuning.Defaults()
	}
	if *seed != 0 {
		tune.Seed = *seed
	}

	worldDir := filepath.Join(*dataDir, "worlds", tune.WorldName)
	_ = os.MkdirAll(worldDir, 0o755)

	// Optional read-model index; the JSONL logs stay the source of truth.
	idx, err := openRuntimeIndex(worldDir, tune.WorldName, *disableDB, logger)
	if err != nil {
		logger.Fatalf("open index backend: %v", err)
	}
	if idx != nil {
		defer idx.Close()
		if err := idx.UpsertCatalogs(*configDir, cats, tune); err != nil {
			logger.Printf("index backend: upsert catalogs: %v", err)
		}
	}

	placementLog := persistlog.NewPlacementLogger(worldDir)
	auditLog := persistlog.NewAuditLogger(worldDir)
	defer placementLog.Close()
	defer auditLog.Close()

	rec := multiRecorder{
		placements: []placement.Recorder{placementLog},
		configs:    []configRecorder{auditLog},
	}
	if idx != nil {
		rec.placements = append(rec.placements, idx)
		rec.configs = append(rec.configs, idx)
	}

	w, err := world.New(world.ConfigFromTuning(tune), cats, log.New(os.Stdout, "[world] ", log.LstdFlags|log.Lmicroseconds))
	if err != nil {
		logger.Fatalf("world: %v", err)
	}

	snapshotToLoad := strings.TrimSpace(*snapPath)
	if snapshotToLoad == "" && *loadLatest {
		snapshotToLoad = snapshot.Latest(worldDir)
	}
	if snapshotToLoad != "" {
		snap, err := snapshot.ReadSnapshot(snapshotToLoad)
		if err != nil {
			logger.Fatalf("read snapshot: %v", err)
		}
		if err := w.ImportSnapshot(snap); err != nil {
			logger.Fatalf("import snapshot: %v", err)
		}
		logger.Printf("resumed from snapshot=%s tick=%d actors=%d", filepath.Base(snapshotToLoad), snap.Header.Tick, len(snap.Actors))
	}

	sp := strings.TrimSpace(*spawnPath)
	if sp == "" {
		sp = filepath.Join(*configDir, "spawn.yaml")
	}
	spawns, err := service.New(service.Options{
		ConfigPath:      sp,
		Known:           cats.Blocks.Known,
		Recorder:        rec,
		ConfigRecorders: []service.ConfigRecorder{rec},
		Logger:          log.New(os.Stdout, "[spawn] ", log.LstdFlags|log.Lmicroseconds),
	})
	if err != nil {
		logger.Fatalf("spawn config: %v", err)
	}
	defer spawns.Close()

	ctx, cancel := signalContext()
	defer cancel()

	go func() {
		if err := w.Run(ctx); err != nil && err != context.Canceled {
			logger.Printf("world stopped: %v", err)
		}
	}()
	if *preload > 0 {
		logger.Printf("preloading %d chunks", w.Preload(*preload))
	}

	mirror, err := openSnapshotMirror(worldDir, tune.WorldName, log.New(os.Stdout, "[mirror] ", log.LstdFlags|log.Lmicroseconds))
	if err != nil {
		logger.Fatalf("%v", err)
	}

	wsSrv := ws.NewServer(w, spawns, log.New(os.Stdout, "[ws] ", log.LstdFlags|log.Lmicroseconds))
	rt := &serverRuntime{world: w, worldDir: worldDir, spawns: spawns, ws: wsSrv, placementLog: placementLog, index: idx, mirror: mirror}

	// Closing the world leaves every actor, so the final snapshot sees their
	// last positions.
	var snapWG sync.WaitGroup
	defer func() {
		cancel()
		snapWG.Wait()
		w.Close()
		if _, err := rt.writeSnapshot(); err != nil {
			logger.Printf("final snapshot: %v", err)
		}
		mirror.Close()
	}()
	if *snapEvery > 0 {
		snapWG.Add(1)
		go func() {
			defer snapWG.Done()
			t := time.NewTicker(*snapEvery)
			defer t.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-t.C:
					if _, err := rt.writeSnapshot(); err != nil {
						logger.Printf("snapshot write: %v", err)
					}
				}
			}
		}()
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/metrics", rt.metricsHandler)

	if envBool("VS_ENABLE_ADMIN_HTTP", defaultEnableAdminHTTP()) {
		// Local-only admin endpoints.
		mux.HandleFunc("/admin/v1/state", rt.stateHandler)
		mux.HandleFunc("/admin/v1/spawn/reload", rt.reloadHandler)
		mux.HandleFunc("/admin/v1/snapshot", rt.snapshotHandler)
	} else {
		logger.Printf("admin endpoints disabled (VS_ENABLE_ADMIN_HTTP=false)")
	}
	if envBool("VS_ENABLE_PPROF_HTTP", false) {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	}
	mux.HandleFunc("/v1/ws", wsSrv.Handler())

	srv := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Printf("listening on %s world=%s seed=%d", *addr, tune.WorldName, tune.Seed)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("ListenAndServe: %v", err)
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}

func defaultEnableAdminHTTP() bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv("DEPLOY_ENV"))) {
	case "staging", "production":
		return false
	default:
		return true
	}
}
