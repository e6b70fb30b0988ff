package main

import (
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strings"

	"voxelspawn.ai/internal/persistence/indexdb"
	persistlog "voxelspawn.ai/internal/persistence/log"
	"voxelspawn.ai/internal/persistence/r2s3"
	"voxelspawn.ai/internal/persistence/snapshot"
	"voxelspawn.ai/internal/sim/world"
	"voxelspawn.ai/internal/spawn/service"
	"voxelspawn.ai/internal/transport/ws"
)

type serverRuntime struct {
	world        *world.World
	worldDir     string
	spawns       *service.Service
	ws           *ws.Server
	placementLog *persistlog.PlacementLogger
	index        indexdb.Index
	mirror       *r2s3.Mirror
}

type spawnState struct {
	Radius          int      `json:"radius"`
	MaxAttempts     int      `json:"max_attempts"`
	CooldownSeconds int      `json:"cooldown_seconds"`
	UnsafeBlocks    []string `json:"unsafe_blocks"`
	CooldownEntries int      `json:"cooldown_entries"`
}

func (rt *serverRuntime) spawnState() spawnState {
	cfg := rt.spawns.Config()
	return spawnState{
		Radius:          cfg.Radius,
		MaxAttempts:     cfg.MaxAttempts,
		CooldownSeconds: cfg.CooldownSeconds,
		UnsafeBlocks:    cfg.SortedUnsafeBlocks(),
		CooldownEntries: rt.spawns.Cooldowns().Len(),
	}
}

func (rt *serverRuntime) stateHandler(rw http.ResponseWriter, r *http.Request) {
	if !isLoopbackRemote(r.RemoteAddr) {
		http.Error(rw, "forbidden", http.StatusForbidden)
		return
	}
	rw.Header().Set("Content-Type", "application/json")
	resp := struct {
		World   string        `json:"world"`
		Tick    uint64        `json:"tick"`
		Metrics world.Metrics `json:"metrics"`
		Spawn   spawnState    `json:"spawn"`
		Index   any           `json:"index,omitempty"`
		Mirror  *r2s3.Stats   `json:"snapshot_mirror,omitempty"`
	}{
		World:   rt.world.Name(),
		Tick:    rt.world.CurrentTick(),
		Metrics: rt.world.Metrics(),
		Spawn:   rt.spawnState(),
	}
	if rt.mirror != nil {
		st := rt.mirror.Stats()
		resp.Mirror = &st
	}
	switch idx := rt.index.(type) {
	case *indexdb.SQLiteIndex:
		resp.Index = idx.Stats()
	case *indexdb.D1Index:
		resp.Index = idx.Stats()
	}
	_ = json.NewEncoder(rw).Encode(resp)
}

func (rt *serverRuntime) reloadHandler(rw http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		rw.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if !isLoopbackRemote(r.RemoteAddr) {
		http.Error(rw, "forbidden", http.StatusForbidden)
		return
	}
	rw.Header().Set("Content-Type", "application/json")
	if _, err := rt.spawns.Reload(); err != nil {
		rw.WriteHeader(http.StatusUnprocessableEntity)
		_ = json.NewEncoder(rw).Encode(map[string]any{"ok": false, "error": err.Error()})
		return
	}
	_ = json.NewEncoder(rw).Encode(map[string]any{
		"ok":      true,
		"message": service.MsgConfigReloaded,
		"spawn":   rt.spawnState(),
	})
}

func (rt *serverRuntime) writeSnapshot() (string, error) {
	snap := rt.world.ExportSnapshot()
	path := snapshot.PathFor(rt.worldDir, snap.Header.Tick)
	if err := snapshot.WriteSnapshot(path, snap); err != nil {
		return "", err
	}
	rt.mirror.Enqueue(path)
	return path, nil
}

func (rt *serverRuntime) snapshotHandler(rw http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		rw.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if !isLoopbackRemote(r.RemoteAddr) {
		http.Error(rw, "forbidden", http.StatusForbidden)
		return
	}
	rw.Header().Set("Content-Type", "application/json")
	path, err := rt.writeSnapshot()
	if err != nil {
		rw.WriteHeader(http.StatusServiceUnavailable)
		_ = json.NewEncoder(rw).Encode(map[string]any{"ok": false, "error": err.Error()})
		return
	}
	_ = json.NewEncoder(rw).Encode(map[string]any{"ok": true, "path": path})
}

func (rt *serverRuntime) metricsHandler(rw http.ResponseWriter, r *http.Request) {
	rw.Header().Set("Content-Type", "text/plain; version=0.0.4")
	m := rt.world.Metrics()
	wid := m.World

	gauge := func(name, help string, v any) {
		fmt.Fprintf(rw, "# HELP %s %s\n", name, help)
		fmt.Fprintf(rw, "# TYPE %s gauge\n", name)
		fmt.Fprintf(rw, "%s{world=%q} %v\n", name, wid, v)
	}
	counter := func(name, help string, v uint64) {
		fmt.Fprintf(rw, "# HELP %s %s\n", name, help)
		fmt.Fprintf(rw, "# TYPE %s counter\n", name)
		fmt.Fprintf(rw, "%s{world=%q} %d\n", name, wid, v)
	}

	// Minimal Prometheus exposition format.
	gauge("voxelspawn_world_tick", "Current world tick.", m.Tick)
	gauge("voxelspawn_world_actors", "Actors currently online.", m.Online)
	gauge("voxelspawn_world_regions", "Region workers started.", m.Regions)

	fmt.Fprintf(rw, "# HELP voxelspawn_chunk_load_queue Pending chunk loads by priority.\n")
	fmt.Fprintf(rw, "# TYPE voxelspawn_chunk_load_queue gauge\n")
	fmt.Fprintf(rw, "voxelspawn_chunk_load_queue{world=%q,queue=%q} %d\n", wid, "urgent", m.LoadQueueUrgent)
	fmt.Fprintf(rw, "voxelspawn_chunk_load_queue{world=%q,queue=%q} %d\n", wid, "normal", m.LoadQueueNormal)

	counter("voxelspawn_chunk_load_requests_total", "Chunk load requests.", m.LoadRequests)
	counter("voxelspawn_chunks_loaded_total", "Chunks generated and installed.", m.ChunksLoaded)
	counter("voxelspawn_chunk_load_failures_total", "Failed chunk loads.", m.LoadFailures)
	counter("voxelspawn_teleports_total", "Accepted teleports.", m.Teleports)
	counter("voxelspawn_teleport_rejects_total", "Rejected teleports.", m.TeleportRejects)

	fmt.Fprintf(rw, "# HELP voxelspawn_worker_tasks_total Tasks run per worker kind.\n")
	fmt.Fprintf(rw, "# TYPE voxelspawn_worker_tasks_total counter\n")
	fmt.Fprintf(rw, "voxelspawn_worker_tasks_total{world=%q,worker=%q} %d\n", wid, "global", m.GlobalTasks)
	fmt.Fprintf(rw, "voxelspawn_worker_tasks_total{world=%q,worker=%q} %d\n", wid, "region", m.RegionTasks)
	fmt.Fprintf(rw, "voxelspawn_worker_tasks_total{world=%q,worker=%q} %d\n", wid, "actor", m.ActorTasks)

	gauge("voxelspawn_cooldown_entries", "Actors inside the spawn cooldown window.", rt.spawns.Cooldowns().Len())
	if rt.placementLog != nil {
		counter("voxelspawn_placement_log_errors_total", "Placement log write errors.", rt.placementLog.Errors())
	}
	if rt.mirror != nil {
		st := rt.mirror.Stats()
		counter("voxelspawn_snapshot_mirror_uploads_total", "Snapshots copied to object storage.", st.Uploaded)
		counter("voxelspawn_snapshot_mirror_failures_total", "Snapshot uploads that gave up.", st.Failed)
		counter("voxelspawn_snapshot_mirror_dropped_total", "Snapshots skipped because the upload queue was full.", st.Dropped)
	}
	if rt.ws != nil {
		counter("voxelspawn_ws_dropped_total", "Outbound ws messages dropped for slow clients.", rt.ws.Dropped())
	}
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
