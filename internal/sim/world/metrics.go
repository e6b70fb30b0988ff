package world

import "sync/atomic"

type counters struct {
	loadRequests    atomic.Uint64
	chunksLoaded    atomic.Uint64
	loadFailures    atomic.Uint64
	teleports       atomic.Uint64
	teleportRejects atomic.Uint64
	globalTasks     atomic.Uint64
	regionTasks     atomic.Uint64
	actorTasks      atomic.Uint64
}

type Metrics struct {
	World           string `json:"world"`
	Tick            uint64 `json:"tick"`
	Online          int    `json:"online"`
	Regions         int    `json:"regions"`
	LoadRequests    uint64 `json:"load_requests"`
	ChunksLoaded    uint64 `json:"chunks_loaded"`
	LoadFailures    uint64 `json:"load_failures"`
	LoadQueueUrgent int    `json:"load_queue_urgent"`
	LoadQueueNormal int    `json:"load_queue_normal"`
	Teleports       uint64 `json:"teleports"`
	TeleportRejects uint64 `json:"teleport_rejects"`
	GlobalTasks     uint64 `json:"global_tasks"`
	RegionTasks     uint64 `json:"region_tasks"`
	ActorTasks      uint64 `json:"actor_tasks"`
}

func (w *World) Metrics() Metrics {
	w.mu.Lock()
	online, regions := len(w.actors), len(w.regions)
	w.mu.Unlock()
	urgent, normal := w.loader.queued()
	return Metrics{
		World:           w.cfg.Name,
		Tick:            w.tick.Load(),
		Online:          online,
		Regions:         regions,
		LoadRequests:    w.metrics.loadRequests.Load(),
		ChunksLoaded:    w.metrics.chunksLoaded.Load(),
		LoadFailures:    w.metrics.loadFailures.Load(),
		LoadQueueUrgent: urgent,
		LoadQueueNormal: normal,
		Teleports:       w.metrics.teleports.Load(),
		TeleportRejects: w.metrics.teleportRejects.Load(),
		GlobalTasks:     w.metrics.globalTasks.Load(),
		RegionTasks:     w.metrics.regionTasks.Load(),
		ActorTasks:      w.metrics.actorTasks.Load(),
	}
}
