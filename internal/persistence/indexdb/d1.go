package indexdb

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"voxelspawn.ai/internal/sim/catalogs"
	"voxelspawn.ai/internal/sim/tuning"
	"voxelspawn.ai/internal/spawn/config"
	"voxelspawn.ai/internal/spawn/placement"
)

// D1Config points the index at a remote HTTP ingest endpoint that accepts
// batched JSON events (a Cloudflare D1 worker in production).
type D1Config struct {
	Endpoint      string
	Token         string
	WorldID       string
	BatchSize     int
	FlushInterval time.Duration
	HTTPTimeout   time.Duration
	// MaxRetained bounds how many unsent events survive failed flushes.
	MaxRetained int
	Logger      *log.Logger
}

type D1Index struct {
	cfg        D1Config
	httpClient *http.Client

	ch   chan d1Event
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool

	queueDropped  atomic.Uint64
	retainDropped atomic.Uint64
	flushFail     atomic.Uint64
	sent          atomic.Uint64
}

type D1Stats struct {
	QueueDepth         int    `json:"queue_depth"`
	QueueCapacity      int    `json:"queue_capacity"`
	QueueDroppedTotal  uint64 `json:"queue_dropped_total"`
	RetainDroppedTotal uint64 `json:"retain_dropped_total"`
	FlushFailTotal     uint64 `json:"flush_fail_total"`
	SentTotal          uint64 `json:"sent_total"`
}

type d1Event struct {
	Kind    string `json:"kind"`
	WorldID string `json:"world_id"`
	Payload any    `json:"payload"`
}

type d1ConfigPayload struct {
	RecordedAt      string   `json:"recorded_at"`
	Source          string   `json:"source"`
	Radius          int      `json:"radius"`
	MaxAttempts     int      `json:"max_attempts"`
	CooldownSeconds int      `json:"cooldown_seconds"`
	UnsafeBlocks    []string `json:"unsafe_blocks"`
}

type d1CatalogPayload struct {
	Name      string `json:"name"`
	Digest    string `json:"digest"`
	JSON      string `json:"json"`
	UpdatedAt string `json:"updated_at"`
}

func OpenD1(cfg D1Config) (*D1Index, error) {
	cfg.Endpoint = strings.TrimSpace(cfg.Endpoint)
	cfg.WorldID = strings.TrimSpace(cfg.WorldID)
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("empty d1 ingest endpoint")
	}
	if cfg.WorldID == "" {
		return nil, fmt.Errorf("empty world id")
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 128
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = 500 * time.Millisecond
	}
	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = 10 * time.Second
	}
	if cfg.MaxRetained <= 0 {
		cfg.MaxRetained = 16 * cfg.BatchSize
	}

	d := &D1Index{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: cfg.HTTPTimeout,
		},
		ch: make(chan d1Event, 32768),
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.loop()
	}()

	return d, nil
}

func (d *D1Index) Close() error {
	if d == nil {
		return nil
	}
	d.once.Do(func() {
		d.closed.Store(true)
		close(d.ch)
		d.wg.Wait()
	})
	return nil
}

func (d *D1Index) RecordPlacement(e placement.Entry) {
	d.enqueue(d1Event{Kind: "placement", WorldID: d.cfg.WorldID, Payload: e})
}

func (d *D1Index) RecordConfig(source string, cfg *config.Config) error {
	if cfg == nil {
		return nil
	}
	d.enqueue(d1Event{Kind: "config", WorldID: d.cfg.WorldID, Payload: d1ConfigPayload{
		RecordedAt:      time.Now().UTC().Format(time.RFC3339Nano),
		Source:          source,
		Radius:          cfg.Radius,
		MaxAttempts:     cfg.MaxAttempts,
		CooldownSeconds: cfg.CooldownSeconds,
		UnsafeBlocks:    cfg.SortedUnsafeBlocks(),
	}})
	return nil
}

func (d *D1Index) UpsertCatalogs(configDir string, cats *catalogs.Catalogs, tune tuning.Tuning) error {
	if d == nil || d.closed.Load() || cats == nil {
		return nil
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)

	type row struct {
		name   string
		digest string
		data   []byte
	}
	rows := make([]row, 0, 3)
	if configDir != "" {
		if b, err := os.ReadFile(filepath.Join(configDir, "blocks.json")); err == nil {
			rows = append(rows, row{name: "blocks_defs", digest: cats.Blocks.DefsDigest, data: b})
		}
	}
	if b, err := json.Marshal(cats.Blocks.Palette); err == nil && len(b) > 0 {
		rows = append(rows, row{name: "blocks_palette", digest: cats.Blocks.PaletteDigest, data: b})
	}
	digest, b := tuningDigest(tune)
	rows = append(rows, row{name: "tuning", digest: digest, data: b})

	for _, r := range rows {
		if r.name == "" || r.digest == "" || len(r.data) == 0 {
			continue
		}
		d.enqueue(d1Event{Kind: "catalog", WorldID: d.cfg.WorldID, Payload: d1CatalogPayload{
			Name:      r.name,
			Digest:    r.digest,
			JSON:      string(r.data),
			UpdatedAt: now,
		}})
	}
	return nil
}

func (d *D1Index) Stats() D1Stats {
	return D1Stats{
		QueueDepth:         len(d.ch),
		QueueCapacity:      cap(d.ch),
		QueueDroppedTotal:  d.queueDropped.Load(),
		RetainDroppedTotal: d.retainDropped.Load(),
		FlushFailTotal:     d.flushFail.Load(),
		SentTotal:          d.sent.Load(),
	}
}

func (d *D1Index) enqueue(ev d1Event) {
	if d == nil || d.closed.Load() {
		return
	}
	select {
	case d.ch <- ev:
	default:
		d.queueDropped.Add(1)
		d.printf("d1 index queue full; drop kind=%s world=%s", ev.Kind, ev.WorldID)
	}
}

func (d *D1Index) loop() {
	ticker := time.NewTicker(d.cfg.FlushInterval)
	defer ticker.Stop()

	batch := make([]d1Event, 0, d.cfg.BatchSize)
	flush := func() {
		if len(batch) == 0 {
			return
		}
		if err := d.sendBatch(batch); err != nil {
			d.flushFail.Add(1)
			d.printf("d1 index flush failed batch=%d err=%v", len(batch), err)
			// Keep the batch for the next tick, oldest events first out.
			if over := len(batch) - d.cfg.MaxRetained; over > 0 {
				d.retainDropped.Add(uint64(over))
				batch = append(batch[:0], batch[over:]...)
			}
			return
		}
		d.sent.Add(uint64(len(batch)))
		batch = batch[:0]
	}

	for {
		select {
		case ev, ok := <-d.ch:
			if !ok {
				flush()
				return
			}
			batch = append(batch, ev)
			if len(batch) >= d.cfg.BatchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}

func (d *D1Index) sendBatch(events []d1Event) error {
	if len(events) == 0 {
		return nil
	}

	body := struct {
		Events []d1Event `json:"events"`
	}{Events: events}
	buf, err := json.Marshal(body)
	if err != nil {
		return err
	}

	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		req, err := http.NewRequest(http.MethodPost, d.cfg.Endpoint, bytes.NewReader(buf))
		if err != nil {
			return err
		}
		req.Header.Set("content-type", "application/json")
		if d.cfg.Token != "" {
			req.Header.Set("x-vs-index-token", d.cfg.Token)
		}

		resp, err := d.httpClient.Do(req)
		if err == nil {
			respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 16*1024))
			_ = resp.Body.Close()
			if resp.StatusCode >= 200 && resp.StatusCode < 300 {
				return nil
			}
			err = fmt.Errorf("status=%d body=%s", resp.StatusCode, strings.TrimSpace(string(respBody)))
		}
		lastErr = err
		time.Sleep(time.Duration(100*(1<<attempt)) * time.Millisecond)
	}
	return lastErr
}

func (d *D1Index) printf(format string, args ...any) {
	if d != nil && d.cfg.Logger != nil {
		d.cfg.Logger.Printf(format, args...)
	}
}
