package log

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/klauspost/compress/zstd"

	"voxelspawn.ai/internal/spawn/config"
	"voxelspawn.ai/internal/spawn/placement"
)

type JSONLZstdWriter struct {
	baseDir string
	prefix  string
	now     func() time.Time

	mu      sync.Mutex
	curHour string
	f       *os.File
	enc     *zstd.Encoder
	w       *bufio.Writer
}

func NewJSONLZstdWriter(baseDir, prefix string) *JSONLZstdWriter {
	return &JSONLZstdWriter{
		baseDir: baseDir,
		prefix:  prefix,
		now:     time.Now,
	}
}

func (w *JSONLZstdWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closeLocked()
}

func (w *JSONLZstdWriter) Write(v any) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	hour := w.now().UTC().Format("2006-01-02-15")
	if hour != w.curHour {
		if err := w.rotateLocked(hour); err != nil {
			return err
		}
	}

	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if _, err := w.w.Write(b); err != nil {
		return err
	}
	if err := w.w.WriteByte('\n'); err != nil {
		return err
	}
	return w.w.Flush()
}

func (w *JSONLZstdWriter) rotateLocked(hour string) error {
	if err := w.closeLocked(); err != nil {
		return err
	}
	dir := filepath.Dir(w.pathForHour(hour))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(w.pathForHour(hour), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return err
	}
	w.f = f
	w.enc = enc
	w.w = bufio.NewWriterSize(enc, 128*1024)
	w.curHour = hour
	return nil
}

func (w *JSONLZstdWriter) closeLocked() error {
	var err1 error
	if w.w != nil {
		_ = w.w.Flush()
	}
	if w.enc != nil {
		err1 = w.enc.Close()
		w.enc = nil
	}
	if w.f != nil {
		_ = w.f.Close()
		w.f = nil
	}
	w.w = nil
	w.curHour = ""
	return err1
}

func (w *JSONLZstdWriter) pathForHour(hour string) string {
	return filepath.Join(w.baseDir, fmt.Sprintf("%s-%s.jsonl.zst", w.prefix, hour))
}

// PlacementLogger writes one JSONL entry per finished placement chain
// (compressed). Write errors are counted, never surfaced to the chain.
type PlacementLogger struct {
	w      *JSONLZstdWriter
	errors atomic.Uint64
}

func NewPlacementLogger(dataDir string) *PlacementLogger {
	return &PlacementLogger{w: NewJSONLZstdWriter(filepath.Join(dataDir, "placements"), "placements")}
}

func (l *PlacementLogger) RecordPlacement(e placement.Entry) {
	if err := l.w.Write(e); err != nil {
		l.errors.Add(1)
	}
}

func (l *PlacementLogger) Errors() uint64 { return l.errors.Load() }
func (l *PlacementLogger) Close() error   { return l.w.Close() }

// ConfigEntry records a spawn config snapshot becoming active.
type ConfigEntry struct {
	Time            time.Time `json:"time"`
	Source          string    `json:"source"` // "startup" or "reload"
	Radius          int       `json:"radius"`
	MaxAttempts     int       `json:"max_attempts"`
	CooldownSeconds int       `json:"cooldown_seconds"`
	UnsafeBlocks    []string  `json:"unsafe_blocks"`
}

// AuditLogger writes config audit JSONL entries (compressed).
type AuditLogger struct{ w *JSONLZstdWriter }

func NewAuditLogger(dataDir string) *AuditLogger {
	return &AuditLogger{w: NewJSONLZstdWriter(filepath.Join(dataDir, "audit"), "audit")}
}

func (l *AuditLogger) WriteConfig(v ConfigEntry) error { return l.w.Write(v) }
func (l *AuditLogger) Close() error                    { return l.w.Close() }

// RecordConfig logs cfg becoming active; source is "startup" or "reload".
func (l *AuditLogger) RecordConfig(source string, cfg *config.Config) error {
	return l.WriteConfig(ConfigEntry{
		Time:            l.w.now().UTC(),
		Source:          source,
		Radius:          cfg.Radius,
		MaxAttempts:     cfg.MaxAttempts,
		CooldownSeconds: cfg.CooldownSeconds,
		UnsafeBlocks:    cfg.SortedUnsafeBlocks(),
	})
}
