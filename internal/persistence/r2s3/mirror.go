package r2s3

import (
	"context"
	"fmt"
	"log"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Uploader stores one local file under an object key.
type Uploader interface {
	PutFile(ctx context.Context, objectKey, localPath string) error
}

type Stats struct {
	QueueDepth   int    `json:"queue_depth"`
	Enqueued     uint64 `json:"enqueued_total"`
	Dropped      uint64 `json:"dropped_total"`
	Uploaded     uint64 `json:"uploaded_total"`
	Failed       uint64 `json:"failed_total"`
	LastUploaded string `json:"last_uploaded,omitempty"`
}

// Mirror copies finished snapshot files to object storage in the background.
// Keys are the file's path relative to the world directory, under prefix.
type Mirror struct {
	up       Uploader
	worldDir string
	prefix   string
	logger   *log.Logger

	attempts int
	backoff  time.Duration

	jobs chan string
	wg   sync.WaitGroup

	enqueued atomic.Uint64
	dropped  atomic.Uint64
	uploaded atomic.Uint64
	failed   atomic.Uint64
	last     atomic.Value // string
}

func NewMirror(up Uploader, worldDir, prefix string, logger *log.Logger) *Mirror {
	m := &Mirror{
		up:       up,
		worldDir: worldDir,
		prefix:   strings.Trim(strings.ReplaceAll(prefix, "\\", "/"), "/"),
		logger:   logger,
		attempts: 4,
		backoff:  200 * time.Millisecond,
		jobs:     make(chan string, 16),
	}
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		for p := range m.jobs {
			m.upload(p)
		}
	}()
	return m
}

// Enqueue never blocks. Snapshots are cumulative, so when the queue is full
// the new file is dropped and the next one carries its contents.
func (m *Mirror) Enqueue(localPath string) {
	if m == nil {
		return
	}
	m.enqueued.Add(1)
	select {
	case m.jobs <- localPath:
	default:
		n := m.dropped.Add(1)
		m.printf("mirror drop local=%s dropped_total=%d", localPath, n)
	}
}

// Close waits for queued uploads to finish.
func (m *Mirror) Close() {
	if m == nil {
		return
	}
	close(m.jobs)
	m.wg.Wait()
}

func (m *Mirror) Stats() Stats {
	if m == nil {
		return Stats{}
	}
	last, _ := m.last.Load().(string)
	return Stats{
		QueueDepth:   len(m.jobs),
		Enqueued:     m.enqueued.Load(),
		Dropped:      m.dropped.Load(),
		Uploaded:     m.uploaded.Load(),
		Failed:       m.failed.Load(),
		LastUploaded: last,
	}
}

func (m *Mirror) upload(localPath string) {
	key, err := m.objectKey(localPath)
	if err != nil {
		m.failed.Add(1)
		m.printf("mirror skip local=%s err=%v", localPath, err)
		return
	}
	var lastErr error
	for attempt := 1; attempt <= m.attempts; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		lastErr = m.up.PutFile(ctx, key, localPath)
		cancel()
		if lastErr == nil {
			m.uploaded.Add(1)
			m.last.Store(key)
			m.printf("mirror uploaded key=%s", key)
			return
		}
		if attempt < m.attempts {
			time.Sleep(time.Duration(attempt*attempt) * m.backoff)
		}
	}
	m.failed.Add(1)
	m.printf("mirror upload failed key=%s err=%v", key, lastErr)
}

func (m *Mirror) objectKey(localPath string) (string, error) {
	absBase, err := filepath.Abs(m.worldDir)
	if err != nil {
		return "", err
	}
	absLocal, err := filepath.Abs(localPath)
	if err != nil {
		return "", err
	}
	rel, err := filepath.Rel(absBase, absLocal)
	if err != nil {
		return "", err
	}
	rel = filepath.ToSlash(rel)
	if rel == "." || strings.HasPrefix(rel, "../") {
		return "", fmt.Errorf("path %s is outside world dir %s", absLocal, absBase)
	}
	if m.prefix != "" {
		rel = path.Join(m.prefix, rel)
	}
	return rel, nil
}

func (m *Mirror) printf(format string, args ...any) {
	if m.logger != nil {
		m.logger.Printf(format, args...)
	}
}
