package r2s3

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestNormalizeObjectKey(t *testing.T) {
	cases := map[string]string{
		"snapshots/10.snap.zst": "snapshots/10.snap.zst",
		"/a//b/":                "a/b",
		`win\style\key`:         "win/style/key",
		"../../etc/passwd":      "etc/passwd",
		"  ":                    "",
		"/":                     "",
	}
	for in, want := range cases {
		if got := normalizeObjectKey(in); got != want {
			t.Fatalf("normalizeObjectKey(%q)=%q want %q", in, got, want)
		}
	}
}

func TestPutFileSignsRequest(t *testing.T) {
	var (
		gotPath string
		gotAuth string
		gotBody string
		gotDate string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		gotDate = r.Header.Get("x-amz-date")
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		rw.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c, err := New(srv.URL, "bucket", "", "AKID", "secret")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	c.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }

	local := filepath.Join(t.TempDir(), "roster.snap.zst")
	if err := os.WriteFile(local, []byte("payload"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := c.PutFile(context.Background(), "/world/snapshots/1.snap.zst", local); err != nil {
		t.Fatalf("PutFile: %v", err)
	}
	if gotPath != "/bucket/world/snapshots/1.snap.zst" {
		t.Fatalf("path=%q", gotPath)
	}
	if gotBody != "payload" {
		t.Fatalf("body=%q", gotBody)
	}
	if gotDate != "20260102T030405Z" {
		t.Fatalf("x-amz-date=%q", gotDate)
	}
	if !strings.HasPrefix(gotAuth, "AWS4-HMAC-SHA256 Credential=AKID/20260102/auto/s3/aws4_request, SignedHeaders=host;x-amz-content-sha256;x-amz-date, Signature=") {
		t.Fatalf("auth=%q", gotAuth)
	}
}

func TestPutFileReportsStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		http.Error(rw, "AccessDenied", http.StatusForbidden)
	}))
	defer srv.Close()

	c, err := New(srv.URL, "bucket", "auto", "AKID", "secret")
	if err != nil {
		t.Fatal(err)
	}
	local := filepath.Join(t.TempDir(), "f")
	_ = os.WriteFile(local, []byte("x"), 0o644)
	err = c.PutFile(context.Background(), "k", local)
	if err == nil || !strings.Contains(err.Error(), "status=403") {
		t.Fatalf("err=%v", err)
	}
}

func TestNewRequiresCredentials(t *testing.T) {
	if _, err := New("example.com", "b", "", "", "s"); err == nil {
		t.Fatalf("expected error for missing access key")
	}
}

type fakeUploader struct {
	mu    sync.Mutex
	fails int
	keys  []string
}

func (f *fakeUploader) PutFile(_ context.Context, key, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fails > 0 {
		f.fails--
		return errors.New("transient")
	}
	f.keys = append(f.keys, key)
	return nil
}

func TestMirrorRetriesAndPrefixesKeys(t *testing.T) {
	worldDir := t.TempDir()
	local := filepath.Join(worldDir, "snapshots", "42.snap.zst")
	_ = os.MkdirAll(filepath.Dir(local), 0o755)
	_ = os.WriteFile(local, []byte("x"), 0o644)

	up := &fakeUploader{fails: 2}
	m := NewMirror(up, worldDir, "/backups/overworld/", nil)
	m.backoff = time.Millisecond
	m.Enqueue(local)
	m.Enqueue(filepath.Join(t.TempDir(), "elsewhere.snap.zst"))
	m.Close()

	if len(up.keys) != 1 || up.keys[0] != "backups/overworld/snapshots/42.snap.zst" {
		t.Fatalf("keys=%v", up.keys)
	}
	st := m.Stats()
	if st.Uploaded != 1 || st.Failed != 1 || st.Enqueued != 2 {
		t.Fatalf("stats=%+v", st)
	}
	if st.LastUploaded != "backups/overworld/snapshots/42.snap.zst" {
		t.Fatalf("last=%q", st.LastUploaded)
	}
}

func TestNilMirrorIsNoop(t *testing.T) {
	var m *Mirror
	m.Enqueue("x")
	m.Close()
	if m.Stats() != (Stats{}) {
		t.Fatalf("stats on nil mirror")
	}
}
