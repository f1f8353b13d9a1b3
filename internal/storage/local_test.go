package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/huangang/studyhub/internal/metrics"
	"github.com/prometheus/client_golang/prometheus"
	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
)

func TestLocalStore_RoundTrip(t *testing.T) {
	s, err := NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalStore() error = %v", err)
	}
	ctx := context.Background()
	key := "study-1/abc.pdf"

	if err := s.Put(ctx, key, strings.NewReader("hello"), 5, "application/pdf"); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	rc, err := s.Open(ctx, key)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	data, _ := io.ReadAll(rc)
	rc.Close()
	if string(data) != "hello" {
		t.Errorf("content = %q", data)
	}

	if err := s.Delete(ctx, key); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := s.Open(ctx, key); !errors.Is(err, ErrNotExist) {
		t.Errorf("Open() after delete error = %v, expected ErrNotExist", err)
	}
	if err := s.Delete(ctx, key); !errors.Is(err, ErrNotExist) {
		t.Errorf("second Delete() error = %v, expected ErrNotExist", err)
	}
}

func TestLocalStore_NoTempLeftovers(t *testing.T) {
	dir := t.TempDir()
	s, _ := NewLocalStore(dir)
	if err := s.Put(context.Background(), "study-2/x.png", bytes.NewReader([]byte{1, 2, 3}), 3, "image/png"); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	entries, err := os.ReadDir(filepath.Join(dir, "study-2"))
	if err != nil {
		t.Fatalf("ReadDir() error = %v", err)
	}
	if len(entries) != 1 || entries[0].Name() != "x.png" {
		t.Errorf("entries = %v", entries)
	}
}

func TestValidKey(t *testing.T) {
	tests := []struct {
		key  string
		want bool
	}{
		{"study-1/file.pdf", true},
		{"file.pdf", true},
		{"", false},
		{"/etc/passwd", false},
		{"../secret", false},
		{"study-1/../../secret", false},
		{"study-1//file", false},
		{"study-1\\file", false},
		{"./file", false},
	}
	for _, tt := range tests {
		if got := validKey(tt.key); got != tt.want {
			t.Errorf("validKey(%q) = %v, expected %v", tt.key, got, tt.want)
		}
	}
}

func TestLocalStore_RejectsTraversal(t *testing.T) {
	s, _ := NewLocalStore(t.TempDir())
	ctx := context.Background()
	if err := s.Put(ctx, "../escape.txt", strings.NewReader("x"), 1, ""); !errors.Is(err, ErrInvalidKey) {
		t.Errorf("Put() error = %v, expected ErrInvalidKey", err)
	}
	if _, err := s.Open(ctx, "a/../../b"); !errors.Is(err, ErrInvalidKey) {
		t.Errorf("Open() error = %v, expected ErrInvalidKey", err)
	}
}

func TestJoinPrefix(t *testing.T) {
	if got := joinPrefix("", "a/b"); got != "a/b" {
		t.Errorf("joinPrefix empty = %q", got)
	}
	if got := joinPrefix("/files/", "a/b"); got != "files/a/b" {
		t.Errorf("joinPrefix = %q", got)
	}
}

func TestInstrument(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	local, _ := NewLocalStore(t.TempDir())
	s := Instrument(local, m)
	ctx := context.Background()

	_ = s.Put(ctx, "k/one", strings.NewReader("1"), 1, "")
	_, _ = s.Open(ctx, "k/missing")

	if got := promtestutil.ToFloat64(m.StorageOps.WithLabelValues("local", "put", "ok")); got != 1 {
		t.Errorf("put ok = %v", got)
	}
	if got := promtestutil.ToFloat64(m.StorageOps.WithLabelValues("local", "open", "not_found")); got != 1 {
		t.Errorf("open not_found = %v", got)
	}
	if s.Driver() != "local" {
		t.Errorf("Driver() = %q", s.Driver())
	}
}
