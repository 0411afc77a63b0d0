//go:build unix

package region

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestMappedBytes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.rrd")
	content := []byte("mapped region contents")
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	m, err := OpenMapped(path)
	if err != nil {
		t.Fatalf("OpenMapped returned error: %v", err)
	}
	defer m.Close()

	got, err := m.Bytes()
	if err != nil {
		t.Fatalf("Bytes returned error: %v", err)
	}
	if !bytes.Equal(got, content) {
		t.Fatalf("Bytes = %q", got)
	}

	// In-place rewrites show up through the mapping without a remap.
	f, err := os.OpenFile(path, os.O_WRONLY, 0)
	if err != nil {
		t.Fatalf("OpenFile for rewrite failed: %v", err)
	}
	if _, err := f.WriteAt([]byte("MAPPED"), 0); err != nil {
		t.Fatalf("WriteAt failed: %v", err)
	}
	f.Close()
	got, err = m.Bytes()
	if err != nil {
		t.Fatalf("Bytes after rewrite returned error: %v", err)
	}
	if !bytes.HasPrefix(got, []byte("MAPPED")) {
		t.Fatalf("Bytes after rewrite = %q", got)
	}
}

func TestMappedGrowRemaps(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.rrd")
	if err := os.WriteFile(path, []byte("short"), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	m, err := OpenMapped(path)
	if err != nil {
		t.Fatalf("OpenMapped returned error: %v", err)
	}
	defer m.Close()
	if _, err := m.Bytes(); err != nil {
		t.Fatalf("Bytes returned error: %v", err)
	}

	grown := []byte("a considerably longer region body")
	if err := os.WriteFile(path, grown, 0o644); err != nil {
		t.Fatalf("grow failed: %v", err)
	}
	got, err := m.Bytes()
	if err != nil {
		t.Fatalf("Bytes after grow returned error: %v", err)
	}
	if len(got) != len(grown) {
		t.Fatalf("mapped view is %d bytes, want %d", len(got), len(grown))
	}
}

func TestOpenMappedEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.rrd")
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	if _, err := OpenMapped(path); !errors.Is(err, ErrRead) {
		t.Fatalf("error = %v, want ErrRead", err)
	}
}
