package fs

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

// =============================================================================
// Real FS Tests
//
// These tests cover the helpers Real adds on top of the os package:
//   - Exists() - our convenience method
//   - WriteFileAtomic() - our atomic write wrapper
// =============================================================================

// TestReal_Exists_ReturnsFalseForNonExistent verifies that Exists() returns
// (false, nil) for files that don't exist - not an error.
func TestReal_Exists_ReturnsFalseForNonExistent(t *testing.T) {
	t.Parallel()

	fs := NewReal()

	exists, err := fs.Exists(filepath.Join(t.TempDir(), "missing.bin"))
	if err != nil {
		t.Fatalf("err=%v, want=nil", err)
	}

	if exists {
		t.Fatalf("exists=%v, want=false", exists)
	}
}

// TestReal_Exists_ReturnsTrueForFileAndDirectory verifies that Exists()
// reports both kinds of entries.
func TestReal_Exists_ReturnsTrueForFileAndDirectory(t *testing.T) {
	t.Parallel()

	fs := NewReal()
	dir := t.TempDir()
	file := filepath.Join(dir, "map.bin")

	if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
		t.Fatalf("setup: %v", err)
	}

	for _, path := range []string{dir, file} {
		exists, err := fs.Exists(path)
		if err != nil || !exists {
			t.Fatalf("Exists(%q) = (%v, %v), want (true, nil)", path, exists, err)
		}
	}
}

// TestReal_Exists_ReturnsErrorWhenParentIsAFile verifies errors other than
// not-exist are surfaced.
func TestReal_Exists_ReturnsErrorWhenParentIsAFile(t *testing.T) {
	t.Parallel()

	fs := NewReal()
	file := filepath.Join(t.TempDir(), "map.bin")

	if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
		t.Fatalf("setup: %v", err)
	}

	exists, err := fs.Exists(filepath.Join(file, "child"))
	if exists {
		t.Fatalf("exists=%v, want=false", exists)
	}

	// ENOTDIR is reported as not-exist by some platforms; either is fine.
	if err != nil && errors.Is(err, os.ErrNotExist) {
		t.Fatalf("err=%v must not be ErrNotExist", err)
	}
}

// TestReal_WriteFileAtomic_CreatesAndOverwrites verifies atomic writes
// create a file and replace it.
func TestReal_WriteFileAtomic_CreatesAndOverwrites(t *testing.T) {
	t.Parallel()

	fs := NewReal()
	dir := t.TempDir()
	path := filepath.Join(dir, "snapshot.llz")

	for _, content := range []string{"first", "second"} {
		if err := fs.WriteFileAtomic(path, strings.NewReader(content)); err != nil {
			t.Fatalf("WriteFileAtomic(%q) err=%v", content, err)
		}

		data, err := fs.ReadFile(path)
		if err != nil {
			t.Fatalf("ReadFile err=%v", err)
		}

		if string(data) != content {
			t.Fatalf("content=%q, want=%q", data, content)
		}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir err=%v", err)
	}

	if len(entries) != 1 {
		t.Fatalf("dir has %d entries, want 1 (temp file left behind?)", len(entries))
	}
}

// TestReal_WriteFileAtomic_ConcurrentWritesSafe verifies concurrent atomic
// writes never leave a mixed file.
func TestReal_WriteFileAtomic_ConcurrentWritesSafe(t *testing.T) {
	t.Parallel()

	fs := NewReal()
	path := filepath.Join(t.TempDir(), "dump.txt")

	var wg sync.WaitGroup

	for id := range 8 {
		wg.Go(func() {
			content := bytes.Repeat([]byte{byte('A' + id)}, 4096)

			for range 10 {
				_ = fs.WriteFileAtomic(path, bytes.NewReader(content))
			}
		})
	}

	wg.Wait()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile err=%v", err)
	}

	if len(data) != 4096 {
		t.Fatalf("len=%d, want=4096", len(data))
	}

	if !bytes.Equal(data, bytes.Repeat(data[:1], 4096)) {
		t.Fatalf("content mixes writers: starts %q", data[:16])
	}
}
