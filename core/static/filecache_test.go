package static

import (
	"os"
	"path/filepath"
	"testing"
)

func TestFileCacheLRU(t *testing.T) {
	dir := writeFiles(t, map[string]string{"a": "A", "b": "BB", "c": "CCC"})
	fc := NewFileCache(2)
	defer fc.Close()

	for _, name := range []string{"a", "b", "a", "c"} {
		h, err := fc.Get(filepath.Join(dir, name))
		if err != nil {
			t.Fatal(err)
		}
		h.Close()
	}

	if fc.Len() != 2 {
		t.Errorf("expected 2 cached files, got %d", fc.Len())
	}
	if _, ok := fc.cache[filepath.Join(dir, "b")]; ok {
		t.Error("b should have been evicted as least recently used")
	}
}

// An evicted file remains readable through handles taken before eviction.
func TestFileCacheEvictedHandleStillReadable(t *testing.T) {
	dir := writeFiles(t, map[string]string{"a": "hello", "b": "x"})
	fc := NewFileCache(1)
	defer fc.Close()

	ha, err := fc.Get(filepath.Join(dir, "a"))
	if err != nil {
		t.Fatal(err)
	}
	hb, err := fc.Get(filepath.Join(dir, "b"))
	if err != nil {
		t.Fatal(err)
	}
	defer hb.Close()

	buf := make([]byte, ha.Size())
	if _, err := ha.ReadAt(buf, 0); err != nil {
		t.Fatalf("read after eviction: %v", err)
	}
	if string(buf) != "hello" {
		t.Errorf("got %q", buf)
	}

	ha.Close()
	if _, err := ha.entry.file.ReadAt(buf, 0); err == nil {
		t.Error("file should be closed after last handle released")
	}
}

func TestFileCacheMissing(t *testing.T) {
	fc := NewFileCache(4)
	if _, err := fc.Get(filepath.Join(t.TempDir(), "none")); !os.IsNotExist(err) {
		t.Errorf("expected not-exist error, got %v", err)
	}
}
