package cache

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/five82/mfboost/internal/fingerprint"
)

func key(n int64) Key {
	return Key{Fingerprint: "f", Encoder: fingerprint.HevcCPU, Phase: "GpuCoarse", CRFKey: n}
}

func TestPutGetRoundTrip(t *testing.T) {
	c := New(10)
	c.Put(key(1), Outcome{CRF: 24, TotalBytes: 100})
	got, ok := c.Get(key(1))
	if !ok || got.TotalBytes != 100 {
		t.Fatalf("expected hit with TotalBytes=100, got %+v ok=%v", got, ok)
	}
}

func TestCapacityNeverExceeded(t *testing.T) {
	c := New(3)
	for i := int64(0); i < 10; i++ {
		c.Put(key(i), Outcome{CRF: float64(i)})
		if c.Len() > 3 {
			t.Fatalf("cache exceeded capacity: len=%d", c.Len())
		}
	}
	if c.Len() != 3 {
		t.Errorf("expected final len 3, got %d", c.Len())
	}
}

func TestEvictionRemovesLeastRecentlyAccessed(t *testing.T) {
	c := New(2)
	c.Put(key(1), Outcome{CRF: 1})
	c.Put(key(2), Outcome{CRF: 2})

	// Touch key(1) so it becomes more recently used than key(2).
	if _, ok := c.Get(key(1)); !ok {
		t.Fatal("expected key(1) present")
	}

	c.Put(key(3), Outcome{CRF: 3})

	if _, ok := c.Get(key(2)); ok {
		t.Errorf("expected key(2) (least recently used) to be evicted")
	}
	if _, ok := c.Get(key(1)); !ok {
		t.Errorf("expected key(1) to survive eviction")
	}
	if _, ok := c.Get(key(3)); !ok {
		t.Errorf("expected key(3) to be present")
	}
}

func TestEvictionCallback(t *testing.T) {
	c := New(1)
	var evictedTotal int
	c.OnEvict(func(total int) { evictedTotal = total })
	c.Put(key(1), Outcome{CRF: 1})
	c.Put(key(2), Outcome{CRF: 2})
	if evictedTotal != 1 {
		t.Errorf("expected eviction callback fired with total=1, got %d", evictedTotal)
	}
}

func TestSaveLoadJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "crf_cache.json")

	c := New(5)
	c.Put(key(1), Outcome{CRF: 1, TotalBytes: 1000})
	c.Put(key(2), Outcome{CRF: 2, TotalBytes: 2000})
	if err := c.SaveJSON(path); err != nil {
		t.Fatalf("SaveJSON: %v", err)
	}

	loaded, err := LoadJSON(path, 5)
	if err != nil {
		t.Fatalf("LoadJSON: %v", err)
	}
	if loaded.Len() != 2 {
		t.Errorf("expected 2 loaded entries, got %d", loaded.Len())
	}
	got, ok := loaded.Get(key(1))
	if !ok || got.TotalBytes != 1000 {
		t.Errorf("expected round-tripped entry, got %+v ok=%v", got, ok)
	}
}

func TestLoadJSONCorruptYieldsEmptyNoPanic(t *testing.T) {
	dir := t.TempDir()
	corpus := []string{"", "{", "null", "[]", `{"capacity": "nope"}`, string([]byte{0xff, 0xfe, 0x00})}

	for i, content := range corpus {
		path := filepath.Join(dir, "bad.json")
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
		c, err := LoadJSON(path, 7)
		if c == nil {
			t.Fatalf("case %d: expected non-nil cache even on error", i)
		}
		if err == nil && content != "null" {
			// "null" parses successfully as "no entries"; everything else
			// in this corpus should report an error while still yielding
			// a usable empty cache.
			t.Fatalf("case %d: expected error for %q", i, content)
		}
		if c.Len() != 0 {
			t.Fatalf("case %d: expected empty cache, got %d entries", i, c.Len())
		}
	}
}
