package runner

import (
	"testing"
	"time"
)

func TestCachePutReplacesOlderEntry(t *testing.T) {
	c := newResultCache()
	t0 := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	c.put("fetch", "v1", t0)
	c.put("fetch", "v2", t0.Add(time.Second))

	e, ok := c.get("fetch")
	if !ok {
		t.Fatal("entry missing")
	}
	if e.result != "v2" {
		t.Errorf("result = %v, want v2", e.result)
	}
	if !e.storedAt.Equal(t0.Add(time.Second)) {
		t.Errorf("storedAt = %v, want %v", e.storedAt, t0.Add(time.Second))
	}
	if c.size() != 1 {
		t.Errorf("size = %d, want 1", c.size())
	}
}

func TestCacheMissAndClear(t *testing.T) {
	c := newResultCache()
	if _, ok := c.get("absent"); ok {
		t.Error("unexpected hit for absent name")
	}

	c.put("a", 1, time.Now())
	c.put("b", 2, time.Now())
	c.clear()
	if c.size() != 0 {
		t.Errorf("size after clear = %d, want 0", c.size())
	}
	if _, ok := c.get("a"); ok {
		t.Error("entry survived clear")
	}
}
