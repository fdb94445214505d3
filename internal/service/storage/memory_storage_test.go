package storage

import (
	"testing"
)

func TestSetGetDelete(t *testing.T) {
	s := NewMemoryStorage[string, int]()

	s.Set("a", 1)
	if v, ok := s.Get("a"); !ok || v != 1 {
		t.Errorf("Get(a) = %v, %v", v, ok)
	}
	if _, ok := s.Get("missing"); ok {
		t.Error("Get(missing) reported existence")
	}

	if !s.Delete("a") {
		t.Error("Delete(a) = false, want true")
	}
	if s.Delete("a") {
		t.Error("second Delete(a) = true, want false")
	}
	if s.Count() != 0 {
		t.Errorf("Count = %d, want 0", s.Count())
	}
}

func TestDirtyTracking(t *testing.T) {
	s := NewMemoryStorage[string, int]()

	s.Set("a", 1)
	s.Set("b", 2)

	dirty := s.GetDirty()
	if len(dirty) != 2 {
		t.Fatalf("dirty count = %d, want 2", len(dirty))
	}
	if dirty["a"] != 1 || dirty["b"] != 2 {
		t.Errorf("dirty = %v", dirty)
	}

	s.ClearDirty([]string{"a"})
	dirty = s.GetDirty()
	if len(dirty) != 1 {
		t.Fatalf("dirty count after clear = %d, want 1", len(dirty))
	}
	if _, ok := dirty["b"]; !ok {
		t.Error("b should still be dirty")
	}

	// Deleting marks the key dirty, but the value is gone.
	s.ClearDirty([]string{"b"})
	s.Delete("b")
	dirty = s.GetDirty()
	if len(dirty) != 0 {
		t.Errorf("deleted key must not appear in the dirty value map: %v", dirty)
	}
}

func TestGetAllCopies(t *testing.T) {
	s := NewMemoryStorage[string, int]()
	s.Set("a", 1)

	all := s.GetAll()
	all["a"] = 42
	if v, _ := s.Get("a"); v != 1 {
		t.Error("GetAll must return a copy, not the backing map")
	}

	values := s.GetAllValues()
	if len(values) != 1 || values[0] != 1 {
		t.Errorf("GetAllValues = %v", values)
	}
}

func TestForEachEarlyStop(t *testing.T) {
	s := NewMemoryStorage[string, int]()
	s.Set("a", 1)
	s.Set("b", 2)
	s.Set("c", 3)

	var visited int
	s.ForEach(func(key string, value int) bool {
		visited++
		return visited < 2
	})
	if visited != 2 {
		t.Errorf("visited = %d, want 2 (early stop)", visited)
	}
}
