package cookiestore

import (
	"fmt"
	"sync"
	"testing"
)

func TestStore_GetSet(t *testing.T) {
	s := New(4)
	if _, ok := s.Get("2142"); ok {
		t.Fatal("expected miss on empty store")
	}
	s.Set("2142", "sid=abc")
	got, ok := s.Get("2142")
	if !ok || got != "sid=abc" {
		t.Fatalf("expected sid=abc, got %q ok=%v", got, ok)
	}
	s.Set("2142", "sid=def")
	if got, _ := s.Get("2142"); got != "sid=def" {
		t.Fatalf("expected update, got %q", got)
	}
}

func TestStore_IgnoresEmpty(t *testing.T) {
	s := New(4)
	s.Set("", "sid=1")
	s.Set("k", "")
	if s.Len() != 0 {
		t.Fatalf("expected empty store, got %d entries", s.Len())
	}
}

func TestStore_BoundEvictsEarliestInserted(t *testing.T) {
	const capacity, k = 10, 3
	s := New(capacity)
	for i := 0; i < capacity+k; i++ {
		s.Set(fmt.Sprintf("key-%d", i), fmt.Sprintf("c=%d", i))
	}
	if s.Len() != capacity {
		t.Fatalf("expected %d entries, got %d", capacity, s.Len())
	}
	for i := 0; i < k; i++ {
		if _, ok := s.Get(fmt.Sprintf("key-%d", i)); ok {
			t.Fatalf("key-%d should have been evicted", i)
		}
	}
	for i := k; i < capacity+k; i++ {
		if _, ok := s.Get(fmt.Sprintf("key-%d", i)); !ok {
			t.Fatalf("key-%d should still be present", i)
		}
	}
}

func TestStore_UpdateDoesNotRefreshPosition(t *testing.T) {
	s := New(2)
	s.Set("a", "1")
	s.Set("b", "2")
	s.Set("a", "3") // still the oldest insertion
	s.Set("c", "4")
	if _, ok := s.Get("a"); ok {
		t.Fatal("a should be evicted: updates keep insertion order")
	}
	if _, ok := s.Get("b"); !ok {
		t.Fatal("b should survive")
	}
}

func TestStore_DefaultCapacity(t *testing.T) {
	if New(0).Capacity() != DefaultCapacity {
		t.Fatal("expected default capacity")
	}
}

func TestStore_ConcurrentWriters(t *testing.T) {
	s := New(50)
	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				key := fmt.Sprintf("%d-%d", w, i)
				s.Set(key, "c")
				s.Get(key)
			}
		}(w)
	}
	wg.Wait()
	if s.Len() != 50 {
		t.Fatalf("expected store at capacity, got %d", s.Len())
	}
}
