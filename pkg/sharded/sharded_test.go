package sharded

import (
	"fmt"
	"sync"
	"testing"
)

func TestNewPanicsOnInvalidShardCount(t *testing.T) {
	for _, n := range []int{0, 3, 100} {
		t.Run(fmt.Sprintf("%d shards", n), func(t *testing.T) {
			defer func() {
				if recover() == nil {
					t.Errorf("expected panic for %d shards", n)
				}
			}()
			NewSet(n)
		})
	}
}

func TestSet_ConcurrentStoreAndDelete(t *testing.T) {
	s := NewSet(DefaultShards)
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s.Store(fmt.Sprintf("key-%d", i))
		}(i)
	}
	wg.Wait()

	if s.Count() != 100 {
		t.Fatalf("expected 100 keys, got %d", s.Count())
	}
	if !s.Has("key-42") {
		t.Error("expected key-42 to be present")
	}
	s.Delete("key-42")
	if s.Has("key-42") {
		t.Error("expected key-42 to be deleted")
	}
	if s.Count() != 99 {
		t.Errorf("expected 99 keys after delete, got %d", s.Count())
	}
}

func TestMap_StoreLoadRange(t *testing.T) {
	m := NewMap[int](4)
	m.Store("a", 1)
	m.Store("b", 2)
	m.Store("a", 3)

	if v, ok := m.Load("a"); !ok || v != 3 {
		t.Errorf("expected a=3, got %d (present=%v)", v, ok)
	}
	if _, ok := m.Load("missing"); ok {
		t.Error("expected missing key to be absent")
	}
	if m.Count() != 2 {
		t.Errorf("expected 2 entries, got %d", m.Count())
	}

	sum := 0
	m.Range(func(_ string, v int) bool {
		sum += v
		return true
	})
	if sum != 5 {
		t.Errorf("expected sum 5, got %d", sum)
	}
}
