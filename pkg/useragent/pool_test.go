package useragent

import (
	"sync"
	"testing"
)

func TestNewPool_FallsBackToBrowsers(t *testing.T) {
	pool := NewPool(nil)
	if pool.Len() != len(Browsers) {
		t.Fatalf("expected %d agents, got %d", len(Browsers), pool.Len())
	}

	pool = NewPool([]string{"  ", ""})
	if pool.Len() != len(Browsers) {
		t.Errorf("blank agents should be ignored, got %d", pool.Len())
	}
}

func TestPool_GetSequential(t *testing.T) {
	pool := NewPool([]string{"UA1", "UA2", "UA3"})

	want := []string{"UA1", "UA2", "UA3", "UA1"}
	for i, w := range want {
		if got := pool.GetSequential(); got != w {
			t.Errorf("call %d: expected %s, got %s", i, w, got)
		}
	}
}

func TestPool_GetRandom(t *testing.T) {
	pool := NewPool([]string{"A", "B"})
	for i := 0; i < 50; i++ {
		if ua := pool.GetRandom(); ua != "A" && ua != "B" {
			t.Fatalf("unexpected agent %q", ua)
		}
	}
}

func TestFixed(t *testing.T) {
	if got := Fixed("").GetSequential(); got != Bot {
		t.Errorf("expected bot agent, got %q", got)
	}
	pool := Fixed("custom/2.0")
	for i := 0; i < 3; i++ {
		if got := pool.GetRandom(); got != "custom/2.0" {
			t.Errorf("expected custom agent, got %q", got)
		}
	}
}

func TestPool_ConcurrentSequential(t *testing.T) {
	pool := NewPool([]string{"A", "B"})

	var mu sync.Mutex
	counts := map[string]int{}
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ua := pool.GetSequential()
			mu.Lock()
			counts[ua]++
			mu.Unlock()
		}()
	}
	wg.Wait()

	if counts["A"] != 50 || counts["B"] != 50 {
		t.Errorf("expected an even split, got %v", counts)
	}
}
