package proxy

import (
	"errors"
	"net/url"
	"testing"
	"time"
)

func TestPool_AddAndNext(t *testing.T) {
	pool := NewPool(Config{})

	if err := pool.Add("127.0.0.1:8080", "http://127.0.0.1:8081", "socks5://127.0.0.1:9050", " "); err != nil {
		t.Fatalf("unexpected error adding proxies: %v", err)
	}
	if pool.Len() != 3 {
		t.Fatalf("expected 3 proxies, got %d", pool.Len())
	}

	want := []string{
		"http://127.0.0.1:8080",
		"http://127.0.0.1:8081",
		"socks5://127.0.0.1:9050",
		"http://127.0.0.1:8080",
	}
	for i, w := range want {
		u := pool.Next()
		if u == nil || u.String() != w {
			t.Errorf("call %d: expected %s, got %v", i, w, u)
		}
	}
}

func TestPool_HealthTracking(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	pool := NewPool(Config{MaxFailures: 2, Cooldown: time.Minute})
	pool.now = func() time.Time { return now }

	if err := pool.Add("http://a", "http://b"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	a, _ := url.Parse("http://a")

	_ = pool.MarkFailure(a)
	_ = pool.MarkFailure(a)

	for i := 0; i < 3; i++ {
		if u := pool.Next(); u == nil || u.String() != "http://b" {
			t.Fatalf("expected only b while a cools down, got %v", u)
		}
	}

	now = now.Add(2 * time.Minute)
	seenA := false
	for i := 0; i < 2; i++ {
		if u := pool.Next(); u != nil && u.String() == "http://a" {
			seenA = true
		}
	}
	if !seenA {
		t.Errorf("expected a to be revived after cooldown")
	}
}

func TestPool_AllDisabled(t *testing.T) {
	pool := NewPool(Config{MaxFailures: 1, Cooldown: time.Hour})
	_ = pool.Add("http://only")
	only, _ := url.Parse("http://only")

	if err := pool.MarkFailure(only); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if u := pool.Next(); u != nil {
		t.Errorf("expected nil when every proxy is benched, got %v", u)
	}
}

func TestPool_MarkSuccessDecrements(t *testing.T) {
	pool := NewPool(Config{MaxFailures: 2, Cooldown: time.Hour})
	_ = pool.Add("http://a")
	a, _ := url.Parse("http://a")

	_ = pool.MarkFailure(a)
	_ = pool.MarkSuccess(a)
	_ = pool.MarkFailure(a)

	if u := pool.Next(); u == nil {
		t.Errorf("a success should offset an earlier failure")
	}
}

func TestPool_Unknown(t *testing.T) {
	pool := NewPool(Config{})
	other, _ := url.Parse("http://other")

	if err := pool.MarkFailure(other); !errors.Is(err, ErrUnknown) {
		t.Errorf("expected ErrUnknown, got %v", err)
	}
	if err := pool.MarkSuccess(nil); err == nil {
		t.Errorf("expected error for nil url")
	}
	if pool.Next() != nil {
		t.Errorf("empty pool should return nil")
	}
}

func TestFromList(t *testing.T) {
	pool, err := FromList(Config{}, nil)
	if err != nil || pool != nil {
		t.Fatalf("expected nil pool for empty list, got %v, %v", pool, err)
	}

	pool, err = FromList(Config{}, []string{"10.0.0.1:3128"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if u := pool.Next(); u == nil || u.String() != "http://10.0.0.1:3128" {
		t.Errorf("unexpected proxy %v", u)
	}
}
