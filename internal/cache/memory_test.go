package cache

import (
	"context"
	"testing"
	"time"
)

func TestMemoryStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	if _, found, err := s.Get(ctx, "missing"); err != nil || found {
		t.Fatalf("missing key: found=%v err=%v", found, err)
	}

	if err := s.Set(ctx, "k", []byte("v1"), 0); err != nil {
		t.Fatalf("set: %v", err)
	}
	got, found, err := s.Get(ctx, "k")
	if err != nil || !found || string(got) != "v1" {
		t.Fatalf("get: %q found=%v err=%v", got, found, err)
	}

	if err := s.Set(ctx, "k", []byte("v2"), 0); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	got, _, _ = s.Get(ctx, "k")
	if string(got) != "v2" {
		t.Fatalf("overwrite lost: %q", got)
	}

	if err := s.Delete(ctx, "k"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, found, _ := s.Get(ctx, "k"); found {
		t.Fatalf("deleted key still present")
	}
}

func TestMemoryStoreExpiry(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	if err := s.Set(ctx, "k", []byte("v"), time.Millisecond); err != nil {
		t.Fatalf("set: %v", err)
	}
	time.Sleep(5 * time.Millisecond)
	if _, found, _ := s.Get(ctx, "k"); found {
		t.Fatalf("entry outlived its ttl")
	}

	// Zero ttl never expires.
	if err := s.Set(ctx, "keep", []byte("v"), 0); err != nil {
		t.Fatalf("set: %v", err)
	}
	time.Sleep(2 * time.Millisecond)
	if _, found, _ := s.Get(ctx, "keep"); !found {
		t.Fatalf("no-ttl entry expired")
	}
}

func TestMemoryStoreCopiesValues(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	src := []byte("payload")
	if err := s.Set(ctx, "k", src, 0); err != nil {
		t.Fatalf("set: %v", err)
	}
	src[0] = 'X'

	got, _, _ := s.Get(ctx, "k")
	if string(got) != "payload" {
		t.Fatalf("store aliased caller slice: %q", got)
	}
	got[0] = 'Y'

	again, _, _ := s.Get(ctx, "k")
	if string(again) != "payload" {
		t.Fatalf("reader mutated stored value: %q", again)
	}
}
