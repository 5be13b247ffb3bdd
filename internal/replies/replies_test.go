package replies

import (
	"fmt"
	"testing"
	"time"
)

func TestStore_SetGetClear(t *testing.T) {
	s := NewStore(time.Minute, 16)

	if _, ok := s.Get(100); ok {
		t.Fatal("empty store must miss")
	}

	s.Set(100, "conv-1")
	got, ok := s.Get(100)
	if !ok || got != "conv-1" {
		t.Fatalf("Get = %q/%v, want conv-1", got, ok)
	}

	// A second Set replaces the target.
	s.Set(100, "conv-2")
	if got, _ := s.Get(100); got != "conv-2" {
		t.Fatalf("Get after replace = %q", got)
	}

	// Entries are per chat.
	s.Set(200, "conv-3")
	if got, _ := s.Get(100); got != "conv-2" {
		t.Fatalf("neighbor write leaked: %q", got)
	}

	s.Clear(100)
	if _, ok := s.Get(100); ok {
		t.Fatal("cleared entry must miss")
	}
	if got, _ := s.Get(200); got != "conv-3" {
		t.Fatalf("Clear dropped the wrong entry: %q", got)
	}
}

func TestStore_TTLExpiry(t *testing.T) {
	s := NewStore(10*time.Millisecond, 16)
	s.Set(100, "conv-1")

	time.Sleep(25 * time.Millisecond)
	if _, ok := s.Get(100); ok {
		t.Fatal("entry must expire after the TTL")
	}
}

func TestStore_SweepAtCapacity(t *testing.T) {
	s := NewStore(10*time.Millisecond, 4)
	for i := int64(0); i < 4; i++ {
		s.Set(i, fmt.Sprintf("conv-%d", i))
	}
	time.Sleep(25 * time.Millisecond)

	// The next Set sweeps the expired entries instead of growing.
	s.Set(99, "conv-99")
	if got, ok := s.Get(99); !ok || got != "conv-99" {
		t.Fatalf("Get after sweep = %q/%v", got, ok)
	}
	for i := int64(0); i < 4; i++ {
		if _, ok := s.Get(i); ok {
			t.Fatalf("expired entry %d survived the sweep", i)
		}
	}
}
