package token

import (
	"fmt"
	"sync"
	"testing"
)

func TestPutResolveRoundTrip(t *testing.T) {
	r := NewRegistry(16)

	url := "https://youtube.com/watch?v=ABC"
	tok := r.Put(url)

	if len(tok) != Length {
		t.Fatalf("Expected token of length %d, got %q", Length, tok)
	}

	got, ok := r.Resolve(tok)
	if !ok {
		t.Fatalf("Resolve(%q) reported not found", tok)
	}
	if got != url {
		t.Errorf("Resolve(%q) = %q, want %q", tok, got, url)
	}
}

func TestPutIsIdempotent(t *testing.T) {
	r := NewRegistry(16)

	url := "https://youtu.be/xyz"
	first := r.Put(url)
	second := r.Put(url)

	if first != second {
		t.Errorf("Put of the same URL produced different tokens: %q vs %q", first, second)
	}
	if r.Len() != 1 {
		t.Errorf("Repeated Put should not grow the registry, got %d entries", r.Len())
	}
}

func TestResolveUnknownToken(t *testing.T) {
	r := NewRegistry(16)

	if _, ok := r.Resolve("ffffffff"); ok {
		t.Error("Resolve of an unknown token should report not found")
	}
}

func TestEvictionBound(t *testing.T) {
	const capacity = 8
	r := NewRegistry(capacity)

	var first string
	for i := 0; i < capacity+3; i++ {
		tok := r.Put(fmt.Sprintf("https://youtube.com/watch?v=vid%d", i))
		if i == 0 {
			first = tok
		}
	}

	if r.Len() != capacity {
		t.Errorf("Registry grew beyond its capacity: %d entries, capacity %d", r.Len(), capacity)
	}
	if _, ok := r.Resolve(first); ok {
		t.Error("Oldest entry should have been evicted")
	}
}

func TestConcurrentAccess(t *testing.T) {
	r := NewRegistry(1024)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				url := fmt.Sprintf("https://vimeo.com/%d-%d", n, j)
				tok := r.Put(url)
				if got, ok := r.Resolve(tok); !ok || got != url {
					t.Errorf("Read after write lost entry for %s", url)
					return
				}
			}
		}(i)
	}
	wg.Wait()
}
