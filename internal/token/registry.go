// Package token maps short opaque tokens to full URLs for the lifetime of a
// user interaction round-trip.
package token

import (
	"crypto/sha256"
	"encoding/hex"
	"log"
	"sync"
)

// Length of a token in hex characters. Telegram callback data is limited to
// 64 bytes, so the token must stay short.
const Length = 8

// DefaultCapacity bounds the registry when no capacity is configured.
const DefaultCapacity = 1024

// Registry is a bounded, content-addressed URL store. The same URL always
// yields the same token. When the registry is full, the oldest entry is
// evicted first.
type Registry struct {
	mu       sync.RWMutex
	entries  map[string]string
	order    []string
	capacity int
}

func NewRegistry(capacity int) *Registry {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Registry{
		entries:  make(map[string]string, capacity),
		capacity: capacity,
	}
}

// Fingerprint derives the fixed-length token for a URL.
func Fingerprint(url string) string {
	sum := sha256.Sum256([]byte(url))
	return hex.EncodeToString(sum[:])[:Length]
}

// Put stores the URL under its fingerprint and returns the token. Putting the
// same URL twice is idempotent. A fingerprint collision between two distinct
// URLs is resolved last-write-wins; it is logged so the trade-off stays
// visible instead of silent.
func (r *Registry) Put(url string) string {
	tok := Fingerprint(url)

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.entries[tok]; ok {
		if existing != url {
			log.Printf("token collision on %s: replacing %s with %s", tok, existing, url)
			r.entries[tok] = url
		}
		return tok
	}

	if len(r.entries) >= r.capacity {
		oldest := r.order[0]
		r.order = r.order[1:]
		delete(r.entries, oldest)
	}

	r.entries[tok] = url
	r.order = append(r.order, tok)
	return tok
}

// Resolve looks up the URL stored under the token.
func (r *Registry) Resolve(tok string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	url, ok := r.entries[tok]
	return url, ok
}

// Len reports the number of tracked links.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}
