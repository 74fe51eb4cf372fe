// Package cache stores rendered analyses keyed by a digest of their inputs,
// so re-analyzing an unchanged ownership graph skips resolution entirely.
package cache

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"time"

	"github.com/ppiankov/ubotrace/internal/model"
)

// KeyPrefix namespaces and versions every cache key
const KeyPrefix = "ubotrace:v1:"

// Cache defines the interface for caching
type Cache interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte, ttl time.Duration) error
	Delete(key string) error
	Clear() error
}

// CacheKey derives a key from the inputs that determine an analysis.
// Parts are length-prefixed so ("ab", "c") and ("a", "bc") differ.
func CacheKey(parts ...string) string {
	h := sha256.New()
	var size [8]byte
	for _, p := range parts {
		binary.LittleEndian.PutUint64(size[:], uint64(len(p)))
		h.Write(size[:])
		h.Write([]byte(p))
	}
	return KeyPrefix + hex.EncodeToString(h.Sum(nil))
}

// NewFromConfig builds the configured cache: memory in front of disk.
// A disabled cache stores nothing.
func NewFromConfig(cfg model.CacheConfig) Cache {
	if !cfg.Enabled {
		return Nop{}
	}
	memory := NewMemoryCache(cfg.MemoryTTL, 10*time.Minute)
	if cfg.Dir == "" {
		return memory
	}
	return NewLayeredCache(memory, NewDiskCache(model.ExpandHome(cfg.Dir), cfg.DiskTTL))
}

// Nop is a cache that never stores anything
type Nop struct{}

func (Nop) Get(string) ([]byte, bool) {
	return nil, false
}

func (Nop) Set(string, []byte, time.Duration) error {
	return nil
}

func (Nop) Delete(string) error {
	return nil
}

func (Nop) Clear() error {
	return nil
}
