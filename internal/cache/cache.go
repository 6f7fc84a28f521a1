// Package cache stores immutable server responses, such as review briefs
// after the reveal, in memory and on disk.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Cache stores byte values with a TTL. A zero TTL means the store's default.
type Cache interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte, ttl time.Duration) error
	Delete(key string) error
	Clear() error
}

// Key builds a cache key from its parts, e.g. base URL, game id and team id
func Key(parts ...string) string {
	hash := sha256.Sum256([]byte(strings.Join(parts, "\x00")))
	return "citegame:v1:" + hex.EncodeToString(hash[:])
}

// GetJSON decodes a cached value into v. Undecodable entries count as misses.
func GetJSON(c Cache, key string, v any) bool {
	data, ok := c.Get(key)
	if !ok {
		return false
	}
	return json.Unmarshal(data, v) == nil
}

// SetJSON encodes v and stores it
func SetJSON(c Cache, key string, v any, ttl time.Duration) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal cache value: %w", err)
	}
	return c.Set(key, data, ttl)
}
