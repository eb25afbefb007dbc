package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

// CacheEntry stores one expensive analysis response, keyed by content hash.
// Re-storing the same hash overwrites the payload; the hit counter is only
// ever incremented by successful lookups.
type CacheEntry struct {
	Hash       string
	Response   string
	Model      string
	TokensUsed int
	Hits       int
	CreatedAt  time.Time
	ExpiresAt  time.Time
}

// Expired reports whether the entry must be treated as a miss at the given time.
func (e *CacheEntry) Expired(now time.Time) bool {
	return !now.Before(e.ExpiresAt)
}

// CacheStats summarizes the state of the analysis cache.
type CacheStats struct {
	Entries    int
	Expired    int
	TotalHits  int
	TokensUsed int
}

// ContentHash derives the deterministic cache key for an input: SHA-256 hex of
// the trimmed, lowercased content. URLs should be passed through NormalizeURL
// first so equivalent inputs share an entry.
func ContentHash(content string) string {
	normalized := strings.ToLower(strings.TrimSpace(content))
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}
