package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// GlobalScope is used when no scope is supplied.
const GlobalScope = "global"

// Key derives the cache key for a query within a scope. The query and
// scope are joined, trimmed, and lowercased before hashing so that
// trivially different phrasings of the same question collide.
func Key(query, scope string) string {
	if scope == "" {
		scope = GlobalScope
	}
	normalized := strings.ToLower(strings.TrimSpace(query + "_" + scope))
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}
