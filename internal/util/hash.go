package util

import (
	"fmt"
	"hash/fnv"
)

// FNV64 returns the 64-bit FNV-1a hash of s as 16 hex characters.
// Used to keep Redis keys bounded when the caller identity is long.
func FNV64(s string) string {
	h := fnv.New64a()
	_, _ = h.Write([]byte(s))
	return fmt.Sprintf("%016x", h.Sum64())
}
