// Package identity derives the storage-safe token for a client's
// network address. Raw addresses are never persisted or logged; the
// one-way digest still supports uniqueness checks.
package identity

import (
	"crypto/sha256"
	"encoding/hex"
)

// HashAddress returns the lowercase hex SHA-256 digest of addr.
// Deterministic: equal addresses always map to equal tokens, which is
// what the (poll, address) uniqueness constraint compares. An empty
// addr (undeterminable client) hashes like any other string, so all
// address-less clients share one token, the same accepted trade-off as
// addresses shared behind NAT.
func HashAddress(addr string) string {
	sum := sha256.Sum256([]byte(addr))
	return hex.EncodeToString(sum[:])
}
