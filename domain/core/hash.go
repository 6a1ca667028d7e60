package core

import (
	"crypto/sha256"
	"encoding/hex"
	"math"
	"sort"
	"strconv"
	"strings"
)

// Hash represents a cryptographic hash
type Hash string

// NewHash creates a new hash from data
func NewHash(data []byte) Hash {
	sum := sha256.Sum256(data)
	return Hash(hex.EncodeToString(sum[:]))
}

// String returns the string representation
func (h Hash) String() string {
	return string(h)
}

// IsEmpty checks if the hash is empty
func (h Hash) IsEmpty() bool {
	return h == ""
}

// Equals checks if two hashes are equal
func (h Hash) Equals(other Hash) bool {
	return h == other
}

// Domain-specific hash types
type (
	BoundaryHash Hash
	PointHash    Hash
)

func (h BoundaryHash) String() string { return Hash(h).String() }
func (h PointHash) String() string    { return Hash(h).String() }

// ComputePointHash hashes named values in sorted key order. Floats are encoded
// by bit pattern.
func ComputePointHash(values map[string]float64) PointHash {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var data strings.Builder
	for _, key := range keys {
		data.WriteString(key)
		data.WriteByte('=')
		data.WriteString(strconv.FormatUint(math.Float64bits(values[key]), 16))
		data.WriteByte(';')
	}
	return PointHash(NewHash([]byte(data.String())))
}

// ComputeBoundaryHash hashes pre-rendered constraint descriptions in the order given
func ComputeBoundaryHash(parts []string) BoundaryHash {
	return BoundaryHash(NewHash([]byte(strings.Join(parts, "|"))))
}
