package doc

import (
	"encoding/hex"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/zeebo/blake3"
)

// ============================================================
// Canonical Form
// ============================================================

// canonFloat returns the shortest round-trip float text.
// E→e, -0→0.
func canonFloat(f float64) string {
	if f == 0 {
		return "0"
	}
	s := strconv.FormatFloat(f, 'g', -1, 64)
	s = strings.ReplaceAll(s, "E", "e")
	if s == "-0" {
		return "0"
	}
	return s
}

// sortEntries returns a copy of entries sorted by key.
func sortEntries(entries []Entry) []Entry {
	sorted := slices.Clone(entries)
	slices.SortFunc(sorted, func(a, b Entry) int {
		return strings.Compare(a.Key, b.Key)
	})
	return sorted
}

// Canonical returns the canonical JSON text of a tree: compact,
// map keys sorted, shortest float form.
//
// Two trees that are Equal produce the same canonical text.
func Canonical(n *Node) ([]byte, error) {
	return MarshalJSONWithOptions(n, JSONOptions{SortKeys: true})
}

// Fingerprint is a BLAKE3-256 digest of the canonical form.
type Fingerprint [32]byte

// String returns the lowercase hex form.
func (f Fingerprint) String() string {
	return hex.EncodeToString(f[:])
}

// ParseFingerprint parses a 64-character hex string.
func ParseFingerprint(s string) (Fingerprint, error) {
	var f Fingerprint
	if len(s) != 64 {
		return f, fmt.Errorf("doc: fingerprint must be 64 hex characters, got %d", len(s))
	}
	if _, err := hex.Decode(f[:], []byte(s)); err != nil {
		return f, fmt.Errorf("doc: invalid fingerprint: %w", err)
	}
	return f, nil
}

// ComputeFingerprint hashes the canonical form of a tree.
func ComputeFingerprint(n *Node) (Fingerprint, error) {
	canonical, err := Canonical(n)
	if err != nil {
		return Fingerprint{}, err
	}
	return Fingerprint(blake3.Sum256(canonical)), nil
}
