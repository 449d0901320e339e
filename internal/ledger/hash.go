package ledger

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"slices"
	"strings"
)

const hashPrefix = "sha256:"

// Hash is a SHA-256 digest.
type Hash [sha256.Size]byte

// ZeroHash is the PreviousHash of the genesis entry.
var ZeroHash Hash

// String renders the hash as "sha256:<hex>".
func (h Hash) String() string {
	return hashPrefix + hex.EncodeToString(h[:])
}

// IsZero reports whether h is the zero hash.
func (h Hash) IsZero() bool {
	return h == ZeroHash
}

// MarshalText keeps persisted and logged forms identical to String.
func (h Hash) MarshalText() ([]byte, error) {
	return []byte(h.String()), nil
}

// UnmarshalText parses the form produced by MarshalText.
func (h *Hash) UnmarshalText(b []byte) error {
	parsed, err := ParseHash(string(b))
	if err != nil {
		return err
	}
	*h = parsed
	return nil
}

// ParseHash parses a "sha256:<hex>" string.
func ParseHash(s string) (Hash, error) {
	var h Hash
	raw, ok := strings.CutPrefix(s, hashPrefix)
	if !ok {
		return h, fmt.Errorf("hash must start with %q", hashPrefix)
	}
	b, err := hex.DecodeString(raw)
	if err != nil {
		return h, fmt.Errorf("decode hash: %w", err)
	}
	if len(b) != len(h) {
		return h, fmt.Errorf("hash must be %d bytes, got %d", len(h), len(b))
	}
	copy(h[:], b)
	return h, nil
}

// ComputeHash returns the entry hash over the canonical encoding of the
// entry's sequence, previous hash, event type, payload and timestamp.
// EntryHash itself is never part of the input.
func ComputeHash(e Entry) Hash {
	return sha256.Sum256(canonical(e))
}

// canonical encodes the hashed fields deterministically: fixed-width
// integers, length-prefixed strings, payload keys sorted, timestamp as
// UTC nanoseconds.
func canonical(e Entry) []byte {
	buf := make([]byte, 0, 128)
	buf = binary.BigEndian.AppendUint64(buf, e.Sequence)
	buf = append(buf, e.PreviousHash[:]...)
	buf = appendString(buf, string(e.EventType))

	keys := make([]string, 0, len(e.Payload))
	for k := range e.Payload {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(keys)))
	for _, k := range keys {
		buf = appendString(buf, k)
		buf = appendString(buf, e.Payload[k])
	}

	buf = binary.BigEndian.AppendUint64(buf, uint64(e.Timestamp.UTC().UnixNano()))
	return buf
}

func appendString(buf []byte, s string) []byte {
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(s)))
	return append(buf, s...)
}
