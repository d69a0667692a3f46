package address

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/blake2b"
)

const Size = blake2b.Size256

const (
	NamespacePlatform = "platform"
	NamespaceDriver   = "driver"
	NamespacePlate    = "plate"
	NamespaceReview   = "review"
)

// Address is the storage location of a registry record. It doubles as the
// record's uniqueness key: two records can never share one.
type Address [Size]byte

var Zero Address

// Derive hashes the namespace and seeds into an Address. Every part is length
// prefixed, so ("ab", "c") and ("a", "bc") land on different addresses.
func Derive(namespace string, seeds ...[]byte) Address {
	h, _ := blake2b.New256(nil)

	var prefix [4]byte
	binary.BigEndian.PutUint32(prefix[:], uint32(len(namespace)))
	h.Write(prefix[:])
	h.Write([]byte(namespace))

	for _, seed := range seeds {
		binary.BigEndian.PutUint32(prefix[:], uint32(len(seed)))
		h.Write(prefix[:])
		h.Write(seed)
	}

	var a Address
	copy(a[:], h.Sum(nil))
	return a
}

// Uint64LE encodes a counter seed as 8 little-endian bytes.
func Uint64LE(n uint64) []byte {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint64(b, n)
	return b
}

func Parse(s string) (Address, error) {
	var a Address
	raw, err := hex.DecodeString(s)
	if err != nil {
		return a, fmt.Errorf("parse address: %w", err)
	}
	if len(raw) != Size {
		return a, fmt.Errorf("parse address: want %d bytes, got %d", Size, len(raw))
	}
	copy(a[:], raw)
	return a, nil
}

func (a Address) String() string {
	return hex.EncodeToString(a[:])
}

func (a Address) Bytes() []byte {
	return a[:]
}

func (a Address) IsZero() bool {
	return a == Zero
}

func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

func (a *Address) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
