package helpers

import (
	"crypto/subtle"
	"encoding/binary"
)

// BytesEqual checks if two byte slices are equal.
func BytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// CloneBytes returns a copy of b. Nil stays nil.
func CloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

// IsZeroBytes checks if all bytes in the slice are zero.
func IsZeroBytes(b []byte) bool {
	for _, v := range b {
		if v != 0 {
			return false
		}
	}
	return true
}

// PadRight pads a byte slice with zeros on the right to reach the specified length.
func PadRight(b []byte, length int) []byte {
	if len(b) >= length {
		return b
	}
	result := make([]byte, length)
	copy(result, b)
	return result
}

// CompactLength returns the SCALE compact encoding of n.
// Only the single, two and four byte modes are needed for lengths.
func CompactLength(n int) []byte {
	switch {
	case n < 1<<6:
		return []byte{byte(n) << 2}
	case n < 1<<14:
		out := make([]byte, 2)
		binary.LittleEndian.PutUint16(out, uint16(n)<<2|0b01)
		return out
	default:
		out := make([]byte, 4)
		binary.LittleEndian.PutUint32(out, uint32(n)<<2|0b10)
		return out
	}
}

// ConstantTimeCompare compares two byte slices in constant time.
func ConstantTimeCompare(a, b []byte) bool {
	return subtle.ConstantTimeCompare(a, b) == 1
}
