// Package helpers provides common utility functions used across the codebase.
package helpers

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidHex is returned when a string is not a well-formed hex byte sequence.
var ErrInvalidHex = errors.New("invalid hex")

// DecodeHex converts a hex string (with or without 0x prefix) to bytes.
// Odd-length input and non-hex digits are rejected rather than truncated.
func DecodeHex(s string) ([]byte, error) {
	trimmed := strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if len(trimmed)%2 != 0 {
		return nil, fmt.Errorf("%w: odd length %d", ErrInvalidHex, len(trimmed))
	}
	b, err := hex.DecodeString(trimmed)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidHex, err)
	}
	return b, nil
}

// DecodeHexOptional decodes an optional hex field. Nil maps to nil.
func DecodeHexOptional(s *string) ([]byte, error) {
	if s == nil {
		return nil, nil
	}
	return DecodeHex(*s)
}

// EncodeHex converts bytes to a lowercase hex string without prefix,
// which is the persisted form of account ids and public keys.
func EncodeHex(b []byte) string {
	return hex.EncodeToString(b)
}

// EncodeHexOptional encodes an optional byte field. Nil maps to nil.
func EncodeHexOptional(b []byte) *string {
	if b == nil {
		return nil
	}
	s := hex.EncodeToString(b)
	return &s
}

// BytesToHex converts bytes to a hex string with 0x prefix.
func BytesToHex(b []byte) string {
	return "0x" + hex.EncodeToString(b)
}
