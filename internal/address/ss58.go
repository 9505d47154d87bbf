package address

import (
	"fmt"

	"github.com/btcsuite/btcd/btcutil/base58"
	"golang.org/x/crypto/blake2b"
)

var ss58Preimage = []byte("SS58PRE")

const ss58ChecksumLength = 2

// prefixBytes encodes a network prefix: one byte below 64, otherwise
// the two byte form with the 0b01 marker in the top bits of the first byte.
func prefixBytes(prefix uint16) []byte {
	if prefix < 64 {
		return []byte{byte(prefix)}
	}
	first := byte((prefix&0b1111_1100)>>2) | 0b0100_0000
	second := byte(prefix>>8) | byte((prefix&0b11)<<6)
	return []byte{first, second}
}

// isReservedPrefix reports the prefixes SS58 keeps out of use.
func isReservedPrefix(prefix uint16) bool {
	return prefix == 46 || prefix == 47
}

// parsePrefix reads the network prefix from the start of a decoded payload.
// Two-byte forms of prefixes below 64 are not canonical and are rejected.
func parsePrefix(data []byte) (prefix uint16, size int, ok bool) {
	if len(data) == 0 {
		return 0, 0, false
	}
	switch {
	case data[0] < 64:
		return uint16(data[0]), 1, true
	case data[0] < 128:
		if len(data) < 2 {
			return 0, 0, false
		}
		lower := (data[0]&0b0011_1111)<<2 | data[1]>>6
		upper := data[1] & 0b0011_1111
		prefix = uint16(lower) | uint16(upper)<<8
		if prefix < 64 {
			return 0, 0, false
		}
		return prefix, 2, true
	default:
		return 0, 0, false
	}
}

func ss58Checksum(payload []byte) []byte {
	h, _ := blake2b.New512(nil)
	h.Write(ss58Preimage)
	h.Write(payload)
	return h.Sum(nil)[:ss58ChecksumLength]
}

func encodeSS58(accountID []byte, prefix uint16) (string, error) {
	if len(accountID) != SubstrateAccountIDLength {
		return "", &AddressError{
			Reason: ReasonLength,
			Detail: fmt.Sprintf("account id has %d bytes, want %d", len(accountID), SubstrateAccountIDLength),
		}
	}

	payload := append(prefixBytes(prefix), accountID...)
	payload = append(payload, ss58Checksum(payload)...)
	return base58.Encode(payload), nil
}

func decodeSS58(addr string, prefix uint16) ([]byte, error) {
	// base58.Decode returns an empty slice for characters outside the alphabet.
	data := base58.Decode(addr)
	if len(data) == 0 {
		return nil, &AddressError{Address: addr, Reason: ReasonEncoding}
	}

	got, size, ok := parsePrefix(data)
	if !ok {
		return nil, &AddressError{Address: addr, Reason: ReasonPrefix, Detail: "unknown prefix encoding"}
	}
	if isReservedPrefix(got) {
		return nil, &AddressError{Address: addr, Reason: ReasonPrefix, Detail: fmt.Sprintf("reserved prefix %d", got)}
	}

	if len(data) != size+SubstrateAccountIDLength+ss58ChecksumLength {
		return nil, &AddressError{
			Address: addr,
			Reason:  ReasonLength,
			Detail:  fmt.Sprintf("decoded %d bytes", len(data)),
		}
	}

	body := data[:len(data)-ss58ChecksumLength]
	checksum := data[len(data)-ss58ChecksumLength:]
	want := ss58Checksum(body)
	if checksum[0] != want[0] || checksum[1] != want[1] {
		return nil, &AddressError{Address: addr, Reason: ReasonChecksum}
	}

	if got != prefix {
		return nil, &AddressError{
			Address: addr,
			Reason:  ReasonPrefix,
			Detail:  fmt.Sprintf("network prefix %d, want %d", got, prefix),
		}
	}

	accountID := make([]byte, SubstrateAccountIDLength)
	copy(accountID, body[size:])
	return accountID, nil
}

// PrefixOf returns the network prefix an SS58 address was encoded with,
// after verifying its checksum.
func PrefixOf(addr string) (uint16, error) {
	data := base58.Decode(addr)
	if len(data) == 0 {
		return 0, &AddressError{Address: addr, Reason: ReasonEncoding}
	}
	got, size, ok := parsePrefix(data)
	if !ok {
		return 0, &AddressError{Address: addr, Reason: ReasonPrefix, Detail: "unknown prefix encoding"}
	}
	if len(data) != size+SubstrateAccountIDLength+ss58ChecksumLength {
		return 0, &AddressError{Address: addr, Reason: ReasonLength}
	}
	if _, err := decodeSS58(addr, got); err != nil {
		return 0, err
	}
	return got, nil
}
