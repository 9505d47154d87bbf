// Package address converts raw account ids to chain-specific display
// addresses and back.
//
// Substrate-format chains use SS58: base58 over a network prefix, the
// account id and a two byte blake2b checksum. Ethereum-format chains use
// 0x-prefixed hex with an optional EIP-55 mixed-case checksum.
package address

import (
	"errors"
	"fmt"
)

// Kind selects the address family of a chain.
type Kind int

const (
	KindSubstrate Kind = iota
	KindEthereum
)

func (k Kind) String() string {
	switch k {
	case KindSubstrate:
		return "substrate"
	case KindEthereum:
		return "ethereum"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// MaxPrefix is the largest network prefix representable in SS58.
const MaxPrefix = 16383

// Account id sizes accepted by the codecs.
const (
	SubstrateAccountIDLength = 32
	EthereumAccountIDLength  = 20
)

// Format holds a chain's address format parameters.
type Format struct {
	Kind     Kind
	Prefix   uint16 // SS58 network prefix, substrate only
	Checksum bool   // EIP-55 mixed case on encode, ethereum only
}

// Substrate returns an SS58 format for the given network prefix.
func Substrate(prefix uint16) Format {
	return Format{Kind: KindSubstrate, Prefix: prefix}
}

// Ethereum returns the checksummed hex format.
func Ethereum() Format {
	return Format{Kind: KindEthereum, Checksum: true}
}

// Validate checks the format parameters.
func (f Format) Validate() error {
	switch f.Kind {
	case KindSubstrate:
		if f.Prefix > MaxPrefix {
			return fmt.Errorf("ss58 prefix %d exceeds maximum %d", f.Prefix, MaxPrefix)
		}
		if isReservedPrefix(f.Prefix) {
			return fmt.Errorf("ss58 prefix %d is reserved", f.Prefix)
		}
		return nil
	case KindEthereum:
		return nil
	default:
		return fmt.Errorf("unknown address kind %d", int(f.Kind))
	}
}

// AccountIDLength returns the account id size this format encodes.
func (f Format) AccountIDLength() int {
	if f.Kind == KindEthereum {
		return EthereumAccountIDLength
	}
	return SubstrateAccountIDLength
}

func (f Format) String() string {
	if f.Kind == KindSubstrate {
		return fmt.Sprintf("ss58(%d)", f.Prefix)
	}
	return f.Kind.String()
}

// ErrInvalidAddress is matched by every decoding failure.
var ErrInvalidAddress = errors.New("invalid address")

// Reason explains why an address was rejected.
type Reason string

const (
	ReasonEncoding Reason = "malformed encoding"
	ReasonLength   Reason = "length mismatch"
	ReasonChecksum Reason = "checksum mismatch"
	ReasonPrefix   Reason = "prefix mismatch"
)

// AddressError is returned by Decode and Encode.
type AddressError struct {
	Address string
	Reason  Reason
	Detail  string
}

func (e *AddressError) Error() string {
	msg := fmt.Sprintf("invalid address %q: %s", e.Address, e.Reason)
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

// Is makes errors.Is(err, ErrInvalidAddress) hold for every AddressError.
func (e *AddressError) Is(target error) bool {
	return target == ErrInvalidAddress
}

// Encode renders an account id in the given format.
func Encode(accountID []byte, f Format) (string, error) {
	if err := f.Validate(); err != nil {
		return "", err
	}
	switch f.Kind {
	case KindEthereum:
		return encodeEthereum(accountID, f.Checksum)
	default:
		return encodeSS58(accountID, f.Prefix)
	}
}

// Decode parses an address and returns the account id it carries.
// The address must match the format's kind, length and network prefix.
func Decode(addr string, f Format) ([]byte, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	switch f.Kind {
	case KindEthereum:
		return decodeEthereum(addr)
	default:
		return decodeSS58(addr, f.Prefix)
	}
}

// IsValid reports whether addr decodes under f.
func IsValid(addr string, f Format) bool {
	_, err := Decode(addr, f)
	return err == nil
}
