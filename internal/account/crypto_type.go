package account

import (
	"fmt"
	"strings"
)

// CryptoType is the signature scheme used to derive a key pair.
// The numeric values are persisted and must never change.
type CryptoType uint8

const (
	SR25519        CryptoType = 0
	Ed25519        CryptoType = 1
	SubstrateEcdsa CryptoType = 2
	EthereumEcdsa  CryptoType = 3
)

// Account id lengths per family.
const (
	SubstrateAccountIDLength = 32
	EthereumAccountIDLength  = 20
)

var cryptoTypeLabels = map[CryptoType]string{
	SR25519:        "sr25519",
	Ed25519:        "ed25519",
	SubstrateEcdsa: "ecdsa",
	EthereumEcdsa:  "ethereum",
}

// AllCryptoTypes lists every supported scheme in tag order.
func AllCryptoTypes() []CryptoType {
	return []CryptoType{SR25519, Ed25519, SubstrateEcdsa, EthereumEcdsa}
}

// CryptoTypeFromTag maps a persisted tag to a CryptoType.
func CryptoTypeFromTag(tag uint8) (CryptoType, error) {
	ct := CryptoType(tag)
	if !ct.IsValid() {
		return 0, fmt.Errorf("%w: tag %d", ErrUnknownCryptoType, tag)
	}
	return ct, nil
}

// ParseCryptoType maps a label (sr25519, ed25519, ecdsa, ethereum) to a CryptoType.
func ParseCryptoType(label string) (CryptoType, error) {
	l := strings.ToLower(strings.TrimSpace(label))
	for ct, name := range cryptoTypeLabels {
		if name == l {
			return ct, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownCryptoType, label)
}

// IsValid returns true for the four known schemes.
func (c CryptoType) IsValid() bool {
	_, ok := cryptoTypeLabels[c]
	return ok
}

// Tag returns the persisted numeric tag.
func (c CryptoType) Tag() uint8 {
	return uint8(c)
}

// ExpectedAccountIDLength returns 20 for ethereum keys and 32 otherwise.
func (c CryptoType) ExpectedAccountIDLength() int {
	if c == EthereumEcdsa {
		return EthereumAccountIDLength
	}
	return SubstrateAccountIDLength
}

// IsEthereumCompatible is true only for EthereumEcdsa.
func (c CryptoType) IsEthereumCompatible() bool {
	return c == EthereumEcdsa
}

// IsSubstrate is true for sr25519, ed25519 and substrate ecdsa.
func (c CryptoType) IsSubstrate() bool {
	return c.IsValid() && !c.IsEthereumCompatible()
}

func (c CryptoType) String() string {
	if name, ok := cryptoTypeLabels[c]; ok {
		return name
	}
	return fmt.Sprintf("unknown(%d)", uint8(c))
}

// StorageTag returns the tag as the database column stores it: the byte
// reinterpreted as a signed value and widened.
func (c CryptoType) StorageTag() int16 {
	return int16(int8(c))
}

// CryptoTypeFromStorageTag reverses StorageTag.
func CryptoTypeFromStorageTag(v int16) (CryptoType, error) {
	if v < -128 || v > 255 {
		return 0, fmt.Errorf("%w: storage value %d", ErrUnknownCryptoType, v)
	}
	return CryptoTypeFromTag(uint8(v))
}

// MarshalText encodes the label.
func (c CryptoType) MarshalText() ([]byte, error) {
	if !c.IsValid() {
		return nil, fmt.Errorf("%w: tag %d", ErrUnknownCryptoType, uint8(c))
	}
	return []byte(c.String()), nil
}

// UnmarshalText decodes a label.
func (c *CryptoType) UnmarshalText(text []byte) error {
	ct, err := ParseCryptoType(string(text))
	if err != nil {
		return err
	}
	*c = ct
	return nil
}
