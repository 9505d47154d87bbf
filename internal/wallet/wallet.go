// Package wallet derives the identities stored in a MetaAccount from
// mnemonics, raw seeds and keystore files, keeps the encrypted secrets
// that produced them, and manages the wallet lifecycle.
package wallet

import (
	"fmt"
	"strings"

	"github.com/tyler-smith/go-bip39"

	"github.com/klingon-exchange/klingvault/internal/account"
	"github.com/klingon-exchange/klingvault/internal/derivation"
)

// SeedLength is the size of a raw seed: a substrate mini secret or an
// ethereum private key.
const SeedLength = 32

// KeyPair is a derived identity with the private material behind it.
type KeyPair struct {
	Identity   account.Identity
	PrivateKey []byte
}

// Clear zeroes the private key.
func (k *KeyPair) Clear() {
	if k != nil {
		SecureClear(k.PrivateKey)
	}
}

// GenerateMnemonic generates a new BIP39 mnemonic of 12 or 24 words.
// Zero selects 24 words.
func GenerateMnemonic(words int) (string, error) {
	var bits int
	switch words {
	case 0, 24:
		bits = 256
	case 12:
		bits = 128
	default:
		return "", fmt.Errorf("unsupported mnemonic length %d (use 12 or 24)", words)
	}

	entropy, err := bip39.NewEntropy(bits)
	if err != nil {
		return "", fmt.Errorf("failed to generate entropy: %w", err)
	}

	mnemonic, err := bip39.NewMnemonic(entropy)
	if err != nil {
		return "", fmt.Errorf("failed to generate mnemonic: %w", err)
	}

	return mnemonic, nil
}

// ValidateMnemonic checks if a mnemonic is valid.
func ValidateMnemonic(mnemonic string) bool {
	return bip39.IsMnemonicValid(normalizeMnemonic(mnemonic))
}

func normalizeMnemonic(mnemonic string) string {
	return strings.Join(strings.Fields(mnemonic), " ")
}

// DeriveFromMnemonic derives the key pair of ct at path from a mnemonic.
// A ///password suffix on the path is used as the mnemonic password.
func DeriveFromMnemonic(mnemonic, path string, ct account.CryptoType) (*KeyPair, error) {
	p, err := derivation.Validate(path, ct, derivation.SourceMnemonic)
	if err != nil {
		return nil, err
	}
	mnemonic = normalizeMnemonic(mnemonic)
	if !bip39.IsMnemonicValid(mnemonic) {
		return nil, ErrInvalidMnemonic
	}

	if p.Family == derivation.FamilyEthereum {
		return deriveEthereumFromMnemonic(mnemonic, p)
	}

	seed, err := substrateMiniSecret(mnemonic, p.Password)
	if err != nil {
		return nil, err
	}
	defer SecureClear(seed[:])
	return deriveSubstrate(seed, p)
}

// DeriveFromSeed derives the key pair of ct at path from a 32-byte seed.
// Ethereum seeds are private keys and only accept the empty path.
func DeriveFromSeed(seed []byte, path string, ct account.CryptoType) (*KeyPair, error) {
	p, err := derivation.Validate(path, ct, derivation.SourceSeed)
	if err != nil {
		return nil, err
	}
	if len(seed) != SeedLength {
		return nil, fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidSeed, SeedLength, len(seed))
	}

	if p.Family == derivation.FamilyEthereum {
		if !p.IsRoot() {
			return nil, fmt.Errorf("%w: raw ethereum keys cannot be derived further", ErrUnsupportedDerivation)
		}
		return ethereumKeyPair(seed)
	}

	var s [SeedLength]byte
	copy(s[:], seed)
	defer SecureClear(s[:])
	return deriveSubstrate(s, p)
}
