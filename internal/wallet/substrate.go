package wallet

import (
	"crypto/ed25519"
	"crypto/sha512"
	"fmt"

	schnorrkel "github.com/ChainSafe/go-schnorrkel"
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/tyler-smith/go-bip39"
	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/pbkdf2"

	"github.com/klingon-exchange/klingvault/internal/account"
	"github.com/klingon-exchange/klingvault/internal/derivation"
	"github.com/klingon-exchange/klingvault/pkg/helpers"
)

const substrateSeedIterations = 2048

// HDKD domain tags for hard derivation.
const (
	ed25519HDKD   = "Ed25519HDKD"
	secp256k1HDKD = "Secp256k1HDKD"
)

// substrateMiniSecret computes the 32-byte mini secret of a mnemonic:
// PBKDF2-SHA512 over the BIP39 entropy (not the phrase).
func substrateMiniSecret(mnemonic, password string) ([SeedLength]byte, error) {
	var seed [SeedLength]byte

	entropy, err := bip39.EntropyFromMnemonic(mnemonic)
	if err != nil {
		return seed, fmt.Errorf("%w: %v", ErrInvalidMnemonic, err)
	}
	defer SecureClear(entropy)

	key := pbkdf2.Key(entropy, []byte("mnemonic"+password), substrateSeedIterations, 64, sha512.New)
	defer SecureClear(key)

	copy(seed[:], key[:SeedLength])
	return seed, nil
}

// hardDerive computes blake2b-256 over the SCALE encoding of
// (tag, seed, chain code).
func hardDerive(tag string, seed [SeedLength]byte, cc [derivation.ChainCodeLength]byte) [SeedLength]byte {
	buf := make([]byte, 0, 1+len(tag)+SeedLength+derivation.ChainCodeLength)
	buf = append(buf, helpers.CompactLength(len(tag))...)
	buf = append(buf, tag...)
	buf = append(buf, seed[:]...)
	buf = append(buf, cc[:]...)
	defer SecureClear(buf)
	return blake2b.Sum256(buf)
}

// deriveSubstrate walks the junctions of p from seed and builds the key
// pair. Soft junctions are only reachable for sr25519; the path validator
// rejects them for ed25519 and ecdsa.
func deriveSubstrate(seed [SeedLength]byte, p *derivation.Path) (*KeyPair, error) {
	var tag string
	switch p.CryptoType {
	case account.SR25519:
		return sr25519KeyPair(seed, p.Junctions)
	case account.Ed25519:
		tag = ed25519HDKD
	case account.SubstrateEcdsa:
		tag = secp256k1HDKD
	default:
		return nil, fmt.Errorf("%w: %s is not a substrate scheme", ErrUnsupportedDerivation, p.CryptoType)
	}

	for _, j := range p.Junctions {
		if !j.Hard {
			return nil, fmt.Errorf("%w: soft junction %s", ErrUnsupportedDerivation, j)
		}
		seed = hardDerive(tag, seed, j.ChainCode())
	}

	if p.CryptoType == account.Ed25519 {
		return ed25519KeyPair(seed), nil
	}
	return substrateEcdsaKeyPair(seed), nil
}

// sr25519KeyPair expands the mini secret in ed25519 mode and applies the
// schnorrkel HDKD for each junction.
func sr25519KeyPair(seed [SeedLength]byte, junctions []derivation.Junction) (*KeyPair, error) {
	mini, err := schnorrkel.NewMiniSecretKeyFromRaw(seed)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSeed, err)
	}
	secret := mini.ExpandEd25519()

	for _, j := range junctions {
		if j.Hard {
			next, _, err := secret.HardDeriveMiniSecretKey([]byte{}, j.ChainCode())
			if err != nil {
				return nil, fmt.Errorf("sr25519 hard junction %s: %w", j, err)
			}
			secret = next.ExpandEd25519()
			continue
		}
		ext, err := schnorrkel.DeriveKeySimple(secret, []byte{}, j.ChainCode())
		if err != nil {
			return nil, fmt.Errorf("sr25519 soft junction %s: %w", j, err)
		}
		if secret, err = ext.Secret(); err != nil {
			return nil, fmt.Errorf("sr25519 soft junction %s: %w", j, err)
		}
	}

	pub, err := secret.Public()
	if err != nil {
		return nil, fmt.Errorf("sr25519 public key: %w", err)
	}
	pubBytes := pub.Encode()
	secretBytes := secret.Encode()
	defer SecureClear(secretBytes[:])

	return &KeyPair{
		Identity: account.Identity{
			AccountID:  helpers.CloneBytes(pubBytes[:]),
			PublicKey:  helpers.CloneBytes(pubBytes[:]),
			CryptoType: account.SR25519,
		},
		PrivateKey: helpers.CloneBytes(secretBytes[:]),
	}, nil
}

func ed25519KeyPair(seed [SeedLength]byte) *KeyPair {
	priv := ed25519.NewKeyFromSeed(seed[:])
	pub := priv.Public().(ed25519.PublicKey)
	SecureClear(priv)

	return &KeyPair{
		Identity: account.Identity{
			AccountID:  helpers.CloneBytes(pub),
			PublicKey:  helpers.CloneBytes(pub),
			CryptoType: account.Ed25519,
		},
		PrivateKey: helpers.CloneBytes(seed[:]),
	}
}

func substrateEcdsaKeyPair(seed [SeedLength]byte) *KeyPair {
	priv, pub := btcec.PrivKeyFromBytes(seed[:])
	compressed := pub.SerializeCompressed()
	id := blake2b.Sum256(compressed)

	return &KeyPair{
		Identity: account.Identity{
			AccountID:  id[:],
			PublicKey:  compressed,
			CryptoType: account.SubstrateEcdsa,
		},
		PrivateKey: priv.Serialize(),
	}
}
