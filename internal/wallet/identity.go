package wallet

import (
	"fmt"

	"filippo.io/edwards25519"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/ethereum/go-ethereum/crypto"
	"golang.org/x/crypto/blake2b"

	"github.com/klingon-exchange/klingvault/internal/account"
	"github.com/klingon-exchange/klingvault/pkg/helpers"
)

// IdentityFromPublicKey validates a raw public key and computes its
// account id. ECDSA keys may be compressed or uncompressed; the returned
// identity always holds the compressed form.
func IdentityFromPublicKey(pub []byte, ct account.CryptoType) (account.Identity, error) {
	id := account.Identity{CryptoType: ct}

	switch ct {
	case account.SR25519:
		if len(pub) != 32 {
			return id, fmt.Errorf("%w: sr25519 key must be 32 bytes, got %d", ErrInvalidPublicKey, len(pub))
		}
		id.AccountID = helpers.CloneBytes(pub)
		id.PublicKey = helpers.CloneBytes(pub)

	case account.Ed25519:
		if len(pub) != 32 {
			return id, fmt.Errorf("%w: ed25519 key must be 32 bytes, got %d", ErrInvalidPublicKey, len(pub))
		}
		if _, err := new(edwards25519.Point).SetBytes(pub); err != nil {
			return id, fmt.Errorf("%w: %v", ErrInvalidPublicKey, err)
		}
		id.AccountID = helpers.CloneBytes(pub)
		id.PublicKey = helpers.CloneBytes(pub)

	case account.SubstrateEcdsa:
		key, err := secp256k1.ParsePubKey(pub)
		if err != nil {
			return id, fmt.Errorf("%w: %v", ErrInvalidPublicKey, err)
		}
		compressed := key.SerializeCompressed()
		hash := blake2b.Sum256(compressed)
		id.AccountID = hash[:]
		id.PublicKey = compressed

	case account.EthereumEcdsa:
		var raw []byte
		switch len(pub) {
		case 33:
			key, err := crypto.DecompressPubkey(pub)
			if err != nil {
				return id, fmt.Errorf("%w: %v", ErrInvalidPublicKey, err)
			}
			raw = crypto.FromECDSAPub(key)
		case 64:
			raw = append([]byte{0x04}, pub...)
		case 65:
			raw = pub
		default:
			return id, fmt.Errorf("%w: ethereum key must be 33, 64 or 65 bytes, got %d", ErrInvalidPublicKey, len(pub))
		}
		key, err := crypto.UnmarshalPubkey(raw)
		if err != nil {
			return id, fmt.Errorf("%w: %v", ErrInvalidPublicKey, err)
		}
		id.AccountID = crypto.PubkeyToAddress(*key).Bytes()
		id.PublicKey = crypto.CompressPubkey(key)

	default:
		return id, fmt.Errorf("%w: %s", account.ErrUnknownCryptoType, ct)
	}

	return id, nil
}

// VerifyIdentity checks that the account id of id belongs to its public key.
func VerifyIdentity(id account.Identity) error {
	if err := id.Validate(); err != nil {
		return err
	}
	want, err := IdentityFromPublicKey(id.PublicKey, id.CryptoType)
	if err != nil {
		return err
	}
	if !helpers.BytesEqual(want.AccountID, id.AccountID) {
		return fmt.Errorf("%w: expected %x", ErrIdentityMismatch, want.AccountID)
	}
	return nil
}
