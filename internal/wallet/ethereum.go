package wallet

import (
	"crypto/ecdsa"
	"fmt"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/tyler-smith/go-bip39"

	"github.com/klingon-exchange/klingvault/internal/account"
	"github.com/klingon-exchange/klingvault/internal/derivation"
)

// deriveEthereumFromMnemonic derives a BIP-44 key. The path password is the
// BIP39 passphrase; an empty path selects m/44'/60'/0'/0/0.
func deriveEthereumFromMnemonic(mnemonic string, p *derivation.Path) (*KeyPair, error) {
	dp, err := p.BIP32()
	if err != nil {
		return nil, err
	}

	seed := bip39.NewSeed(mnemonic, p.Password)
	defer SecureClear(seed)

	// Master key params only affect serialization, not the derived keys.
	key, err := hdkeychain.NewMaster(seed, &chaincfg.MainNetParams)
	if err != nil {
		return nil, fmt.Errorf("failed to create master key: %w", err)
	}

	for _, index := range dp {
		key, err = key.Derive(index)
		if err != nil {
			return nil, fmt.Errorf("failed to derive %s: %w", dp, err)
		}
	}

	priv, err := key.ECPrivKey()
	if err != nil {
		return nil, fmt.Errorf("failed to get private key: %w", err)
	}
	raw := priv.Serialize()
	defer SecureClear(raw)

	return ethereumKeyPair(raw)
}

// ethereumKeyPair builds the identity of a raw secp256k1 private key.
func ethereumKeyPair(privateKey []byte) (*KeyPair, error) {
	key, err := crypto.ToECDSA(privateKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSeed, err)
	}
	return ethereumKeyPairFromECDSA(key), nil
}

func ethereumKeyPairFromECDSA(key *ecdsa.PrivateKey) *KeyPair {
	addr := crypto.PubkeyToAddress(key.PublicKey)
	return &KeyPair{
		Identity: account.Identity{
			AccountID:  addr.Bytes(),
			PublicKey:  crypto.CompressPubkey(&key.PublicKey),
			CryptoType: account.EthereumEcdsa,
		},
		PrivateKey: crypto.FromECDSA(key),
	}
}
