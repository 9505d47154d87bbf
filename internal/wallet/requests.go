package wallet

import (
	"fmt"

	"github.com/klingon-exchange/klingvault/internal/account"
	"github.com/klingon-exchange/klingvault/internal/derivation"
)

// Secret slots of a wallet. Chain account overrides use the chain id.
const (
	SlotSubstrate = "@substrate"
	SlotEthereum  = "@ethereum"
)

// MnemonicRequest creates a wallet from a BIP39 mnemonic.
type MnemonicRequest struct {
	Name       string
	Mnemonic   string
	Password   string             // vault password
	CryptoType account.CryptoType // substrate root scheme
	Path       string             // substrate derivation path
	// EthereumPath defaults to m/44'/60'/0'/0/0.
	EthereumPath    string
	WithoutEthereum bool
}

// SeedRequest creates a wallet from raw 32-byte seeds.
type SeedRequest struct {
	Name         string
	Seed         []byte
	Password     string
	CryptoType   account.CryptoType
	Path         string
	EthereumSeed []byte // optional private key
}

// KeystoreRequest creates a wallet from keystore files.
type KeystoreRequest struct {
	Name             string
	Keystore         []byte // polkadot-js file for the substrate root
	KeystorePassword string
	Path             string // must be empty
	Password         string

	EthereumKeystore         []byte // optional V3 or polkadot-js ethereum file
	EthereumKeystorePassword string
}

// WatchOnlyRequest creates a wallet from public keys only.
type WatchOnlyRequest struct {
	Name               string
	SubstratePublicKey []byte
	CryptoType         account.CryptoType
	EthereumPublicKey  []byte // optional
}

// ChainAccountRequest describes the identity bound to a chain by
// AddChainAccount. Exactly one source must be set.
type ChainAccountRequest struct {
	CryptoType account.CryptoType
	Path       string

	Mnemonic         string
	Seed             []byte
	Keystore         []byte
	KeystorePassword string
	PublicKey        []byte // watch-only override

	Password string // vault password, required for secret sources
}

func (r *ChainAccountRequest) source() (derivation.SecretSource, bool, error) {
	set := 0
	var src derivation.SecretSource
	watch := false
	if r.Mnemonic != "" {
		set++
		src = derivation.SourceMnemonic
	}
	if len(r.Seed) > 0 {
		set++
		src = derivation.SourceSeed
	}
	if len(r.Keystore) > 0 {
		set++
		src = derivation.SourceKeystore
	}
	if len(r.PublicKey) > 0 {
		set++
		watch = true
	}
	if set != 1 {
		return 0, false, fmt.Errorf("%w: exactly one of mnemonic, seed, keystore or public key is required", ErrInvalidRequest)
	}
	return src, watch, nil
}
