package rpc

import (
	"context"
	"encoding/json"

	"github.com/klingon-exchange/klingvault/internal/account"
	"github.com/klingon-exchange/klingvault/internal/wallet"
)

// ========================================
// Mnemonic handlers
// ========================================

// GenerateMnemonicParams is the parameters for wallet_generateMnemonic.
type GenerateMnemonicParams struct {
	Words int `json:"words,omitempty"` // 12 or 24, default 24
}

// GenerateMnemonicResult is the response for wallet_generateMnemonic.
type GenerateMnemonicResult struct {
	Mnemonic string `json:"mnemonic"`
}

func (s *Server) walletGenerateMnemonic(ctx context.Context, params json.RawMessage) (interface{}, error) {
	var p GenerateMnemonicParams
	if len(params) > 0 {
		if err := parseParams(params, &p); err != nil {
			return nil, err
		}
	}

	mnemonic, err := s.wallet.GenerateMnemonic(p.Words)
	if err != nil {
		return nil, err
	}
	return &GenerateMnemonicResult{Mnemonic: mnemonic}, nil
}

// ValidateMnemonicParams is the parameters for wallet_validateMnemonic.
type ValidateMnemonicParams struct {
	Mnemonic string `json:"mnemonic"`
}

func (s *Server) walletValidateMnemonic(ctx context.Context, params json.RawMessage) (interface{}, error) {
	var p ValidateMnemonicParams
	if err := parseParams(params, &p); err != nil {
		return nil, err
	}
	return map[string]bool{"valid": s.wallet.ValidateMnemonic(p.Mnemonic)}, nil
}

// ========================================
// Creation handlers
// ========================================

// CreateFromMnemonicParams is the parameters for accounts_createFromMnemonic.
type CreateFromMnemonicParams struct {
	Name            string              `json:"name"`
	Mnemonic        string              `json:"mnemonic"`
	Password        string              `json:"password"`
	CryptoType      *account.CryptoType `json:"crypto_type,omitempty"` // default sr25519
	Path            string              `json:"path,omitempty"`
	EthereumPath    string              `json:"ethereum_path,omitempty"`
	WithoutEthereum bool                `json:"without_ethereum,omitempty"`
}

func (s *Server) accountsCreateFromMnemonic(ctx context.Context, params json.RawMessage) (interface{}, error) {
	var p CreateFromMnemonicParams
	if err := parseParams(params, &p); err != nil {
		return nil, err
	}
	if err := requireString("mnemonic", p.Mnemonic); err != nil {
		return nil, err
	}

	m, err := s.wallet.CreateFromMnemonic(&wallet.MnemonicRequest{
		Name:            p.Name,
		Mnemonic:        p.Mnemonic,
		Password:        p.Password,
		CryptoType:      cryptoTypeOr(p.CryptoType, account.SR25519),
		Path:            p.Path,
		EthereumPath:    p.EthereumPath,
		WithoutEthereum: p.WithoutEthereum,
	})
	if err != nil {
		return nil, err
	}
	return metaAccountInfo(m), nil
}

// CreateFromSeedParams is the parameters for accounts_createFromSeed.
// Seeds are 32-byte hex strings.
type CreateFromSeedParams struct {
	Name         string              `json:"name"`
	Seed         string              `json:"seed"`
	Password     string              `json:"password"`
	CryptoType   *account.CryptoType `json:"crypto_type,omitempty"`
	Path         string              `json:"path,omitempty"`
	EthereumSeed string              `json:"ethereum_seed,omitempty"`
}

func (s *Server) accountsCreateFromSeed(ctx context.Context, params json.RawMessage) (interface{}, error) {
	var p CreateFromSeedParams
	if err := parseParams(params, &p); err != nil {
		return nil, err
	}
	if err := requireString("seed", p.Seed); err != nil {
		return nil, err
	}
	seed, err := decodeHexParam("seed", p.Seed)
	if err != nil {
		return nil, err
	}
	ethSeed, err := decodeHexParam("ethereum_seed", p.EthereumSeed)
	if err != nil {
		return nil, err
	}

	m, err := s.wallet.CreateFromSeed(&wallet.SeedRequest{
		Name:         p.Name,
		Seed:         seed,
		Password:     p.Password,
		CryptoType:   cryptoTypeOr(p.CryptoType, account.SR25519),
		Path:         p.Path,
		EthereumSeed: ethSeed,
	})
	if err != nil {
		return nil, err
	}
	return metaAccountInfo(m), nil
}

// CreateFromKeystoreParams is the parameters for accounts_createFromKeystore.
// Keystores are passed as JSON objects.
type CreateFromKeystoreParams struct {
	Name                     string          `json:"name"`
	Keystore                 json.RawMessage `json:"keystore"`
	KeystorePassword         string          `json:"keystore_password"`
	Path                     string          `json:"path,omitempty"`
	Password                 string          `json:"password"`
	EthereumKeystore         json.RawMessage `json:"ethereum_keystore,omitempty"`
	EthereumKeystorePassword string          `json:"ethereum_keystore_password,omitempty"`
}

func (s *Server) accountsCreateFromKeystore(ctx context.Context, params json.RawMessage) (interface{}, error) {
	var p CreateFromKeystoreParams
	if err := parseParams(params, &p); err != nil {
		return nil, err
	}
	if len(p.Keystore) == 0 {
		return nil, requireString("keystore", "")
	}

	m, err := s.wallet.CreateFromKeystore(&wallet.KeystoreRequest{
		Name:                     p.Name,
		Keystore:                 p.Keystore,
		KeystorePassword:         p.KeystorePassword,
		Path:                     p.Path,
		Password:                 p.Password,
		EthereumKeystore:         p.EthereumKeystore,
		EthereumKeystorePassword: p.EthereumKeystorePassword,
	})
	if err != nil {
		return nil, err
	}
	return metaAccountInfo(m), nil
}

// CreateWatchOnlyParams is the parameters for accounts_createWatchOnly.
type CreateWatchOnlyParams struct {
	Name               string              `json:"name"`
	SubstratePublicKey string              `json:"substrate_public_key"`
	CryptoType         *account.CryptoType `json:"crypto_type,omitempty"`
	EthereumPublicKey  string              `json:"ethereum_public_key,omitempty"`
}

func (s *Server) accountsCreateWatchOnly(ctx context.Context, params json.RawMessage) (interface{}, error) {
	var p CreateWatchOnlyParams
	if err := parseParams(params, &p); err != nil {
		return nil, err
	}
	if err := requireString("substrate_public_key", p.SubstratePublicKey); err != nil {
		return nil, err
	}
	subKey, err := decodeHexParam("substrate_public_key", p.SubstratePublicKey)
	if err != nil {
		return nil, err
	}
	ethKey, err := decodeHexParam("ethereum_public_key", p.EthereumPublicKey)
	if err != nil {
		return nil, err
	}

	m, err := s.wallet.CreateWatchOnly(&wallet.WatchOnlyRequest{
		Name:               p.Name,
		SubstratePublicKey: subKey,
		CryptoType:         cryptoTypeOr(p.CryptoType, account.SR25519),
		EthereumPublicKey:  ethKey,
	})
	if err != nil {
		return nil, err
	}
	return metaAccountInfo(m), nil
}

// ========================================
// Query and update handlers
// ========================================

// MetaIDParams is the parameters for methods addressing one wallet.
type MetaIDParams struct {
	MetaID string `json:"meta_id"`
}

func (s *Server) accountsList(ctx context.Context, params json.RawMessage) (interface{}, error) {
	list := s.wallet.List()
	out := make([]*MetaAccountInfo, 0, len(list))
	for _, m := range list {
		out = append(out, metaAccountInfo(m))
	}
	return out, nil
}

func (s *Server) accountsGet(ctx context.Context, params json.RawMessage) (interface{}, error) {
	var p MetaIDParams
	if err := parseParams(params, &p); err != nil {
		return nil, err
	}
	m, err := s.wallet.Get(p.MetaID)
	if err != nil {
		return nil, err
	}
	return metaAccountInfo(m), nil
}

// RenameParams is the parameters for accounts_rename.
type RenameParams struct {
	MetaID string `json:"meta_id"`
	Name   string `json:"name"`
}

func (s *Server) accountsRename(ctx context.Context, params json.RawMessage) (interface{}, error) {
	var p RenameParams
	if err := parseParams(params, &p); err != nil {
		return nil, err
	}
	m, err := s.wallet.Rename(p.MetaID, p.Name)
	if err != nil {
		return nil, err
	}
	return metaAccountInfo(m), nil
}

// SetCurrencyParams is the parameters for accounts_setCurrency.
type SetCurrencyParams struct {
	MetaID   string           `json:"meta_id"`
	Currency account.Currency `json:"currency"`
}

func (s *Server) accountsSetCurrency(ctx context.Context, params json.RawMessage) (interface{}, error) {
	var p SetCurrencyParams
	if err := parseParams(params, &p); err != nil {
		return nil, err
	}
	if err := requireString("currency.name", p.Currency.Name); err != nil {
		return nil, err
	}
	m, err := s.wallet.SetCurrency(p.MetaID, p.Currency)
	if err != nil {
		return nil, err
	}
	return metaAccountInfo(m), nil
}

func (s *Server) accountsDelete(ctx context.Context, params json.RawMessage) (interface{}, error) {
	var p MetaIDParams
	if err := parseParams(params, &p); err != nil {
		return nil, err
	}
	if err := s.wallet.Delete(p.MetaID); err != nil {
		return nil, err
	}
	return map[string]interface{}{"success": true, "meta_id": p.MetaID}, nil
}

func (s *Server) accountsSelect(ctx context.Context, params json.RawMessage) (interface{}, error) {
	var p MetaIDParams
	if err := parseParams(params, &p); err != nil {
		return nil, err
	}
	if err := s.wallet.Select(p.MetaID); err != nil {
		return nil, err
	}
	return map[string]interface{}{"success": true, "meta_id": p.MetaID}, nil
}

func (s *Server) accountsSelected(ctx context.Context, params json.RawMessage) (interface{}, error) {
	m, err := s.wallet.Selected()
	if err != nil {
		return nil, err
	}
	return metaAccountInfo(m), nil
}

// ========================================
// Per-chain handlers
// ========================================

// AddChainAccountParams is the parameters for accounts_addChainAccount.
// Exactly one of mnemonic, seed, keystore or public_key must be set.
type AddChainAccountParams struct {
	MetaID           string              `json:"meta_id"`
	ChainID          string              `json:"chain_id"`
	CryptoType       *account.CryptoType `json:"crypto_type"`
	Path             string              `json:"path,omitempty"`
	Mnemonic         string              `json:"mnemonic,omitempty"`
	Seed             string              `json:"seed,omitempty"`
	Keystore         json.RawMessage     `json:"keystore,omitempty"`
	KeystorePassword string              `json:"keystore_password,omitempty"`
	PublicKey        string              `json:"public_key,omitempty"`
	Password         string              `json:"password,omitempty"`
}

func (s *Server) accountsAddChainAccount(ctx context.Context, params json.RawMessage) (interface{}, error) {
	var p AddChainAccountParams
	if err := parseParams(params, &p); err != nil {
		return nil, err
	}
	if err := requireString("chain_id", p.ChainID); err != nil {
		return nil, err
	}
	if p.CryptoType == nil {
		return nil, requireString("crypto_type", "")
	}
	seed, err := decodeHexParam("seed", p.Seed)
	if err != nil {
		return nil, err
	}
	pub, err := decodeHexParam("public_key", p.PublicKey)
	if err != nil {
		return nil, err
	}

	m, err := s.wallet.AddChainAccount(p.MetaID, p.ChainID, &wallet.ChainAccountRequest{
		CryptoType:       *p.CryptoType,
		Path:             p.Path,
		Mnemonic:         p.Mnemonic,
		Seed:             seed,
		Keystore:         p.Keystore,
		KeystorePassword: p.KeystorePassword,
		PublicKey:        pub,
		Password:         p.Password,
	})
	if err != nil {
		return nil, err
	}
	return metaAccountInfo(m), nil
}

// ResolveParams is the parameters for accounts_resolve.
type ResolveParams struct {
	MetaID  string `json:"meta_id"`
	ChainID string `json:"chain_id"`
}

func (s *Server) accountsResolve(ctx context.Context, params json.RawMessage) (interface{}, error) {
	var p ResolveParams
	if err := parseParams(params, &p); err != nil {
		return nil, err
	}
	res, err := s.wallet.Resolve(p.MetaID, p.ChainID)
	if err != nil {
		return nil, err
	}
	return &ResolveResult{
		MetaID:   res.MetaID,
		ChainID:  res.Chain.ID,
		Chain:    res.Chain.Name,
		Source:   res.Source.String(),
		Address:  res.Address,
		Identity: identityInfo(res.Identity),
	}, nil
}

func (s *Server) accountsProjection(ctx context.Context, params json.RawMessage) (interface{}, error) {
	var p MetaIDParams
	if err := parseParams(params, &p); err != nil {
		return nil, err
	}
	proj, err := s.wallet.Projection(p.MetaID)
	if err != nil {
		return nil, err
	}
	res := &ProjectionResult{MetaID: proj.MetaID, Available: proj.Available, Missing: proj.Missing}
	if res.Available == nil {
		res.Available = []string{}
	}
	if res.Missing == nil {
		res.Missing = []string{}
	}
	return res, nil
}
