package rpc

import (
	"encoding/json"
	"fmt"

	"github.com/klingon-exchange/klingvault/internal/account"
	"github.com/klingon-exchange/klingvault/internal/chain"
	"github.com/klingon-exchange/klingvault/pkg/helpers"
)

// ========================================
// Result types
// ========================================

// IdentityInfo is an account id / public key pair with its scheme.
// Byte fields are 0x-prefixed hex.
type IdentityInfo struct {
	AccountID  string             `json:"account_id"`
	PublicKey  string             `json:"public_key"`
	CryptoType account.CryptoType `json:"crypto_type"`
}

// ChainAccountInfo is a per-chain override.
type ChainAccountInfo struct {
	ChainID string `json:"chain_id"`
	IdentityInfo
}

// MetaAccountInfo is the JSON shape of a wallet.
type MetaAccountInfo struct {
	MetaID        string             `json:"meta_id"`
	Name          string             `json:"name"`
	Substrate     IdentityInfo       `json:"substrate"`
	Ethereum      *IdentityInfo      `json:"ethereum,omitempty"`
	ChainAccounts []ChainAccountInfo `json:"chain_accounts"`
	Currency      account.Currency   `json:"currency"`
}

// ChainInfo is the JSON shape of a registry chain.
type ChainInfo struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	IsEthereumBased bool   `json:"is_ethereum_based"`
	AddressFormat   string `json:"address_format"`
	Testnet         bool   `json:"testnet,omitempty"`
}

// ResolveResult is the response for accounts_resolve.
type ResolveResult struct {
	MetaID   string       `json:"meta_id"`
	ChainID  string       `json:"chain_id"`
	Chain    string       `json:"chain"`
	Source   string       `json:"source"`
	Address  string       `json:"address"`
	Identity IdentityInfo `json:"identity"`
}

// ProjectionResult is the response for accounts_projection.
type ProjectionResult struct {
	MetaID    string   `json:"meta_id"`
	Available []string `json:"available"`
	Missing   []string `json:"missing"`
}

func identityInfo(id account.Identity) IdentityInfo {
	return IdentityInfo{
		AccountID:  helpers.BytesToHex(id.AccountID),
		PublicKey:  helpers.BytesToHex(id.PublicKey),
		CryptoType: id.CryptoType,
	}
}

func metaAccountInfo(m *account.MetaAccount) *MetaAccountInfo {
	info := &MetaAccountInfo{
		MetaID:        m.ID(),
		Name:          m.Name(),
		Substrate:     identityInfo(m.Substrate()),
		ChainAccounts: []ChainAccountInfo{},
		Currency:      m.Currency(),
	}
	if eth, ok := m.Ethereum(); ok {
		ethInfo := identityInfo(eth)
		info.Ethereum = &ethInfo
	}
	for _, ca := range m.ChainAccounts() {
		info.ChainAccounts = append(info.ChainAccounts, ChainAccountInfo{
			ChainID:      ca.ChainID,
			IdentityInfo: identityInfo(ca.Identity()),
		})
	}
	return info
}

func chainInfo(c chain.Chain) ChainInfo {
	return ChainInfo{
		ID:              c.ID,
		Name:            c.Name,
		IsEthereumBased: c.IsEthereumBased,
		AddressFormat:   c.Format.String(),
		Testnet:         c.Testnet,
	}
}

// ========================================
// Param helpers
// ========================================

func parseParams(params json.RawMessage, v interface{}) error {
	if len(params) == 0 {
		return fmt.Errorf("%w: missing params", errInvalidParams)
	}
	if err := json.Unmarshal(params, v); err != nil {
		return fmt.Errorf("%w: %v", errInvalidParams, err)
	}
	return nil
}

func requireString(name, v string) error {
	if v == "" {
		return fmt.Errorf("%w: %s is required", errInvalidParams, name)
	}
	return nil
}

// decodeHexParam decodes an optional hex parameter. Empty maps to nil.
func decodeHexParam(name, v string) ([]byte, error) {
	if v == "" {
		return nil, nil
	}
	b, err := helpers.DecodeHex(v)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return b, nil
}

// cryptoTypeOr returns *ct or def when the parameter was omitted.
func cryptoTypeOr(ct *account.CryptoType, def account.CryptoType) account.CryptoType {
	if ct == nil {
		return def
	}
	return *ct
}
