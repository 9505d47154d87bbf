package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/klingon-exchange/klingvault/internal/account"
	"github.com/klingon-exchange/klingvault/internal/address"
	"github.com/klingon-exchange/klingvault/internal/chain"
	"github.com/klingon-exchange/klingvault/internal/derivation"
	"github.com/klingon-exchange/klingvault/pkg/helpers"
)

// ========================================
// Node handlers
// ========================================

// NodeInfoResult is the response for node_info.
type NodeInfoResult struct {
	Version  string `json:"version"`
	Chains   int    `json:"chains"`
	Accounts int    `json:"accounts"`
	Selected string `json:"selected,omitempty"`
}

func (s *Server) nodeInfo(ctx context.Context, params json.RawMessage) (interface{}, error) {
	info := &NodeInfoResult{
		Version:  s.version,
		Chains:   s.chains.Len(),
		Accounts: len(s.wallet.List()),
	}
	if m, err := s.wallet.Selected(); err == nil {
		info.Selected = m.ID()
	}
	return info, nil
}

// ========================================
// Chain handlers
// ========================================

// ChainsListParams is the parameters for chains_list.
type ChainsListParams struct {
	// EthereumBased filters the list when set.
	EthereumBased *bool `json:"ethereum_based,omitempty"`
}

func (s *Server) chainsList(ctx context.Context, params json.RawMessage) (interface{}, error) {
	var p ChainsListParams
	if len(params) > 0 {
		if err := parseParams(params, &p); err != nil {
			return nil, err
		}
	}

	var chains []chain.Chain
	if p.EthereumBased != nil {
		chains = s.chains.ListByEthereumFlag(*p.EthereumBased)
	} else {
		chains = s.chains.List()
	}

	out := make([]ChainInfo, 0, len(chains))
	for _, c := range chains {
		out = append(out, chainInfo(c))
	}
	return out, nil
}

// ChainsReloadResult is the response for chains_reload.
type ChainsReloadResult struct {
	Added   []string `json:"added"`
	Removed []string `json:"removed"`
	Updated []string `json:"updated"`
	Total   int      `json:"total"`
}

func chainIDs(chains []chain.Chain) []string {
	ids := make([]string, 0, len(chains))
	for _, c := range chains {
		ids = append(ids, c.ID)
	}
	return ids
}

func (s *Server) chainsReload(ctx context.Context, params json.RawMessage) (interface{}, error) {
	if s.loadChains == nil {
		return nil, fmt.Errorf("chain reload is not configured")
	}

	chains, err := s.loadChains()
	if err != nil {
		return nil, fmt.Errorf("failed to load chains: %w", err)
	}

	change, err := s.chains.Replace(chains)
	if err != nil {
		return nil, fmt.Errorf("failed to install chains: %w", err)
	}

	s.log.Info("Chain registry reloaded",
		"added", len(change.Added),
		"removed", len(change.Removed),
		"updated", len(change.Updated))

	return &ChainsReloadResult{
		Added:   chainIDs(change.Added),
		Removed: chainIDs(change.Removed),
		Updated: chainIDs(change.Updated),
		Total:   s.chains.Len(),
	}, nil
}

// ========================================
// Codec handlers
// ========================================

// AddressParams selects an address format. ChainID wins over Prefix.
type AddressParams struct {
	ChainID string  `json:"chain_id,omitempty"`
	Prefix  *uint16 `json:"prefix,omitempty"` // ss58 network prefix
}

func (s *Server) addressFormat(p AddressParams) (address.Format, error) {
	if p.ChainID != "" {
		c, err := s.chains.Lookup(p.ChainID)
		if err != nil {
			return address.Format{}, err
		}
		return c.Format, nil
	}
	if p.Prefix != nil {
		f := address.Substrate(*p.Prefix)
		if err := f.Validate(); err != nil {
			return address.Format{}, fmt.Errorf("%w: %v", errInvalidParams, err)
		}
		return f, nil
	}
	return address.Format{}, fmt.Errorf("%w: chain_id or prefix is required", errInvalidParams)
}

// AddressEncodeParams is the parameters for address_encode.
type AddressEncodeParams struct {
	AddressParams
	AccountID string `json:"account_id"`
}

func (s *Server) addressEncode(ctx context.Context, params json.RawMessage) (interface{}, error) {
	var p AddressEncodeParams
	if err := parseParams(params, &p); err != nil {
		return nil, err
	}
	if err := requireString("account_id", p.AccountID); err != nil {
		return nil, err
	}
	f, err := s.addressFormat(p.AddressParams)
	if err != nil {
		return nil, err
	}
	id, err := decodeHexParam("account_id", p.AccountID)
	if err != nil {
		return nil, err
	}

	addr, err := address.Encode(id, f)
	if err != nil {
		return nil, err
	}
	return map[string]string{"address": addr, "format": f.String()}, nil
}

// AddressDecodeParams is the parameters for address_decode.
type AddressDecodeParams struct {
	AddressParams
	Address string `json:"address"`
}

func (s *Server) addressDecode(ctx context.Context, params json.RawMessage) (interface{}, error) {
	var p AddressDecodeParams
	if err := parseParams(params, &p); err != nil {
		return nil, err
	}
	if err := requireString("address", p.Address); err != nil {
		return nil, err
	}
	f, err := s.addressFormat(p.AddressParams)
	if err != nil {
		return nil, err
	}

	id, err := address.Decode(p.Address, f)
	if err != nil {
		return nil, err
	}
	return map[string]string{"account_id": helpers.BytesToHex(id), "format": f.String()}, nil
}

// DerivationValidateParams is the parameters for derivation_validate.
type DerivationValidateParams struct {
	Path       string             `json:"path"`
	CryptoType account.CryptoType `json:"crypto_type"`
	Source     string             `json:"source,omitempty"` // mnemonic, seed or keystore
}

// DerivationValidateResult is the response for derivation_validate.
// Rejected paths are reported in the result rather than as an error.
type DerivationValidateResult struct {
	Valid       bool     `json:"valid"`
	Family      string   `json:"family,omitempty"`
	Junctions   []string `json:"junctions,omitempty"`
	HasPassword bool     `json:"has_password,omitempty"`
	Reason      string   `json:"reason,omitempty"`
	Segment     string   `json:"segment,omitempty"`
}

func parseSecretSource(v string) (derivation.SecretSource, error) {
	switch v {
	case "", "mnemonic":
		return derivation.SourceMnemonic, nil
	case "seed":
		return derivation.SourceSeed, nil
	case "keystore":
		return derivation.SourceKeystore, nil
	default:
		return 0, fmt.Errorf("%w: unknown secret source %q", errInvalidParams, v)
	}
}

func (s *Server) derivationValidate(ctx context.Context, params json.RawMessage) (interface{}, error) {
	var p DerivationValidateParams
	if err := parseParams(params, &p); err != nil {
		return nil, err
	}
	src, err := parseSecretSource(p.Source)
	if err != nil {
		return nil, err
	}

	path, err := derivation.Validate(p.Path, p.CryptoType, src)
	if err != nil {
		var pe *derivation.PathError
		if !errors.As(err, &pe) {
			return nil, err
		}
		return &DerivationValidateResult{Reason: string(pe.Reason), Segment: pe.Segment}, nil
	}

	res := &DerivationValidateResult{
		Valid:       true,
		Family:      "substrate",
		Junctions:   make([]string, 0, len(path.Junctions)),
		HasPassword: path.HasPassword,
	}
	if path.Family == derivation.FamilyEthereum {
		res.Family = "ethereum"
	}
	for _, j := range path.Junctions {
		res.Junctions = append(res.Junctions, j.String())
	}
	return res, nil
}
