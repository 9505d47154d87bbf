package account

import (
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/klingon-exchange/klingvault/internal/chain"
	"github.com/klingon-exchange/klingvault/pkg/helpers"
)

// Source tells which identity of a wallet answered a resolution.
type Source int

const (
	SourceNone Source = iota
	SourceOverride
	SourceEthereum
	SourceSubstrate
)

func (s Source) String() string {
	switch s {
	case SourceOverride:
		return "override"
	case SourceEthereum:
		return "ethereum"
	case SourceSubstrate:
		return "substrate"
	default:
		return "none"
	}
}

// Params holds the inputs of NewMetaAccount.
type Params struct {
	MetaID string // generated when empty
	Name   string

	SubstrateAccountID  []byte
	SubstratePublicKey  []byte
	SubstrateCryptoType CryptoType

	// Both set or both empty.
	EthereumAddress   []byte
	EthereumPublicKey []byte

	ChainAccounts []ChainAccount
	Currency      Currency // DefaultCurrency() when zero
}

// MetaAccount is a wallet: one substrate root identity, an optional shared
// ethereum identity and per-chain overrides keyed by chain id.
type MetaAccount struct {
	metaID        string
	name          string
	substrate     Identity
	ethereum      *Identity
	chainAccounts map[string]ChainAccount
	currency      Currency
}

// NewMetaAccount validates params and builds a wallet.
func NewMetaAccount(p Params) (*MetaAccount, error) {
	name := strings.TrimSpace(p.Name)
	if name == "" {
		return nil, ErrEmptyName
	}

	substrate := Identity{
		AccountID:  helpers.CloneBytes(p.SubstrateAccountID),
		PublicKey:  helpers.CloneBytes(p.SubstratePublicKey),
		CryptoType: p.SubstrateCryptoType,
	}
	if !substrate.CryptoType.IsSubstrate() {
		return nil, fmt.Errorf("%w: substrate root cannot use crypto type %s",
			ErrInconsistentAccountData, substrate.CryptoType)
	}
	if err := substrate.Validate(); err != nil {
		return nil, fmt.Errorf("substrate root: %w", err)
	}

	var ethereum *Identity
	hasAddr, hasKey := len(p.EthereumAddress) > 0, len(p.EthereumPublicKey) > 0
	switch {
	case hasAddr != hasKey:
		return nil, fmt.Errorf("%w: ethereum address and public key must be set together",
			ErrInconsistentAccountData)
	case hasAddr:
		id := Identity{
			AccountID:  helpers.CloneBytes(p.EthereumAddress),
			PublicKey:  helpers.CloneBytes(p.EthereumPublicKey),
			CryptoType: EthereumEcdsa,
		}
		if err := id.Validate(); err != nil {
			return nil, fmt.Errorf("ethereum identity: %w", err)
		}
		ethereum = &id
	}

	metaID := p.MetaID
	if metaID == "" {
		metaID = uuid.New().String()
	}

	m := &MetaAccount{
		metaID:        metaID,
		name:          name,
		substrate:     substrate,
		ethereum:      ethereum,
		chainAccounts: make(map[string]ChainAccount, len(p.ChainAccounts)),
		currency:      p.Currency,
	}
	if m.currency.IsZero() {
		m.currency = DefaultCurrency()
	}

	for _, ca := range p.ChainAccounts {
		if err := ca.Validate(); err != nil {
			return nil, fmt.Errorf("chain account %s: %w", ca.ChainID, err)
		}
		if _, dup := m.chainAccounts[ca.ChainID]; dup {
			return nil, fmt.Errorf("%w: duplicate chain account for %s", ErrInconsistentAccountData, ca.ChainID)
		}
		m.chainAccounts[ca.ChainID] = ca.clone()
	}

	return m, nil
}

// ID returns the stable wallet identifier.
func (m *MetaAccount) ID() string { return m.metaID }

// Name returns the display label.
func (m *MetaAccount) Name() string { return m.name }

// Currency returns the selected fiat currency.
func (m *MetaAccount) Currency() Currency { return m.currency }

// Substrate returns a copy of the substrate root identity.
func (m *MetaAccount) Substrate() Identity { return m.substrate.clone() }

// Ethereum returns a copy of the shared ethereum identity, if any.
func (m *MetaAccount) Ethereum() (Identity, bool) {
	if m.ethereum == nil {
		return Identity{}, false
	}
	return m.ethereum.clone(), true
}

// HasEthereum reports whether a shared ethereum identity exists.
func (m *MetaAccount) HasEthereum() bool { return m.ethereum != nil }

// AccountFor resolves the identity used on c:
//  1. the override for c.ID,
//  2. the shared ethereum identity on ethereum-based chains,
//  3. the substrate root on substrate chains.
//
// The bool is false when none applies.
func (m *MetaAccount) AccountFor(c chain.Chain) (Identity, Source, bool) {
	if ca, ok := m.chainAccounts[c.ID]; ok {
		return ca.Identity(), SourceOverride, true
	}
	if c.IsEthereumBased {
		if m.ethereum != nil {
			return m.ethereum.clone(), SourceEthereum, true
		}
		return Identity{}, SourceNone, false
	}
	return m.substrate.clone(), SourceSubstrate, true
}

// SetOverride binds ca to c, replacing any previous override for the chain.
// Ethereum-based chains only accept EthereumEcdsa accounts and substrate
// chains only substrate ones.
func (m *MetaAccount) SetOverride(c chain.Chain, ca ChainAccount) error {
	if ca.ChainID == "" {
		ca.ChainID = c.ID
	}
	if ca.ChainID != c.ID {
		return fmt.Errorf("%w: chain account is for %s, not %s", ErrInconsistentAccountData, ca.ChainID, c.ID)
	}
	if err := ca.Validate(); err != nil {
		return err
	}
	if c.IsEthereumBased != ca.CryptoType.IsEthereumCompatible() {
		return fmt.Errorf("%w: crypto type %s cannot be used on %s", ErrInconsistentAccountData, ca.CryptoType, c.Name)
	}
	m.chainAccounts[c.ID] = ca.clone()
	return nil
}

// ChainAccount returns the override for a chain id.
func (m *MetaAccount) ChainAccount(chainID string) (ChainAccount, bool) {
	ca, ok := m.chainAccounts[chainID]
	if !ok {
		return ChainAccount{}, false
	}
	return ca.clone(), true
}

// ChainAccounts returns all overrides sorted by chain id.
func (m *MetaAccount) ChainAccounts() []ChainAccount {
	out := make([]ChainAccount, 0, len(m.chainAccounts))
	for _, ca := range m.chainAccounts {
		out = append(out, ca.clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ChainID < out[j].ChainID })
	return out
}

// Rename sets the display label. Renaming to the current name is a no-op.
func (m *MetaAccount) Rename(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrEmptyName
	}
	m.name = name
	return nil
}

// SetCurrency sets the fiat currency preference.
func (m *MetaAccount) SetCurrency(c Currency) {
	c.IsSelected = true
	m.currency = c
}

// Clone returns a deep copy.
func (m *MetaAccount) Clone() *MetaAccount {
	out := &MetaAccount{
		metaID:        m.metaID,
		name:          m.name,
		substrate:     m.substrate.clone(),
		chainAccounts: make(map[string]ChainAccount, len(m.chainAccounts)),
		currency:      m.currency,
	}
	if m.ethereum != nil {
		eth := m.ethereum.clone()
		out.ethereum = &eth
	}
	for id, ca := range m.chainAccounts {
		out.chainAccounts[id] = ca.clone()
	}
	return out
}
