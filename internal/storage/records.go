package storage

import (
	"errors"
	"fmt"
	"time"

	"github.com/klingon-exchange/klingvault/internal/account"
	"github.com/klingon-exchange/klingvault/pkg/helpers"
)

// MetaAccountRecord is the persisted shape of a wallet.
type MetaAccountRecord struct {
	MetaID              string
	Name                string
	SubstrateAccountID  string // hex
	SubstratePublicKey  string // hex
	SubstrateCryptoType int16
	EthereumAddress     *string // hex, set together with EthereumPublicKey
	EthereumPublicKey   *string

	CurrencyID       *int // nil when no currency was stored
	CurrencySymbol   string
	CurrencyName     string
	CurrencyIcon     string
	CurrencySelected bool

	Position  int
	CreatedAt time.Time
	UpdatedAt time.Time

	ChainAccounts []ChainAccountRecord
}

// ChainAccountRecord is the persisted shape of a chain account override.
type ChainAccountRecord struct {
	ChainID    string
	AccountID  string // hex
	PublicKey  string // hex
	CryptoType int16
}

// ToRecord converts a wallet to its persisted shape.
func ToRecord(m *account.MetaAccount) *MetaAccountRecord {
	sub := m.Substrate()
	cur := m.Currency()
	currencyID := cur.ID

	rec := &MetaAccountRecord{
		MetaID:              m.ID(),
		Name:                m.Name(),
		SubstrateAccountID:  helpers.EncodeHex(sub.AccountID),
		SubstratePublicKey:  helpers.EncodeHex(sub.PublicKey),
		SubstrateCryptoType: sub.CryptoType.StorageTag(),
		CurrencyID:          &currencyID,
		CurrencySymbol:      cur.Symbol,
		CurrencyName:        cur.Name,
		CurrencyIcon:        cur.Icon,
		CurrencySelected:    cur.IsSelected,
	}

	if eth, ok := m.Ethereum(); ok {
		rec.EthereumAddress = helpers.EncodeHexOptional(eth.AccountID)
		rec.EthereumPublicKey = helpers.EncodeHexOptional(eth.PublicKey)
	}

	for _, ca := range m.ChainAccounts() {
		rec.ChainAccounts = append(rec.ChainAccounts, ChainAccountRecord{
			ChainID:    ca.ChainID,
			AccountID:  helpers.EncodeHex(ca.AccountID),
			PublicKey:  helpers.EncodeHex(ca.PublicKey),
			CryptoType: ca.CryptoType.StorageTag(),
		})
	}

	return rec
}

// ToModel converts the record back to a wallet. Chain accounts carrying an
// unknown crypto type tag are left out of the wallet and returned so the
// caller can report them. An unknown tag on the substrate root fails the
// whole conversion with ErrUnknownCryptoType.
func (r *MetaAccountRecord) ToModel() (*account.MetaAccount, []ChainAccountRecord, error) {
	ct, err := account.CryptoTypeFromStorageTag(r.SubstrateCryptoType)
	if err != nil {
		return nil, nil, fmt.Errorf("meta account %s: %w", r.MetaID, err)
	}

	subID, err := helpers.DecodeHex(r.SubstrateAccountID)
	if err != nil {
		return nil, nil, fmt.Errorf("meta account %s: substrate account id: %w", r.MetaID, err)
	}
	subPub, err := helpers.DecodeHex(r.SubstratePublicKey)
	if err != nil {
		return nil, nil, fmt.Errorf("meta account %s: substrate public key: %w", r.MetaID, err)
	}
	ethAddr, err := helpers.DecodeHexOptional(r.EthereumAddress)
	if err != nil {
		return nil, nil, fmt.Errorf("meta account %s: ethereum address: %w", r.MetaID, err)
	}
	ethPub, err := helpers.DecodeHexOptional(r.EthereumPublicKey)
	if err != nil {
		return nil, nil, fmt.Errorf("meta account %s: ethereum public key: %w", r.MetaID, err)
	}

	var (
		chainAccounts []account.ChainAccount
		skipped       []ChainAccountRecord
	)
	for _, car := range r.ChainAccounts {
		ca, err := car.ToModel()
		if errors.Is(err, account.ErrUnknownCryptoType) {
			skipped = append(skipped, car)
			continue
		}
		if err != nil {
			return nil, nil, fmt.Errorf("meta account %s: %w", r.MetaID, err)
		}
		chainAccounts = append(chainAccounts, ca)
	}

	m, err := account.NewMetaAccount(account.Params{
		MetaID:              r.MetaID,
		Name:                r.Name,
		SubstrateAccountID:  subID,
		SubstratePublicKey:  subPub,
		SubstrateCryptoType: ct,
		EthereumAddress:     ethAddr,
		EthereumPublicKey:   ethPub,
		ChainAccounts:       chainAccounts,
		Currency:            r.currency(),
	})
	if err != nil {
		return nil, nil, fmt.Errorf("meta account %s: %w", r.MetaID, err)
	}
	return m, skipped, nil
}

func (r *MetaAccountRecord) currency() account.Currency {
	if r.CurrencyID == nil {
		return account.DefaultCurrency()
	}
	return account.Currency{
		ID:         *r.CurrencyID,
		Symbol:     r.CurrencySymbol,
		Name:       r.CurrencyName,
		Icon:       r.CurrencyIcon,
		IsSelected: r.CurrencySelected,
	}
}

// ToModel converts a chain account record.
func (r ChainAccountRecord) ToModel() (account.ChainAccount, error) {
	ct, err := account.CryptoTypeFromStorageTag(r.CryptoType)
	if err != nil {
		return account.ChainAccount{}, fmt.Errorf("chain account %s: %w", r.ChainID, err)
	}
	accountID, err := helpers.DecodeHex(r.AccountID)
	if err != nil {
		return account.ChainAccount{}, fmt.Errorf("chain account %s: account id: %w", r.ChainID, err)
	}
	pub, err := helpers.DecodeHex(r.PublicKey)
	if err != nil {
		return account.ChainAccount{}, fmt.Errorf("chain account %s: public key: %w", r.ChainID, err)
	}
	return account.NewChainAccount(r.ChainID, accountID, pub, ct)
}
