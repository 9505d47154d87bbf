package account

import (
	"fmt"
	"strings"

	"github.com/klingon-exchange/klingvault/internal/address"
	"github.com/klingon-exchange/klingvault/pkg/helpers"
)

// Identity is a resolved (account id, public key, crypto type) triple.
type Identity struct {
	AccountID  []byte
	PublicKey  []byte
	CryptoType CryptoType
}

// Validate checks that the account id length matches the crypto type and
// that a public key is present.
func (i Identity) Validate() error {
	if !i.CryptoType.IsValid() {
		return fmt.Errorf("%w: %w", ErrInconsistentAccountData, ErrUnknownCryptoType)
	}
	if want := i.CryptoType.ExpectedAccountIDLength(); len(i.AccountID) != want {
		return fmt.Errorf("%w: %s account id must be %d bytes, got %d",
			ErrInconsistentAccountData, i.CryptoType, want, len(i.AccountID))
	}
	if len(i.PublicKey) == 0 {
		return fmt.Errorf("%w: public key is empty", ErrInconsistentAccountData)
	}
	return nil
}

// Address renders the account id in the given chain format.
func (i Identity) Address(f address.Format) (string, error) {
	return address.Encode(i.AccountID, f)
}

// Equal compares two identities byte for byte.
func (i Identity) Equal(o Identity) bool {
	return i.CryptoType == o.CryptoType &&
		helpers.BytesEqual(i.AccountID, o.AccountID) &&
		helpers.BytesEqual(i.PublicKey, o.PublicKey)
}

func (i Identity) clone() Identity {
	return Identity{
		AccountID:  helpers.CloneBytes(i.AccountID),
		PublicKey:  helpers.CloneBytes(i.PublicKey),
		CryptoType: i.CryptoType,
	}
}

// ChainAccount is an override identity bound to one chain.
type ChainAccount struct {
	ChainID    string
	AccountID  []byte
	PublicKey  []byte
	CryptoType CryptoType
}

// NewChainAccount builds a validated chain account. The byte slices are copied.
func NewChainAccount(chainID string, accountID, publicKey []byte, ct CryptoType) (ChainAccount, error) {
	ca := ChainAccount{
		ChainID:    chainID,
		AccountID:  helpers.CloneBytes(accountID),
		PublicKey:  helpers.CloneBytes(publicKey),
		CryptoType: ct,
	}
	if err := ca.Validate(); err != nil {
		return ChainAccount{}, err
	}
	return ca, nil
}

// Validate checks the chain id and the identity consistency.
func (ca ChainAccount) Validate() error {
	if strings.TrimSpace(ca.ChainID) == "" {
		return fmt.Errorf("%w: chain id is empty", ErrInconsistentAccountData)
	}
	return ca.Identity().Validate()
}

// Identity returns the chain account as a resolved triple.
func (ca ChainAccount) Identity() Identity {
	return Identity{
		AccountID:  helpers.CloneBytes(ca.AccountID),
		PublicKey:  helpers.CloneBytes(ca.PublicKey),
		CryptoType: ca.CryptoType,
	}
}

func (ca ChainAccount) clone() ChainAccount {
	return ChainAccount{
		ChainID:    ca.ChainID,
		AccountID:  helpers.CloneBytes(ca.AccountID),
		PublicKey:  helpers.CloneBytes(ca.PublicKey),
		CryptoType: ca.CryptoType,
	}
}
