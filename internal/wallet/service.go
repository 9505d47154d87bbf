package wallet

import (
	"errors"
	"fmt"
	"sync"

	"github.com/klingon-exchange/klingvault/internal/account"
	"github.com/klingon-exchange/klingvault/internal/chain"
	"github.com/klingon-exchange/klingvault/internal/derivation"
	"github.com/klingon-exchange/klingvault/internal/storage"
	"github.com/klingon-exchange/klingvault/pkg/logging"
)

// Event types emitted by the service.
const (
	EventMetaAccountChanged = "meta_account_changed"
	EventMetaAccountRemoved = "meta_account_removed"
	EventChainsReconciled   = "chains_reconciled"
)

// Event is a notification about a wallet change.
type Event struct {
	Type string
	Data interface{}
}

// Resolved is the identity and address a wallet uses on a chain.
type Resolved struct {
	MetaID   string
	Chain    chain.Chain
	Identity account.Identity
	Source   account.Source
	Address  string
}

// Service manages the MetaAccount lifecycle. Writes are serialized per
// meta id; reads run concurrently. Mutations are applied to a clone that
// replaces the cached wallet only after it was persisted.
type Service struct {
	store  *storage.Storage
	chains *chain.Registry
	log    *logging.Logger

	mu          sync.RWMutex
	wallets     map[string]*account.MetaAccount
	order       []string
	projections map[string]account.Projection

	locks *keyedMutex

	listenersMu sync.RWMutex
	listeners   []func(Event)

	unsubscribe func()
}

// ServiceConfig holds configuration for the wallet service.
type ServiceConfig struct {
	Storage *storage.Storage
	Chains  *chain.Registry
	Logger  *logging.Logger
}

// NewService loads all wallets from storage and subscribes to chain
// registry changes.
func NewService(cfg *ServiceConfig) (*Service, error) {
	if cfg == nil || cfg.Storage == nil {
		return nil, errors.New("wallet service requires storage")
	}

	chains := cfg.Chains
	if chains == nil {
		chains = chain.Default()
	}
	log := cfg.Logger
	if log == nil {
		log = logging.GetDefault().Component("wallet")
	}

	s := &Service{
		store:       cfg.Storage,
		chains:      chains,
		log:         log,
		wallets:     make(map[string]*account.MetaAccount),
		projections: make(map[string]account.Projection),
		locks:       newKeyedMutex(),
	}

	if err := s.load(); err != nil {
		return nil, err
	}

	s.unsubscribe = chains.Subscribe(func(c chain.Change) {
		s.log.Debug("Chain registry changed", "added", len(c.Added), "removed", len(c.Removed), "updated", len(c.Updated))
		s.Reconcile()
	})

	return s, nil
}

// Close stops listening to registry changes.
func (s *Service) Close() {
	if s.unsubscribe != nil {
		s.unsubscribe()
	}
}

func (s *Service) load() error {
	records, err := s.store.ListMetaAccounts()
	if err != nil {
		return fmt.Errorf("failed to load wallets: %w", err)
	}

	chains := s.chains.List()
	for _, rec := range records {
		m, skipped, err := rec.ToModel()
		if err != nil {
			s.log.Warn("Skipping unreadable wallet", "meta_id", rec.MetaID, "error", err)
			continue
		}
		for _, ca := range skipped {
			s.log.Warn("Skipping chain account with unknown crypto type",
				"meta_id", rec.MetaID, "chain_id", ca.ChainID, "tag", ca.CryptoType)
		}
		s.wallets[m.ID()] = m
		s.order = append(s.order, m.ID())
		s.projections[m.ID()] = account.Project(m, chains)
	}

	s.log.Info("Wallets loaded", "count", len(s.wallets))
	return nil
}

// Subscribe registers a callback for service events.
func (s *Service) Subscribe(fn func(Event)) {
	s.listenersMu.Lock()
	defer s.listenersMu.Unlock()
	s.listeners = append(s.listeners, fn)
}

func (s *Service) emit(eventType string, data interface{}) {
	s.listenersMu.RLock()
	listeners := append([]func(Event){}, s.listeners...)
	s.listenersMu.RUnlock()

	for _, fn := range listeners {
		fn(Event{Type: eventType, Data: data})
	}
}

// Chains returns the chain registry the service resolves against.
func (s *Service) Chains() *chain.Registry {
	return s.chains
}

// =============================================================================
// Creation
// =============================================================================

// GenerateMnemonic generates a new mnemonic.
func (s *Service) GenerateMnemonic(words int) (string, error) {
	return GenerateMnemonic(words)
}

// ValidateMnemonic checks if a mnemonic is valid.
func (s *Service) ValidateMnemonic(mnemonic string) bool {
	return ValidateMnemonic(mnemonic)
}

// CreateFromMnemonic creates a wallet whose substrate root and shared
// ethereum identity are derived from one mnemonic.
func (s *Service) CreateFromMnemonic(req *MnemonicRequest) (*account.MetaAccount, error) {
	if err := ValidatePassword(req.Password); err != nil {
		return nil, err
	}
	if !req.CryptoType.IsSubstrate() {
		return nil, fmt.Errorf("%w: substrate root cannot use %s", account.ErrInconsistentAccountData, req.CryptoType)
	}

	sub, err := DeriveFromMnemonic(req.Mnemonic, req.Path, req.CryptoType)
	if err != nil {
		return nil, fmt.Errorf("substrate key: %w", err)
	}
	defer sub.Clear()

	mnemonic := []byte(normalizeMnemonic(req.Mnemonic))
	defer SecureClear(mnemonic)

	secrets := []*secretSlot{{
		slot:  SlotSubstrate,
		entry: &SecretEntry{Source: derivation.SourceMnemonic.String(), Secret: mnemonic, Path: req.Path, CryptoType: req.CryptoType},
	}}

	var eth *KeyPair
	if !req.WithoutEthereum {
		ethPath := req.EthereumPath
		if ethPath == "" {
			ethPath = derivation.DefaultEthereumPath
		}
		if eth, err = DeriveFromMnemonic(req.Mnemonic, ethPath, account.EthereumEcdsa); err != nil {
			return nil, fmt.Errorf("ethereum key: %w", err)
		}
		defer eth.Clear()
		secrets = append(secrets, &secretSlot{
			slot:  SlotEthereum,
			entry: &SecretEntry{Source: derivation.SourceMnemonic.String(), Secret: mnemonic, Path: ethPath, CryptoType: account.EthereumEcdsa},
		})
	}

	return s.create(req.Name, sub, eth, req.Password, secrets)
}

// CreateFromSeed creates a wallet from a substrate seed and an optional
// ethereum private key.
func (s *Service) CreateFromSeed(req *SeedRequest) (*account.MetaAccount, error) {
	if err := ValidatePassword(req.Password); err != nil {
		return nil, err
	}
	if !req.CryptoType.IsSubstrate() {
		return nil, fmt.Errorf("%w: substrate root cannot use %s", account.ErrInconsistentAccountData, req.CryptoType)
	}

	sub, err := DeriveFromSeed(req.Seed, req.Path, req.CryptoType)
	if err != nil {
		return nil, fmt.Errorf("substrate key: %w", err)
	}
	defer sub.Clear()

	secrets := []*secretSlot{{
		slot:  SlotSubstrate,
		entry: &SecretEntry{Source: derivation.SourceSeed.String(), Secret: req.Seed, Path: req.Path, CryptoType: req.CryptoType},
	}}

	var eth *KeyPair
	if len(req.EthereumSeed) > 0 {
		if eth, err = DeriveFromSeed(req.EthereumSeed, "", account.EthereumEcdsa); err != nil {
			return nil, fmt.Errorf("ethereum key: %w", err)
		}
		defer eth.Clear()
		secrets = append(secrets, &secretSlot{
			slot:  SlotEthereum,
			entry: &SecretEntry{Source: derivation.SourceSeed.String(), Secret: req.EthereumSeed, CryptoType: account.EthereumEcdsa},
		})
	}

	return s.create(req.Name, sub, eth, req.Password, secrets)
}

// CreateFromKeystore creates a wallet from a substrate keystore and an
// optional ethereum keystore.
func (s *Service) CreateFromKeystore(req *KeystoreRequest) (*account.MetaAccount, error) {
	if err := ValidatePassword(req.Password); err != nil {
		return nil, err
	}

	sub, err := importKeystoreAt(req.Keystore, req.KeystorePassword, req.Path)
	if err != nil {
		return nil, fmt.Errorf("substrate keystore: %w", err)
	}
	defer sub.Clear()
	if !sub.Identity.CryptoType.IsSubstrate() {
		return nil, fmt.Errorf("%w: keystore holds a %s key, substrate root required",
			account.ErrInconsistentAccountData, sub.Identity.CryptoType)
	}

	secrets := []*secretSlot{{slot: SlotSubstrate, entry: keystoreEntry(sub)}}

	var eth *KeyPair
	if len(req.EthereumKeystore) > 0 {
		if eth, err = ImportKeystore(req.EthereumKeystore, req.EthereumKeystorePassword); err != nil {
			return nil, fmt.Errorf("ethereum keystore: %w", err)
		}
		defer eth.Clear()
		if !eth.Identity.CryptoType.IsEthereumCompatible() {
			return nil, fmt.Errorf("%w: ethereum keystore holds a %s key",
				account.ErrInconsistentAccountData, eth.Identity.CryptoType)
		}
		secrets = append(secrets, &secretSlot{slot: SlotEthereum, entry: keystoreEntry(eth)})
	}

	return s.create(req.Name, sub, eth, req.Password, secrets)
}

// CreateWatchOnly creates a wallet from public keys. No secrets are stored.
func (s *Service) CreateWatchOnly(req *WatchOnlyRequest) (*account.MetaAccount, error) {
	if !req.CryptoType.IsSubstrate() {
		return nil, fmt.Errorf("%w: substrate root cannot use %s", account.ErrInconsistentAccountData, req.CryptoType)
	}
	subID, err := IdentityFromPublicKey(req.SubstratePublicKey, req.CryptoType)
	if err != nil {
		return nil, fmt.Errorf("substrate key: %w", err)
	}
	sub := &KeyPair{Identity: subID}

	var eth *KeyPair
	if len(req.EthereumPublicKey) > 0 {
		ethID, err := IdentityFromPublicKey(req.EthereumPublicKey, account.EthereumEcdsa)
		if err != nil {
			return nil, fmt.Errorf("ethereum key: %w", err)
		}
		eth = &KeyPair{Identity: ethID}
	}

	return s.create(req.Name, sub, eth, "", nil)
}

type secretSlot struct {
	slot  string
	entry *SecretEntry
}

func keystoreEntry(kp *KeyPair) *SecretEntry {
	return &SecretEntry{
		Source:     derivation.SourceKeystore.String(),
		Secret:     kp.PrivateKey,
		PublicKey:  kp.Identity.PublicKey,
		CryptoType: kp.Identity.CryptoType,
	}
}

func importKeystoreAt(data []byte, password, path string) (*KeyPair, error) {
	if path != "" {
		return nil, fmt.Errorf("%w: keystore keys cannot be derived (path %q)", ErrUnsupportedDerivation, path)
	}
	return ImportKeystore(data, password)
}

func sealSlots(metaID, password string, slots []*secretSlot) ([]*storage.SecretRecord, error) {
	records := make([]*storage.SecretRecord, 0, len(slots))
	for _, sl := range slots {
		data, err := sl.entry.Seal(password)
		if err != nil {
			return nil, fmt.Errorf("failed to encrypt %s secret: %w", sl.slot, err)
		}
		records = append(records, &storage.SecretRecord{MetaID: metaID, Slot: sl.slot, Data: data})
	}
	return records, nil
}

func (s *Service) create(name string, sub, eth *KeyPair, password string, slots []*secretSlot) (*account.MetaAccount, error) {
	p := account.Params{
		Name:                name,
		SubstrateAccountID:  sub.Identity.AccountID,
		SubstratePublicKey:  sub.Identity.PublicKey,
		SubstrateCryptoType: sub.Identity.CryptoType,
	}
	if eth != nil {
		p.EthereumAddress = eth.Identity.AccountID
		p.EthereumPublicKey = eth.Identity.PublicKey
	}

	m, err := account.NewMetaAccount(p)
	if err != nil {
		return nil, err
	}

	secrets, err := sealSlots(m.ID(), password, slots)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(m.ID())
	defer unlock()

	if err := s.store.SaveMetaAccount(m, secrets...); err != nil {
		return nil, fmt.Errorf("failed to save wallet: %w", err)
	}

	s.mu.Lock()
	first := len(s.wallets) == 0
	s.wallets[m.ID()] = m
	s.order = append(s.order, m.ID())
	s.projections[m.ID()] = account.Project(m, s.chains.List())
	s.mu.Unlock()

	if first {
		if err := s.store.SetSetting(storage.SettingSelectedMetaAccount, m.ID()); err != nil {
			s.log.Warn("Failed to select first wallet", "meta_id", m.ID(), "error", err)
		}
	}

	s.log.Info("Wallet created", "meta_id", m.ID(), "crypto_type", sub.Identity.CryptoType, "ethereum", eth != nil)
	s.emit(EventMetaAccountChanged, m.Clone())
	return m.Clone(), nil
}

// =============================================================================
// Mutation
// =============================================================================

// update applies fn to a clone of the wallet and swaps it in after the
// clone was persisted. Writes to the same wallet are serialized.
func (s *Service) update(metaID string, fn func(m *account.MetaAccount) ([]*storage.SecretRecord, error)) (*account.MetaAccount, error) {
	unlock := s.locks.Lock(metaID)
	defer unlock()

	s.mu.RLock()
	current, ok := s.wallets[metaID]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", account.ErrMetaAccountNotFound, metaID)
	}

	next := current.Clone()
	secrets, err := fn(next)
	if err != nil {
		return nil, err
	}

	if err := s.store.SaveMetaAccount(next, secrets...); err != nil {
		return nil, fmt.Errorf("failed to save wallet: %w", err)
	}

	s.mu.Lock()
	s.wallets[metaID] = next
	s.projections[metaID] = account.Project(next, s.chains.List())
	s.mu.Unlock()

	s.emit(EventMetaAccountChanged, next.Clone())
	return next.Clone(), nil
}

// Rename sets the wallet name. Retrying with the same name is harmless.
func (s *Service) Rename(metaID, name string) (*account.MetaAccount, error) {
	return s.update(metaID, func(m *account.MetaAccount) ([]*storage.SecretRecord, error) {
		return nil, m.Rename(name)
	})
}

// SetCurrency sets the wallet's fiat currency.
func (s *Service) SetCurrency(metaID string, c account.Currency) (*account.MetaAccount, error) {
	return s.update(metaID, func(m *account.MetaAccount) ([]*storage.SecretRecord, error) {
		m.SetCurrency(c)
		return nil, nil
	})
}

// AddChainAccount binds a new identity to one chain of a wallet, replacing
// any previous override for that chain.
func (s *Service) AddChainAccount(metaID, chainID string, req *ChainAccountRequest) (*account.MetaAccount, error) {
	c, err := s.chains.Lookup(chainID)
	if err != nil {
		return nil, err
	}

	kp, entry, err := chainAccountKey(req)
	if err != nil {
		return nil, err
	}
	defer kp.Clear()

	ca, err := account.NewChainAccount(c.ID, kp.Identity.AccountID, kp.Identity.PublicKey, kp.Identity.CryptoType)
	if err != nil {
		return nil, err
	}

	var slots []*secretSlot
	if entry != nil {
		slots = append(slots, &secretSlot{slot: c.ID, entry: entry})
	}

	m, err := s.update(metaID, func(m *account.MetaAccount) ([]*storage.SecretRecord, error) {
		if err := m.SetOverride(c, ca); err != nil {
			return nil, err
		}
		if len(slots) == 0 {
			// watch-only override drops the secret of a replaced one
			return []*storage.SecretRecord{{MetaID: metaID, Slot: c.ID}}, nil
		}
		return sealSlots(metaID, req.Password, slots)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("Chain account set", "meta_id", metaID, "chain", c.Name, "crypto_type", ca.CryptoType)
	return m, nil
}

func chainAccountKey(req *ChainAccountRequest) (*KeyPair, *SecretEntry, error) {
	src, watch, err := req.source()
	if err != nil {
		return nil, nil, err
	}

	if watch {
		id, err := IdentityFromPublicKey(req.PublicKey, req.CryptoType)
		if err != nil {
			return nil, nil, err
		}
		return &KeyPair{Identity: id}, nil, nil
	}

	if err := ValidatePassword(req.Password); err != nil {
		return nil, nil, err
	}

	switch src {
	case derivation.SourceMnemonic:
		kp, err := DeriveFromMnemonic(req.Mnemonic, req.Path, req.CryptoType)
		if err != nil {
			return nil, nil, err
		}
		return kp, &SecretEntry{Source: src.String(), Secret: []byte(normalizeMnemonic(req.Mnemonic)), Path: req.Path, CryptoType: req.CryptoType}, nil
	case derivation.SourceSeed:
		kp, err := DeriveFromSeed(req.Seed, req.Path, req.CryptoType)
		if err != nil {
			return nil, nil, err
		}
		return kp, &SecretEntry{Source: src.String(), Secret: req.Seed, Path: req.Path, CryptoType: req.CryptoType}, nil
	default:
		kp, err := importKeystoreAt(req.Keystore, req.KeystorePassword, req.Path)
		if err != nil {
			return nil, nil, err
		}
		return kp, keystoreEntry(kp), nil
	}
}

// Delete removes a wallet with its chain accounts and secrets.
func (s *Service) Delete(metaID string) error {
	unlock := s.locks.Lock(metaID)
	defer unlock()

	if err := s.store.DeleteMetaAccount(metaID); err != nil {
		return err
	}

	s.mu.Lock()
	delete(s.wallets, metaID)
	delete(s.projections, metaID)
	for i, id := range s.order {
		if id == metaID {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	var next string
	if len(s.order) > 0 {
		next = s.order[0]
	}
	s.mu.Unlock()

	selected, _, err := s.store.GetSetting(storage.SettingSelectedMetaAccount)
	if err == nil && selected == metaID {
		if next == "" {
			err = s.store.DeleteSetting(storage.SettingSelectedMetaAccount)
		} else {
			err = s.store.SetSetting(storage.SettingSelectedMetaAccount, next)
		}
	}
	if err != nil {
		s.log.Warn("Failed to update selected wallet", "error", err)
	}

	s.log.Info("Wallet deleted", "meta_id", metaID)
	s.emit(EventMetaAccountRemoved, metaID)
	return nil
}

// =============================================================================
// Queries
// =============================================================================

// Get returns a copy of a wallet.
func (s *Service) Get(metaID string) (*account.MetaAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.wallets[metaID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", account.ErrMetaAccountNotFound, metaID)
	}
	return m.Clone(), nil
}

// List returns copies of all wallets in creation order.
func (s *Service) List() []*account.MetaAccount {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*account.MetaAccount, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.wallets[id].Clone())
	}
	return out
}

// Select marks a wallet as the active one.
func (s *Service) Select(metaID string) error {
	if _, err := s.Get(metaID); err != nil {
		return err
	}
	return s.store.SetSetting(storage.SettingSelectedMetaAccount, metaID)
}

// Selected returns the active wallet, falling back to the first one.
func (s *Service) Selected() (*account.MetaAccount, error) {
	id, ok, err := s.store.GetSetting(storage.SettingSelectedMetaAccount)
	if err != nil {
		return nil, err
	}
	if ok {
		if m, err := s.Get(id); err == nil {
			return m, nil
		}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.order) == 0 {
		return nil, account.ErrMetaAccountNotFound
	}
	return s.wallets[s.order[0]].Clone(), nil
}

// Resolve returns the identity and address a wallet uses on a chain, or an
// error wrapping ErrNoAccountForChain.
func (s *Service) Resolve(metaID, chainID string) (*Resolved, error) {
	c, err := s.chains.Lookup(chainID)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	m, ok := s.wallets[metaID]
	var (
		id    account.Identity
		src   account.Source
		found bool
	)
	if ok {
		id, src, found = m.AccountFor(c)
	}
	s.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", account.ErrMetaAccountNotFound, metaID)
	}
	if !found {
		return nil, fmt.Errorf("%w: %s", account.ErrNoAccountForChain, c.Name)
	}

	addr, err := id.Address(c.Format)
	if err != nil {
		return nil, err
	}
	return &Resolved{MetaID: metaID, Chain: c, Identity: id, Source: src, Address: addr}, nil
}

// Projection returns which chains of the registry a wallet can use.
func (s *Service) Projection(metaID string) (account.Projection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.wallets[metaID]
	if !ok {
		return account.Projection{}, fmt.Errorf("%w: %s", account.ErrMetaAccountNotFound, metaID)
	}
	return account.Project(m, s.chains.List()), nil
}

// Reconcile recomputes the projection of every wallet against the current
// registry and reports the wallets whose usable chains changed. Wallet data
// is never modified.
func (s *Service) Reconcile() []account.ProjectionDiff {
	chains := s.chains.List()

	s.mu.Lock()
	prev := make([]account.Projection, 0, len(s.projections))
	next := make([]account.Projection, 0, len(s.order))
	for _, id := range s.order {
		if p, ok := s.projections[id]; ok {
			prev = append(prev, p)
		}
		p := account.Project(s.wallets[id], chains)
		s.projections[id] = p
		next = append(next, p)
	}
	s.mu.Unlock()

	diffs := account.DiffProjections(prev, next)
	for _, d := range diffs {
		s.log.Info("Chain availability changed", "meta_id", d.MetaID,
			"available", len(d.NowAvailable), "missing", len(d.NowMissing), "unknown", len(d.NoLongerKnown))
	}
	if len(diffs) > 0 {
		s.emit(EventChainsReconciled, diffs)
	}
	return diffs
}

// RevealSecret decrypts the secret stored for a wallet slot.
func (s *Service) RevealSecret(metaID, slot, password string) (*SecretEntry, error) {
	if _, err := s.Get(metaID); err != nil {
		return nil, err
	}
	rec, err := s.store.GetSecret(metaID, slot)
	if err != nil {
		return nil, err
	}
	return OpenSecretEntry(rec.Data, password)
}
