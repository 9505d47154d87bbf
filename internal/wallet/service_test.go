package wallet

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/klingon-exchange/klingvault/internal/account"
	"github.com/klingon-exchange/klingvault/internal/chain"
	"github.com/klingon-exchange/klingvault/internal/derivation"
	"github.com/klingon-exchange/klingvault/internal/storage"
	"github.com/klingon-exchange/klingvault/pkg/logging"
)

func newTestRegistry(t *testing.T) *chain.Registry {
	t.Helper()
	r := chain.NewRegistry()
	for _, c := range chain.Builtin() {
		if err := r.Register(c); err != nil {
			t.Fatal(err)
		}
	}
	return r
}

func builtinChain(t *testing.T, name string) chain.Chain {
	t.Helper()
	for _, c := range chain.Builtin() {
		if c.Name == name {
			return c
		}
	}
	t.Fatalf("no builtin chain %s", name)
	return chain.Chain{}
}

func newTestService(t *testing.T) (*Service, *storage.Storage, *chain.Registry) {
	t.Helper()
	store, err := storage.New(&storage.Config{DataDir: t.TempDir()})
	if err != nil {
		t.Fatalf("storage.New() error = %v", err)
	}
	t.Cleanup(func() { store.Close() })

	chains := newTestRegistry(t)
	svc, err := NewService(&ServiceConfig{Storage: store, Chains: chains, Logger: logging.Discard()})
	if err != nil {
		t.Fatalf("NewService() error = %v", err)
	}
	t.Cleanup(svc.Close)
	return svc, store, chains
}

func createTestWallet(t *testing.T, svc *Service, name string) *account.MetaAccount {
	t.Helper()
	m, err := svc.CreateFromMnemonic(&MnemonicRequest{
		Name:       name,
		Mnemonic:   testMnemonic,
		Password:   testPassword,
		CryptoType: account.Ed25519,
	})
	if err != nil {
		t.Fatalf("CreateFromMnemonic() error = %v", err)
	}
	return m
}

func TestNewServiceRequiresStorage(t *testing.T) {
	if _, err := NewService(nil); err == nil {
		t.Error("expected error without storage")
	}
	if _, err := NewService(&ServiceConfig{}); err == nil {
		t.Error("expected error without storage")
	}
}

func TestServiceGenerateMnemonic(t *testing.T) {
	svc, _, _ := newTestService(t)

	mnemonic, err := svc.GenerateMnemonic(12)
	if err != nil {
		t.Fatalf("GenerateMnemonic() error = %v", err)
	}
	if !svc.ValidateMnemonic(mnemonic) {
		t.Error("generated mnemonic should be valid")
	}
}

func TestServiceCreateFromMnemonic(t *testing.T) {
	svc, _, _ := newTestService(t)

	var events []Event
	svc.Subscribe(func(e Event) { events = append(events, e) })

	m := createTestWallet(t, svc, "  Main  ")
	if m.Name() != "Main" {
		t.Errorf("Name() = %q, want Main", m.Name())
	}
	if m.Substrate().CryptoType != account.Ed25519 {
		t.Errorf("substrate crypto type = %s", m.Substrate().CryptoType)
	}
	if !m.HasEthereum() {
		t.Fatal("wallet should carry an ethereum identity")
	}
	if m.Currency() != account.DefaultCurrency() {
		t.Errorf("Currency() = %+v, want default", m.Currency())
	}
	if len(events) != 1 || events[0].Type != EventMetaAccountChanged {
		t.Errorf("events = %+v", events)
	}

	selected, err := svc.Selected()
	if err != nil || selected.ID() != m.ID() {
		t.Errorf("Selected() = %v, %v; first wallet should be selected", selected, err)
	}

	// Substrate chains resolve to the root.
	polkadot := builtinChain(t, "Polkadot")
	res, err := svc.Resolve(m.ID(), polkadot.ID)
	if err != nil {
		t.Fatalf("Resolve(Polkadot) error = %v", err)
	}
	if res.Source != account.SourceSubstrate || !res.Identity.Equal(m.Substrate()) {
		t.Errorf("Polkadot resolved to %s", res.Source)
	}
	if !strings.HasPrefix(res.Address, "1") {
		t.Errorf("Polkadot address = %s, want prefix-0 ss58", res.Address)
	}

	// Ethereum chains resolve to the shared ethereum identity.
	moonbeam := builtinChain(t, "Moonbeam")
	res, err = svc.Resolve(m.ID(), moonbeam.ID)
	if err != nil {
		t.Fatalf("Resolve(Moonbeam) error = %v", err)
	}
	if res.Source != account.SourceEthereum {
		t.Errorf("Moonbeam source = %s, want ethereum", res.Source)
	}
	want := common.HexToAddress("0x9858EfFD232B4033E47d90003D41EC34EcaEda94")
	if res.Address != want.Hex() {
		t.Errorf("Moonbeam address = %s, want %s", res.Address, want.Hex())
	}
}

func TestServiceCreateWithoutEthereum(t *testing.T) {
	svc, _, _ := newTestService(t)

	m, err := svc.CreateFromMnemonic(&MnemonicRequest{
		Name:            "Substrate only",
		Mnemonic:        devMnemonic,
		Password:        testPassword,
		CryptoType:      account.SubstrateEcdsa,
		Path:            "//Alice",
		WithoutEthereum: true,
	})
	if err != nil {
		t.Fatalf("CreateFromMnemonic() error = %v", err)
	}
	if m.HasEthereum() {
		t.Error("wallet should not carry an ethereum identity")
	}

	moonbeam := builtinChain(t, "Moonbeam")
	if _, err := svc.Resolve(m.ID(), moonbeam.ID); !errors.Is(err, account.ErrNoAccountForChain) {
		t.Errorf("Resolve(Moonbeam) error = %v, want ErrNoAccountForChain", err)
	}

	p, err := svc.Projection(m.ID())
	if err != nil {
		t.Fatal(err)
	}
	if len(p.Missing) == 0 {
		t.Error("ethereum chains should be missing")
	}
}

func TestServiceCreateErrors(t *testing.T) {
	svc, _, _ := newTestService(t)

	tests := []struct {
		name string
		fn   func() error
		want error
	}{
		{
			name: "weak password",
			fn: func() error {
				_, err := svc.CreateFromMnemonic(&MnemonicRequest{Name: "w", Mnemonic: testMnemonic, Password: "weak", CryptoType: account.Ed25519})
				return err
			},
		},
		{
			name: "invalid mnemonic",
			fn: func() error {
				_, err := svc.CreateFromMnemonic(&MnemonicRequest{Name: "w", Mnemonic: "invalid words", Password: testPassword, CryptoType: account.Ed25519})
				return err
			},
			want: ErrInvalidMnemonic,
		},
		{
			name: "ethereum root",
			fn: func() error {
				_, err := svc.CreateFromMnemonic(&MnemonicRequest{Name: "w", Mnemonic: testMnemonic, Password: testPassword, CryptoType: account.EthereumEcdsa})
				return err
			},
			want: account.ErrInconsistentAccountData,
		},
		{
			name: "empty name",
			fn: func() error {
				_, err := svc.CreateFromMnemonic(&MnemonicRequest{Name: "  ", Mnemonic: testMnemonic, Password: testPassword, CryptoType: account.Ed25519})
				return err
			},
			want: account.ErrEmptyName,
		},
		{
			name: "sr25519 seed with password",
			fn: func() error {
				_, err := svc.CreateFromSeed(&SeedRequest{Name: "w", Seed: make([]byte, 32), Path: "//0///pw", Password: testPassword, CryptoType: account.SR25519})
				return err
			},
			want: derivation.ErrInvalidDerivationPath,
		},
		{
			name: "keystore with path",
			fn: func() error {
				_, err := svc.CreateFromKeystore(&KeystoreRequest{Name: "w", Keystore: []byte("{}"), Path: "//0", Password: testPassword})
				return err
			},
			want: ErrUnsupportedDerivation,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.fn()
			if err == nil {
				t.Fatal("expected error")
			}
			if tc.want != nil && !errors.Is(err, tc.want) {
				t.Errorf("error = %v, want %v", err, tc.want)
			}
		})
	}

	if len(svc.List()) != 0 {
		t.Error("failed creations should not leave wallets behind")
	}
}

func TestServiceCreateFromSeed(t *testing.T) {
	svc, _, _ := newTestService(t)

	seed := make([]byte, 32)
	for i := range seed {
		seed[i] = byte(i + 1)
	}
	m, err := svc.CreateFromSeed(&SeedRequest{
		Name:         "Seeded",
		Seed:         seed,
		Password:     testPassword,
		CryptoType:   account.Ed25519,
		Path:         "//0",
		EthereumSeed: seed,
	})
	if err != nil {
		t.Fatalf("CreateFromSeed() error = %v", err)
	}

	entry, err := svc.RevealSecret(m.ID(), SlotEthereum, testPassword)
	if err != nil {
		t.Fatalf("RevealSecret() error = %v", err)
	}
	kp, err := entry.KeyPair()
	if err != nil {
		t.Fatal(err)
	}
	eth, _ := m.Ethereum()
	if !kp.Identity.Equal(eth) {
		t.Error("revealed ethereum secret does not re-derive the wallet identity")
	}
}

func TestServiceCreateFromKeystore(t *testing.T) {
	svc, _, _ := newTestService(t)

	alice, err := DeriveFromMnemonic(devMnemonic, "//Alice", account.Ed25519)
	if err != nil {
		t.Fatal(err)
	}
	dotData := polkadotKeystoreJSON(t, "dot-pw", alice, ed25519Secret(alice))
	ethData, ethPair := ethereumKeystoreJSON(t, "eth-pw")

	m, err := svc.CreateFromKeystore(&KeystoreRequest{
		Name:                     "Imported",
		Keystore:                 dotData,
		KeystorePassword:         "dot-pw",
		Password:                 testPassword,
		EthereumKeystore:         ethData,
		EthereumKeystorePassword: "eth-pw",
	})
	if err != nil {
		t.Fatalf("CreateFromKeystore() error = %v", err)
	}
	if !m.Substrate().Equal(alice.Identity) {
		t.Error("substrate identity mismatch")
	}
	eth, ok := m.Ethereum()
	if !ok || !eth.Equal(ethPair.Identity) {
		t.Error("ethereum identity mismatch")
	}

	entry, err := svc.RevealSecret(m.ID(), SlotSubstrate, testPassword)
	if err != nil {
		t.Fatal(err)
	}
	kp, err := entry.KeyPair()
	if err != nil {
		t.Fatal(err)
	}
	if !kp.Identity.Equal(alice.Identity) {
		t.Error("revealed keystore secret does not rebuild the identity")
	}

	// An ethereum keystore cannot be the substrate root.
	if _, err := svc.CreateFromKeystore(&KeystoreRequest{
		Name: "Wrong", Keystore: ethData, KeystorePassword: "eth-pw", Password: testPassword,
	}); !errors.Is(err, account.ErrInconsistentAccountData) {
		t.Errorf("error = %v, want ErrInconsistentAccountData", err)
	}
}

func TestServiceCreateWatchOnly(t *testing.T) {
	svc, _, _ := newTestService(t)

	alice, err := DeriveFromMnemonic(devMnemonic, "//Alice", account.Ed25519)
	if err != nil {
		t.Fatal(err)
	}
	eth, err := DeriveFromMnemonic(testMnemonic, "", account.EthereumEcdsa)
	if err != nil {
		t.Fatal(err)
	}

	m, err := svc.CreateWatchOnly(&WatchOnlyRequest{
		Name:               "Watch",
		SubstratePublicKey: alice.Identity.PublicKey,
		CryptoType:         account.Ed25519,
		EthereumPublicKey:  eth.Identity.PublicKey,
	})
	if err != nil {
		t.Fatalf("CreateWatchOnly() error = %v", err)
	}
	if !m.Substrate().Equal(alice.Identity) {
		t.Error("substrate identity mismatch")
	}

	if _, err := svc.RevealSecret(m.ID(), SlotSubstrate, testPassword); !errors.Is(err, storage.ErrSecretNotFound) {
		t.Errorf("RevealSecret() error = %v, want ErrSecretNotFound", err)
	}
}

func TestServiceReload(t *testing.T) {
	store, err := storage.New(&storage.Config{DataDir: t.TempDir()})
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	chains := newTestRegistry(t)

	svc, err := NewService(&ServiceConfig{Storage: store, Chains: chains, Logger: logging.Discard()})
	if err != nil {
		t.Fatal(err)
	}
	first := createTestWallet(t, svc, "First")
	second := createTestWallet(t, svc, "Second")
	eur := account.Currency{ID: 2, Symbol: "€", Name: "EUR", Icon: "eur"}
	if _, err := svc.SetCurrency(second.ID(), eur); err != nil {
		t.Fatal(err)
	}
	svc.Close()

	reloaded, err := NewService(&ServiceConfig{Storage: store, Chains: chains, Logger: logging.Discard()})
	if err != nil {
		t.Fatalf("NewService() error = %v", err)
	}
	defer reloaded.Close()

	list := reloaded.List()
	if len(list) != 2 {
		t.Fatalf("List() = %d wallets, want 2", len(list))
	}
	if list[0].ID() != first.ID() || list[1].ID() != second.ID() {
		t.Error("wallet order not preserved")
	}
	got, err := reloaded.Get(second.ID())
	if err != nil {
		t.Fatal(err)
	}
	eur.IsSelected = true
	if got.Currency() != eur {
		t.Errorf("Currency() = %+v, want %+v", got.Currency(), eur)
	}
	if !got.Substrate().Equal(second.Substrate()) {
		t.Error("substrate identity changed across reload")
	}
}

func TestServiceRename(t *testing.T) {
	svc, _, _ := newTestService(t)
	m := createTestWallet(t, svc, "Old")

	for i := 0; i < 2; i++ {
		renamed, err := svc.Rename(m.ID(), "New")
		if err != nil {
			t.Fatalf("Rename() error = %v", err)
		}
		if renamed.Name() != "New" {
			t.Errorf("Name() = %q, want New", renamed.Name())
		}
	}

	if _, err := svc.Rename(m.ID(), " "); !errors.Is(err, account.ErrEmptyName) {
		t.Errorf("error = %v, want ErrEmptyName", err)
	}
	got, _ := svc.Get(m.ID())
	if got.Name() != "New" {
		t.Error("failed rename should not change the wallet")
	}

	if _, err := svc.Rename("missing", "x"); !errors.Is(err, account.ErrMetaAccountNotFound) {
		t.Errorf("error = %v, want ErrMetaAccountNotFound", err)
	}
}

func TestServiceGetReturnsCopy(t *testing.T) {
	svc, _, _ := newTestService(t)
	m := createTestWallet(t, svc, "Main")

	got, err := svc.Get(m.ID())
	if err != nil {
		t.Fatal(err)
	}
	if err := got.Rename("Mutated"); err != nil {
		t.Fatal(err)
	}

	again, _ := svc.Get(m.ID())
	if again.Name() != "Main" {
		t.Error("mutating a returned wallet changed the service state")
	}
}

func TestServiceAddChainAccount(t *testing.T) {
	svc, store, _ := newTestService(t)
	m := createTestWallet(t, svc, "Main")
	polkadot := builtinChain(t, "Polkadot")

	updated, err := svc.AddChainAccount(m.ID(), polkadot.ID, &ChainAccountRequest{
		CryptoType: account.SubstrateEcdsa,
		Path:       "//Alice",
		Mnemonic:   devMnemonic,
		Password:   testPassword,
	})
	if err != nil {
		t.Fatalf("AddChainAccount() error = %v", err)
	}
	ca, ok := updated.ChainAccount(polkadot.ID)
	if !ok || ca.CryptoType != account.SubstrateEcdsa {
		t.Fatalf("ChainAccount() = %+v, %v", ca, ok)
	}

	res, err := svc.Resolve(m.ID(), polkadot.ID)
	if err != nil {
		t.Fatal(err)
	}
	if res.Source != account.SourceOverride || !res.Identity.Equal(ca.Identity()) {
		t.Errorf("Polkadot resolved to %s, want override", res.Source)
	}

	// Other substrate chains still use the root.
	kusama := builtinChain(t, "Kusama")
	res, err = svc.Resolve(m.ID(), kusama.ID)
	if err != nil {
		t.Fatal(err)
	}
	if res.Source != account.SourceSubstrate {
		t.Errorf("Kusama resolved to %s, want substrate", res.Source)
	}

	entry, err := svc.RevealSecret(m.ID(), polkadot.ID, testPassword)
	if err != nil {
		t.Fatalf("RevealSecret() error = %v", err)
	}
	if entry.Path != "//Alice" || entry.CryptoType != account.SubstrateEcdsa {
		t.Errorf("entry = %+v", entry)
	}

	// A watch-only replacement drops the stored secret.
	bob, err := DeriveFromMnemonic(devMnemonic, "//Bob", account.Ed25519)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := svc.AddChainAccount(m.ID(), polkadot.ID, &ChainAccountRequest{
		CryptoType: account.Ed25519,
		PublicKey:  bob.Identity.PublicKey,
	}); err != nil {
		t.Fatalf("AddChainAccount(watch) error = %v", err)
	}
	if _, err := store.GetSecret(m.ID(), polkadot.ID); !errors.Is(err, storage.ErrSecretNotFound) {
		t.Errorf("GetSecret() error = %v, want ErrSecretNotFound", err)
	}
	got, _ := svc.Get(m.ID())
	if len(got.ChainAccounts()) != 1 {
		t.Errorf("ChainAccounts() = %d, want 1 after replacement", len(got.ChainAccounts()))
	}
}

func TestServiceAddChainAccountErrors(t *testing.T) {
	svc, _, _ := newTestService(t)
	m := createTestWallet(t, svc, "Main")
	polkadot := builtinChain(t, "Polkadot")
	moonbeam := builtinChain(t, "Moonbeam")

	tests := []struct {
		name    string
		metaID  string
		chainID string
		req     *ChainAccountRequest
		want    error
	}{
		{
			name:    "unknown chain",
			metaID:  m.ID(),
			chainID: "nope",
			req:     &ChainAccountRequest{CryptoType: account.Ed25519, Mnemonic: devMnemonic, Password: testPassword},
			want:    chain.ErrChainNotFound,
		},
		{
			name:    "unknown wallet",
			metaID:  "missing",
			chainID: polkadot.ID,
			req:     &ChainAccountRequest{CryptoType: account.Ed25519, Mnemonic: devMnemonic, Password: testPassword},
			want:    account.ErrMetaAccountNotFound,
		},
		{
			name:    "ethereum key on substrate chain",
			metaID:  m.ID(),
			chainID: polkadot.ID,
			req:     &ChainAccountRequest{CryptoType: account.EthereumEcdsa, Mnemonic: testMnemonic, Password: testPassword},
			want:    account.ErrInconsistentAccountData,
		},
		{
			name:    "substrate key on ethereum chain",
			metaID:  m.ID(),
			chainID: moonbeam.ID,
			req:     &ChainAccountRequest{CryptoType: account.Ed25519, Mnemonic: devMnemonic, Password: testPassword},
			want:    account.ErrInconsistentAccountData,
		},
		{
			name:    "two sources",
			metaID:  m.ID(),
			chainID: polkadot.ID,
			req:     &ChainAccountRequest{CryptoType: account.Ed25519, Mnemonic: devMnemonic, Seed: make([]byte, 32), Password: testPassword},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.AddChainAccount(tc.metaID, tc.chainID, tc.req)
			if err == nil {
				t.Fatal("expected error")
			}
			if tc.want != nil && !errors.Is(err, tc.want) {
				t.Errorf("error = %v, want %v", err, tc.want)
			}
		})
	}

	got, _ := svc.Get(m.ID())
	if len(got.ChainAccounts()) != 0 {
		t.Error("failed additions should not leave chain accounts behind")
	}
}

func TestServiceDelete(t *testing.T) {
	svc, store, _ := newTestService(t)
	first := createTestWallet(t, svc, "First")
	second := createTestWallet(t, svc, "Second")

	var removed []string
	svc.Subscribe(func(e Event) {
		if e.Type == EventMetaAccountRemoved {
			removed = append(removed, e.Data.(string))
		}
	})

	if err := svc.Delete(first.ID()); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := svc.Get(first.ID()); !errors.Is(err, account.ErrMetaAccountNotFound) {
		t.Errorf("Get() error = %v, want ErrMetaAccountNotFound", err)
	}
	if len(removed) != 1 || removed[0] != first.ID() {
		t.Errorf("removed events = %v", removed)
	}

	selected, _, _ := store.GetSetting(storage.SettingSelectedMetaAccount)
	if selected != second.ID() {
		t.Errorf("selected = %s, want %s", selected, second.ID())
	}

	if err := svc.Delete(second.ID()); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := store.GetSetting(storage.SettingSelectedMetaAccount); ok {
		t.Error("selection should be cleared with the last wallet")
	}
	if _, err := svc.Selected(); !errors.Is(err, account.ErrMetaAccountNotFound) {
		t.Errorf("Selected() error = %v, want ErrMetaAccountNotFound", err)
	}

	if err := svc.Delete(second.ID()); err == nil {
		t.Error("deleting twice should fail")
	}
}

func TestServiceSelect(t *testing.T) {
	svc, _, _ := newTestService(t)
	createTestWallet(t, svc, "First")
	second := createTestWallet(t, svc, "Second")

	if err := svc.Select(second.ID()); err != nil {
		t.Fatalf("Select() error = %v", err)
	}
	selected, err := svc.Selected()
	if err != nil || selected.ID() != second.ID() {
		t.Errorf("Selected() = %v, %v", selected, err)
	}
	if err := svc.Select("missing"); !errors.Is(err, account.ErrMetaAccountNotFound) {
		t.Errorf("Select() error = %v, want ErrMetaAccountNotFound", err)
	}
}

func TestServiceReconcile(t *testing.T) {
	svc, _, chains := newTestService(t)
	m, err := svc.CreateFromMnemonic(&MnemonicRequest{
		Name:            "Substrate only",
		Mnemonic:        testMnemonic,
		Password:        testPassword,
		CryptoType:      account.Ed25519,
		WithoutEthereum: true,
	})
	if err != nil {
		t.Fatal(err)
	}

	var reconciled [][]account.ProjectionDiff
	svc.Subscribe(func(e Event) {
		if e.Type == EventChainsReconciled {
			reconciled = append(reconciled, e.Data.([]account.ProjectionDiff))
		}
	})

	// Drop every ethereum chain: the wallet loses nothing usable.
	if _, err := chains.Replace(chains.ListByEthereumFlag(false)); err != nil {
		t.Fatal(err)
	}
	if len(reconciled) != 1 {
		t.Fatalf("reconciled events = %d, want 1", len(reconciled))
	}
	d := reconciled[0][0]
	if d.MetaID != m.ID() || len(d.NoLongerKnown) == 0 || len(d.NowAvailable) != 0 {
		t.Errorf("diff = %+v", d)
	}

	// A new substrate chain becomes available without touching the wallet.
	extra := chain.Chain{ID: "test-chain", Name: "Test", Format: builtinChain(t, "Kusama").Format}
	if err := chains.Register(extra); err != nil {
		t.Fatal(err)
	}
	if len(reconciled) != 2 {
		t.Fatalf("reconciled events = %d, want 2", len(reconciled))
	}
	d = reconciled[1][0]
	if len(d.NowAvailable) != 1 || d.NowAvailable[0] != "test-chain" {
		t.Errorf("diff = %+v", d)
	}

	if diffs := svc.Reconcile(); len(diffs) != 0 {
		t.Errorf("Reconcile() without changes = %+v", diffs)
	}

	got, _ := svc.Get(m.ID())
	if !got.Substrate().Equal(m.Substrate()) || len(got.ChainAccounts()) != 0 {
		t.Error("reconcile should not modify wallets")
	}

	svc.Close()
	chains.Remove("test-chain")
	if len(reconciled) != 2 {
		t.Error("closed service should not reconcile")
	}
}

func TestServiceConcurrentUpdates(t *testing.T) {
	svc, _, _ := newTestService(t)
	m := createTestWallet(t, svc, "Main")

	polkadot := builtinChain(t, "Polkadot")
	names := make(map[string]bool)
	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := 0; i < 20; i++ {
		name := fmt.Sprintf("Wallet %d", i)
		names[name] = true
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.Rename(m.ID(), name); err != nil {
				errs <- err
			}
			if _, err := svc.Resolve(m.ID(), polkadot.ID); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Errorf("concurrent update error = %v", err)
	}
	got, _ := svc.Get(m.ID())
	if !names[got.Name()] {
		t.Errorf("Name() = %q, not one of the written names", got.Name())
	}
}
