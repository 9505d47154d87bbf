package wallet

import (
	"bytes"
	"crypto/rand"
	"encoding/base64"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	schnorrkel "github.com/ChainSafe/go-schnorrkel"
	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
	"golang.org/x/crypto/nacl/secretbox"
	"golang.org/x/crypto/scrypt"

	"github.com/klingon-exchange/klingvault/internal/account"
	"github.com/klingon-exchange/klingvault/internal/derivation"
)

// Test mnemonics (DO NOT USE FOR REAL FUNDS)
const (
	testMnemonic = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"
	devMnemonic  = "bottom drive obey lake curtain smoke basket hold race lonely fit walk"

	testPassword = "TestPassword123!"
)

func mustHex(t *testing.T, s string) []byte {
	t.Helper()
	b, err := hex.DecodeString(s)
	if err != nil {
		t.Fatal(err)
	}
	return b
}

func TestGenerateMnemonic(t *testing.T) {
	tests := []struct {
		words int
		want  int
	}{
		{0, 24},
		{24, 24},
		{12, 12},
	}

	for _, tc := range tests {
		mnemonic, err := GenerateMnemonic(tc.words)
		if err != nil {
			t.Fatalf("GenerateMnemonic(%d) error = %v", tc.words, err)
		}
		if got := len(strings.Fields(mnemonic)); got != tc.want {
			t.Errorf("GenerateMnemonic(%d) returned %d words, want %d", tc.words, got, tc.want)
		}
		if !ValidateMnemonic(mnemonic) {
			t.Error("generated mnemonic should be valid")
		}
	}

	if _, err := GenerateMnemonic(15); err == nil {
		t.Error("expected error for unsupported length")
	}
}

func TestValidateMnemonic(t *testing.T) {
	tests := []struct {
		mnemonic string
		valid    bool
	}{
		{testMnemonic, true},
		{"  " + strings.ReplaceAll(testMnemonic, " ", "   ") + "\n", true},
		{"invalid mnemonic words", false},
		{"", false},
		{"abandon", false},
	}

	for _, tc := range tests {
		if got := ValidateMnemonic(tc.mnemonic); got != tc.valid {
			t.Errorf("ValidateMnemonic(%q) = %v, want %v", tc.mnemonic, got, tc.valid)
		}
	}
}

func TestDeriveEthereumFromMnemonic(t *testing.T) {
	want := common.HexToAddress("0x9858EfFD232B4033E47d90003D41EC34EcaEda94")

	for _, path := range []string{"", derivation.DefaultEthereumPath} {
		kp, err := DeriveFromMnemonic(testMnemonic, path, account.EthereumEcdsa)
		if err != nil {
			t.Fatalf("DeriveFromMnemonic(%q) error = %v", path, err)
		}
		if got := common.BytesToAddress(kp.Identity.AccountID); got != want {
			t.Errorf("path %q: address = %s, want %s", path, got.Hex(), want.Hex())
		}
		if len(kp.Identity.PublicKey) != 33 {
			t.Errorf("public key length = %d, want 33", len(kp.Identity.PublicKey))
		}
		if err := VerifyIdentity(kp.Identity); err != nil {
			t.Errorf("VerifyIdentity() error = %v", err)
		}
	}

	other, err := DeriveFromMnemonic(testMnemonic, "//44//60//0/0/1", account.EthereumEcdsa)
	if err != nil {
		t.Fatal(err)
	}
	if common.BytesToAddress(other.Identity.AccountID) == want {
		t.Error("different index should derive a different address")
	}

	withPassword, err := DeriveFromMnemonic(testMnemonic, "///secret", account.EthereumEcdsa)
	if err != nil {
		t.Fatal(err)
	}
	if common.BytesToAddress(withPassword.Identity.AccountID) == want {
		t.Error("password should change the derived key")
	}
}

func TestDeriveSubstrateFromMnemonic(t *testing.T) {
	tests := []struct {
		name   string
		ct     account.CryptoType
		path   string
		pubHex string
	}{
		{
			name:   "sr25519 alice",
			ct:     account.SR25519,
			path:   "//Alice",
			pubHex: "d43593c715fdd31c61141abd04a99fd6822c8558854ccde39a5684e7a56da27d",
		},
		{
			name:   "ed25519 alice",
			ct:     account.Ed25519,
			path:   "//Alice",
			pubHex: "88dc3417d5058ec4b4503e0c12ea1a0a89be200fe98922423d4334014fa6b0ee",
		},
		{
			name:   "ecdsa alice",
			ct:     account.SubstrateEcdsa,
			path:   "//Alice",
			pubHex: "020a1091341fe5664bfa1782d5e04779689068c916b04cb365ec3153755684d9a1",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			kp, err := DeriveFromMnemonic(devMnemonic, tc.path, tc.ct)
			if err != nil {
				t.Fatalf("DeriveFromMnemonic() error = %v", err)
			}
			if got := hex.EncodeToString(kp.Identity.PublicKey); got != tc.pubHex {
				t.Errorf("public key = %s, want %s", got, tc.pubHex)
			}
			if kp.Identity.CryptoType != tc.ct {
				t.Errorf("CryptoType = %s, want %s", kp.Identity.CryptoType, tc.ct)
			}
			if err := VerifyIdentity(kp.Identity); err != nil {
				t.Errorf("VerifyIdentity() error = %v", err)
			}
		})
	}
}

func TestDeriveSR25519SoftJunction(t *testing.T) {
	parent, err := DeriveFromMnemonic(devMnemonic, "//Alice", account.SR25519)
	if err != nil {
		t.Fatal(err)
	}
	child, err := DeriveFromMnemonic(devMnemonic, "//Alice/soft", account.SR25519)
	if err != nil {
		t.Fatalf("DeriveFromMnemonic() error = %v", err)
	}
	if child.Identity.Equal(parent.Identity) {
		t.Fatal("soft junction should change the key")
	}

	// A soft child is also reachable from the parent public key alone.
	var raw [32]byte
	copy(raw[:], parent.Identity.PublicKey)
	pub := &schnorrkel.PublicKey{}
	if err := pub.Decode(raw); err != nil {
		t.Fatal(err)
	}
	j := derivation.Junction{Value: "soft"}
	ext, err := schnorrkel.DeriveKeySimple(pub, []byte{}, j.ChainCode())
	if err != nil {
		t.Fatal(err)
	}
	childPub, err := ext.Public()
	if err != nil {
		t.Fatal(err)
	}
	enc := childPub.Encode()
	if !bytes.Equal(enc[:], child.Identity.PublicKey) {
		t.Errorf("public soft derivation = %x, want %x", enc, child.Identity.PublicKey)
	}

	again, err := DeriveFromMnemonic(devMnemonic, "//Alice/soft", account.SR25519)
	if err != nil {
		t.Fatal(err)
	}
	if !again.Identity.Equal(child.Identity) {
		t.Error("soft derivation should be deterministic in the public key")
	}
}

func TestDeriveDeterministic(t *testing.T) {
	a, err := DeriveFromMnemonic(devMnemonic, "//polkadot//0", account.Ed25519)
	if err != nil {
		t.Fatal(err)
	}
	b, err := DeriveFromMnemonic(devMnemonic, "//polkadot//0", account.Ed25519)
	if err != nil {
		t.Fatal(err)
	}
	if !a.Identity.Equal(b.Identity) {
		t.Error("same inputs should derive the same identity")
	}

	root, err := DeriveFromMnemonic(devMnemonic, "", account.Ed25519)
	if err != nil {
		t.Fatal(err)
	}
	if root.Identity.Equal(a.Identity) {
		t.Error("derived and root identities should differ")
	}

	pw, err := DeriveFromMnemonic(devMnemonic, "///pass", account.Ed25519)
	if err != nil {
		t.Fatal(err)
	}
	if pw.Identity.Equal(root.Identity) {
		t.Error("mnemonic password should change the root key")
	}
}

func TestDeriveErrors(t *testing.T) {
	tests := []struct {
		name string
		fn   func() error
		want error
	}{
		{
			name: "invalid mnemonic",
			fn: func() error {
				_, err := DeriveFromMnemonic("not a mnemonic", "", account.Ed25519)
				return err
			},
			want: ErrInvalidMnemonic,
		},
		{
			name: "soft junction on ed25519",
			fn: func() error {
				_, err := DeriveFromMnemonic(devMnemonic, "/soft", account.Ed25519)
				return err
			},
			want: derivation.ErrInvalidDerivationPath,
		},
		{
			name: "seed wrong length",
			fn: func() error {
				_, err := DeriveFromSeed(make([]byte, 16), "", account.Ed25519)
				return err
			},
			want: ErrInvalidSeed,
		},
		{
			name: "seed with password",
			fn: func() error {
				_, err := DeriveFromSeed(bytes.Repeat([]byte{1}, 32), "///pw", account.Ed25519)
				return err
			},
			want: derivation.ErrInvalidDerivationPath,
		},
		{
			name: "raw ethereum key with path",
			fn: func() error {
				_, err := DeriveFromSeed(bytes.Repeat([]byte{1}, 32), "//44//60//0/0/0", account.EthereumEcdsa)
				return err
			},
			want: ErrUnsupportedDerivation,
		},
		{
			name: "zero ethereum key",
			fn: func() error {
				_, err := DeriveFromSeed(make([]byte, 32), "", account.EthereumEcdsa)
				return err
			},
			want: ErrInvalidSeed,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if err := tc.fn(); !errors.Is(err, tc.want) {
				t.Errorf("error = %v, want %v", err, tc.want)
			}
		})
	}
}

func TestDeriveFromSeed(t *testing.T) {
	seed := bytes.Repeat([]byte{0x11}, 32)

	kp, err := DeriveFromSeed(seed, "", account.EthereumEcdsa)
	if err != nil {
		t.Fatalf("DeriveFromSeed() error = %v", err)
	}
	key, _ := crypto.ToECDSA(seed)
	if !bytes.Equal(kp.Identity.AccountID, crypto.PubkeyToAddress(key.PublicKey).Bytes()) {
		t.Error("raw ethereum seed should be used as the private key")
	}

	root, err := DeriveFromSeed(seed, "", account.Ed25519)
	if err != nil {
		t.Fatal(err)
	}
	derived, err := DeriveFromSeed(seed, "//1", account.Ed25519)
	if err != nil {
		t.Fatal(err)
	}
	if root.Identity.Equal(derived.Identity) {
		t.Error("derived seed identity should differ from root")
	}

	// A mnemonic and its mini secret derive the same keys.
	mini, err := substrateMiniSecret(devMnemonic, "")
	if err != nil {
		t.Fatal(err)
	}
	fromSeed, err := DeriveFromSeed(mini[:], "//Alice", account.Ed25519)
	if err != nil {
		t.Fatal(err)
	}
	fromMnemonic, err := DeriveFromMnemonic(devMnemonic, "//Alice", account.Ed25519)
	if err != nil {
		t.Fatal(err)
	}
	if !fromSeed.Identity.Equal(fromMnemonic.Identity) {
		t.Error("seed and mnemonic derivation differ")
	}
}

func TestKeyPairClear(t *testing.T) {
	kp, err := DeriveFromSeed(bytes.Repeat([]byte{7}, 32), "", account.Ed25519)
	if err != nil {
		t.Fatal(err)
	}
	kp.Clear()
	for _, b := range kp.PrivateKey {
		if b != 0 {
			t.Fatal("private key should be cleared")
		}
	}

	var nilPair *KeyPair
	nilPair.Clear()
}

// ============ Identity Tests ============

func TestIdentityFromPublicKey(t *testing.T) {
	eth, err := DeriveFromMnemonic(testMnemonic, "", account.EthereumEcdsa)
	if err != nil {
		t.Fatal(err)
	}
	ethKey, err := crypto.DecompressPubkey(eth.Identity.PublicKey)
	if err != nil {
		t.Fatal(err)
	}
	uncompressed := crypto.FromECDSAPub(ethKey)

	for name, pub := range map[string][]byte{
		"compressed":   eth.Identity.PublicKey,
		"uncompressed": uncompressed,
		"raw":          uncompressed[1:],
	} {
		id, err := IdentityFromPublicKey(pub, account.EthereumEcdsa)
		if err != nil {
			t.Fatalf("%s: IdentityFromPublicKey() error = %v", name, err)
		}
		if !id.Equal(eth.Identity) {
			t.Errorf("%s: identity mismatch", name)
		}
	}

	sub, err := DeriveFromMnemonic(devMnemonic, "//Alice", account.SubstrateEcdsa)
	if err != nil {
		t.Fatal(err)
	}
	id, err := IdentityFromPublicKey(sub.Identity.PublicKey, account.SubstrateEcdsa)
	if err != nil {
		t.Fatal(err)
	}
	if !id.Equal(sub.Identity) {
		t.Error("substrate ecdsa identity mismatch")
	}

	sr := bytes.Repeat([]byte{0xd4}, 32)
	id, err = IdentityFromPublicKey(sr, account.SR25519)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(id.AccountID, sr) {
		t.Error("sr25519 account id should equal the public key")
	}
}

func TestIdentityFromPublicKeyErrors(t *testing.T) {
	tests := []struct {
		name string
		pub  []byte
		ct   account.CryptoType
		want error
	}{
		{"sr25519 short", make([]byte, 31), account.SR25519, ErrInvalidPublicKey},
		{"ed25519 long", make([]byte, 33), account.Ed25519, ErrInvalidPublicKey},
		{"ecdsa garbage", bytes.Repeat([]byte{9}, 33), account.SubstrateEcdsa, ErrInvalidPublicKey},
		{"ethereum length", make([]byte, 20), account.EthereumEcdsa, ErrInvalidPublicKey},
		{"unknown type", make([]byte, 32), account.CryptoType(9), account.ErrUnknownCryptoType},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := IdentityFromPublicKey(tc.pub, tc.ct); !errors.Is(err, tc.want) {
				t.Errorf("error = %v, want %v", err, tc.want)
			}
		})
	}
}

func TestVerifyIdentity(t *testing.T) {
	kp, err := DeriveFromMnemonic(devMnemonic, "//Bob", account.SubstrateEcdsa)
	if err != nil {
		t.Fatal(err)
	}
	if err := VerifyIdentity(kp.Identity); err != nil {
		t.Fatalf("VerifyIdentity() error = %v", err)
	}

	bad := kp.Identity
	bad.AccountID = bytes.Repeat([]byte{1}, 32)
	if err := VerifyIdentity(bad); !errors.Is(err, ErrIdentityMismatch) {
		t.Errorf("error = %v, want ErrIdentityMismatch", err)
	}

	short := kp.Identity
	short.AccountID = short.AccountID[:20]
	if err := VerifyIdentity(short); !errors.Is(err, account.ErrInconsistentAccountData) {
		t.Errorf("error = %v, want ErrInconsistentAccountData", err)
	}
}

// ============ Keystore Tests ============

func ethereumKeystoreJSON(t *testing.T, password string) ([]byte, *KeyPair) {
	t.Helper()
	kp, err := DeriveFromMnemonic(testMnemonic, "", account.EthereumEcdsa)
	if err != nil {
		t.Fatal(err)
	}
	priv, err := crypto.ToECDSA(kp.PrivateKey)
	if err != nil {
		t.Fatal(err)
	}
	key := &keystore.Key{
		Id:         uuid.New(),
		Address:    crypto.PubkeyToAddress(priv.PublicKey),
		PrivateKey: priv,
	}
	data, err := keystore.EncryptKey(key, password, keystore.LightScryptN, keystore.LightScryptP)
	if err != nil {
		t.Fatal(err)
	}
	return data, kp
}

func polkadotKeystoreJSON(t *testing.T, password string, kp *KeyPair, secret []byte) []byte {
	t.Helper()

	plain := append([]byte{}, pkcs8Header...)
	plain = append(plain, secret...)
	plain = append(plain, pkcs8Divider...)
	plain = append(plain, kp.Identity.PublicKey...)

	salt := make([]byte, 32)
	if _, err := rand.Read(salt); err != nil {
		t.Fatal(err)
	}
	const n, p, r = 1 << 10, 1, 8
	key, err := scrypt.Key([]byte(password), salt, n, r, p, 32)
	if err != nil {
		t.Fatal(err)
	}

	var boxKey [32]byte
	var nonce [secretboxNonceLen]byte
	copy(boxKey[:], key)
	if _, err := rand.Read(nonce[:]); err != nil {
		t.Fatal(err)
	}

	encoded := append([]byte{}, salt...)
	encoded = binary.LittleEndian.AppendUint32(encoded, n)
	encoded = binary.LittleEndian.AppendUint32(encoded, p)
	encoded = binary.LittleEndian.AppendUint32(encoded, r)
	encoded = append(encoded, nonce[:]...)
	encoded = secretbox.Seal(encoded, plain, &nonce, &boxKey)

	file := map[string]interface{}{
		"encoded": base64.StdEncoding.EncodeToString(encoded),
		"encoding": map[string]interface{}{
			"content": []string{"pkcs8", kp.Identity.CryptoType.String()},
			"type":    []string{"scrypt", "xsalsa20-poly1305"},
			"version": "3",
		},
		"address": "",
	}
	data, err := json.Marshal(file)
	if err != nil {
		t.Fatal(err)
	}
	return data
}

// ed25519Secret returns the 64-byte secret key layout (seed | public key).
func ed25519Secret(kp *KeyPair) []byte {
	return append(append([]byte{}, kp.PrivateKey...), kp.Identity.PublicKey...)
}

func TestDetectKeystore(t *testing.T) {
	ethData, _ := ethereumKeystoreJSON(t, "pw")
	kp, err := DeriveFromMnemonic(devMnemonic, "//Alice", account.Ed25519)
	if err != nil {
		t.Fatal(err)
	}
	dotData := polkadotKeystoreJSON(t, "pw", kp, ed25519Secret(kp))

	tests := []struct {
		name    string
		data    []byte
		want    KeystoreFormat
		wantErr bool
	}{
		{"ethereum", ethData, KeystoreEthereum, false},
		{"polkadot", dotData, KeystorePolkadotJS, false},
		{"not json", []byte("nope"), "", true},
		{"unknown", []byte(`{"foo":1}`), "", true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := DetectKeystore(tc.data)
			if (err != nil) != tc.wantErr {
				t.Fatalf("DetectKeystore() error = %v, wantErr %v", err, tc.wantErr)
			}
			if got != tc.want {
				t.Errorf("DetectKeystore() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestImportEthereumKeystore(t *testing.T) {
	data, want := ethereumKeystoreJSON(t, "keystore-pw")

	kp, err := ImportKeystore(data, "keystore-pw")
	if err != nil {
		t.Fatalf("ImportKeystore() error = %v", err)
	}
	if !kp.Identity.Equal(want.Identity) {
		t.Error("imported identity mismatch")
	}
	if !bytes.Equal(kp.PrivateKey, want.PrivateKey) {
		t.Error("imported private key mismatch")
	}

	if _, err := ImportKeystore(data, "wrong"); !errors.Is(err, ErrWrongPassword) {
		t.Errorf("wrong password error = %v, want ErrWrongPassword", err)
	}
}

func TestImportPolkadotKeystore(t *testing.T) {
	ed, err := DeriveFromMnemonic(devMnemonic, "//Alice", account.Ed25519)
	if err != nil {
		t.Fatal(err)
	}
	ecdsa, err := DeriveFromMnemonic(devMnemonic, "//Alice", account.SubstrateEcdsa)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name   string
		kp     *KeyPair
		secret []byte
	}{
		{"ed25519", ed, ed25519Secret(ed)},
		{"ed25519 legacy seed", ed, ed.PrivateKey},
		{"ecdsa", ecdsa, ecdsa.PrivateKey},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			data := polkadotKeystoreJSON(t, "dot-pw", tc.kp, tc.secret)
			got, err := ImportKeystore(data, "dot-pw")
			if err != nil {
				t.Fatalf("ImportKeystore() error = %v", err)
			}
			if !got.Identity.Equal(tc.kp.Identity) {
				t.Error("imported identity mismatch")
			}
			if _, err := ImportKeystore(data, "wrong"); !errors.Is(err, ErrWrongPassword) {
				t.Errorf("wrong password error = %v, want ErrWrongPassword", err)
			}
		})
	}
}

// keystoreWithScrypt builds a polkadot-js file whose body carries the given
// scrypt parameters and a random box. It never runs scrypt itself.
func keystoreWithScrypt(t *testing.T, n, p, r uint32) []byte {
	t.Helper()

	encoded := make([]byte, 32)
	if _, err := rand.Read(encoded); err != nil {
		t.Fatal(err)
	}
	encoded = binary.LittleEndian.AppendUint32(encoded, n)
	encoded = binary.LittleEndian.AppendUint32(encoded, p)
	encoded = binary.LittleEndian.AppendUint32(encoded, r)
	box := make([]byte, secretboxNonceLen+secretbox.Overhead+64)
	if _, err := rand.Read(box); err != nil {
		t.Fatal(err)
	}
	encoded = append(encoded, box...)

	data, err := json.Marshal(map[string]interface{}{
		"encoded": base64.StdEncoding.EncodeToString(encoded),
		"encoding": map[string]interface{}{
			"content": []string{"pkcs8", "ed25519"},
			"type":    []string{"scrypt", "xsalsa20-poly1305"},
			"version": "3",
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	return data
}

func TestImportPolkadotKeystoreScryptBounds(t *testing.T) {
	tests := []struct {
		name    string
		n, p, r uint32
	}{
		{"huge r", 1 << 14, 1, 1 << 22},
		{"huge p", 1 << 10, 1 << 20, 8},
		{"huge N", 1 << 24, 1, 8},
		{"memory ceiling", 1 << 20, 1, 8},
		{"N not a power of two", 1000, 1, 8},
		{"zero N", 0, 1, 8},
		{"zero r", 1 << 10, 1, 0},
		{"zero p", 1 << 10, 0, 8},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ImportKeystore(keystoreWithScrypt(t, tt.n, tt.p, tt.r), "password")
			if !errors.Is(err, ErrInvalidKeystore) {
				t.Errorf("ImportKeystore() error = %v, want ErrInvalidKeystore", err)
			}
		})
	}

	// polkadot-js defaults stay accepted; the random box fails to open.
	_, err := ImportKeystore(keystoreWithScrypt(t, 1<<15, 1, 8), "password")
	if !errors.Is(err, ErrWrongPassword) {
		t.Errorf("default params error = %v, want ErrWrongPassword", err)
	}
}

func TestImportPolkadotKeystoreSR25519(t *testing.T) {
	pub := bytes.Repeat([]byte{0xd4}, 32)
	kp := &KeyPair{Identity: account.Identity{AccountID: pub, PublicKey: pub, CryptoType: account.SR25519}}
	data := polkadotKeystoreJSON(t, "pw", kp, bytes.Repeat([]byte{3}, 64))

	got, err := ImportKeystore(data, "pw")
	if err != nil {
		t.Fatalf("ImportKeystore() error = %v", err)
	}
	if got.Identity.CryptoType != account.SR25519 || !bytes.Equal(got.Identity.AccountID, pub) {
		t.Errorf("identity = %+v", got.Identity)
	}
}

func TestImportPolkadotKeystoreMismatch(t *testing.T) {
	alice, err := DeriveFromMnemonic(devMnemonic, "//Alice", account.Ed25519)
	if err != nil {
		t.Fatal(err)
	}
	bob, err := DeriveFromMnemonic(devMnemonic, "//Bob", account.Ed25519)
	if err != nil {
		t.Fatal(err)
	}

	// Alice's secret shipped with Bob's public key.
	forged := &KeyPair{Identity: bob.Identity}
	data := polkadotKeystoreJSON(t, "pw", forged, ed25519Secret(alice))
	if _, err := ImportKeystore(data, "pw"); !errors.Is(err, ErrIdentityMismatch) {
		t.Errorf("error = %v, want ErrIdentityMismatch", err)
	}
}

func TestDecodePKCS8Errors(t *testing.T) {
	if _, _, err := decodePKCS8([]byte{1, 2, 3}); !errors.Is(err, ErrInvalidKeystore) {
		t.Errorf("bad header error = %v", err)
	}
	noDivider := append(append([]byte{}, pkcs8Header...), make([]byte, 100)...)
	if _, _, err := decodePKCS8(noDivider); !errors.Is(err, ErrInvalidKeystore) {
		t.Errorf("missing divider error = %v", err)
	}
	noPub := append(append(append([]byte{}, pkcs8Header...), make([]byte, 64)...), pkcs8Divider...)
	if _, _, err := decodePKCS8(noPub); !errors.Is(err, ErrInvalidKeystore) {
		t.Errorf("missing public key error = %v", err)
	}
}

// ============ Vault Tests ============

func TestEncryptDecryptSecret(t *testing.T) {
	secret := []byte(testMnemonic)

	enc, err := EncryptSecret(secret, testPassword)
	if err != nil {
		t.Fatalf("EncryptSecret() error = %v", err)
	}
	if bytes.Contains(enc.Ciphertext, secret) {
		t.Error("ciphertext should not contain the secret")
	}

	got, err := DecryptSecret(enc, testPassword)
	if err != nil {
		t.Fatalf("DecryptSecret() error = %v", err)
	}
	if !bytes.Equal(got, secret) {
		t.Error("decrypted secret mismatch")
	}

	if _, err := DecryptSecret(enc, "WrongPassword123!"); !errors.Is(err, ErrWrongPassword) {
		t.Errorf("wrong password error = %v, want ErrWrongPassword", err)
	}

	if _, err := EncryptSecret(secret, "weak"); err == nil {
		t.Error("expected error for weak password")
	}
}

func TestSecretEntryRoundTrip(t *testing.T) {
	ethData, ethPair := ethereumKeystoreJSON(t, "pw")
	imported, err := ImportKeystore(ethData, "pw")
	if err != nil {
		t.Fatal(err)
	}
	alice, err := DeriveFromMnemonic(devMnemonic, "//Alice", account.Ed25519)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name  string
		entry *SecretEntry
		want  account.Identity
	}{
		{
			name:  "mnemonic",
			entry: &SecretEntry{Source: "mnemonic", Secret: []byte(devMnemonic), Path: "//Alice", CryptoType: account.Ed25519},
			want:  alice.Identity,
		},
		{
			name:  "seed",
			entry: &SecretEntry{Source: "seed", Secret: ethPair.PrivateKey, CryptoType: account.EthereumEcdsa},
			want:  ethPair.Identity,
		},
		{
			name:  "keystore",
			entry: keystoreEntry(imported),
			want:  ethPair.Identity,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			sealed, err := tc.entry.Seal(testPassword)
			if err != nil {
				t.Fatalf("Seal() error = %v", err)
			}

			opened, err := OpenSecretEntry(sealed, testPassword)
			if err != nil {
				t.Fatalf("OpenSecretEntry() error = %v", err)
			}
			if opened.Source != tc.entry.Source || opened.Path != tc.entry.Path || opened.CryptoType != tc.entry.CryptoType {
				t.Errorf("opened = %+v", opened)
			}

			kp, err := opened.KeyPair()
			if err != nil {
				t.Fatalf("KeyPair() error = %v", err)
			}
			if !kp.Identity.Equal(tc.want) {
				t.Error("re-derived identity mismatch")
			}

			if _, err := OpenSecretEntry(sealed, "WrongPassword123!"); !errors.Is(err, ErrWrongPassword) {
				t.Errorf("wrong password error = %v, want ErrWrongPassword", err)
			}
		})
	}
}

func TestSecretEntryUnknownSource(t *testing.T) {
	e := &SecretEntry{Source: "paper", CryptoType: account.Ed25519}
	if _, err := e.KeyPair(); err == nil {
		t.Error("expected error for unknown source")
	}
}

func TestValidatePassword(t *testing.T) {
	tests := []struct {
		password string
		valid    bool
	}{
		{"TestPassword123!", true},        // Has all 4 types
		{"TestPassword123", true},         // Has 3 of 4 (upper, lower, number)
		{"TestPassword!", true},           // Has 3 of 4 (upper, lower, special)
		{"Test123!", true},                // Has all 4 types
		{"short", false},                  // Too short
		{"testpassword", false},           // Only lowercase
		{"12345678", false},               // Only numbers
		{"testpassword123", false},        // Only 2 types (lower + number)
		{strings.Repeat("a", 257), false}, // Too long
	}

	for _, tc := range tests {
		err := ValidatePassword(tc.password)
		if tc.valid && err != nil {
			t.Errorf("ValidatePassword(%q) should be valid, got error: %v", tc.password, err)
		}
		if !tc.valid && err == nil {
			t.Errorf("ValidatePassword(%q) should be invalid", tc.password)
		}
	}
}

func TestSecureClear(t *testing.T) {
	data := []byte("sensitive data")
	SecureClear(data)

	for _, b := range data {
		if b != 0 {
			t.Error("data should be cleared to zeros")
			break
		}
	}
}

// ============ Lock Tests ============

func TestKeyedMutex(t *testing.T) {
	k := newKeyedMutex()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		active  int
		overlap bool
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := k.Lock("wallet")
			defer unlock()

			mu.Lock()
			active++
			if active > 1 {
				overlap = true
			}
			mu.Unlock()

			time.Sleep(time.Millisecond)

			mu.Lock()
			active--
			mu.Unlock()
		}()
	}
	wg.Wait()

	if overlap {
		t.Error("holders of the same key overlapped")
	}
	if len(k.locks) != 0 {
		t.Errorf("locks = %d, want 0 after release", len(k.locks))
	}

	// Different keys do not block each other.
	unlockA := k.Lock("a")
	done := make(chan struct{})
	go func() {
		unlock := k.Lock("b")
		unlock()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Error("lock on another key blocked")
	}
	unlockA()
}
