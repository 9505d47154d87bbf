package wallet

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/accounts/keystore"
	"golang.org/x/crypto/nacl/secretbox"
	"golang.org/x/crypto/scrypt"

	"github.com/klingon-exchange/klingvault/internal/account"
	"github.com/klingon-exchange/klingvault/pkg/helpers"
)

// KeystoreFormat identifies the kind of keystore file.
type KeystoreFormat string

const (
	KeystoreEthereum   KeystoreFormat = "ethereum-v3"
	KeystorePolkadotJS KeystoreFormat = "polkadot-js"
)

// polkadot-js PKCS8 body layout.
var (
	pkcs8Header  = []byte{48, 83, 2, 1, 1, 48, 5, 6, 3, 43, 101, 112, 4, 34, 4, 32}
	pkcs8Divider = []byte{161, 35, 3, 33, 0}
)

const (
	scryptParamsLength = 32 + 4 + 4 + 4 // salt | N | p | r
	secretboxNonceLen  = 24
	pkcs8SecretLength  = 64
	pkcs8SeedLength    = 32
	maxScryptN         = 1 << 20
	maxScryptR         = 32
	maxScryptP         = 16
	maxScryptMemory    = 256 << 20 // bytes, scrypt allocates 128*N*r
)

type keystoreFile struct {
	// polkadot-js
	Encoded  string `json:"encoded"`
	Encoding *struct {
		Content []string `json:"content"`
		Type    []string `json:"type"`
		Version string   `json:"version"`
	} `json:"encoding"`

	// ethereum v3 (the key is matched case-insensitively)
	Crypto  json.RawMessage `json:"crypto"`
	Version int             `json:"version"`
}

// DetectKeystore returns the format of a keystore file.
func DetectKeystore(data []byte) (KeystoreFormat, error) {
	var f keystoreFile
	if err := json.Unmarshal(data, &f); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidKeystore, err)
	}
	switch {
	case f.Encoded != "" && f.Encoding != nil:
		return KeystorePolkadotJS, nil
	case len(f.Crypto) > 0 && f.Version == 3:
		return KeystoreEthereum, nil
	default:
		return "", fmt.Errorf("%w: unrecognized format", ErrInvalidKeystore)
	}
}

// ImportKeystore decrypts an ethereum V3 or polkadot-js keystore file.
func ImportKeystore(data []byte, password string) (*KeyPair, error) {
	format, err := DetectKeystore(data)
	if err != nil {
		return nil, err
	}
	if format == KeystoreEthereum {
		return importEthereumKeystore(data, password)
	}
	return importPolkadotKeystore(data, password)
}

func importEthereumKeystore(data []byte, password string) (*KeyPair, error) {
	key, err := keystore.DecryptKey(data, password)
	if errors.Is(err, keystore.ErrDecrypt) {
		return nil, ErrWrongPassword
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKeystore, err)
	}
	return ethereumKeyPairFromECDSA(key.PrivateKey), nil
}

func importPolkadotKeystore(data []byte, password string) (*KeyPair, error) {
	var f keystoreFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKeystore, err)
	}
	if !contains(f.Encoding.Type, "scrypt") || !contains(f.Encoding.Type, "xsalsa20-poly1305") {
		return nil, fmt.Errorf("%w: unsupported encoding %v", ErrInvalidKeystore, f.Encoding.Type)
	}
	if len(f.Encoding.Content) < 2 || f.Encoding.Content[0] != "pkcs8" {
		return nil, fmt.Errorf("%w: unsupported content %v", ErrInvalidKeystore, f.Encoding.Content)
	}
	ct, err := account.ParseCryptoType(f.Encoding.Content[1])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKeystore, err)
	}

	encoded, err := base64.StdEncoding.DecodeString(f.Encoded)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKeystore, err)
	}
	plain, err := openPolkadotBox(encoded, password)
	if err != nil {
		return nil, err
	}
	defer SecureClear(plain)

	secret, pub, err := decodePKCS8(plain)
	if err != nil {
		return nil, err
	}
	return keyPairFromSecret(secret, pub, ct)
}

func openPolkadotBox(encoded []byte, password string) ([]byte, error) {
	if len(encoded) < scryptParamsLength+secretboxNonceLen+secretbox.Overhead {
		return nil, fmt.Errorf("%w: encoded body too short", ErrInvalidKeystore)
	}

	salt := encoded[:32]
	n := binary.LittleEndian.Uint32(encoded[32:36])
	p := binary.LittleEndian.Uint32(encoded[36:40])
	r := binary.LittleEndian.Uint32(encoded[40:44])
	if err := checkScryptParams(n, p, r); err != nil {
		return nil, err
	}

	key, err := scrypt.Key([]byte(password), salt, int(n), int(r), int(p), 32)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKeystore, err)
	}
	defer SecureClear(key)

	var boxKey [32]byte
	var nonce [secretboxNonceLen]byte
	copy(boxKey[:], key)
	defer SecureClear(boxKey[:])
	body := encoded[scryptParamsLength:]
	copy(nonce[:], body[:secretboxNonceLen])

	plain, ok := secretbox.Open(nil, body[secretboxNonceLen:], &nonce, &boxKey)
	if !ok {
		return nil, ErrWrongPassword
	}
	return plain, nil
}

// checkScryptParams bounds the work factors read from a keystore before
// any memory is allocated for them.
func checkScryptParams(n, p, r uint32) error {
	switch {
	case n < 2 || n&(n-1) != 0:
		return fmt.Errorf("%w: scrypt N %d must be a power of two", ErrInvalidKeystore, n)
	case n > maxScryptN:
		return fmt.Errorf("%w: scrypt N %d too large", ErrInvalidKeystore, n)
	case r == 0 || r > maxScryptR:
		return fmt.Errorf("%w: scrypt r %d out of range", ErrInvalidKeystore, r)
	case p == 0 || p > maxScryptP:
		return fmt.Errorf("%w: scrypt p %d out of range", ErrInvalidKeystore, p)
	case 128*uint64(n)*uint64(r) > maxScryptMemory:
		return fmt.Errorf("%w: scrypt N %d r %d needs too much memory", ErrInvalidKeystore, n, r)
	}
	return nil
}

// decodePKCS8 splits a polkadot-js pair body into secret and public key.
// Current files carry a 64-byte secret, older ones a 32-byte seed.
func decodePKCS8(plain []byte) (secret, pub []byte, err error) {
	if !bytes.HasPrefix(plain, pkcs8Header) {
		return nil, nil, fmt.Errorf("%w: invalid pkcs8 header", ErrInvalidKeystore)
	}
	body := plain[len(pkcs8Header):]

	for _, n := range []int{pkcs8SecretLength, pkcs8SeedLength} {
		if len(body) >= n+len(pkcs8Divider) && bytes.Equal(body[n:n+len(pkcs8Divider)], pkcs8Divider) {
			secret = helpers.CloneBytes(body[:n])
			pub = helpers.CloneBytes(body[n+len(pkcs8Divider):])
			if len(pub) == 0 {
				return nil, nil, fmt.Errorf("%w: missing public key", ErrInvalidKeystore)
			}
			return secret, pub, nil
		}
	}
	return nil, nil, fmt.Errorf("%w: invalid pkcs8 divider", ErrInvalidKeystore)
}

// keyPairFromSecret rebuilds a key pair from imported key material and
// checks it against the public key that came with it. sr25519 public keys
// cannot be recomputed and are taken as given.
func keyPairFromSecret(secret, pub []byte, ct account.CryptoType) (*KeyPair, error) {
	var kp *KeyPair
	switch ct {
	case account.SR25519:
		if len(pub) != account.SubstrateAccountIDLength {
			return nil, fmt.Errorf("%w: sr25519 public key must be 32 bytes", ErrInvalidPublicKey)
		}
		return &KeyPair{
			Identity: account.Identity{
				AccountID:  helpers.CloneBytes(pub),
				PublicKey:  helpers.CloneBytes(pub),
				CryptoType: account.SR25519,
			},
			PrivateKey: helpers.CloneBytes(secret),
		}, nil
	case account.Ed25519, account.SubstrateEcdsa:
		if len(secret) < SeedLength {
			return nil, fmt.Errorf("%w: secret too short", ErrInvalidKeystore)
		}
		var seed [SeedLength]byte
		copy(seed[:], secret[:SeedLength])
		defer SecureClear(seed[:])
		if ct == account.Ed25519 {
			kp = ed25519KeyPair(seed)
		} else {
			kp = substrateEcdsaKeyPair(seed)
		}
	case account.EthereumEcdsa:
		if len(secret) < SeedLength {
			return nil, fmt.Errorf("%w: secret too short", ErrInvalidKeystore)
		}
		var err error
		if kp, err = ethereumKeyPair(secret[:SeedLength]); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("%w: %s", account.ErrUnknownCryptoType, ct)
	}

	if len(pub) > 0 {
		normalized, err := IdentityFromPublicKey(pub, ct)
		if err != nil {
			return nil, err
		}
		if !normalized.Equal(kp.Identity) {
			kp.Clear()
			return nil, ErrIdentityMismatch
		}
	}
	return kp, nil
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
