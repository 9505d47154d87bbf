package wallet

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"unicode"

	"golang.org/x/crypto/argon2"

	"github.com/klingon-exchange/klingvault/internal/account"
	"github.com/klingon-exchange/klingvault/internal/derivation"
)

// Argon2 parameters (OWASP recommended for password hashing)
const (
	argon2Time        = 3         // Number of iterations
	argon2Memory      = 64 * 1024 // 64 MB memory
	argon2Parallelism = 4         // Parallel threads
	argon2KeyLen      = 32        // Output key length for AES-256
	argon2SaltLen     = 32        // Salt length
)

// EncryptedSecret is a secret sealed with Argon2id + AES-256-GCM.
type EncryptedSecret struct {
	Version     int    `json:"version"`
	Ciphertext  []byte `json:"ciphertext"`
	Salt        []byte `json:"salt"`
	Nonce       []byte `json:"nonce"`
	Time        uint32 `json:"time"`
	Memory      uint32 `json:"memory"`
	Parallelism uint8  `json:"parallelism"`
}

// EncryptSecret encrypts a secret using Argon2id + AES-256-GCM.
func EncryptSecret(secret []byte, password string) (*EncryptedSecret, error) {
	if err := ValidatePassword(password); err != nil {
		return nil, err
	}

	salt := make([]byte, argon2SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}

	gcm, err := newGCM(password, salt, argon2Time, argon2Memory, argon2Parallelism)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	return &EncryptedSecret{
		Version:     1,
		Ciphertext:  gcm.Seal(nil, nonce, secret, nil),
		Salt:        salt,
		Nonce:       nonce,
		Time:        argon2Time,
		Memory:      argon2Memory,
		Parallelism: argon2Parallelism,
	}, nil
}

// DecryptSecret decrypts an encrypted secret.
func DecryptSecret(encrypted *EncryptedSecret, password string) ([]byte, error) {
	// Use stored parameters or defaults
	time := encrypted.Time
	if time == 0 {
		time = argon2Time
	}
	memory := encrypted.Memory
	if memory == 0 {
		memory = argon2Memory
	}
	parallelism := encrypted.Parallelism
	if parallelism == 0 {
		parallelism = argon2Parallelism
	}

	gcm, err := newGCM(password, encrypted.Salt, time, memory, parallelism)
	if err != nil {
		return nil, err
	}

	if len(encrypted.Nonce) != gcm.NonceSize() {
		return nil, fmt.Errorf("invalid nonce length %d", len(encrypted.Nonce))
	}
	plaintext, err := gcm.Open(nil, encrypted.Nonce, encrypted.Ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrWrongPassword, err)
	}
	return plaintext, nil
}

func newGCM(password string, salt []byte, time, memory uint32, parallelism uint8) (cipher.AEAD, error) {
	key := argon2.IDKey([]byte(password), salt, time, memory, parallelism, argon2KeyLen)
	defer SecureClear(key)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return gcm, nil
}

// SecretEntry is the plaintext stored in the vault for one identity slot:
// the secret and the parameters that turn it back into the identity.
type SecretEntry struct {
	Source     string             `json:"source"` // mnemonic, seed, keystore
	Secret     []byte             `json:"secret"` // mnemonic phrase, seed or private key
	Path       string             `json:"path,omitempty"`
	PublicKey  []byte             `json:"publicKey,omitempty"` // keystore imports only
	CryptoType account.CryptoType `json:"cryptoType"`
}

// Seal encrypts the entry for storage.
func (e *SecretEntry) Seal(password string) ([]byte, error) {
	plain, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal secret: %w", err)
	}
	defer SecureClear(plain)

	enc, err := EncryptSecret(plain, password)
	if err != nil {
		return nil, err
	}
	return json.Marshal(enc)
}

// Clear zeroes the secret.
func (e *SecretEntry) Clear() {
	if e != nil {
		SecureClear(e.Secret)
	}
}

// OpenSecretEntry decrypts a sealed entry.
func OpenSecretEntry(data []byte, password string) (*SecretEntry, error) {
	var enc EncryptedSecret
	if err := json.Unmarshal(data, &enc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal encrypted secret: %w", err)
	}

	plain, err := DecryptSecret(&enc, password)
	if err != nil {
		return nil, err
	}
	defer SecureClear(plain)

	var entry SecretEntry
	if err := json.Unmarshal(plain, &entry); err != nil {
		return nil, fmt.Errorf("failed to unmarshal secret: %w", err)
	}
	return &entry, nil
}

// KeyPair re-derives the identity the entry was created for.
func (e *SecretEntry) KeyPair() (*KeyPair, error) {
	switch e.Source {
	case derivation.SourceMnemonic.String():
		return DeriveFromMnemonic(string(e.Secret), e.Path, e.CryptoType)
	case derivation.SourceSeed.String():
		return DeriveFromSeed(e.Secret, e.Path, e.CryptoType)
	case derivation.SourceKeystore.String():
		return keyPairFromSecret(e.Secret, e.PublicKey, e.CryptoType)
	default:
		return nil, errors.New("unknown secret source " + e.Source)
	}
}

// SecureClear overwrites a byte slice with zeros.
func SecureClear(data []byte) {
	for i := range data {
		data[i] = 0
	}
}

// Password validation constants
const (
	MinPasswordLength = 8
	MaxPasswordLength = 256
)

// ValidatePassword validates password strength.
// Requires at least 8 characters and 3 of 4 character types.
func ValidatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return fmt.Errorf("%w: must be at least %d characters", ErrWeakPassword, MinPasswordLength)
	}
	if len(password) > MaxPasswordLength {
		return fmt.Errorf("%w: must be at most %d characters", ErrWeakPassword, MaxPasswordLength)
	}

	var hasUpper, hasLower, hasNumber, hasSpecial bool
	for _, char := range password {
		switch {
		case unicode.IsUpper(char):
			hasUpper = true
		case unicode.IsLower(char):
			hasLower = true
		case unicode.IsNumber(char):
			hasNumber = true
		case unicode.IsPunct(char) || unicode.IsSymbol(char):
			hasSpecial = true
		}
	}

	// Require at least 3 of 4 character types
	complexity := 0
	for _, ok := range []bool{hasUpper, hasLower, hasNumber, hasSpecial} {
		if ok {
			complexity++
		}
	}

	if complexity < 3 {
		return fmt.Errorf("%w: must contain at least 3 of: uppercase, lowercase, number, special character", ErrWeakPassword)
	}

	return nil
}
