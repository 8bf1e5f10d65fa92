package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/hkdf"
)

var (
	ErrInvalidKey      = errors.New("vault: invalid encryption key")
	ErrInvalidPayload  = errors.New("vault: invalid sealed payload")
	ErrDecryption      = errors.New("vault: decryption failed")
	ErrUnknownKey      = errors.New("vault: sealed with an unknown key")
	ErrUnknownProvider = errors.New("vault: unknown provider")
)

const (
	sealedVersion = 1
	hkdfInfo      = "billingcore/vault/aes-256-gcm"
)

// Provider seals secrets at rest. The associated data binds a sealed value
// to its owner (for example an integration id), so a ciphertext copied onto
// another row fails to open.
type Provider interface {
	Seal(plaintext, associatedData []byte) ([]byte, error)
	Open(sealed, associatedData []byte) ([]byte, error)
}

type Config struct {
	Provider     string
	AESKey       string
	PreviousKeys []string
}

func NewFactory(cfg Config) (Provider, error) {
	switch strings.ToLower(cfg.Provider) {
	case "aes", "":
		return newAESVault(cfg.AESKey, cfg.PreviousKeys)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, cfg.Provider)
	}
}

type aesKey struct {
	id  string
	key []byte
}

// AESVault seals with the current key and opens with any configured key,
// which allows rotating VAULT_AES_KEY without re-sealing every row first.
type AESVault struct {
	current aesKey
	keys    map[string]aesKey
}

func newAESVault(current string, previous []string) (*AESVault, error) {
	if strings.TrimSpace(current) == "" {
		return nil, ErrInvalidKey
	}

	cur, err := deriveKey(current)
	if err != nil {
		return nil, err
	}
	v := &AESVault{current: cur, keys: map[string]aesKey{cur.id: cur}}
	for _, raw := range previous {
		k, err := deriveKey(raw)
		if err != nil {
			return nil, err
		}
		v.keys[k.id] = k
	}
	return v, nil
}

func deriveKey(secret string) (aesKey, error) {
	key := make([]byte, 32)
	if _, err := io.ReadFull(hkdf.New(sha256.New, []byte(secret), nil, []byte(hkdfInfo)), key); err != nil {
		return aesKey{}, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	sum := sha256.Sum256(key)
	return aesKey{id: hex.EncodeToString(sum[:4]), key: key}, nil
}

type sealedData struct {
	Version    int    `json:"v"`
	KeyID      string `json:"k"`
	Nonce      string `json:"n"`
	Ciphertext string `json:"c"`
}

func (v *AESVault) Seal(plaintext, associatedData []byte) ([]byte, error) {
	gcm, err := newGCM(v.current.key)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}

	return json.Marshal(sealedData{
		Version:    sealedVersion,
		KeyID:      v.current.id,
		Nonce:      base64.RawStdEncoding.EncodeToString(nonce),
		Ciphertext: base64.RawStdEncoding.EncodeToString(gcm.Seal(nil, nonce, plaintext, associatedData)),
	})
}

func (v *AESVault) Open(sealed, associatedData []byte) ([]byte, error) {
	var payload sealedData
	if err := json.Unmarshal(sealed, &payload); err != nil || payload.Version != sealedVersion {
		return nil, ErrInvalidPayload
	}

	key, ok := v.keys[payload.KeyID]
	if !ok {
		return nil, ErrUnknownKey
	}

	nonce, err := base64.RawStdEncoding.DecodeString(payload.Nonce)
	if err != nil {
		return nil, ErrInvalidPayload
	}
	ciphertext, err := base64.RawStdEncoding.DecodeString(payload.Ciphertext)
	if err != nil {
		return nil, ErrInvalidPayload
	}

	gcm, err := newGCM(key.key)
	if err != nil {
		return nil, err
	}
	plaintext, err := gcm.Open(nil, nonce, ciphertext, associatedData)
	if err != nil {
		return nil, ErrDecryption
	}
	return plaintext, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
