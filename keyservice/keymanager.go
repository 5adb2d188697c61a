package keyservice

import (
	"crypto/rand"
	"encoding/hex"
	"os"
	"strings"

	"golang.org/x/crypto/chacha20poly1305"
)

// KeyManager seals and opens per-account peppers under a single master key.
// The master key is loaded once at startup from a secrets file and never
// leaves this struct.
type KeyManager struct {
	masterKey [chacha20poly1305.KeySize]byte
}

// NewKeyManagerFromFile reads a hex-encoded 32-byte master key from path.
func NewKeyManagerFromFile(path string) (*KeyManager, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return NewKeyManagerFromHex(strings.TrimSpace(string(raw)))
}

func NewKeyManagerFromHex(hexKey string) (*KeyManager, error) {
	key, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, err
	}
	if len(key) != chacha20poly1305.KeySize {
		return nil, ErrBadMasterKey
	}
	km := &KeyManager{}
	copy(km.masterKey[:], key)
	return km, nil
}

// NewPepper draws a fresh 32-byte pepper.
func (km *KeyManager) NewPepper() ([]byte, error) {
	pepper := make([]byte, 32)
	if _, err := rand.Read(pepper); err != nil {
		return nil, err
	}
	return pepper, nil
}

// SealPepper encrypts a pepper for storage. Layout: nonce || ciphertext.
func (km *KeyManager) SealPepper(pepper []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(km.masterKey[:])
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}
	return aead.Seal(nonce, nonce, pepper, nil), nil
}

// OpenPepper decrypts a stored pepper ciphertext.
func (km *KeyManager) OpenPepper(cipher []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(km.masterKey[:])
	if err != nil {
		return nil, err
	}
	if len(cipher) < aead.NonceSize() {
		return nil, ErrPepperUnavailable
	}
	nonce, ct := cipher[:aead.NonceSize()], cipher[aead.NonceSize():]
	pepper, err := aead.Open(nil, nonce, ct, nil)
	if err != nil {
		return nil, ErrPepperUnavailable
	}
	return pepper, nil
}
