// Package secret seals JSON blobs at rest with a key derived from a shared secret.
//
// The wire format is hex(iv) + ":" + hex(ciphertext) using AES-256-CBC with
// PKCS#7 padding and SHA-256(secret) as the key, so blobs written by earlier
// tooling can still be opened.
package secret

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"feedwatch/internal/domain"
)

// Cipher encrypts and decrypts JSON values.
type Cipher struct {
	key [32]byte
}

// New derives the AES key from secret. An empty secret is a configuration error.
func New(secret string) (*Cipher, error) {
	if secret == "" {
		return nil, fmt.Errorf("%w: encryption key is not set", domain.ErrConfig)
	}
	return &Cipher{key: sha256.Sum256([]byte(secret))}, nil
}

// Encrypt marshals v to JSON and seals it.
func (c *Cipher) Encrypt(v any) (string, error) {
	plain, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to marshal value: %w", err)
	}

	block, err := aes.NewCipher(c.key[:])
	if err != nil {
		return "", fmt.Errorf("failed to create cipher: %w", err)
	}

	iv := make([]byte, aes.BlockSize)
	if _, err := rand.Read(iv); err != nil {
		return "", fmt.Errorf("failed to generate iv: %w", err)
	}

	padded := pad(plain, aes.BlockSize)
	out := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(out, padded)

	return hex.EncodeToString(iv) + ":" + hex.EncodeToString(out), nil
}

// Decrypt opens blob and unmarshals the JSON payload into v.
// Every failure wraps domain.ErrDecryption.
func (c *Cipher) Decrypt(blob string, v any) error {
	parts := strings.Split(strings.TrimSpace(blob), ":")
	if len(parts) != 2 {
		return fmt.Errorf("%w: invalid encrypted data format", domain.ErrDecryption)
	}

	iv, err := hex.DecodeString(parts[0])
	if err != nil || len(iv) != aes.BlockSize {
		return fmt.Errorf("%w: invalid iv", domain.ErrDecryption)
	}
	data, err := hex.DecodeString(parts[1])
	if err != nil {
		return fmt.Errorf("%w: invalid ciphertext encoding", domain.ErrDecryption)
	}
	if len(data) == 0 || len(data)%aes.BlockSize != 0 {
		return fmt.Errorf("%w: ciphertext is not a multiple of the block size", domain.ErrDecryption)
	}

	block, err := aes.NewCipher(c.key[:])
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrDecryption, err)
	}
	plain := make([]byte, len(data))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plain, data)

	plain, err = unpad(plain, aes.BlockSize)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrDecryption, err)
	}
	if err := json.Unmarshal(plain, v); err != nil {
		return fmt.Errorf("%w: payload is not valid JSON: %v", domain.ErrDecryption, err)
	}
	return nil
}

// DecodeWithFallback tries Decrypt first and then plain JSON, for blobs written
// before encryption was introduced. legacy is true when the plain path was used;
// callers should re-encrypt and persist in that case.
func (c *Cipher) DecodeWithFallback(blob string, v any) (legacy bool, err error) {
	decErr := c.Decrypt(blob, v)
	if decErr == nil {
		return false, nil
	}
	if jsonErr := json.Unmarshal([]byte(blob), v); jsonErr == nil {
		return true, nil
	}
	return false, decErr
}

func pad(b []byte, size int) []byte {
	n := size - len(b)%size
	return append(append([]byte{}, b...), bytes.Repeat([]byte{byte(n)}, n)...)
}

func unpad(b []byte, size int) ([]byte, error) {
	if len(b) == 0 {
		return nil, fmt.Errorf("empty plaintext")
	}
	n := int(b[len(b)-1])
	if n == 0 || n > size || n > len(b) {
		return nil, fmt.Errorf("bad padding")
	}
	for _, p := range b[len(b)-n:] {
		if int(p) != n {
			return nil, fmt.Errorf("bad padding")
		}
	}
	return b[:len(b)-n], nil
}
