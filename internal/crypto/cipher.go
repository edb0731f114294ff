package crypto

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log"
	"strings"
)

const (
	// KeySize is the AES-256 key length in bytes.
	KeySize = 32
	// ivHexLen is the length of the hex-encoded IV segment of a stored message.
	ivHexLen = 2 * aes.BlockSize
)

// MessageCipher encrypts and decrypts message bodies with AES-256-CBC.
// Stored ciphertext has the form "ivHex:cipherHex"; anything that does not
// parse as that shape is treated as legacy plaintext and passed through
// unchanged.
type MessageCipher struct {
	key []byte
	log *log.Logger
}

func NewMessageCipher(key []byte, logger *log.Logger) (*MessageCipher, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("message cipher key must be %d bytes, got %d", KeySize, len(key))
	}

	return &MessageCipher{key: key, log: logger}, nil
}

// Encrypt encrypts plaintext with a fresh random IV and returns
// "ivHex:cipherHex". The IV is never reused across calls.
func (mc *MessageCipher) Encrypt(plaintext string) (string, error) {
	if plaintext == "" {
		return plaintext, nil
	}

	block, err := aes.NewCipher(mc.key)
	if err != nil {
		return "", fmt.Errorf("new cipher: %w", err)
	}

	iv := make([]byte, aes.BlockSize)
	if _, err := rand.Read(iv); err != nil {
		return "", fmt.Errorf("generate iv: %w", err)
	}

	padded := pkcs7Pad([]byte(plaintext), aes.BlockSize)
	out := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(out, padded)

	return hex.EncodeToString(iv) + ":" + hex.EncodeToString(out), nil
}

// Decrypt reverses Encrypt. Inputs that do not have the iv:cipher shape are
// returned unchanged so that messages written before encryption was
// introduced stay readable. A ciphertext that fails to decrypt (corrupted
// data, rotated key) is also returned unchanged, with a warning logged,
// never an error.
func (mc *MessageCipher) Decrypt(text string) string {
	if text == "" {
		return text
	}

	parts := strings.Split(text, ":")
	if len(parts) != 2 {
		return text
	}

	if len(parts[0]) != ivHexLen {
		return text
	}

	iv, err := hex.DecodeString(parts[0])
	if err != nil {
		return text
	}

	data, err := hex.DecodeString(parts[1])
	if err != nil {
		return text
	}

	if len(data) == 0 || len(data)%aes.BlockSize != 0 {
		return text
	}

	block, err := aes.NewCipher(mc.key)
	if err != nil {
		mc.log.Printf("decrypt: new cipher: %v", err)
		return text
	}

	out := make([]byte, len(data))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(out, data)

	plain, err := pkcs7Unpad(out, aes.BlockSize)
	if err != nil {
		mc.log.Printf("decrypt failed for message (length %d), returning original: %v", len(text), err)
		return text
	}

	return string(plain)
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	n := blockSize - len(data)%blockSize
	return append(data, bytes.Repeat([]byte{byte(n)}, n)...)
}

func pkcs7Unpad(data []byte, blockSize int) ([]byte, error) {
	if len(data) == 0 || len(data)%blockSize != 0 {
		return nil, fmt.Errorf("invalid padded length %d", len(data))
	}

	n := int(data[len(data)-1])
	if n == 0 || n > blockSize {
		return nil, fmt.Errorf("invalid padding byte %d", n)
	}

	for _, b := range data[len(data)-n:] {
		if int(b) != n {
			return nil, fmt.Errorf("inconsistent padding")
		}
	}

	return data[:len(data)-n], nil
}
