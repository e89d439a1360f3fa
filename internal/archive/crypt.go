package archive

import (
	"bytes"
	"crypto/aes"
	"crypto/md5"
	"errors"
	"fmt"

	"github.com/agentic-research/dirworld/api"
)

// KeySize is the number of key bytes used. Longer keys are truncated.
const KeySize = 16

var (
	ErrKeyTooShort = errors.New("key shorter than 16 bytes")
	ErrBadPadding  = errors.New("bad ciphertext padding")
)

func cipherKey(key []byte) ([]byte, error) {
	if len(key) < KeySize {
		return nil, fmt.Errorf("%d bytes: %w", len(key), ErrKeyTooShort)
	}
	return key[:KeySize], nil
}

// Encrypt runs AES-128 in ECB mode over PKCS#7 padded plain.
//
// ECB leaks repeated plaintext blocks. Archives already written depend on
// this layout, so switching modes needs a versioned format.
func Encrypt(key, plain []byte) ([]byte, error) {
	k, err := cipherKey(key)
	if err != nil {
		return nil, err
	}
	block, err := aes.NewCipher(k)
	if err != nil {
		return nil, err
	}
	pad := aes.BlockSize - len(plain)%aes.BlockSize
	src := append(bytes.Clone(plain), bytes.Repeat([]byte{byte(pad)}, pad)...)
	out := make([]byte, len(src))
	for i := 0; i < len(src); i += aes.BlockSize {
		block.Encrypt(out[i:i+aes.BlockSize], src[i:i+aes.BlockSize])
	}
	return out, nil
}

// Decrypt reverses Encrypt.
func Decrypt(key, ciphertext []byte) ([]byte, error) {
	k, err := cipherKey(key)
	if err != nil {
		return nil, err
	}
	if len(ciphertext) == 0 || len(ciphertext)%aes.BlockSize != 0 {
		return nil, fmt.Errorf("ciphertext length %d: %w", len(ciphertext), ErrBadPadding)
	}
	block, err := aes.NewCipher(k)
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(ciphertext))
	for i := 0; i < len(ciphertext); i += aes.BlockSize {
		block.Decrypt(out[i:i+aes.BlockSize], ciphertext[i:i+aes.BlockSize])
	}
	pad := int(out[len(out)-1])
	if pad == 0 || pad > aes.BlockSize {
		return nil, ErrBadPadding
	}
	for _, b := range out[len(out)-pad:] {
		if int(b) != pad {
			return nil, ErrBadPadding
		}
	}
	return out[:len(out)-pad], nil
}

// KeyDigest fingerprints key for a door's "key" relationship. It identifies
// the key; it cannot be used to recover it.
func KeyDigest(key []byte) (api.Digest, error) {
	k, err := cipherKey(key)
	if err != nil {
		return api.Digest{}, err
	}
	return api.Digest(md5.Sum(k)), nil
}
