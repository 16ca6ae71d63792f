package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
)

const keySize = 32 // AES-256

var (
	// ErrInvalidKeySize 密钥必须是 32 字节
	ErrInvalidKeySize = errors.New("encryption key must be 32 bytes")
	// ErrMalformedCiphertext 密文过短或不是合法 Base64
	ErrMalformedCiphertext = errors.New("malformed ciphertext")
	// ErrDecryptionFailed 认证标签校验失败，密文被篡改或密钥不对
	ErrDecryptionFailed = errors.New("ciphertext authentication failed")
)

// newGCM 基于密钥构造 AES-256-GCM
func newGCM(key []byte) (cipher.AEAD, error) {
	if len(key) != keySize {
		return nil, ErrInvalidKeySize
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// EncryptString 加密字符串，返回 Base64(nonce + 密文 + 认证标签)
// 每次加密使用随机 nonce，相同明文产出不同密文
func EncryptString(plaintext string, key []byte) (string, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("生成 nonce 失败: %w", err)
	}

	sealed := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// DecryptString 解密 EncryptString 的输出
func DecryptString(encoded string, key []byte) (string, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return "", err
	}

	sealed, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", ErrMalformedCiphertext
	}
	if len(sealed) < gcm.NonceSize() {
		return "", ErrMalformedCiphertext
	}

	nonce, ciphertext := sealed[:gcm.NonceSize()], sealed[gcm.NonceSize():]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", ErrDecryptionFailed
	}
	return string(plaintext), nil
}
