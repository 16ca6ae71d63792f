package crypto

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
)

// ErrMissingEncryptionKey 未配置加密密钥
var ErrMissingEncryptionKey = errors.New("encryption key is not configured")

// decodeKey 解码并校验 Base64 密钥
func decodeKey(encoded string) ([]byte, error) {
	if encoded == "" {
		return nil, ErrMissingEncryptionKey
	}

	key, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("密钥不是合法的 Base64: %w", err)
	}
	if len(key) != keySize {
		return nil, fmt.Errorf("%w: got %d bytes", ErrInvalidKeySize, len(key))
	}
	return key, nil
}

// LoadEncryptionKey 从 ENCRYPTION_KEY 环境变量加载密钥
func LoadEncryptionKey() ([]byte, error) {
	return decodeKey(os.Getenv("ENCRYPTION_KEY"))
}

// ValidateEncryptionKey 校验密钥字符串是否可用
func ValidateEncryptionKey(encoded string) error {
	_, err := decodeKey(encoded)
	return err
}

// GenerateEncryptionKey 生成新密钥，返回 Base64 字符串
func GenerateEncryptionKey() (string, error) {
	key := make([]byte, keySize)
	if _, err := rand.Read(key); err != nil {
		return "", fmt.Errorf("生成密钥失败: %w", err)
	}
	return base64.StdEncoding.EncodeToString(key), nil
}
