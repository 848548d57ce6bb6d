// Package ltpa реализует LTPA2 SSO токены: вывод ключей из общего секрета,
// расшифровку с несколькими вариантами шифра, разбор содержимого, проверку и выпуск.
package ltpa

import (
	"crypto/sha1"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

const (
	desKeySize  = 24
	aesKeySize  = 16
	hmacKeySize = sha1.Size
)

// KeyMaterial : набор ключей, выведенный из одного секрета. Не изменяется после создания,
// при ротации секрета сервис заменяет весь набор целиком
type KeyMaterial struct {
	DESKey  []byte
	AESKey  []byte
	HMACKey []byte
	// RawDESKey : первые 24 байта секрета без хеширования, nil если секрет короче
	RawDESKey []byte
}

// DeriveKeys : SHA-1 секрета даёт ключ 3DES (дополняется первыми 4 байтами до 24) и ключ HMAC,
// первые 16 байт SHA-256 дают ключ AES-128
func DeriveKeys(secretB64 string) (*KeyMaterial, error) {
	raw, err := decodeSecret(secretB64)
	if err != nil {
		return nil, err
	}

	sha1Digest := sha1.Sum(raw)
	sha256Digest := sha256.Sum256(raw)

	desKey := make([]byte, 0, desKeySize)
	desKey = append(desKey, sha1Digest[:]...)
	desKey = append(desKey, sha1Digest[:desKeySize-sha1.Size]...)

	keys := &KeyMaterial{
		DESKey:  desKey,
		AESKey:  append([]byte(nil), sha256Digest[:aesKeySize]...),
		HMACKey: append([]byte(nil), sha1Digest[:hmacKeySize]...),
	}
	if len(raw) >= desKeySize {
		keys.RawDESKey = append([]byte(nil), raw[:desKeySize]...)
	}

	return keys, nil
}

func decodeSecret(secretB64 string) ([]byte, error) {
	secret := strings.TrimSpace(secretB64)
	if secret == "" {
		return nil, errors.New("секрет LTPA не задан")
	}

	raw, err := base64.StdEncoding.DecodeString(secret)
	if err != nil {
		raw, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(secret, "="))
	}
	if err != nil {
		return nil, fmt.Errorf("секрет LTPA не является base64: %w", err)
	}
	if len(raw) == 0 {
		return nil, errors.New("секрет LTPA пустой")
	}

	return raw, nil
}
