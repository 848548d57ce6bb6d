package ltpa

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/des"
	"errors"
	"fmt"
)

// Cipher : вариант расшифровки токена
type Cipher string

const (
	// Cipher3DES : 3DES-CBC ключом из SHA-1 секрета, IV = первые 8 байт ключа
	Cipher3DES Cipher = "3des"
	// CipherAES : AES-128-CBC ключом из SHA-256 секрета, IV = первые 16 байт ключа
	CipherAES Cipher = "aes"
	// CipherRaw3DES : 3DES-CBC первыми 24 байтами секрета без хеширования
	CipherRaw3DES Cipher = "raw3des"
)

var errBadPadding = errors.New("некорректное дополнение блока")

// ParseCipherOrder : порядок перебора шифров из конфигурации
func ParseCipherOrder(names []string) ([]Cipher, error) {
	order := make([]Cipher, 0, len(names))
	seen := make(map[Cipher]bool)
	for _, name := range names {
		c := Cipher(name)
		switch c {
		case Cipher3DES, CipherAES, CipherRaw3DES:
		default:
			return nil, fmt.Errorf("неизвестный шифр LTPA %q", name)
		}
		if !seen[c] {
			seen[c] = true
			order = append(order, c)
		}
	}
	if len(order) == 0 {
		order = []Cipher{Cipher3DES, CipherAES, CipherRaw3DES}
	}
	return order, nil
}

func (k *KeyMaterial) blockFor(c Cipher) (cipher.Block, []byte, error) {
	switch c {
	case Cipher3DES:
		block, err := des.NewTripleDESCipher(k.DESKey)
		if err != nil {
			return nil, nil, err
		}
		return block, k.DESKey[:des.BlockSize], nil
	case CipherAES:
		block, err := aes.NewCipher(k.AESKey)
		if err != nil {
			return nil, nil, err
		}
		return block, k.AESKey[:aes.BlockSize], nil
	case CipherRaw3DES:
		if k.RawDESKey == nil {
			return nil, nil, errors.New("секрет короче 24 байт, режим raw3des недоступен")
		}
		block, err := des.NewTripleDESCipher(k.RawDESKey)
		if err != nil {
			return nil, nil, err
		}
		return block, k.RawDESKey[:des.BlockSize], nil
	}
	return nil, nil, fmt.Errorf("неизвестный шифр LTPA %q", c)
}

func (k *KeyMaterial) decrypt(c Cipher, data []byte) ([]byte, error) {
	block, iv, err := k.blockFor(c)
	if err != nil {
		return nil, err
	}

	size := block.BlockSize()
	if len(data) == 0 || len(data)%size != 0 {
		return nil, fmt.Errorf("длина шифротекста %d не кратна блоку %d", len(data), size)
	}

	plain := make([]byte, len(data))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plain, data)

	return unpad(plain, size)
}

func (k *KeyMaterial) encrypt(c Cipher, plain []byte) ([]byte, error) {
	block, iv, err := k.blockFor(c)
	if err != nil {
		return nil, err
	}

	padded := pad(plain, block.BlockSize())
	out := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(out, padded)
	return out, nil
}

func pad(data []byte, size int) []byte {
	n := size - len(data)%size
	return append(append([]byte(nil), data...), bytes.Repeat([]byte{byte(n)}, n)...)
}

func unpad(data []byte, size int) ([]byte, error) {
	if len(data) == 0 {
		return nil, errBadPadding
	}
	n := int(data[len(data)-1])
	if n == 0 || n > size || n > len(data) {
		return nil, errBadPadding
	}
	for _, b := range data[len(data)-n:] {
		if int(b) != n {
			return nil, errBadPadding
		}
	}
	return data[:len(data)-n], nil
}
