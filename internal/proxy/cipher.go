package proxy

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/md5"
	"fmt"
	"sort"
	"strings"
)

// DefaultCipher is used when no cipher is configured.
const DefaultCipher = "aes-256-cbc"

type blockMode int

const (
	modeCBC blockMode = iota
	modeCTR
)

type algorithm struct {
	name    string
	keySize int
	mode    blockMode
}

var algorithms = map[string]algorithm{
	"aes-128-cbc": {name: "aes-128-cbc", keySize: 16, mode: modeCBC},
	"aes-192-cbc": {name: "aes-192-cbc", keySize: 24, mode: modeCBC},
	"aes-256-cbc": {name: "aes-256-cbc", keySize: 32, mode: modeCBC},
	"aes-128-ctr": {name: "aes-128-ctr", keySize: 16, mode: modeCTR},
	"aes-192-ctr": {name: "aes-192-ctr", keySize: 24, mode: modeCTR},
	"aes-256-ctr": {name: "aes-256-ctr", keySize: 32, mode: modeCTR},
}

// SupportedCiphers returns the accepted cipher names, sorted.
func SupportedCiphers() []string {
	names := make([]string, 0, len(algorithms))
	for name := range algorithms {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func lookupAlgorithm(name string) (algorithm, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	if n == "" {
		n = DefaultCipher
	}
	alg, ok := algorithms[n]
	if !ok {
		return algorithm{}, fmt.Errorf("%w: %q", ErrUnsupportedCipher, name)
	}
	return alg, nil
}

// deriveKeyIV stretches a passphrase into key and IV material the way
// OpenSSL's EVP_BytesToKey does with MD5, no salt and a single round.
func deriveKeyIV(passphrase []byte, keyLen, ivLen int) (key, iv []byte) {
	var (
		material []byte
		prev     []byte
	)
	for len(material) < keyLen+ivLen {
		h := md5.New()
		h.Write(prev)
		h.Write(passphrase)
		prev = h.Sum(nil)
		material = append(material, prev...)
	}
	return material[:keyLen], material[keyLen : keyLen+ivLen]
}

func (a algorithm) seal(passphrase, plain []byte) ([]byte, error) {
	key, iv := deriveKeyIV(passphrase, a.keySize, aes.BlockSize)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("init %s: %w", a.name, err)
	}

	switch a.mode {
	case modeCTR:
		out := make([]byte, len(plain))
		cipher.NewCTR(block, iv).XORKeyStream(out, plain)
		return out, nil
	default:
		padded := pkcs7Pad(plain, aes.BlockSize)
		out := make([]byte, len(padded))
		cipher.NewCBCEncrypter(block, iv).CryptBlocks(out, padded)
		return out, nil
	}
}

func (a algorithm) open(passphrase, sealed []byte) ([]byte, error) {
	key, iv := deriveKeyIV(passphrase, a.keySize, aes.BlockSize)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("init %s: %w", a.name, err)
	}

	switch a.mode {
	case modeCTR:
		out := make([]byte, len(sealed))
		cipher.NewCTR(block, iv).XORKeyStream(out, sealed)
		return out, nil
	default:
		if len(sealed) == 0 || len(sealed)%aes.BlockSize != 0 {
			return nil, fmt.Errorf("%w: ciphertext length %d is not a positive multiple of %d", ErrDecryption, len(sealed), aes.BlockSize)
		}
		out := make([]byte, len(sealed))
		cipher.NewCBCDecrypter(block, iv).CryptBlocks(out, sealed)
		return pkcs7Unpad(out, aes.BlockSize)
	}
}

func pkcs7Pad(b []byte, blockSize int) []byte {
	n := blockSize - len(b)%blockSize
	return append(append(make([]byte, 0, len(b)+n), b...), bytes.Repeat([]byte{byte(n)}, n)...)
}

func pkcs7Unpad(b []byte, blockSize int) ([]byte, error) {
	n := int(b[len(b)-1])
	if n == 0 || n > blockSize || n > len(b) {
		return nil, fmt.Errorf("%w: bad padding", ErrDecryption)
	}
	for _, c := range b[len(b)-n:] {
		if int(c) != n {
			return nil, fmt.Errorf("%w: bad padding", ErrDecryption)
		}
	}
	return b[:len(b)-n], nil
}
