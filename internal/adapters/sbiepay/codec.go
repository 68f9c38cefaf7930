// Package sbiepay implements the SBIePay aggregator-hosted "P" model integration:
// the encrypted packet codec, the response schemas and the gateway client.
package sbiepay

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/sukruthakeralam/donation-payments/internal/core/domain"
)

// KeySize is the length of the merchant encryption key in bytes (AES-256).
const KeySize = 32

// Checksum selects the digest appended to outbound packets.
type Checksum string

const (
	ChecksumNone   Checksum = "none"
	ChecksumSHA256 Checksum = "sha256"
	ChecksumSHA512 Checksum = "sha512"
)

// Codec encrypts and decrypts pipe-delimited SBIePay packets.
//
// Packets are AES-256-CBC with PKCS#7 padding under the raw merchant key,
// framed as base64(IV || ciphertext) with a fresh random IV per packet.
type Codec struct {
	block    cipher.Block
	checksum Checksum
	rand     io.Reader
}

// NewCodec creates a codec for the given merchant key. The key is used as-is and must be 32 bytes.
func NewCodec(key string, checksum Checksum) (*Codec, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("%w: key must be %d bytes, got %d", domain.ErrEncryption, KeySize, len(key))
	}
	block, err := aes.NewCipher([]byte(key))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrEncryption, err)
	}

	switch checksum {
	case "":
		checksum = ChecksumNone
	case ChecksumNone, ChecksumSHA256, ChecksumSHA512:
	default:
		return nil, fmt.Errorf("%w: unknown checksum %q", domain.ErrEncryption, checksum)
	}

	return &Codec{block: block, checksum: checksum, rand: rand.Reader}, nil
}

// Encode joins fields with "|", appends the configured checksum segment and encrypts the result.
func (c *Codec) Encode(fields []string) (string, error) {
	plain := strings.Join(fields, "|")
	if digest := c.digest(plain); digest != "" {
		plain += "|" + digest
	}

	padded := pkcs7Pad([]byte(plain), aes.BlockSize)

	out := make([]byte, aes.BlockSize+len(padded))
	iv := out[:aes.BlockSize]
	if _, err := io.ReadFull(c.rand, iv); err != nil {
		return "", fmt.Errorf("%w: generate iv: %v", domain.ErrEncryption, err)
	}

	cipher.NewCBCEncrypter(c.block, iv).CryptBlocks(out[aes.BlockSize:], padded)
	return base64.StdEncoding.EncodeToString(out), nil
}

// Decode decrypts a packet and splits it into its pipe-delimited fields.
// Every failure is one of domain.ErrDecode or domain.ErrDecryption.
func (c *Codec) Decode(packet string) ([]string, error) {
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(packet))
	if err != nil {
		return nil, fmt.Errorf("%w: invalid base64", domain.ErrDecode)
	}
	if len(raw) < 2*aes.BlockSize || len(raw)%aes.BlockSize != 0 {
		return nil, fmt.Errorf("%w: ciphertext length %d is not block aligned", domain.ErrDecode, len(raw))
	}

	iv, body := raw[:aes.BlockSize], raw[aes.BlockSize:]
	plain := make([]byte, len(body))
	cipher.NewCBCDecrypter(c.block, iv).CryptBlocks(plain, body)

	plain, ok := pkcs7Unpad(plain, aes.BlockSize)
	if !ok || !utf8.Valid(plain) {
		return nil, domain.ErrDecryption
	}

	return strings.Split(string(plain), "|"), nil
}

func (c *Codec) digest(plain string) string {
	switch c.checksum {
	case ChecksumSHA256:
		sum := sha256.Sum256([]byte(plain))
		return hex.EncodeToString(sum[:])
	case ChecksumSHA512:
		sum := sha512.Sum512([]byte(plain))
		return hex.EncodeToString(sum[:])
	default:
		return ""
	}
}

func pkcs7Pad(b []byte, size int) []byte {
	n := size - len(b)%size
	return append(b, bytes.Repeat([]byte{byte(n)}, n)...)
}

// pkcs7Unpad reports a single failure for every invalid padding shape.
func pkcs7Unpad(b []byte, size int) ([]byte, bool) {
	if len(b) == 0 || len(b)%size != 0 {
		return nil, false
	}
	n := int(b[len(b)-1])
	if n == 0 || n > size {
		return nil, false
	}
	bad := 0
	for _, p := range b[len(b)-n:] {
		if int(p) != n {
			bad++
		}
	}
	if bad != 0 {
		return nil, false
	}
	return b[:len(b)-n], true
}
