package sealbox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"math/big"

	"golang.org/x/crypto/hkdf"
)

const (
	protocolInfo = "sealbox-dh-v1"
	keySize      = 32
	ivSize       = 12
	tagSize      = 16

	// minExponentBits is the entropy floor for private exponents.
	minExponentBits = 256
	// maxExponentBits caps the exponent so modular exponentiation stays
	// cheap even against 4096-bit groups.
	maxExponentBits = 384
)

// CryptoError represents an encryption/decryption error.
type CryptoError struct {
	Message string
}

func (e *CryptoError) Error() string {
	return e.Message
}

// ErrCrypto checks if an error is a CryptoError.
func ErrCrypto(err error) bool {
	var ce *CryptoError
	return errors.As(err, &ce)
}

// KeyPair is one party's half of the exchange. The private exponent never
// leaves this process; only PublicHex is submitted to the relay.
type KeyPair struct {
	prime   *big.Int
	private *big.Int
	public  *big.Int
}

// GenerateKeyPair draws a fresh private exponent against the session's group
// parameters and computes the public value g^private mod p.
func GenerateKeyPair(primeHex, generatorHex string) (*KeyPair, error) {
	p, ok := new(big.Int).SetString(primeHex, 16)
	if !ok {
		return nil, &CryptoError{Message: "invalid prime hex"}
	}
	g, ok := new(big.Int).SetString(generatorHex, 16)
	if !ok {
		return nil, &CryptoError{Message: "invalid generator hex"}
	}
	if p.BitLen() < minExponentBits {
		return nil, &CryptoError{Message: fmt.Sprintf("group too small: %d bits", p.BitLen())}
	}

	bits := p.BitLen() - 1
	if bits > maxExponentBits {
		bits = maxExponentBits
	}

	// Draw until the exponent is in [2, 2^bits); the retry probability is
	// negligible but keeps the lower bound explicit.
	limit := new(big.Int).Lsh(big.NewInt(1), uint(bits))
	two := big.NewInt(2)
	var priv *big.Int
	for {
		n, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return nil, err
		}
		if n.Cmp(two) >= 0 {
			priv = n
			break
		}
	}

	return &KeyPair{
		prime:   p,
		private: priv,
		public:  new(big.Int).Exp(g, priv, p),
	}, nil
}

// PublicHex returns the public value for submission to the relay.
func (kp *KeyPair) PublicHex() string {
	return fmt.Sprintf("%x", kp.public)
}

// SharedSecret combines the counterpart's public value with the private
// exponent: counterpart^private mod p. Both parties arrive at the same bytes
// without the secret ever crossing the relay.
func (kp *KeyPair) SharedSecret(counterpartPublicHex string) ([]byte, error) {
	cp, ok := new(big.Int).SetString(counterpartPublicHex, 16)
	if !ok {
		return nil, &CryptoError{Message: "invalid counterpart public value hex"}
	}

	// Reject degenerate public values that would collapse the secret.
	one := big.NewInt(1)
	pMinusOne := new(big.Int).Sub(kp.prime, one)
	if cp.Cmp(one) <= 0 || cp.Cmp(pMinusOne) >= 0 {
		return nil, &CryptoError{Message: "counterpart public value out of range"}
	}

	return new(big.Int).Exp(cp, kp.private, kp.prime).Bytes(), nil
}

// DeriveKey stretches a shared secret into an AES-256 key with HKDF-SHA256.
func DeriveKey(sharedSecret []byte) ([]byte, error) {
	r := hkdf.New(sha256.New, sharedSecret, nil, []byte(protocolInfo))
	key := make([]byte, keySize)
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, err
	}
	return key, nil
}

// SealedMessage is the wire form the relay stores: ciphertext, IV and
// authentication tag as separate hex fields, all opaque to the relay.
type SealedMessage struct {
	Ciphertext string
	IV         string
	AuthTag    string
}

// Encrypt seals a plaintext with AES-256-GCM under the derived key. The GCM
// tag is split off the ciphertext so the three fields travel separately.
func Encrypt(key []byte, plaintext string) (*SealedMessage, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	iv := make([]byte, ivSize)
	if _, err := rand.Read(iv); err != nil {
		return nil, err
	}

	sealed := aead.Seal(nil, iv, []byte(plaintext), nil)
	ct, tag := sealed[:len(sealed)-tagSize], sealed[len(sealed)-tagSize:]

	return &SealedMessage{
		Ciphertext: hex.EncodeToString(ct),
		IV:         hex.EncodeToString(iv),
		AuthTag:    hex.EncodeToString(tag),
	}, nil
}

// Decrypt opens a sealed message. Any mismatch in key, IV, tag or ciphertext
// fails authentication.
func Decrypt(key []byte, msg *SealedMessage) (string, error) {
	ct, err := hex.DecodeString(msg.Ciphertext)
	if err != nil {
		return "", &CryptoError{Message: "invalid ciphertext hex"}
	}
	iv, err := hex.DecodeString(msg.IV)
	if err != nil {
		return "", &CryptoError{Message: "invalid iv hex"}
	}
	tag, err := hex.DecodeString(msg.AuthTag)
	if err != nil {
		return "", &CryptoError{Message: "invalid auth tag hex"}
	}
	if len(iv) != ivSize || len(tag) != tagSize {
		return "", &CryptoError{Message: "malformed iv or auth tag"}
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return "", err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}

	plaintext, err := aead.Open(nil, iv, append(ct, tag...), nil)
	if err != nil {
		return "", &CryptoError{Message: "decryption failed: wrong key or tampered ciphertext"}
	}

	return string(plaintext), nil
}
