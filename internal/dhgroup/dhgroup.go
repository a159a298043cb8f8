// Package dhgroup produces finite-cyclic-group descriptions for the
// Diffie-Hellman key exchange: a large safe prime and a generator, both
// carried on the wire as hex strings.
package dhgroup

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
)

// Params describes the group a key exchange operates over.
type Params struct {
	Prime     *big.Int
	Generator *big.Int
}

// DefaultBits is the group size handed out when none is configured.
const DefaultBits = 2048

// MinExponentBits is the minimum entropy for a private exponent (see Keypair
// in clients/go/sealbox); exported so callers can size their own exponents.
const MinExponentBits = 256

var ErrBadGroupSize = errors.New("group size must be at least 256 bits")

// Generate returns group parameters of the requested size. For the standard
// sizes it returns the well-known RFC 3526 MODP group, which is safe to share
// across sessions and avoids minutes-long safe-prime searches at request
// time. Any other size triggers a fresh safe-prime search, which is only
// practical for the small groups used in tests.
func Generate(bits int) (*Params, error) {
	if p, ok := modpGroups[bits]; ok {
		prime, _ := new(big.Int).SetString(p, 16)
		return &Params{Prime: prime, Generator: big.NewInt(2)}, nil
	}
	return generateSafePrime(bits)
}

// generateSafePrime searches for a safe prime p = 2q+1 and pairs it with
// generator 2 when 2 generates the order-q subgroup, falling back to
// candidate search otherwise.
func generateSafePrime(bits int) (*Params, error) {
	if bits < 256 {
		return nil, ErrBadGroupSize
	}

	one := big.NewInt(1)
	two := big.NewInt(2)

	for {
		q, err := rand.Prime(rand.Reader, bits-1)
		if err != nil {
			return nil, err
		}
		// p = 2q + 1
		p := new(big.Int).Lsh(q, 1)
		p.Add(p, one)
		if !p.ProbablyPrime(20) {
			continue
		}

		// For safe primes any g with g^q mod p == p-1 generates the full
		// group; g=2 works unless p ≡ 1 (mod 8).
		pMinusOne := new(big.Int).Sub(p, one)
		for g := new(big.Int).Set(two); g.Cmp(pMinusOne) < 0; g.Add(g, one) {
			if isGenerator(g, q, p) {
				return &Params{Prime: p, Generator: new(big.Int).Set(g)}, nil
			}
		}
	}
}

// isGenerator reports whether g generates the full multiplicative group of a
// safe prime p = 2q+1: g^2 != 1 and g^q != 1 (mod p).
func isGenerator(g, q, p *big.Int) bool {
	one := big.NewInt(1)
	if new(big.Int).Exp(g, big.NewInt(2), p).Cmp(one) == 0 {
		return false
	}
	return new(big.Int).Exp(g, q, p).Cmp(one) != 0
}

// PrimeHex returns the prime modulus as a lowercase hex string.
func (p *Params) PrimeHex() string {
	return fmt.Sprintf("%x", p.Prime)
}

// GeneratorHex returns the generator as a lowercase hex string.
func (p *Params) GeneratorHex() string {
	return fmt.Sprintf("%x", p.Generator)
}

// Bits returns the size of the prime modulus.
func (p *Params) Bits() int {
	return p.Prime.BitLen()
}

// ParseHex reconstructs group parameters from their hex wire form.
func ParseHex(primeHex, generatorHex string) (*Params, error) {
	prime, ok := new(big.Int).SetString(primeHex, 16)
	if !ok {
		return nil, fmt.Errorf("invalid prime hex %q", truncate(primeHex))
	}
	gen, ok := new(big.Int).SetString(generatorHex, 16)
	if !ok {
		return nil, fmt.Errorf("invalid generator hex %q", truncate(generatorHex))
	}
	return &Params{Prime: prime, Generator: gen}, nil
}

func truncate(s string) string {
	if len(s) > 16 {
		return s[:16] + "..."
	}
	return s
}
