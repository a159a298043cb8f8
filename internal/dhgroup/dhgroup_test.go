package dhgroup

import (
	"crypto/rand"
	"errors"
	"math/big"
	"testing"
)

func TestGenerateWellKnownGroup(t *testing.T) {
	p, err := Generate(2048)
	if err != nil {
		t.Fatal(err)
	}
	if p.Bits() != 2048 {
		t.Fatalf("expected a 2048-bit prime, got %d bits", p.Bits())
	}
	if p.Generator.Cmp(big.NewInt(2)) != 0 {
		t.Fatalf("expected generator 2, got %s", p.Generator)
	}

	// Standard sizes come from a fixed table; two calls agree.
	q, err := Generate(2048)
	if err != nil {
		t.Fatal(err)
	}
	if p.PrimeHex() != q.PrimeHex() {
		t.Fatal("expected the same well-known prime on repeated calls")
	}
}

func TestGenerateSafePrime(t *testing.T) {
	if testing.Short() {
		t.Skip("safe-prime search")
	}

	p, err := Generate(280)
	if err != nil {
		t.Fatal(err)
	}
	if p.Bits() != 280 {
		t.Fatalf("expected a 280-bit prime, got %d bits", p.Bits())
	}
	if !p.Prime.ProbablyPrime(20) {
		t.Fatal("modulus is not prime")
	}

	// p = 2q + 1 with q prime
	q := new(big.Int).Rsh(new(big.Int).Sub(p.Prime, big.NewInt(1)), 1)
	if !q.ProbablyPrime(20) {
		t.Fatal("modulus is not a safe prime")
	}
	if !isGenerator(p.Generator, q, p.Prime) {
		t.Fatal("generator does not generate the group")
	}
}

func TestGenerateRejectsSmallGroups(t *testing.T) {
	if _, err := Generate(128); !errors.Is(err, ErrBadGroupSize) {
		t.Fatalf("expected ErrBadGroupSize, got %v", err)
	}
}

func TestExchangeAgreement(t *testing.T) {
	p, err := Generate(2048)
	if err != nil {
		t.Fatal(err)
	}

	a, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 256))
	if err != nil {
		t.Fatal(err)
	}
	b, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 256))
	if err != nil {
		t.Fatal(err)
	}

	pubA := new(big.Int).Exp(p.Generator, a, p.Prime)
	pubB := new(big.Int).Exp(p.Generator, b, p.Prime)

	sharedA := new(big.Int).Exp(pubB, a, p.Prime)
	sharedB := new(big.Int).Exp(pubA, b, p.Prime)
	if sharedA.Cmp(sharedB) != 0 {
		t.Fatal("parties derived different shared secrets")
	}
}

func TestParseHexRoundTrip(t *testing.T) {
	p, err := Generate(2048)
	if err != nil {
		t.Fatal(err)
	}

	parsed, err := ParseHex(p.PrimeHex(), p.GeneratorHex())
	if err != nil {
		t.Fatal(err)
	}
	if parsed.Prime.Cmp(p.Prime) != 0 || parsed.Generator.Cmp(p.Generator) != 0 {
		t.Fatal("hex round trip changed the parameters")
	}

	if _, err := ParseHex("not-hex", "2"); err == nil {
		t.Fatal("expected error for invalid prime hex")
	}
	if _, err := ParseHex(p.PrimeHex(), "zz"); err == nil {
		t.Fatal("expected error for invalid generator hex")
	}
}
