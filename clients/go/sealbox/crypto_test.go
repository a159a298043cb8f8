package sealbox

import (
	"strings"
	"testing"
)

// A 512-bit test modulus keeps the tests fast; production groups are 2048+.
const (
	testPrime = "e2a2218de2f232c0b5e3a2a0796b0a21c0a40bdcca5f4f9ff0ebdee5e816b9e3" +
		"b0a014dc8c7d3e8aa47f3b827c7f0a5ba82a2a126a30f479ca9b4f7f9d6e5a1b"
	testGenerator = "2"
)

func exchange(t *testing.T) (alice, bob *KeyPair, key []byte) {
	t.Helper()

	alice, err := GenerateKeyPair(testPrime, testGenerator)
	if err != nil {
		t.Fatal(err)
	}
	bob, err = GenerateKeyPair(testPrime, testGenerator)
	if err != nil {
		t.Fatal(err)
	}

	aliceSecret, err := alice.SharedSecret(bob.PublicHex())
	if err != nil {
		t.Fatal(err)
	}
	bobSecret, err := bob.SharedSecret(alice.PublicHex())
	if err != nil {
		t.Fatal(err)
	}
	if string(aliceSecret) != string(bobSecret) {
		t.Fatal("parties derived different shared secrets")
	}

	key, err = DeriveKey(aliceSecret)
	if err != nil {
		t.Fatal(err)
	}
	return alice, bob, key
}

func TestSharedSecretAgreement(t *testing.T) {
	exchange(t)
}

func TestRoundTrip(t *testing.T) {
	_, _, key := exchange(t)

	msg, err := Encrypt(key, "meet at the usual place")
	if err != nil {
		t.Fatal(err)
	}
	pt, err := Decrypt(key, msg)
	if err != nil {
		t.Fatal(err)
	}
	if pt != "meet at the usual place" {
		t.Fatalf("expected original plaintext, got %q", pt)
	}
}

func TestDifferentIVs(t *testing.T) {
	_, _, key := exchange(t)

	m1, _ := Encrypt(key, "same")
	m2, _ := Encrypt(key, "same")
	if m1.IV == m2.IV {
		t.Fatal("IVs should differ between encryptions")
	}
	if m1.Ciphertext == m2.Ciphertext {
		t.Fatal("ciphertexts should differ for same plaintext")
	}
}

func TestMismatchedSecretsFail(t *testing.T) {
	_, _, key := exchange(t)
	_, _, otherKey := exchange(t)

	msg, err := Encrypt(key, "secret")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := Decrypt(otherKey, msg); err == nil {
		t.Fatal("expected authentication failure with mismatched key")
	}
}

func TestTamperedCiphertext(t *testing.T) {
	_, _, key := exchange(t)

	msg, _ := Encrypt(key, "secret")
	flipped := []byte(msg.Ciphertext)
	if flipped[0] == 'f' {
		flipped[0] = '0'
	} else {
		flipped[0] = 'f'
	}
	msg.Ciphertext = string(flipped)

	_, err := Decrypt(key, msg)
	if err == nil {
		t.Fatal("expected error with tampered ciphertext")
	}
	if !ErrCrypto(err) {
		t.Fatalf("expected CryptoError, got %T", err)
	}
}

func TestTamperedAuthTag(t *testing.T) {
	_, _, key := exchange(t)

	msg, _ := Encrypt(key, "secret")
	msg.AuthTag = strings.Repeat("0", len(msg.AuthTag))

	if _, err := Decrypt(key, msg); err == nil {
		t.Fatal("expected error with tampered auth tag")
	}
}

func TestEmptyPlaintext(t *testing.T) {
	_, _, key := exchange(t)

	msg, err := Encrypt(key, "")
	if err != nil {
		t.Fatal(err)
	}
	pt, err := Decrypt(key, msg)
	if err != nil {
		t.Fatal(err)
	}
	if pt != "" {
		t.Fatalf("expected empty string, got %q", pt)
	}
}

func TestUnicodePlaintext(t *testing.T) {
	_, _, key := exchange(t)

	in := "Hello \U0001F30D❤️ 日本語"
	msg, err := Encrypt(key, in)
	if err != nil {
		t.Fatal(err)
	}
	pt, err := Decrypt(key, msg)
	if err != nil {
		t.Fatal(err)
	}
	if pt != in {
		t.Fatalf("expected %q, got %q", in, pt)
	}
}

func TestDegeneratePublicValueRejected(t *testing.T) {
	alice, _, _ := exchange(t)

	for _, bad := range []string{"0", "1", testPrime} {
		if _, err := alice.SharedSecret(bad); err == nil {
			t.Fatalf("expected rejection of degenerate public value %q", bad)
		}
	}
}

func TestInvalidHexRejected(t *testing.T) {
	if _, err := GenerateKeyPair("not-hex", "2"); err == nil {
		t.Fatal("expected error for invalid prime hex")
	}

	alice, _, _ := exchange(t)
	if _, err := alice.SharedSecret("zz"); err == nil {
		t.Fatal("expected error for invalid public value hex")
	}
}
