// Package wallet verifies Ethereum personal_sign (EIP-191) signatures.
package wallet

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
	"golang.org/x/crypto/sha3"
)

var ErrInvalidSignature = errors.New("invalid signature")

// NormalizeAddress lowercases and trims an address.
func NormalizeAddress(address string) string {
	return strings.ToLower(strings.TrimSpace(address))
}

// IsAddress reports whether s is a 0x-prefixed 20-byte hex address.
func IsAddress(s string) bool {
	if len(s) != 42 || !strings.HasPrefix(strings.ToLower(s), "0x") {
		return false
	}
	_, err := hex.DecodeString(s[2:])
	return err == nil
}

func keccak256(data ...[]byte) []byte {
	h := sha3.NewLegacyKeccak256()
	for _, d := range data {
		h.Write(d)
	}
	return h.Sum(nil)
}

// HashMessage returns the EIP-191 digest a wallet signs for message.
func HashMessage(message string) []byte {
	prefix := fmt.Sprintf("\x19Ethereum Signed Message:\n%d", len(message))
	return keccak256([]byte(prefix), []byte(message))
}

// PubkeyToAddress derives the lowercase address of pub.
func PubkeyToAddress(pub *secp256k1.PublicKey) string {
	raw := pub.SerializeUncompressed()[1:]
	return "0x" + hex.EncodeToString(keccak256(raw)[12:])
}

// RecoverAddress returns the address that produced the 65-byte r||s||v
// signature over message.
func RecoverAddress(message, signature string) (string, error) {
	sig, err := hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(signature), "0x"))
	if err != nil || len(sig) != 65 {
		return "", ErrInvalidSignature
	}

	v := sig[64]
	if v >= 27 {
		v -= 27
	}
	if v > 1 {
		return "", ErrInvalidSignature
	}

	compact := make([]byte, 65)
	compact[0] = 27 + v
	copy(compact[1:], sig[:64])

	pub, _, err := ecdsa.RecoverCompact(compact, HashMessage(message))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return PubkeyToAddress(pub), nil
}

// Sign produces an r||s||v signature over message. Used by tests and tooling.
func Sign(key *secp256k1.PrivateKey, message string) string {
	compact := ecdsa.SignCompact(key, HashMessage(message), false)
	sig := make([]byte, 65)
	copy(sig, compact[1:])
	sig[64] = compact[0]
	return "0x" + hex.EncodeToString(sig)
}
