package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/cespare/xxhash/v2"
)

// Domain prefixes for content-addressed fingerprints.
// Version suffix enables future algorithm migration.
const (
	DomainStatement = "relq/statement/v1"
	DomainQuery     = "relq/query/v1"
)

// Hash returns the 64-bit xxhash of v's canonical encoding.
func Hash(v IRValue) (uint64, error) {
	b, err := MarshalCanonical(v)
	if err != nil {
		return 0, err
	}
	return xxhash.Sum64(b), nil
}

// HashValue reduces an arbitrary Go value with MakeHashable and hashes it.
// Returns *UnhashableValueError when v cannot be reduced.
func HashValue(v any) (uint64, error) {
	hv, err := MakeHashable(v)
	if err != nil {
		return 0, err
	}
	return Hash(hv)
}

// hashWithDomain computes SHA-256 hash with domain separation.
// Format: SHA256(domain + 0x00 + data)
// The null byte (0x00) separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// Fingerprint computes a stable, domain-separated SHA-256 identity for v.
// Unlike Hash it is collision resistant and safe to persist or display.
func Fingerprint(domain string, v IRValue) (string, error) {
	b, err := MarshalCanonical(v)
	if err != nil {
		return "", fmt.Errorf("fingerprint %s: %w", domain, err)
	}
	return hashWithDomain(domain, b), nil
}

// MustFingerprint is like Fingerprint but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustFingerprint(domain string, v IRValue) string {
	fp, err := Fingerprint(domain, v)
	if err != nil {
		panic(err)
	}
	return fp
}
