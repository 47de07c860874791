package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// Version suffix enables future algorithm migration.
const (
	DomainPlan       = "querylift/plan/v1"
	DomainProjection = "querylift/projection/v1"
)

// hashWithDomain computes SHA-256 hash with domain separation.
// Format: SHA256(domain + 0x00 + data)
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// PlanKey computes the cache key for a translated query from its
// fingerprint. Two query models with the same shape, the same inlined
// constants and the same parameter names share a key.
func PlanKey(fingerprint IRValue) (string, error) {
	canonical, err := MarshalCanonical(fingerprint)
	if err != nil {
		return "", fmt.Errorf("PlanKey: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainPlan, canonical), nil
}

// ProjectionKey computes a content hash for a rendered reconstruction
// function, used to detect when two plans rebuild rows the same way.
func ProjectionKey(rendered string) string {
	return hashWithDomain(DomainProjection, []byte(rendered))
}

// MustPlanKey is like PlanKey but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustPlanKey(fingerprint IRValue) string {
	key, err := PlanKey(fingerprint)
	if err != nil {
		panic(err)
	}
	return key
}
