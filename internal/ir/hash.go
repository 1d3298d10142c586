package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/roach88/uipulse/internal/value"
)

// DomainAction is the domain prefix for content-addressed action identity.
// The version suffix enables future encoding migration.
const DomainAction = "uipulse/action/v1"

// hashWithDomain computes SHA256(domain + 0x00 + data). The null separator
// prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// Hash computes the content-addressed id of an action tree: the wire
// encoding is re-read as a value tree and canonically marshaled, so the id
// is stable across processes regardless of map iteration or field order.
func Hash(a ActionDesc) (string, error) {
	wire, err := json.Marshal(a)
	if err != nil {
		return "", fmt.Errorf("hash: marshal: %w", err)
	}
	v, err := value.Decode(wire)
	if err != nil {
		return "", fmt.Errorf("hash: reread: %w", err)
	}
	canonical, err := value.MarshalCanonical(v)
	if err != nil {
		return "", fmt.Errorf("hash: canonicalize: %w", err)
	}
	return hashWithDomain(DomainAction, canonical), nil
}

// MustHash is like Hash but panics on error. Use only in tests or when the
// tree is known to be valid.
func MustHash(a ActionDesc) string {
	id, err := Hash(a)
	if err != nil {
		panic(err)
	}
	return id
}
