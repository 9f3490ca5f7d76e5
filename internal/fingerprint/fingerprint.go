package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain is the hash domain for request fingerprints. The version suffix
// leaves room for a future change of algorithm without colliding with
// identities already recorded in journals.
const Domain = "statfetch/request/v1"

// Fingerprint is the content-addressed identity of a request.
type Fingerprint string

// Of computes the fingerprint of dataset with the given parameter assignment.
// The map is not retained.
func Of(dataset string, params map[string]string) (Fingerprint, error) {
	canonical, err := Canonical(dataset, params)
	if err != nil {
		return "", fmt.Errorf("fingerprint: %w", err)
	}
	return Fingerprint(hashWithDomain(Domain, canonical)), nil
}

// Must is like Of but panics on error.
// Use only in tests or when inputs are known to be valid.
func Must(dataset string, params map[string]string) Fingerprint {
	fp, err := Of(dataset, params)
	if err != nil {
		panic(err)
	}
	return fp
}

// String returns the hex form.
func (f Fingerprint) String() string {
	return string(f)
}

// Short returns an abbreviated form for log lines.
func (f Fingerprint) Short() string {
	if len(f) <= 12 {
		return string(f)
	}
	return string(f[:12])
}

// Valid reports whether f has the shape of a fingerprint produced by Of.
func (f Fingerprint) Valid() bool {
	if len(f) != sha256.Size*2 {
		return false
	}
	_, err := hex.DecodeString(string(f))
	return err == nil
}

// hashWithDomain computes SHA256(domain + 0x00 + data). The null separator
// keeps the domain/data boundary unambiguous.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}
