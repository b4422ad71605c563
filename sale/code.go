/*
code.go - One-time payment code issuance and verification

PURPOSE:
  Payment codes are the only proof-of-payment the operator ever sees: the
  customer receives a short random code with the payment instructions,
  pays out-of-band, and quotes the code back to the operator. Only the
  SHA-256 digest of an issued code is retained.

PROPERTIES:
  - 6 characters from A-Z0-9 (36^6 ~ 2.2e9 codes), drawn from crypto/rand
  - Digest is hex SHA-256; plaintext is discarded after display
  - Verification compares digests in constant time

KNOWN GAPS (deliberate, operator-mediated trust model):
  - No uniqueness check across outstanding codes; collisions are possible
    but harmless in practice (the operator confirms per customer)
  - No expiry and no attempt ceiling on verification

SEE ALSO:
  - machine.go: Issues a code on every payment-method selection
*/
package sale

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"math/big"
)

const (
	codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	codeLength   = 6
)

// CodeIssuer generates one-time payment codes and their one-way digests.
// The zero value is ready to use.
type CodeIssuer struct{}

// Issue draws a fresh code and returns both the plaintext (to show the
// customer once) and its digest (the only form the ledger stores).
func (CodeIssuer) Issue() (plain, digest string, err error) {
	buf := make([]byte, codeLength)
	max := big.NewInt(int64(len(codeAlphabet)))
	for i := range buf {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", "", fmt.Errorf("draw payment code: %w", err)
		}
		buf[i] = codeAlphabet[n.Int64()]
	}
	plain = string(buf)
	return plain, Digest(plain), nil
}

// Digest returns the hex SHA-256 of a plaintext code.
func Digest(plain string) string {
	sum := sha256.Sum256([]byte(plain))
	return hex.EncodeToString(sum[:])
}

// Verify reports whether candidate hashes to storedDigest. An empty stored
// digest (no code outstanding) never verifies. Comparison is constant time.
func Verify(candidate, storedDigest string) bool {
	if storedDigest == "" {
		return false
	}
	got := Digest(candidate)
	return subtle.ConstantTimeCompare([]byte(got), []byte(storedDigest)) == 1
}
