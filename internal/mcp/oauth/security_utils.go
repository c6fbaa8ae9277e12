package oauth

import (
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"math/big"
	"strconv"
)

// randomAlphanumeric returns n characters drawn uniformly from stateAlphabet
// using crypto/rand.
func randomAlphanumeric(n int) (string, error) {
	max := big.NewInt(int64(len(stateAlphabet)))
	b := make([]byte, n)
	for i := range b {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("failed to generate random state: %w", err)
		}
		b[i] = stateAlphabet[idx.Int64()]
	}
	return string(b), nil
}

// secureEqual compares two secrets in constant time.
func secureEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func boolToString(b bool) string {
	return strconv.FormatBool(b)
}
