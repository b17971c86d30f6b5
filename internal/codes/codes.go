// Package codes generates externally visible identifiers: order references,
// gift card codes and secret codes. All draws use crypto/rand.
package codes

import (
	"crypto/rand"
	"math/big"
	"strings"

	"github.com/cockroachdb/errors"
)

// Unambiguous excludes 0/O, 1/I/L and U/V so codes survive being read aloud or
// copied from a phone screen.
const Unambiguous = "ABCDEFGHJKMNPQRSTWXYZ23456789"

const (
	ReferenceLength  = 8
	GiftCardLength   = 10
	SecretCodeLength = 12
)

// Random returns n characters drawn uniformly from alphabet.
func Random(alphabet string, n int) (string, error) {
	if n <= 0 || alphabet == "" {
		return "", errors.Newf("codes: invalid request n=%d alphabet=%q", n, alphabet)
	}
	max := big.NewInt(int64(len(alphabet)))
	var b strings.Builder
	b.Grow(n)
	for i := 0; i < n; i++ {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", errors.Wrap(err, "codes: read random")
		}
		b.WriteByte(alphabet[idx.Int64()])
	}
	return b.String(), nil
}

// Reference returns an order reference such as "ORD-7K3M9QXA".
func Reference() (string, error) {
	s, err := Random(Unambiguous, ReferenceLength)
	if err != nil {
		return "", err
	}
	return "ORD-" + s, nil
}

// GiftCard returns a gift card code grouped as "GC-XXXXX-XXXXX".
func GiftCard() (string, error) {
	s, err := Random(Unambiguous, GiftCardLength)
	if err != nil {
		return "", err
	}
	half := GiftCardLength / 2
	return "GC-" + s[:half] + "-" + s[half:], nil
}

// Secret returns a URL-safe secret code.
func Secret() (string, error) {
	return Random(Unambiguous, SecretCodeLength)
}

// Pick returns one element of choices chosen uniformly at random.
func Pick[T any](choices []T) (T, error) {
	var zero T
	if len(choices) == 0 {
		return zero, errors.New("codes: pick from empty set")
	}
	idx, err := rand.Int(rand.Reader, big.NewInt(int64(len(choices))))
	if err != nil {
		return zero, errors.Wrap(err, "codes: read random")
	}
	return choices[idx.Int64()], nil
}

// Normalize upper-cases and trims a code typed by a customer.
func Normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
