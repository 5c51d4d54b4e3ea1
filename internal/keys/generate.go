package keys

import (
	"crypto/rand"
	"fmt"
)

const (
	// PrefixMarker starts every key prefix, e.g. "ak_AB12".
	PrefixMarker = "ak_"

	prefixRandLen = 4
	bodyLen       = 32

	// PrefixLen is the length of the public prefix segment ("ak_" + 4 chars).
	PrefixLen = len(PrefixMarker) + prefixRandLen
)

const keyAlphabet = "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"

// generateKey produces a new key pair: a short public prefix and the full
// plaintext key "prefix_body". The body never exists outside the returned
// plaintext. Prefixes are short, so distinct keys may collide on prefix;
// verification handles that by scanning candidates.
func generateKey() (prefix, plaintext string, err error) {
	frag, err := randomString(prefixRandLen)
	if err != nil {
		return "", "", fmt.Errorf("generate prefix: %w", err)
	}
	body, err := randomString(bodyLen)
	if err != nil {
		return "", "", fmt.Errorf("generate body: %w", err)
	}

	prefix = PrefixMarker + frag
	return prefix, prefix + "_" + body, nil
}

// randomString returns n characters drawn uniformly from keyAlphabet using
// crypto/rand. Bytes outside the unbiased range are rejected and redrawn.
func randomString(n int) (string, error) {
	// Largest multiple of len(keyAlphabet) below 256.
	max := byte(256 - 256%len(keyAlphabet))

	out := make([]byte, 0, n)
	buf := make([]byte, n)
	for len(out) < n {
		if _, err := rand.Read(buf); err != nil {
			return "", err
		}
		for _, b := range buf {
			if b >= max {
				continue
			}
			out = append(out, keyAlphabet[int(b)%len(keyAlphabet)])
			if len(out) == n {
				break
			}
		}
	}
	return string(out), nil
}
