package analytics

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// fingerprint encodes a query's semantic parameters into a deterministic,
// store-safe string. Parameters are marshalled as a fixed-field struct, so
// the byte layout is stable for identical inputs; any changed field yields a
// different fingerprint and therefore a different cache key.
func fingerprint(params any) (string, error) {
	payload, err := json.Marshal(params)
	if err != nil {
		return "", fmt.Errorf("encode query params: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(payload), nil
}
