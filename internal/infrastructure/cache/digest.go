package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	jsoncanonicalizer "github.com/cyberphone/json-canonicalization/go/src/webpki.org/jsoncanonicalizer"
)

// Digest returns the hex SHA-256 of the RFC 8785 canonical JSON form of v.
// Values that compare equal as JSON have equal digests regardless of key
// order or number spelling.
func Digest(v any) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	canonical, err := jsoncanonicalizer.Transform(raw)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}
