// Package checksum fingerprints serialized buckets so that unchanged data can
// be recognised without comparing records.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Sum returns the hex-encoded SHA-256 digest of data.
func Sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// ETag returns the strong entity tag of a response body.
func ETag(body []byte) string {
	return `"` + Sum(body) + `"`
}

// Matches reports whether an If-None-Match header value names etag. The
// header may list several tags, use weak tags or be "*".
func Matches(ifNoneMatch, etag string) bool {
	if strings.TrimSpace(ifNoneMatch) == "*" {
		return true
	}
	for _, candidate := range strings.Split(ifNoneMatch, ",") {
		candidate = strings.TrimPrefix(strings.TrimSpace(candidate), "W/")
		if candidate == etag {
			return true
		}
	}
	return false
}
