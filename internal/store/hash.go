package store

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// ContentHash computes the content-addressable hash for a data set's
// encoded payload. Only the payload bytes take part: two sets with the
// same bytes are the same profile regardless of name or provenance.
func ContentHash(data []byte) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("empty data set payload")
	}
	hash := sha256.Sum256(data)
	return "sha256:" + hex.EncodeToString(hash[:]), nil
}

// ShortHash returns a shortened version of the hash for display purposes.
func ShortHash(fullHash string) string {
	// Remove "sha256:" prefix and take first 12 chars
	if len(fullHash) > 19 {
		return fullHash[7:19]
	}
	return fullHash
}

// hashToFilename converts a full hash to a safe filename.
func hashToFilename(hash string) string {
	if len(hash) > 7 && hash[:7] == "sha256:" {
		return hash[7:]
	}
	return hash
}
