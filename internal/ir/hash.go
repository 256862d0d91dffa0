package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content hashes.
// Version suffix enables future algorithm migration.
const (
	DomainBatch = "relcat/batch/v1"
	DomainRows  = "relcat/rows/v1"
)

// hashWithDomain computes SHA-256 hash with domain separation.
// Format: SHA256(domain + 0x00 + data)
// The null byte separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// BatchHash computes the content hash of a load batch.
// Identical batch content yields the identical hash across runs.
func BatchHash(batch Object) (string, error) {
	canonical, err := MarshalCanonical(batch)
	if err != nil {
		return "", fmt.Errorf("BatchHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainBatch, canonical), nil
}

// RowsHash computes the content hash of an ordered result set.
// Used to compare query output across store reopenings.
func RowsHash(rows Array) (string, error) {
	canonical, err := MarshalCanonical(rows)
	if err != nil {
		return "", fmt.Errorf("RowsHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainRows, canonical), nil
}
