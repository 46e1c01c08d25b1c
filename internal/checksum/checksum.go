// Package checksum computes content digests of artifact files.
package checksum

import (
	"crypto"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	// Ensure SHA256 is available for digest calculation.
	_ "crypto/sha256"
)

// Function is the hash used for artifact digests.
const Function crypto.Hash = crypto.SHA256

var errHashUnavailable = errors.New("hash function unavailable")

// File streams the file at path through Function and returns the digest bytes.
func File(path string) ([]byte, error) {
	if !Function.Available() {
		return nil, fmt.Errorf("digest calculation not possible: %w", errHashUnavailable)
	}

	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, err
	}

	defer func() {
		_ = f.Close()
	}()

	hasher := Function.New()
	if _, err = io.Copy(hasher, f); err != nil {
		return nil, fmt.Errorf("calculate digest: %w", err)
	}

	return hasher.Sum(nil), nil
}

// Hex returns the lowercase hexadecimal form of a digest.
func Hex(digest []byte) string {
	return hex.EncodeToString(digest)
}
