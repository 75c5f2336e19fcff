package core

// hasher.go computes content fingerprints used as the upload dedup key.
//
// The digest is SHA-256 over the exact bytes received. It is a dedup key
// only; nothing relies on it for tamper detection.

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
)

// FingerprintSize is the length of a hex-encoded fingerprint.
const FingerprintSize = sha256.Size * 2

// Fingerprint reads r to EOF and returns its hex-encoded SHA-256 digest and
// the number of bytes read. Memory use is independent of input size.
func Fingerprint(r io.Reader) (string, int64, error) {
	hr := NewHashingReader(r)
	n, err := io.Copy(io.Discard, hr)
	if err != nil {
		return "", n, fmt.Errorf("hash content: %w", err)
	}
	return hr.Sum(), n, nil
}

// HashingReader feeds every byte it reads into a SHA-256 digest, so a stream
// can be fingerprinted while it is being copied elsewhere.
type HashingReader struct {
	reader    io.Reader
	digest    hash.Hash
	BytesRead int64
}

// NewHashingReader wraps r.
func NewHashingReader(r io.Reader) *HashingReader {
	return &HashingReader{
		reader: r,
		digest: sha256.New(),
	}
}

// Read implements io.Reader.
func (h *HashingReader) Read(p []byte) (int, error) {
	n, err := h.reader.Read(p)
	if n > 0 {
		h.digest.Write(p[:n])
		h.BytesRead += int64(n)
	}
	return n, err
}

// Sum returns the hex digest of everything read so far.
func (h *HashingReader) Sum() string {
	return hex.EncodeToString(h.digest.Sum(nil))
}
