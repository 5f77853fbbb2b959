package util

import (
	"crypto/sha256"
	"fmt"
	"hash"
	"io"
)

// HashReader drains r and returns the hex SHA256 of everything read
func HashReader(r io.Reader) (string, int64, error) {
	h := sha256.New()
	n, err := io.Copy(h, r)
	if err != nil {
		return "", n, err
	}
	return fmt.Sprintf("%x", h.Sum(nil)), n, nil
}

// HashingReader hashes bytes as they pass through Read.
type HashingReader struct {
	r io.Reader
	h hash.Hash
}

func NewHashingReader(r io.Reader) *HashingReader {
	h := sha256.New()
	return &HashingReader{r: io.TeeReader(r, h), h: h}
}

func (hr *HashingReader) Read(p []byte) (int, error) {
	return hr.r.Read(p)
}

// Sum returns the hex SHA256 of the bytes read so far
func (hr *HashingReader) Sum() string {
	return fmt.Sprintf("%x", hr.h.Sum(nil))
}
