// Copyright 2025 Google LLC
// SPDX-License-Identifier: Apache-2.0

// Package digest implements the hash-digest types used to verify fetched
// distributions, and the hash-enforcement policy.
package digest

import (
	"crypto/md5"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"hash"
	"io"

	"github.com/pkg/errors"
)

// Algorithm is a supported hash algorithm name, matching the strings used in
// the Simple API's "hashes" mapping and in `--hash` flags.
type Algorithm string

const (
	MD5    Algorithm = "md5"
	SHA256 Algorithm = "sha256"
	SHA384 Algorithm = "sha384"
	SHA512 Algorithm = "sha512"
)

// Digest is a single (algorithm, hex-digest) pair.
type Digest struct {
	Algorithm Algorithm
	Hex       string
}

// Hashes is a set of acceptable digests for one artifact; an artifact
// satisfies the set if it matches at least one entry.
type Hashes []Digest

// Policy controls how strictly Hashes are enforced.
type Policy int

const (
	// Disabled performs no hash verification.
	Disabled Policy = iota
	// Verify checks hashes when present but does not require them.
	Verify
	// Require rejects any artifact lacking a matching configured digest.
	Require
)

// NewHasher returns a fresh hash.Hash for the given algorithm.
func NewHasher(a Algorithm) (hash.Hash, error) {
	switch a {
	case MD5:
		return md5.New(), nil
	case SHA256:
		return sha256.New(), nil
	case SHA384:
		return sha512.New384(), nil
	case SHA512:
		return sha512.New(), nil
	default:
		return nil, errors.Errorf("unsupported hash algorithm: %q", a)
	}
}

// Compute streams r through every algorithm present in want (or, if want is
// empty, through SHA256 alone) and returns the resulting digests.
func Compute(r io.Reader, want Hashes) (Hashes, error) {
	algos := map[Algorithm]bool{}
	for _, d := range want {
		algos[d.Algorithm] = true
	}
	if len(algos) == 0 {
		algos[SHA256] = true
	}
	hashers := make(map[Algorithm]hash.Hash, len(algos))
	writers := make([]io.Writer, 0, len(algos))
	for a := range algos {
		h, err := NewHasher(a)
		if err != nil {
			return nil, err
		}
		hashers[a] = h
		writers = append(writers, h)
	}
	if _, err := io.Copy(io.MultiWriter(writers...), r); err != nil {
		return nil, errors.Wrap(err, "computing digests")
	}
	var out Hashes
	for a, h := range hashers {
		out = append(out, Digest{Algorithm: a, Hex: hex.EncodeToString(h.Sum(nil))})
	}
	return out, nil
}

// Satisfies reports whether computed contains at least one digest matching
// an entry in h. An empty h always satisfies (no constraint was declared).
func (h Hashes) Satisfies(computed Hashes) bool {
	if len(h) == 0 {
		return true
	}
	for _, want := range h {
		for _, got := range computed {
			if want.Algorithm == got.Algorithm && want.Hex == got.Hex {
				return true
			}
		}
	}
	return false
}

// Enforce applies p to the relationship between the declared hash set h and
// the digests actually computed for a fetched artifact.
func (p Policy) Enforce(h Hashes, computed Hashes) error {
	switch p {
	case Disabled:
		return nil
	case Verify:
		if len(h) == 0 {
			return nil
		}
		if !h.Satisfies(computed) {
			return errors.Errorf("hash mismatch: expected one of %v, got %v", h, computed)
		}
		return nil
	case Require:
		if len(h) == 0 {
			return errors.New("hash required but none configured")
		}
		if !h.Satisfies(computed) {
			return errors.Errorf("hash mismatch: expected one of %v, got %v", h, computed)
		}
		return nil
	default:
		return errors.Errorf("unknown hash policy: %d", p)
	}
}
