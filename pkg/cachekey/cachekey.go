// Copyright 2025 Google LLC
// SPDX-License-Identifier: Apache-2.0

// Package cachekey implements stable, platform- and release-independent
// content addressing for cache entries, following the original source's
// `cache-key` crate's `CacheKey`/`CacheKeyHasher`/`cache_digest` shape.
package cachekey

import (
	"encoding/binary"
	"encoding/hex"
	"net/url"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// Hasher accumulates structural bytes for a CacheKey. Implementations must
// be order-sensitive: callers feed fields in a stable, documented order.
type Hasher interface {
	WriteString(s string)
	WriteUint64(n uint64)
	WriteBytes(b []byte)
}

// CacheKey is implemented by anything with a stable cache identity.
type CacheKey interface {
	CacheKey(h Hasher)
}

// xxHasher adapts xxhash.Digest to the Hasher interface.
type xxHasher struct {
	d *xxhash.Digest
}

func newXXHasher() *xxHasher {
	return &xxHasher{d: xxhash.New()}
}

func (h *xxHasher) WriteString(s string) {
	_, _ = h.d.WriteString(s)
	h.d.Write([]byte{0}) // separator, so "ab","c" != "a","bc"
}

func (h *xxHasher) WriteUint64(n uint64) {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], n)
	h.d.Write(buf[:])
}

func (h *xxHasher) WriteBytes(b []byte) {
	h.d.Write(b)
	h.d.Write([]byte{0})
}

// Digest computes the stable hex digest of k: a 16-hex-character
// little-endian encoding of the xxhash64 sum, matching the original
// source's `to_hex(u64)`.
func Digest(k CacheKey) string {
	h := newXXHasher()
	k.CacheKey(h)
	sum := h.d.Sum64()
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], sum)
	return hex.EncodeToString(buf[:])
}

// stringKey lets a plain string be digested directly via Digest.
type stringKey string

func (s stringKey) CacheKey(h Hasher) {
	h.WriteString(string(s))
}

// DigestString is a convenience wrapper around Digest for plain strings.
func DigestString(s string) string {
	return Digest(stringKey(s))
}

// CanonicalURL folds a distribution source URL into the form used for
// resource-id derivation: scheme and host are lowercased, userinfo is
// stripped, a leading "git+" is dropped, and a trailing ".git" is dropped.
func CanonicalURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	scheme := strings.TrimPrefix(u.Scheme, "git+")
	u.Scheme = strings.ToLower(scheme)
	u.Host = strings.ToLower(u.Host)
	u.User = nil
	u.Path = strings.TrimSuffix(u.Path, ".git")
	return u.String()
}
