// Copyright 2025 Google LLC
// SPDX-License-Identifier: Apache-2.0

package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// ArchiveStore is the content-addressed store of unpacked wheel directories
// under the archive bucket, sharded two levels deep by sha256 prefix
// (archive-v<N>/aa/bb/<rest>), matching spec.md §3's cache layout.
type ArchiveStore struct {
	Bucket Bucket
}

// Path returns the directory an archive with the given sha256 hex digest
// would live at, whether or not it has been written yet.
func (a ArchiveStore) Path(sha256Hex string) string {
	if len(sha256Hex) < 4 {
		return a.Bucket.Path(sha256Hex)
	}
	return a.Bucket.Path(sha256Hex[0:2], sha256Hex[2:4], sha256Hex[4:])
}

// Has reports whether an archive entry for digest already exists; since
// entries are only ever created by an atomic rename, existence implies
// completeness.
func (a ArchiveStore) Has(digest string) bool {
	_, err := os.Stat(a.Path(digest))
	return err == nil
}

// Store unpacks src (a directory tree, e.g. a freshly-extracted wheel) into
// the archive bucket under the digest computed from srcDigest, via a
// scratch directory that is atomically renamed into place. If an entry for
// that digest already exists, src is left untouched and the existing path
// is returned (the store is idempotent and immutable post-rename).
func (a ArchiveStore) Store(ctx context.Context, srcDigest string, copyTree func(dst string) error) (string, error) {
	final := a.Path(srcDigest)
	if a.Has(srcDigest) {
		return final, nil
	}
	parent := filepath.Dir(final)
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return "", errors.Wrapf(err, "creating archive parent %q", parent)
	}
	tmp := filepath.Join(parent, ".tmp-"+uuid.NewString())
	if err := os.MkdirAll(tmp, 0o755); err != nil {
		return "", errors.Wrapf(err, "creating scratch dir %q", tmp)
	}
	if err := copyTree(tmp); err != nil {
		os.RemoveAll(tmp)
		return "", errors.Wrap(err, "populating archive scratch directory")
	}
	if err := os.Rename(tmp, final); err != nil {
		os.RemoveAll(tmp)
		if a.Has(srcDigest) {
			// A concurrent writer won the race; that's fine, the content is
			// identical by construction (keyed by digest).
			return final, nil
		}
		return "", errors.Wrapf(err, "renaming archive entry into place at %q", final)
	}
	return final, nil
}

// DigestDir computes the sha256 digest of a directory tree's file contents
// and relative paths (not permissions/mtimes), used as the archive key.
func DigestDir(root string) (string, error) {
	h := sha256.New()
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		h.Write([]byte(rel))
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		if _, err := io.Copy(h, f); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return "", errors.Wrap(err, "digesting directory")
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
