// Copyright 2025 Google LLC
// SPDX-License-Identifier: Apache-2.0

package distdb

import (
	"archive/zip"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"

	"github.com/go-git/go-billy/v5/osfs"
	"github.com/pkg/errors"

	"github.com/pep-run/pep/pkg/archive"
	"github.com/pep-run/pep/pkg/cache"
	"github.com/pep-run/pep/pkg/pypi/digest"
)

// wheelPointer is the JSON record kept under the wheels bucket, per
// spec.md §4.2 step 5: "{archive-id, hashes, bucket-version}".
type wheelPointer struct {
	ArchiveID     string        `json:"archive_id"`
	Hashes        digest.Hashes `json:"hashes"`
	BucketVersion int           `json:"bucket_version"`
}

func (db *DB) getWheel(ctx context.Context, id string, d Dist, want digest.Hashes, policy digest.Policy) (LocalWheel, digest.Hashes, error) {
	stem := d.Filename()
	pointerPath := db.Cache.Wheels.Path(id, stem+".json")
	if ptr, ok := readJSON[wheelPointer](pointerPath); ok && ptr.BucketVersion == cache.ArchiveVersion {
		if err := policy.Enforce(want, ptr.Hashes); err == nil {
			if archiveDir := (cache.ArchiveStore{Bucket: db.Cache.Archive}).Path(ptr.ArchiveID); dirExists(archiveDir) {
				return LocalWheel{Path: archiveDir, Filename: stem}, ptr.Hashes, nil
			}
		}
	}

	rc, err := db.openArtifact(ctx, d)
	if err != nil {
		return LocalWheel{}, nil, errors.Wrapf(err, "fetching %q", stem)
	}
	defer rc.Close()

	tmp, err := os.CreateTemp("", "pep-wheel-dl-*")
	if err != nil {
		return LocalWheel{}, nil, errors.Wrap(err, "creating download scratch file")
	}
	defer os.Remove(tmp.Name())
	defer tmp.Close()

	computed, err := digest.Compute(io.TeeReader(rc, tmp), want)
	if err != nil {
		return LocalWheel{}, nil, errors.Wrapf(err, "hashing %q", stem)
	}
	if err := policy.Enforce(want, computed); err != nil {
		return LocalWheel{}, nil, &HashMismatchError{Expected: want, Got: computed}
	}

	info, err := tmp.Stat()
	if err != nil {
		return LocalWheel{}, nil, errors.Wrap(err, "stat-ing downloaded wheel")
	}
	zr, err := zip.NewReader(tmp, info.Size())
	if err != nil {
		return LocalWheel{}, nil, errors.Wrapf(err, "reading wheel archive %q", stem)
	}

	archiveID, archiveDir, err := db.storeZipArchive(ctx, zr)
	if err != nil {
		return LocalWheel{}, nil, err
	}

	ptr := wheelPointer{ArchiveID: archiveID, Hashes: computed, BucketVersion: cache.ArchiveVersion}
	if err := writeJSON(pointerPath, ptr); err != nil {
		return LocalWheel{}, nil, errors.Wrap(err, "recording wheel pointer")
	}
	return LocalWheel{Path: archiveDir, Filename: stem}, computed, nil
}

func (db *DB) openArtifact(ctx context.Context, d Dist) (io.ReadCloser, error) {
	switch d.Kind {
	case KindRegistry:
		return db.Index.Stream(ctx, d.File.URL)
	case KindURLWheel, KindURLSdist:
		return db.Index.Stream(ctx, d.URL)
	case KindPath:
		return os.Open(d.Path)
	default:
		return nil, errors.Errorf("cannot stream artifact bytes for dist kind %q", d.Kind)
	}
}

// storeZipArchive extracts zr into a scratch directory under the archive
// bucket, digests the resulting tree, and stores it content-addressed.
func (db *DB) storeZipArchive(ctx context.Context, zr *zip.Reader) (archiveID, archiveDir string, err error) {
	parent := db.Cache.Archive.Dir()
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return "", "", errors.Wrap(err, "creating archive scratch parent")
	}
	scratch, err := os.MkdirTemp(parent, ".scratch-*")
	if err != nil {
		return "", "", errors.Wrap(err, "creating archive scratch directory")
	}
	if err := archive.ExtractZip(zr, osfs.New(scratch), archive.ExtractOptions{}); err != nil {
		os.RemoveAll(scratch)
		return "", "", errors.Wrap(err, "extracting archive")
	}
	id, err := cache.DigestDir(scratch)
	if err != nil {
		os.RemoveAll(scratch)
		return "", "", errors.Wrap(err, "digesting unpacked archive")
	}
	store := cache.ArchiveStore{Bucket: db.Cache.Archive}
	dir, err := store.Store(ctx, id, func(dst string) error {
		defer os.RemoveAll(scratch)
		return copyDirInto(scratch, dst)
	})
	if err != nil {
		return "", "", errors.Wrap(err, "storing archive entry")
	}
	return id, dir, nil
}

// copyDirInto copies every file under src into dst (already created,
// empty), preserving relative paths and file modes.
func copyDirInto(src, dst string) error {
	return filepath.Walk(src, func(path string, fi os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		target := filepath.Join(dst, rel)
		if fi.IsDir() {
			return os.MkdirAll(target, fi.Mode().Perm())
		}
		in, err := os.Open(path)
		if err != nil {
			return err
		}
		defer in.Close()
		out, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, fi.Mode().Perm())
		if err != nil {
			return err
		}
		defer out.Close()
		_, err = io.Copy(out, in)
		return err
	})
}

// Peek reports whether d's wheel is already present in the archive bucket,
// without fetching or building it. It only recognizes the direct
// registry/URL wheel pointer (Get's fast path on wheel.go); sdist, Git, and
// directory sources need resolveSource's revision lookup to even name the
// pointer they would check, which itself may require network access, so
// Peek conservatively reports them as not cached. pkg/planner uses this to
// classify a Remote entry as Cached only in the common pre-built-wheel
// case; an sdist that happens to already be built still round-trips
// through Get, which fetches and unpacks its source again to compute the
// manifest key, then finds its manifest entry and does not rebuild.
func (db *DB) Peek(d Dist) (LocalWheel, bool) {
	if !d.IsPrebuiltWheel() {
		return LocalWheel{}, false
	}
	id := ResourceId(d)
	stem := d.Filename()
	pointerPath := db.Cache.Wheels.Path(id, stem+".json")
	ptr, ok := readJSON[wheelPointer](pointerPath)
	if !ok || ptr.BucketVersion != cache.ArchiveVersion {
		return LocalWheel{}, false
	}
	archiveDir := (cache.ArchiveStore{Bucket: db.Cache.Archive}).Path(ptr.ArchiveID)
	if !dirExists(archiveDir) {
		return LocalWheel{}, false
	}
	return LocalWheel{Path: archiveDir, Filename: stem}, true
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func readJSON[T any](path string) (T, bool) {
	var zero T
	b, err := os.ReadFile(path)
	if err != nil {
		return zero, false
	}
	var v T
	if err := json.Unmarshal(b, &v); err != nil {
		return zero, false
	}
	return v, true
}

func writeJSON[T any](path string, v T) error {
	w, err := cache.NewAtomicWriter(filepath.Dir(path), filepath.Base(path))
	if err != nil {
		return err
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		w.Abort()
		return err
	}
	return w.Commit()
}
