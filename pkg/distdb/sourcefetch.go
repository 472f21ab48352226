// Copyright 2025 Google LLC
// SPDX-License-Identifier: Apache-2.0

package distdb

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"compress/bzip2"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-git/go-billy/v5/osfs"
	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"
	"github.com/pkg/errors"

	"github.com/pep-run/pep/pkg/archive"
	"github.com/pep-run/pep/pkg/cache"
	"github.com/pep-run/pep/pkg/pypi/digest"
)

// resolveSource materializes d's build input as an fs.FS, returning the
// revision identity used to scope the built-wheels bucket (spec.md §4.2
// step 1), the source digest feeding the build manifest, and the raw
// artifact digests (only meaningful for registry/URL sdists, where the
// fetched bytes can be hash-checked against the index's declared hashes).
func (db *DB) resolveSource(ctx context.Context, id string, d Dist) (source fs.FS, revision, sourceDigest string, rawHashes digest.Hashes, err error) {
	switch d.Kind {
	case KindDir:
		sourceDigest, err = cache.DigestDir(d.Path)
		if err != nil {
			return nil, "", "", nil, errors.Wrap(err, "digesting local source directory")
		}
		return os.DirFS(d.Path), "local", sourceDigest, nil, nil

	case KindGit:
		revision, checkout, err := db.Git.Fetch(ctx, d.URL, d.Ref)
		if err != nil {
			return nil, "", "", nil, errors.Wrapf(err, "fetching %q@%q", d.URL, d.Ref)
		}
		sourceDigest, err := digestFS(checkout)
		if err != nil {
			return nil, "", "", nil, err
		}
		return checkout, revision, sourceDigest, nil, nil

	case KindRegistry, KindURLSdist, KindPath:
		revision, err := db.revisionForURL(id)
		if err != nil {
			return nil, "", "", nil, err
		}
		rc, err := db.openArtifact(ctx, d)
		if err != nil {
			return nil, "", "", nil, errors.Wrapf(err, "fetching %q", d.Filename())
		}
		defer rc.Close()
		tmp, err := os.CreateTemp("", "pep-sdist-dl-*")
		if err != nil {
			return nil, "", "", nil, errors.Wrap(err, "creating download scratch file")
		}
		defer os.Remove(tmp.Name())
		defer tmp.Close()
		computed, err := digest.Compute(io.TeeReader(rc, tmp), d.Hashes())
		if err != nil {
			return nil, "", "", nil, errors.Wrapf(err, "hashing %q", d.Filename())
		}
		if _, err := tmp.Seek(0, io.SeekStart); err != nil {
			return nil, "", "", nil, errors.Wrap(err, "rewinding downloaded sdist")
		}
		parent := db.Cache.Sdists.Dir()
		if err := os.MkdirAll(parent, 0o755); err != nil {
			return nil, "", "", nil, errors.Wrap(err, "creating sdist scratch parent")
		}
		destDir, err := os.MkdirTemp(parent, ".src-*")
		if err != nil {
			return nil, "", "", nil, errors.Wrap(err, "creating sdist scratch directory")
		}
		if err := extractSdistArchive(tmp, d.Filename(), destDir); err != nil {
			os.RemoveAll(destDir)
			return nil, "", "", nil, errors.Wrapf(err, "extracting %q", d.Filename())
		}
		sourceDigest, err := cache.DigestDir(destDir)
		if err != nil {
			return nil, "", "", nil, err
		}
		return os.DirFS(destDir), revision, sourceDigest, computed, nil

	default:
		return nil, "", "", nil, errors.Errorf("dist kind %q has no source to build from", d.Kind)
	}
}

// revisionForURL returns the resource's persisted opaque revision id,
// generating and durably recording one on first use (spec.md §9's
// accepted soft spot: regenerated only if the cache entry is lost).
func (db *DB) revisionForURL(id string) (string, error) {
	path := db.Cache.Sdists.Path(id, "revision")
	if b, err := os.ReadFile(path); err == nil {
		return strings.TrimSpace(string(b)), nil
	}
	rev := uuid.NewString()
	if err := writeRaw(path, []byte(rev)); err != nil {
		return "", errors.Wrap(err, "recording sdist revision id")
	}
	return rev, nil
}

func writeRaw(path string, b []byte) error {
	w, err := cache.NewAtomicWriter(filepath.Dir(path), filepath.Base(path))
	if err != nil {
		return err
	}
	if _, err := w.Write(b); err != nil {
		w.Abort()
		return err
	}
	return w.Commit()
}

// extractSdistArchive unpacks an sdist archive identified by its
// filename's extension into destDir.
func extractSdistArchive(r io.Reader, filename, destDir string) error {
	dest := osfs.New(destDir)
	switch {
	case strings.HasSuffix(filename, ".zip"):
		b, err := io.ReadAll(r)
		if err != nil {
			return err
		}
		zr, err := zip.NewReader(bytes.NewReader(b), int64(len(b)))
		if err != nil {
			return errors.Wrap(err, "reading zip sdist")
		}
		return archive.ExtractZip(zr, dest, archive.ExtractOptions{})
	case strings.HasSuffix(filename, ".tar.gz"):
		gzr, err := gzip.NewReader(r)
		if err != nil {
			return errors.Wrap(err, "reading gzip sdist")
		}
		defer gzr.Close()
		return archive.ExtractTar(tar.NewReader(gzr), dest, archive.ExtractOptions{})
	case strings.HasSuffix(filename, ".tar.bz2"):
		return archive.ExtractTar(tar.NewReader(bzip2.NewReader(r)), dest, archive.ExtractOptions{})
	case strings.HasSuffix(filename, ".tar.zst"):
		zr, err := zstd.NewReader(r)
		if err != nil {
			return errors.Wrap(err, "reading zstd sdist")
		}
		defer zr.Close()
		return archive.ExtractTar(tar.NewReader(zr), dest, archive.ExtractOptions{})
	case strings.HasSuffix(filename, ".tar.xz"):
		return errors.Errorf(".tar.xz sdists are not supported (no xz decoder in the dependency set)")
	default:
		return errors.Errorf("unrecognized sdist extension: %q", filename)
	}
}

// digestFS computes a stable sha256 digest of a read-only filesystem's
// file contents and relative paths, the fs.FS counterpart to
// cache.DigestDir for sources (e.g. a Git checkout) not guaranteed to
// expose a concrete directory path.
func digestFS(fsys fs.FS) (string, error) {
	h := sha256.New()
	err := fs.WalkDir(fsys, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		h.Write([]byte(p))
		f, err := fsys.Open(p)
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
		return "", errors.Wrap(err, "digesting source tree")
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
