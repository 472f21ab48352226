// Copyright 2025 Google LLC
// SPDX-License-Identifier: Apache-2.0

package distdb

import (
	"archive/zip"
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"github.com/pep-run/pep/pkg/cache"
	"github.com/pep-run/pep/pkg/metadata"
	"github.com/pep-run/pep/pkg/pypi/digest"
)

func (db *DB) getSdist(ctx context.Context, id string, d Dist, want digest.Hashes, policy digest.Policy) (LocalWheel, digest.Hashes, error) {
	source, revision, sourceDigest, rawHashes, err := db.resolveSource(ctx, id, d)
	if err != nil {
		return LocalWheel{}, nil, err
	}
	if err := policy.Enforce(want, rawHashes); err != nil {
		return LocalWheel{}, nil, &HashMismatchError{Expected: want, Got: rawHashes}
	}

	manifestPath := db.manifestPath(id, revision, sourceDigest)
	if entry, ok := readJSON[manifestEntry](manifestPath); ok {
		if archiveDir := (cache.ArchiveStore{Bucket: db.Cache.Archive}).Path(entry.ArchiveID); dirExists(archiveDir) {
			return LocalWheel{Path: archiveDir, Filename: entry.Filename}, entry.Hashes, nil
		}
	}

	lw, archiveID, hashes, err := db.buildWheel(ctx, d, source)
	if err != nil {
		return LocalWheel{}, nil, err
	}
	entry := manifestEntry{ArchiveID: archiveID, Filename: lw.Filename, Hashes: hashes}
	if err := writeJSON(manifestPath, entry); err != nil {
		return LocalWheel{}, nil, errors.Wrap(err, "recording build manifest")
	}
	return lw, hashes, nil
}

func (db *DB) sdistMetadata(ctx context.Context, id string, d Dist) (metadata.CoreMetadata, error) {
	source, revision, sourceDigest, _, err := db.resolveSource(ctx, id, d)
	if err != nil {
		return metadata.CoreMetadata{}, err
	}

	manifestPath := db.manifestPath(id, revision, sourceDigest)
	if entry, ok := readJSON[manifestEntry](manifestPath); ok {
		if archiveDir := (cache.ArchiveStore{Bucket: db.Cache.Archive}).Path(entry.ArchiveID); dirExists(archiveDir) {
			return db.metadataFromArchive(archiveDir)
		}
	}

	sb, err := db.Builder.SetupBuild(ctx, source, d.Subdir, d.Name)
	if err != nil {
		return metadata.CoreMetadata{}, classifyBuildError(err)
	}
	if core, ok, err := sb.Metadata(ctx); err != nil {
		return metadata.CoreMetadata{}, classifyBuildError(err)
	} else if ok {
		return core, nil
	}

	// The backend has no prepare_metadata_for_build_wheel hook: fall back
	// to a full build and read the produced wheel's own METADATA, per
	// spec.md §4.2's "get_metadata" fallback chain.
	lw, _, err := db.getSdist(ctx, id, d, nil, digest.Disabled)
	if err != nil {
		return metadata.CoreMetadata{}, err
	}
	return db.metadataFromArchive(lw.Path)
}

// buildWheel drives BuildContext.SetupBuild/Wheel and unpacks the result
// into the archive store, per spec.md §4.2 step 4-5.
func (db *DB) buildWheel(ctx context.Context, d Dist, source fs.FS) (LocalWheel, string, digest.Hashes, error) {
	sb, err := db.Builder.SetupBuild(ctx, source, d.Subdir, d.Name)
	if err != nil {
		return LocalWheel{}, "", nil, classifyBuildError(err)
	}
	if err := os.MkdirAll(db.Cache.BuiltWheels.Dir(), 0o755); err != nil {
		return LocalWheel{}, "", nil, errors.Wrap(err, "creating build output parent")
	}
	outDir, err := os.MkdirTemp(db.Cache.BuiltWheels.Dir(), ".out-*")
	if err != nil {
		return LocalWheel{}, "", nil, errors.Wrap(err, "creating build output directory")
	}
	defer os.RemoveAll(outDir)

	filename, err := sb.Wheel(ctx, outDir)
	if err != nil {
		return LocalWheel{}, "", nil, classifyBuildError(err)
	}

	f, err := os.Open(filepath.Join(outDir, filename))
	if err != nil {
		return LocalWheel{}, "", nil, errors.Wrap(err, "opening built wheel")
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return LocalWheel{}, "", nil, errors.Wrap(err, "stat-ing built wheel")
	}
	builtHashes, err := digest.Compute(f, nil)
	if err != nil {
		return LocalWheel{}, "", nil, errors.Wrap(err, "hashing built wheel")
	}
	zr, err := zip.NewReader(f, info.Size())
	if err != nil {
		return LocalWheel{}, "", nil, errors.Wrap(err, "reading built wheel")
	}

	archiveID, archiveDir, err := db.storeZipArchive(ctx, zr)
	if err != nil {
		return LocalWheel{}, "", nil, err
	}
	return LocalWheel{Path: archiveDir, Filename: filename}, archiveID, builtHashes, nil
}

func (db *DB) manifestPath(id, revision, sourceDigest string) string {
	key := manifestDigest(db.manifestFor(sourceDigest))
	return db.Cache.BuiltWheels.Path(id, revision, "manifests", key+".json")
}

func (db *DB) metadataFromArchive(archiveDir string) (metadata.CoreMetadata, error) {
	entries, err := os.ReadDir(archiveDir)
	if err != nil {
		return metadata.CoreMetadata{}, errors.Wrap(err, "reading archive directory")
	}
	for _, e := range entries {
		if e.IsDir() && strings.HasSuffix(e.Name(), ".dist-info") {
			f, err := os.Open(filepath.Join(archiveDir, e.Name(), "METADATA"))
			if err != nil {
				return metadata.CoreMetadata{}, errors.Wrap(err, "opening archived METADATA")
			}
			defer f.Close()
			m, err := metadata.ParseCoreMetadata(f)
			if err != nil {
				return metadata.CoreMetadata{}, err
			}
			return *m, nil
		}
	}
	return metadata.CoreMetadata{}, errors.Errorf("no .dist-info directory found in %q", archiveDir)
}
