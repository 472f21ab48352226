// Copyright 2025 Google LLC
// SPDX-License-Identifier: Apache-2.0

package distdb

import (
	"archive/zip"
	"bytes"
	"context"
	"os"
	"strings"
	"sync"

	"github.com/pkg/errors"

	"github.com/pep-run/pep/internal/syncx"
	"github.com/pep-run/pep/pkg/build"
	"github.com/pep-run/pep/pkg/cache"
	"github.com/pep-run/pep/pkg/metadata"
	"github.com/pep-run/pep/pkg/pypi/digest"
	"github.com/pep-run/pep/pkg/registry/simple"
	"github.com/pep-run/pep/pkg/vcs/git"
)

// LocalWheel is an unpacked wheel directory inside the archive bucket.
type LocalWheel struct {
	// Path is the archive bucket directory the wheel was unpacked into.
	Path string
	// Filename is the original wheel filename, kept for logging and
	// RECORD generation.
	Filename string
}

// DB is the distribution database described in spec.md §4.2: it fetches,
// builds, and unpacks Dists, enforcing at-most-one concurrent build or
// download per ResourceId via a lock table generalizing the teacher's
// CoalescingMemoryCache compute-once idiom to a held-for-I/O lock.
type DB struct {
	Cache   *cache.Buckets
	Index   simple.Client
	Builder build.Context
	Git     git.Source

	// AllowBuild gates the sdist/Git/directory build pipeline; when false,
	// Get and GetMetadata fail with BuildFailure{Kind: NoBuild} for any
	// Dist that is not already a wheel.
	AllowBuild bool
	// RequiresPython is the resolve's target Requires-Python, folded into
	// the build Manifest so a built wheel is never reused across
	// incompatible interpreter constraints.
	RequiresPython string
	// BuildEnvironmentDigest identifies the build environment (e.g. the
	// resolved build interpreter's version) for manifest purposes. Left
	// empty, every build shares one bucket regardless of environment.
	BuildEnvironmentDigest string

	locks syncx.Map[string, *sync.Mutex]
}

var _ metadata.SdistMetadataFetcher = &DB{}

func (db *DB) lock(id string) func() {
	mu, _ := db.locks.LoadOrStore(id, &sync.Mutex{})
	mu.Lock()
	return mu.Unlock
}

// Get fetches, builds if necessary, and unpacks d, returning the archive
// directory and the digests actually computed for it.
func (db *DB) Get(ctx context.Context, d Dist, want digest.Hashes, policy digest.Policy) (LocalWheel, digest.Hashes, error) {
	id := ResourceId(d)
	unlock := db.lock(id)
	defer unlock()
	if d.IsPrebuiltWheel() {
		return db.getWheel(ctx, id, d, want, policy)
	}
	if !db.AllowBuild {
		return LocalWheel{}, nil, &BuildFailure{Kind: NoBuild, Err: errors.Errorf("%s requires a build but building is disabled", d.Name)}
	}
	return db.getSdist(ctx, id, d, want, policy)
}

// GetMetadata returns d's Core Metadata without necessarily unpacking a
// wheel: registry/URL wheels use the Simple API path (PEP 658 side
// channel, range read, or full download); sdists first check the
// built-wheel manifest, then the backend's prepare_metadata_for_build_wheel
// hook, then fall back to a full build.
func (db *DB) GetMetadata(ctx context.Context, d Dist) (metadata.CoreMetadata, error) {
	id := ResourceId(d)
	unlock := db.lock(id)
	defer unlock()

	if d.IsPrebuiltWheel() {
		return db.wheelMetadata(ctx, d)
	}
	if !db.AllowBuild {
		return metadata.CoreMetadata{}, &BuildFailure{Kind: NoBuild, Err: errors.Errorf("%s requires a build but building is disabled", d.Name)}
	}
	return db.sdistMetadata(ctx, id, d)
}

// FetchSdistMetadata implements metadata.SdistMetadataFetcher, adapting a
// Simple API file entry to the Dist/GetMetadata path the resolver and
// metadata provider never need to know about directly.
func (db *DB) FetchSdistMetadata(ctx context.Context, projectName string, sdist metadata.CompatibleFile) (*metadata.CoreMetadata, error) {
	d := Dist{Kind: KindRegistry, Name: projectName, Version: sdist.Version, File: sdist.File}
	m, err := db.GetMetadata(ctx, d)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (db *DB) wheelMetadata(ctx context.Context, d Dist) (metadata.CoreMetadata, error) {
	if d.Kind == KindPath {
		return db.wheelMetadataFromLocalFile(d.Path)
	}
	f, err := db.wheelFileFor(d)
	if err != nil {
		return metadata.CoreMetadata{}, err
	}
	b, err := db.Index.WheelMetadata(ctx, f)
	if err != nil {
		return metadata.CoreMetadata{}, errors.Wrapf(err, "fetching metadata for %q", d.Filename())
	}
	m, err := metadata.ParseCoreMetadata(bytes.NewReader(b))
	if err != nil {
		return metadata.CoreMetadata{}, err
	}
	return *m, nil
}

func (db *DB) wheelFileFor(d Dist) (simple.File, error) {
	switch d.Kind {
	case KindRegistry:
		return d.File, nil
	case KindURLWheel:
		return simple.File{Filename: d.Filename(), URL: d.URL}, nil
	default:
		return simple.File{}, errors.Errorf("dist kind %q is not a remotely fetchable wheel", d.Kind)
	}
}

// wheelMetadataFromLocalFile reads Core Metadata directly out of a local
// wheel file's central directory, since there is no index to range-read
// or sidecar-fetch from.
func (db *DB) wheelMetadataFromLocalFile(path string) (metadata.CoreMetadata, error) {
	f, err := os.Open(path)
	if err != nil {
		return metadata.CoreMetadata{}, errors.Wrapf(err, "opening %q", path)
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return metadata.CoreMetadata{}, err
	}
	zr, err := zip.NewReader(f, info.Size())
	if err != nil {
		return metadata.CoreMetadata{}, errors.Wrapf(err, "reading wheel archive %q", path)
	}
	for _, zf := range zr.File {
		if strings.HasSuffix(zf.Name, ".dist-info/METADATA") {
			rc, err := zf.Open()
			if err != nil {
				return metadata.CoreMetadata{}, err
			}
			defer rc.Close()
			m, err := metadata.ParseCoreMetadata(rc)
			if err != nil {
				return metadata.CoreMetadata{}, err
			}
			return *m, nil
		}
	}
	return metadata.CoreMetadata{}, errors.Errorf("no .dist-info/METADATA entry found in %q", path)
}

