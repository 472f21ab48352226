// Copyright 2025 Google LLC
// SPDX-License-Identifier: Apache-2.0

// Package distdb implements the distribution database: fetching,
// building, and unpacking a Dist into a content-addressed LocalWheel, with
// at-most-one concurrent build or download per ResourceId.
package distdb

import (
	"path"
	"path/filepath"

	"github.com/pep-run/pep/pkg/cachekey"
	"github.com/pep-run/pep/pkg/pypi/digest"
	"github.com/pep-run/pep/pkg/pypi/pep440"
	"github.com/pep-run/pep/pkg/registry/simple"
)

// Kind distinguishes the six distribution sources spec.md §4.2 names.
type Kind string

const (
	KindRegistry Kind = "registry"
	KindURLWheel Kind = "url-wheel"
	KindURLSdist Kind = "url-sdist"
	KindGit      Kind = "git"
	KindPath     Kind = "path"
	KindDir      Kind = "dir"
)

// Dist is a requested distribution to fetch, build, and unpack.
type Dist struct {
	Kind    Kind
	Name    string
	Version pep440.Version

	// File is populated for KindRegistry, naming the chosen compatible
	// file on the index.
	File simple.File

	// URL is the artifact or repository URL for KindURLWheel, KindURLSdist
	// and KindGit.
	URL string
	// Ref is the requested Git ref (branch, tag, or commit) for KindGit.
	Ref string
	// Subdir locates the project root within a Git checkout or directory
	// when it is not at the tree root.
	Subdir string
	// Path is the local filesystem location for KindPath and KindDir.
	Path string
}

// CacheKey implements cachekey.CacheKey: ResourceId is derived from the
// canonical URL plus the requested ref and subdirectory for Git (the ref
// is hashed as given, not resolved to a commit), the canonical URL alone
// for registry/URL distributions, or the absolute path for local sources.
func (d Dist) CacheKey(h cachekey.Hasher) {
	h.WriteString(string(d.Kind))
	switch d.Kind {
	case KindRegistry:
		h.WriteString(cachekey.CanonicalURL(d.File.URL))
	case KindURLWheel, KindURLSdist:
		h.WriteString(cachekey.CanonicalURL(d.URL))
	case KindGit:
		h.WriteString(cachekey.CanonicalURL(d.URL))
		h.WriteString(d.Ref)
		h.WriteString(d.Subdir)
	case KindPath, KindDir:
		abs, err := filepath.Abs(d.Path)
		if err != nil {
			abs = d.Path
		}
		h.WriteString(abs)
	}
}

// ResourceId is the stable identity used for the lock table and the
// wheels/built-wheels bucket layout.
func ResourceId(d Dist) string {
	return cachekey.Digest(d)
}

// IsPrebuiltWheel reports whether d already names a wheel artifact, so the
// database can skip the build pipeline.
func (d Dist) IsPrebuiltWheel() bool {
	switch d.Kind {
	case KindRegistry:
		return strHasSuffix(d.File.Filename, ".whl")
	case KindURLWheel:
		return true
	case KindPath:
		return strHasSuffix(d.Path, ".whl")
	default:
		return false
	}
}

// Filename is the artifact filename used for bucket paths and logging.
func (d Dist) Filename() string {
	switch d.Kind {
	case KindRegistry:
		return d.File.Filename
	case KindURLWheel, KindURLSdist:
		return path.Base(d.URL)
	case KindPath:
		return filepath.Base(d.Path)
	default:
		return d.Name + "-" + d.Version.String()
	}
}

// Hashes returns the acceptable digests declared by the index for d, if
// any (only registry files carry them).
func (d Dist) Hashes() digest.Hashes {
	return d.File.Hashes
}

func strHasSuffix(s, suffix string) bool {
	return len(s) >= len(suffix) && s[len(s)-len(suffix):] == suffix
}
