// Copyright 2025 Google LLC
// SPDX-License-Identifier: Apache-2.0

package distdb

import (
	"github.com/pep-run/pep/pkg/cachekey"
	"github.com/pep-run/pep/pkg/pypi/digest"
)

// manifest is the set of inputs that determine a built wheel's identity
// for a given source revision: source digest, build-environment digest
// (DB.BuildEnvironmentDigest), and Requires-Python. Build isolation
// settings are not part of it.
type manifest struct {
	SourceDigest       string
	BuildContextDigest string
	RequiresPython     string
}

func (m manifest) CacheKey(h cachekey.Hasher) {
	h.WriteString(m.SourceDigest)
	h.WriteString(m.BuildContextDigest)
	h.WriteString(m.RequiresPython)
}

func (db *DB) manifestFor(sourceDigest string) manifest {
	return manifest{
		SourceDigest:       sourceDigest,
		BuildContextDigest: db.BuildEnvironmentDigest,
		RequiresPython:     db.RequiresPython,
	}
}

func manifestDigest(m manifest) string {
	return cachekey.Digest(m)
}

// manifestEntry is the JSON record kept under
// built-wheels-v<N>/.../<revision>/manifests/<manifest-digest>.json, per
// spec.md §4.2 step 3.
type manifestEntry struct {
	ArchiveID string        `json:"archive_id"`
	Filename  string        `json:"filename"`
	Hashes    digest.Hashes `json:"hashes"`
}
