// Copyright 2025 Google LLC
// SPDX-License-Identifier: Apache-2.0

// Package cache implements the on-disk, content-addressed cache layout:
// directory-sharded versioned buckets, atomic write-then-rename, and a
// pruner. It generalizes the teacher's internal/cache in-memory
// compute-once cache (CoalescingMemoryCache) to durable, filesystem-backed
// entries.
package cache

import (
	"path/filepath"
	"strconv"
)

// Bucket is one versioned subtree of the cache directory, e.g.
// "wheels-v<N>". Bumping Version invalidates every entry written under the
// previous version without deleting it immediately — the pruner reclaims
// stale versions lazily.
type Bucket struct {
	Root    string
	Name    string
	Version int
}

// Dir returns the bucket's root directory, "<root>/<name>-v<version>".
func (b Bucket) Dir() string {
	return filepath.Join(b.Root, b.Name+"-v"+strconv.Itoa(b.Version))
}

// Path joins additional path components under the bucket's directory.
func (b Bucket) Path(parts ...string) string {
	all := append([]string{b.Dir()}, parts...)
	return filepath.Join(all...)
}

// Buckets enumerates every cache bucket this module writes, each with an
// explicit version constant per spec.md §3's cache layout.
type Buckets struct {
	Wheels       Bucket
	Sdists       Bucket
	BuiltWheels  Bucket
	Simple       Bucket
	Archive      Bucket
	Interpreter  Bucket
	Environments Bucket
	Git          Bucket
}

// Current bucket versions. Bumping any of these invalidates that bucket's
// existing entries for future reads; the pruner reclaims anything written
// under an older version.
const (
	WheelsVersion       = 2
	SdistsVersion       = 1
	BuiltWheelsVersion  = 1
	SimpleVersion       = 1
	ArchiveVersion      = 1
	InterpreterVersion  = 0
	EnvironmentsVersion = 0
	GitVersion          = 1
)

// NewBuckets constructs the standard bucket set rooted at dir.
func NewBuckets(dir string) *Buckets {
	b := func(name string, version int) Bucket {
		return Bucket{Root: dir, Name: name, Version: version}
	}
	return &Buckets{
		Wheels:       b("wheels", WheelsVersion),
		Sdists:       b("sdists", SdistsVersion),
		BuiltWheels:  b("built-wheels", BuiltWheelsVersion),
		Simple:       b("simple", SimpleVersion),
		Archive:      b("archive", ArchiveVersion),
		Interpreter:  b("interpreter", InterpreterVersion),
		Environments: b("environments", EnvironmentsVersion),
		Git:          b("git", GitVersion),
	}
}

// All returns every bucket, for iteration by the pruner.
func (b *Buckets) All() []Bucket {
	return []Bucket{b.Wheels, b.Sdists, b.BuiltWheels, b.Simple, b.Archive, b.Interpreter, b.Environments, b.Git}
}
