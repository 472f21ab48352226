// Copyright 2025 Google LLC
// SPDX-License-Identifier: Apache-2.0

// Package build implements the PEP 517 build frontend boundary: given a
// source tree, produce a wheel (and, where the backend supports it,
// metadata without a full build).
package build

import (
	"context"
	"io/fs"

	"github.com/pep-run/pep/pkg/metadata"
)

// Context sets up a build environment for one source tree.
type Context interface {
	SetupBuild(ctx context.Context, source fs.FS, subdir, distName string) (SourceBuild, error)
}

// SourceBuild drives a single configured build.
type SourceBuild interface {
	// Wheel builds a wheel into outDir and returns its filename.
	Wheel(ctx context.Context, outDir string) (string, error)
	// Metadata returns Core Metadata without necessarily building a wheel,
	// via the backend's prepare_metadata_for_build_wheel hook. ok is false
	// if the backend does not support the hook, in which case the caller
	// should fall back to a full build.
	Metadata(ctx context.Context) (core metadata.CoreMetadata, ok bool, err error)
}

// ErrMissingEntrypoint is returned by SetupBuild when source contains
// neither a pyproject.toml nor a setup.py.
type ErrMissingEntrypoint struct {
	Dir string
}

func (e *ErrMissingEntrypoint) Error() string {
	return "no pyproject.toml or setup.py found in " + e.Dir
}

// BackendError wraps a build backend invocation failure, retaining its
// standard error output.
type BackendError struct {
	Err    error
	Stderr string
}

func (e *BackendError) Error() string {
	if e.Stderr == "" {
		return e.Err.Error()
	}
	return e.Err.Error() + ":\n" + e.Stderr
}

func (e *BackendError) Unwrap() error { return e.Err }
