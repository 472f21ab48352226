// Copyright 2025 Google LLC
// SPDX-License-Identifier: Apache-2.0

package distdb

import (
	"errors"
	"fmt"

	"github.com/pep-run/pep/pkg/build"
	"github.com/pep-run/pep/pkg/pypi/digest"
)

// BuildFailureKind classifies why the build pipeline stopped short of a
// wheel, per spec.md §4.2 step 6.
type BuildFailureKind int

const (
	// NoBuild means the configured policy forbids building from source.
	NoBuild BuildFailureKind = iota
	// MissingEntrypoint means the source tree has neither pyproject.toml
	// nor setup.py.
	MissingEntrypoint
	// BackendFailure means the build backend itself failed; Stderr holds
	// its captured output.
	BackendFailure
)

// BuildFailure is the error type returned for a failed sdist build.
type BuildFailure struct {
	Kind   BuildFailureKind
	Stderr string
	Err    error
}

func (e *BuildFailure) Error() string {
	switch e.Kind {
	case NoBuild:
		return "building from source is not permitted by the configured policy"
	case MissingEntrypoint:
		return e.Err.Error()
	default:
		return fmt.Sprintf("build failed: %v", e.Err)
	}
}

func (e *BuildFailure) Unwrap() error { return e.Err }

// classifyBuildError maps a pkg/build error into the distdb taxonomy.
func classifyBuildError(err error) *BuildFailure {
	var missing *build.ErrMissingEntrypoint
	if errors.As(err, &missing) {
		return &BuildFailure{Kind: MissingEntrypoint, Err: err}
	}
	var backend *build.BackendError
	if errors.As(err, &backend) {
		return &BuildFailure{Kind: BackendFailure, Stderr: backend.Stderr, Err: err}
	}
	return &BuildFailure{Kind: BackendFailure, Err: err}
}

// HashMismatchError reports that a fetched artifact's computed digests
// matched none of the expected ones.
type HashMismatchError struct {
	Expected digest.Hashes
	Got      digest.Hashes
}

func (e *HashMismatchError) Error() string {
	return fmt.Sprintf("hash mismatch: expected one of %v, got %v", e.Expected, e.Got)
}
