// Copyright 2025 Google LLC
// SPDX-License-Identifier: Apache-2.0

// Package perr implements the error taxonomy described in spec.md §7:
// Resolution, Fetch, Build, Cache, and Install kinds, plus the exit-code
// mapping and derivation-chain printer cmd/pep uses to report failures.
package perr

import (
	"errors"
	"fmt"
	"strings"

	"github.com/pep-run/pep/pkg/build"
	"github.com/pep-run/pep/pkg/distdb"
	"github.com/pep-run/pep/pkg/resolver"
)

// Category is one of spec.md §7's five error kinds.
type Category int

const (
	Unclassified Category = iota
	Resolution
	Fetch
	Build
	Cache
	Install
)

func (c Category) String() string {
	switch c {
	case Resolution:
		return "resolution"
	case Fetch:
		return "fetch"
	case Build:
		return "build"
	case Cache:
		return "cache"
	case Install:
		return "install"
	default:
		return "unclassified"
	}
}

// --- Install kind: spec.md §4.7/§4.8 failures with no existing typed
// error elsewhere, since pkg/installer/pkg/uninstaller own them directly.

// FileExistsError reports that a destination path already exists and the
// install policy does not permit overwriting it.
type FileExistsError struct {
	Path string
}

func (e *FileExistsError) Error() string {
	return "refusing to overwrite existing file " + e.Path
}

// CannotUninstallEggInfoError reports a distribution installed only as a
// file-form .egg-info, which carries no RECORD to drive uninstall.
type CannotUninstallEggInfoError struct {
	Name string
}

func (e *CannotUninstallEggInfoError) Error() string {
	return e.Name + " was installed as a legacy .egg-info file and cannot be uninstalled safely"
}

// IncompatibleVenvError reports a target environment whose pyvenv.cfg is
// missing, malformed, or names an interpreter the installer cannot use.
type IncompatibleVenvError struct {
	Reason string
}

func (e *IncompatibleVenvError) Error() string {
	return "incompatible virtual environment: " + e.Reason
}

// --- Cache kind: spec.md §4.2/§4.9 cache I/O and pointer-file failures.

// IOError wraps a cache read/write failure that is not itself one of the
// more specific categories below.
type IOError struct {
	Op  string
	Err error
}

func (e *IOError) Error() string  { return "cache " + e.Op + ": " + e.Err.Error() }
func (e *IOError) Unwrap() error  { return e.Err }

// DecodeError reports a cache pointer file (JSON manifest, wheel pointer)
// that failed to parse.
type DecodeError struct {
	Path string
	Err  error
}

func (e *DecodeError) Error() string { return "decoding " + e.Path + ": " + e.Err.Error() }
func (e *DecodeError) Unwrap() error { return e.Err }

// CorruptError reports a cache entry whose on-disk shape does not match
// what its pointer file promises (e.g. the referenced archive directory
// is missing).
type CorruptError struct {
	Path string
}

func (e *CorruptError) Error() string { return "corrupt cache entry at " + e.Path }

// --- Fetch kind: spec.md §4.1/§4.2 network failures.

// HTTPError reports a non-2xx response from an index or artifact fetch.
type HTTPError struct {
	Status int
	URL    string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d fetching %s", e.Status, e.URL)
}

// AuthError reports a 401/403 the configured credentials did not resolve.
type AuthError struct {
	URL string
}

func (e *AuthError) Error() string { return "authentication required for " + e.URL }

// BadResponseError reports a response that parsed as neither a valid
// Simple API listing nor a well-formed artifact.
type BadResponseError struct {
	URL string
	Err error
}

func (e *BadResponseError) Error() string { return "malformed response from " + e.URL + ": " + e.Err.Error() }
func (e *BadResponseError) Unwrap() error { return e.Err }

// Classify maps err to the taxonomy category spec.md §7 assigns it,
// walking known concrete types from pkg/resolver, pkg/distdb, and
// pkg/build before falling back to this package's own Fetch/Cache/Install
// types, matching the teacher's errors.As-based classification style.
func Classify(err error) Category {
	if err == nil {
		return Unclassified
	}
	var noSolution *resolver.NoSolutionError
	var conflictingURLs *resolver.ConflictingUrlsError
	var conflictingIndexes *resolver.ConflictingIndexesError
	var missingMetadata *resolver.MissingMetadataError
	var incompatiblePython *resolver.IncompatibleRequiresPythonError
	var disallowedYanked *resolver.DisallowedYankedError
	switch {
	case errors.As(err, &noSolution), errors.As(err, &conflictingURLs),
		errors.As(err, &conflictingIndexes), errors.As(err, &missingMetadata),
		errors.As(err, &incompatiblePython), errors.As(err, &disallowedYanked):
		return Resolution
	}

	var hashMismatch *distdb.HashMismatchError
	if errors.As(err, &hashMismatch) {
		return Fetch
	}

	var buildFailure *distdb.BuildFailure
	var missingEntrypoint *build.ErrMissingEntrypoint
	var backendError *build.BackendError
	switch {
	case errors.As(err, &buildFailure), errors.As(err, &missingEntrypoint), errors.As(err, &backendError):
		return Build
	}

	var ioErr *IOError
	var decodeErr *DecodeError
	var corruptErr *CorruptError
	switch {
	case errors.As(err, &ioErr), errors.As(err, &decodeErr), errors.As(err, &corruptErr):
		return Cache
	}

	var httpErr *HTTPError
	var authErr *AuthError
	var badResponse *BadResponseError
	switch {
	case errors.As(err, &httpErr), errors.As(err, &authErr), errors.As(err, &badResponse):
		return Fetch
	}

	var fileExists *FileExistsError
	var eggInfo *CannotUninstallEggInfoError
	var incompatibleVenv *IncompatibleVenvError
	switch {
	case errors.As(err, &fileExists), errors.As(err, &eggInfo), errors.As(err, &incompatibleVenv):
		return Install
	}

	return Unclassified
}

// ExitCode maps err to spec.md §6's process exit codes: 0 for nil, 1 for
// a classified user-facing error (bad requirements, a policy violation, a
// hash mismatch), 2 for anything this package cannot place in the
// taxonomy.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	if Classify(err) == Unclassified {
		return 2
	}
	return 1
}

// FormatChain renders err followed by each wrapped cause on its own
// "Caused by:" line, walking errors.Unwrap the way the teacher's
// cmd/* packages print github.com/pkg/errors chains.
func FormatChain(err error) string {
	var b strings.Builder
	b.WriteString(err.Error())
	for cause := errors.Unwrap(err); cause != nil; cause = errors.Unwrap(cause) {
		b.WriteString("\nCaused by: ")
		b.WriteString(cause.Error())
	}
	return b.String()
}
