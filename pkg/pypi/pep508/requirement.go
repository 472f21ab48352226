// Copyright 2025 Google LLC
// SPDX-License-Identifier: Apache-2.0

package pep508

import "github.com/pep-run/pep/pkg/pypi/pep440"

// Source is the tagged union of ways a Requirement can be satisfied, per
// spec.md §3. Exactly one of the embedded *Source structs is non-nil.
type Source struct {
	Registry  *RegistrySource
	URL       *URLSource
	Git       *GitSource
	Path      *PathSource
	Directory *DirectorySource
}

// RegistrySource is satisfied by any matching file on the named (or any
// configured) index.
type RegistrySource struct {
	Specifier pep440.Specifiers
	Index     string // empty means "any configured index"
}

// URLSource pins a requirement to a direct HTTP archive.
type URLSource struct {
	URL           string
	Ext           string
	Subdirectory  string
}

// GitSource pins a requirement to a Git checkout.
type GitSource struct {
	Repository   string
	Reference    string
	Precise      string // resolved commit sha; nothing in this module sets it
	Subdirectory string
}

// PathSource pins a requirement to a local archive file.
type PathSource struct {
	InstallPath string
	Ext         string
}

// DirectorySource pins a requirement to a local source tree.
type DirectorySource struct {
	InstallPath string
	Editable    bool
	Virtual     bool
}

// Requirement is a single parsed PEP 508 requirement line.
type Requirement struct {
	Name   string
	Extras []string
	Marker Marker
	Source Source
}

// EvaluatesTrue reports whether r's marker is satisfied under env, treating
// an absent marker as always-true.
func (r Requirement) EvaluatesTrue(env Environment) bool {
	if r.Marker == nil {
		return true
	}
	return r.Marker.Evaluate(env)
}
