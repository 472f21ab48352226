// Copyright 2025 Google LLC
// SPDX-License-Identifier: Apache-2.0

// Package resolver implements the PubGrub-style version solver described in
// spec.md §4.4: incompatibilities over Terms, a partial solution built by
// unit propagation and conflict-driven backtracking, and a dependency
// provider fed by pkg/metadata and pkg/distdb.
package resolver

import (
	"fmt"

	"github.com/pep-run/pep/pkg/pypi/pep440"
)

// Kind distinguishes the three members of the Package sum type.
type Kind int

const (
	// Root is the synthetic package depending on the user's top-level
	// requirements.
	Root Kind = iota
	// Python is the pseudo-package whose version is the target
	// interpreter's version, used to gate Requires-Python.
	Python
	// Real is an actual distribution, optionally a URL/Git/path pin (URL
	// non-empty). Enabled extras are not modelled as separate Package
	// values — see Resolver.activeExtras — since an extra can never
	// select a version other than its base package's.
	Real
)

// Package identifies one node in the dependency graph. Two Packages with
// the same fields are the same node, so Package is usable directly as a
// map key.
type Package struct {
	Kind Kind
	Name string
	URL  string
}

func (p Package) String() string {
	switch p.Kind {
	case Root:
		return "<root>"
	case Python:
		return "python"
	default:
		if p.URL != "" {
			return p.Name + " @ " + p.URL
		}
		return p.Name
	}
}

// Term is a single literal over a package's version range: positive asserts
// membership, negative asserts non-membership.
type Term struct {
	Package  Package
	Range    pep440.Range
	Positive bool
	// Universe is the full candidate version list for Package, used only
	// to decide Range (non-)emptiness when Package is not yet decided —
	// pep440.Range is a membership predicate with no enumerable interval
	// form, so emptiness is only checkable against a concrete candidate
	// set (see pkg/pypi/pep440.Range.IsEmpty).
	Universe []pep440.Version
}

func (t Term) String() string {
	if t.Positive {
		return fmt.Sprintf("%s is in range", t.Package)
	}
	return fmt.Sprintf("%s is not in range", t.Package)
}

// satisfiedBy reports whether the term is true given that pkg is decided at
// version v.
func (t Term) satisfiedBy(v pep440.Version, present bool) bool {
	if !present {
		// No assignment for the package: a positive term is undetermined
		// (neither satisfied nor contradicted) unless its range is Full,
		// in which case "any version, including none" reads as vacuously
		// true only for negative terms (the package is simply absent).
		return !t.Positive
	}
	in := t.Range.Contains(v)
	if t.Positive {
		return in
	}
	return !in
}
