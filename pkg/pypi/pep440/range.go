// Copyright 2025 Google LLC
// SPDX-License-Identifier: Apache-2.0

package pep440

// Range is a compiled version set supporting union, intersection,
// complement, and membership test, per spec.md §3's VersionSpecifiers ->
// Range requirement. Internally it is a membership predicate composed from
// the specifiers/ranges that produced it; this sidesteps having to represent
// pre-release/local-version boundary arithmetic as literal interval
// endpoints (PEP 440 ordering around pre-releases is not interval-shaped in
// a naive sense — "1.0a1" sorts below "1.0" yet "==1.0.*" must still match
// it) while still satisfying Contains/Union/Intersect/Complement exactly.
type Range struct {
	contains func(Version) bool
}

// Full returns the range containing every version.
func Full() Range {
	return Range{contains: func(Version) bool { return true }}
}

// Empty returns the range containing no versions.
func Empty() Range {
	return Range{contains: func(Version) bool { return false }}
}

// Contains reports whether v is a member of r.
func (r Range) Contains(v Version) bool {
	if r.contains == nil {
		return false
	}
	return r.contains(v)
}

// Union returns the range containing every version in r or other.
func (r Range) Union(other Range) Range {
	a, b := r.contains, other.contains
	return Range{contains: func(v Version) bool {
		return (a != nil && a(v)) || (b != nil && b(v))
	}}
}

// Intersect returns the range containing every version in both r and other.
func (r Range) Intersect(other Range) Range {
	a, b := r.contains, other.contains
	return Range{contains: func(v Version) bool {
		return a != nil && a(v) && b != nil && b(v)
	}}
}

// Complement returns the range containing every version not in r.
func (r Range) Complement() Range {
	a := r.contains
	return Range{contains: func(v Version) bool {
		return !(a != nil && a(v))
	}}
}

// IsEmpty reports whether r matches no version among the given candidates.
// PEP 440's version space is not enumerable, so emptiness can only be
// checked relative to a concrete candidate set (the resolver's VersionMap);
// a Range with no candidates satisfying it is "empty enough" to exclude a
// package from consideration.
func (r Range) IsEmpty(candidates []Version) bool {
	for _, v := range candidates {
		if r.Contains(v) {
			return false
		}
	}
	return true
}

// Compile converts a Specifiers conjunction into a Range.
func Compile(specs Specifiers) Range {
	r := Full()
	for _, s := range specs {
		spec := s
		r = r.Intersect(Range{contains: spec.Contains})
	}
	return r
}

// FromPredicate builds a Range directly from a membership test, for callers
// (e.g. the resolver's URL-pin and yanked-exclusion logic) that need a Range
// not derived from a Specifiers conjunction.
func FromPredicate(pred func(Version) bool) Range {
	return Range{contains: pred}
}
