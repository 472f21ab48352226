// Copyright 2025 Google LLC
// SPDX-License-Identifier: Apache-2.0

package pep440

import (
	"regexp"
	"strings"

	"github.com/pkg/errors"
)

// Operator is a PEP 440 comparison operator.
type Operator string

const (
	OpEqual           Operator = "=="
	OpNotEqual        Operator = "!="
	OpLessEqual       Operator = "<="
	OpGreaterEqual    Operator = ">="
	OpLess            Operator = "<"
	OpGreater         Operator = ">"
	OpCompatible      Operator = "~="
	OpArbitraryEqual  Operator = "==="
)

// Specifier is a single "(op, version)" predicate.
type Specifier struct {
	Operator Operator
	Version  Version
	// Raw retains the textual version (including any trailing ".*" wildcard)
	// since wildcard matches are not representable as a parsed Version alone.
	Raw string
}

// Specifiers is a conjunction ("and") of Specifier predicates, as produced by
// a PEP 508 version specifier clause like ">=1.0,<2.0".
type Specifiers []Specifier

var specifierRE = regexp.MustCompile(`^\s*(~=|==|!=|<=|>=|<|>|===)\s*([^,\s]+)\s*$`)

// ParseSpecifiers parses a comma-separated specifier set.
func ParseSpecifiers(s string) (Specifiers, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	var out Specifiers
	for _, part := range strings.Split(s, ",") {
		spec, err := ParseSpecifier(part)
		if err != nil {
			return nil, err
		}
		out = append(out, spec)
	}
	return out, nil
}

// ParseSpecifier parses a single "<op><version>" clause.
func ParseSpecifier(s string) (Specifier, error) {
	m := specifierRE.FindStringSubmatch(s)
	if m == nil {
		return Specifier{}, errors.Errorf("invalid specifier: %q", s)
	}
	op, raw := Operator(m[1]), m[2]
	verStr := strings.TrimSuffix(strings.TrimSuffix(raw, ".*"), "*")
	var v Version
	var err error
	if op == OpArbitraryEqual {
		v = Version{} // arbitrary equality compares raw strings, not parsed versions
	} else {
		v, err = Parse(verStr)
		if err != nil {
			return Specifier{}, errors.Wrapf(err, "parsing specifier version %q", raw)
		}
	}
	return Specifier{Operator: op, Version: v, Raw: raw}, nil
}

// Contains reports whether v satisfies every predicate in s.
func (s Specifiers) Contains(v Version) bool {
	for _, spec := range s {
		if !spec.Contains(v) {
			return false
		}
	}
	return true
}

// Contains reports whether v satisfies this single predicate.
func (s Specifier) Contains(v Version) bool {
	switch s.Operator {
	case OpEqual:
		if strings.HasSuffix(s.Raw, ".*") || strings.HasSuffix(s.Raw, "*") {
			return prefixMatch(v, s.Version)
		}
		if !v.IsLocal() && s.Version.IsLocal() {
			return false
		}
		return Compare(v.Public(), s.Version.Public()) == 0 && compareLocal(v.Local, s.Version.Local) == 0
	case OpNotEqual:
		spec := s
		spec.Operator = OpEqual
		return !spec.Contains(v)
	case OpLessEqual:
		return Compare(v.Public(), s.Version.Public()) <= 0
	case OpGreaterEqual:
		return Compare(v.Public(), s.Version.Public()) >= 0
	case OpLess:
		if Compare(v.Public(), s.Version.Public()) >= 0 {
			return false
		}
		// Exclude pre-releases of the specified version boundary itself.
		if v.IsPreRelease() && compareReleases(v.Release, s.Version.Release) == 0 {
			return false
		}
		return true
	case OpGreater:
		if Compare(v.Public(), s.Version.Public()) <= 0 {
			return false
		}
		if v.Post != nil && compareReleases(v.Release, s.Version.Release) == 0 && s.Version.Post == nil {
			return true
		}
		return true
	case OpCompatible:
		return compatibleContains(v, s.Version)
	case OpArbitraryEqual:
		return v.String() == s.Raw
	default:
		return false
	}
}

// prefixMatch implements "==X.Y.*" prefix matching: the release segments
// given must be a prefix of v's release segments (post/local ignored).
func prefixMatch(v, prefix Version) bool {
	if v.Epoch != prefix.Epoch {
		return false
	}
	if len(prefix.Release) > len(v.Release) {
		return false
	}
	for i, seg := range prefix.Release {
		if v.Release[i] != seg {
			return false
		}
	}
	return true
}

// compatibleContains implements "~=X.Y[.Z]": equivalent to
// ">=X.Y[.Z],==X.Y.*" i.e. >= base version, but with the last release
// segment free to vary and everything before it pinned.
func compatibleContains(v, base Version) bool {
	if len(base.Release) < 2 {
		return false
	}
	prefix := Version{Epoch: base.Epoch, Release: append([]int(nil), base.Release[:len(base.Release)-1]...)}
	if !prefixMatch(v, prefix) {
		return false
	}
	return Compare(v.Public(), base.Public()) >= 0
}

// String renders the conjunction back to PEP 440 specifier-set syntax.
func (s Specifiers) String() string {
	parts := make([]string, len(s))
	for i, spec := range s {
		parts[i] = string(spec.Operator) + spec.Raw
	}
	return strings.Join(parts, ",")
}
