// Copyright 2025 Google LLC
// SPDX-License-Identifier: Apache-2.0

// Package distname implements wheel and sdist filename parsing per PEP 427
// and PEP 491, including the PEP 427 build-tag tie-breaker.
package distname

import (
	"strconv"

	"github.com/pkg/errors"
)

// BuildTag is the optional build tag embedded in a wheel filename: must
// start with a digit, sorts as (digits, suffix) with "absent" sorting
// before any present tag.
type BuildTag struct {
	Digits  uint64
	Suffix  string
	present bool
}

// ParseBuildTag parses a build tag component (the part of the filename
// between the version and the python tag, when present).
func ParseBuildTag(s string) (BuildTag, error) {
	if s == "" {
		return BuildTag{}, errors.New("build tag must not be empty")
	}
	i := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	if i == 0 {
		return BuildTag{}, errors.Errorf("build tag %q must start with a digit", s)
	}
	n, err := strconv.ParseUint(s[:i], 10, 64)
	if err != nil {
		return BuildTag{}, errors.Wrapf(err, "parsing build tag digits in %q", s)
	}
	return BuildTag{Digits: n, Suffix: s[i:], present: true}, nil
}

// Present reports whether this BuildTag was actually specified in a
// filename (as opposed to the zero value, used for "no build tag").
func (b BuildTag) Present() bool {
	return b.present
}

// Compare implements the PEP 427 tie-breaker ordering: absent sorts first,
// then by digit run, then by suffix.
func (b BuildTag) Compare(other BuildTag) int {
	if b.present != other.present {
		if !b.present {
			return -1
		}
		return 1
	}
	if !b.present {
		return 0
	}
	if b.Digits != other.Digits {
		if b.Digits < other.Digits {
			return -1
		}
		return 1
	}
	switch {
	case b.Suffix < other.Suffix:
		return -1
	case b.Suffix > other.Suffix:
		return 1
	default:
		return 0
	}
}

func (b BuildTag) String() string {
	if !b.present {
		return ""
	}
	return strconv.FormatUint(b.Digits, 10) + b.Suffix
}
