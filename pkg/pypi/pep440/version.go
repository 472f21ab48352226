// Copyright 2025 Google LLC
// SPDX-License-Identifier: Apache-2.0

// Package pep440 implements PEP 440 version parsing, canonical ordering, and
// specifier-to-range compilation.
package pep440

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Version is a parsed PEP 440 version: (epoch, release-segments, pre?,
// post?, dev?, local?).
type Version struct {
	Epoch   int
	Release []int
	Pre     *PreRelease
	Post    *int
	Dev     *int
	Local   []LocalSegment
}

// PreRelease is the "a", "b", or "rc" pre-release marker and its number.
type PreRelease struct {
	Phase string // "a", "b", or "rc"
	N     int
}

// LocalSegment is one dot-separated piece of a local version (PEP 440
// +1.2.3 style suffixes), either numeric or alphanumeric.
type LocalSegment struct {
	Str     string
	Num     int
	IsDigit bool
}

var versionRE = regexp.MustCompile(`(?i)^\s*v?` +
	`(?:(?P<epoch>[0-9]+)!)?` +
	`(?P<release>[0-9]+(?:\.[0-9]+)*)` +
	`(?P<pre>[-_.]?(?P<pre_l>a|b|c|rc|alpha|beta|pre|preview)[-_.]?(?P<pre_n>[0-9]+)?)?` +
	`(?P<post>(?:-(?P<post_n1>[0-9]+))|(?:[-_.]?(?P<post_l>post|rev|r)[-_.]?(?P<post_n2>[0-9]+)?))?` +
	`(?P<dev>[-_.]?dev[-_.]?(?P<dev_n>[0-9]+)?)?` +
	`(?:\+(?P<local>[a-z0-9]+(?:[-_.][a-z0-9]+)*))?` +
	`\s*$`)

// Parse parses a PEP 440 version string.
func Parse(s string) (Version, error) {
	m := versionRE.FindStringSubmatch(s)
	if m == nil {
		return Version{}, errors.Errorf("invalid version: %q", s)
	}
	names := versionRE.SubexpNames()
	get := func(name string) string {
		for i, n := range names {
			if n == name {
				return m[i]
			}
		}
		return ""
	}
	var v Version
	if e := get("epoch"); e != "" {
		n, err := strconv.Atoi(e)
		if err != nil {
			return Version{}, errors.Wrap(err, "parsing epoch")
		}
		v.Epoch = n
	}
	for _, seg := range strings.Split(get("release"), ".") {
		n, err := strconv.Atoi(seg)
		if err != nil {
			return Version{}, errors.Wrap(err, "parsing release segment")
		}
		v.Release = append(v.Release, n)
	}
	if pl := get("pre_l"); pl != "" {
		phase := normalizePrePhase(pl)
		n := 0
		if pn := get("pre_n"); pn != "" {
			n, _ = strconv.Atoi(pn)
		}
		v.Pre = &PreRelease{Phase: phase, N: n}
	}
	if get("post") != "" {
		n := 0
		if pn := get("post_n1"); pn != "" {
			n, _ = strconv.Atoi(pn)
		} else if pn := get("post_n2"); pn != "" {
			n, _ = strconv.Atoi(pn)
		}
		post := n
		v.Post = &post
	}
	if get("dev") != "" {
		n := 0
		if dn := get("dev_n"); dn != "" {
			n, _ = strconv.Atoi(dn)
		}
		dev := n
		v.Dev = &dev
	}
	if l := get("local"); l != "" {
		v.Local = parseLocal(l)
	}
	return v, nil
}

func normalizePrePhase(s string) string {
	switch strings.ToLower(s) {
	case "alpha":
		return "a"
	case "beta":
		return "b"
	case "c", "pre", "preview":
		return "rc"
	default:
		return strings.ToLower(s)
	}
}

func parseLocal(s string) []LocalSegment {
	raw := regexp.MustCompile(`[-_.]`).Split(s, -1)
	segs := make([]LocalSegment, 0, len(raw))
	for _, r := range raw {
		if n, err := strconv.Atoi(r); err == nil {
			segs = append(segs, LocalSegment{Num: n, IsDigit: true})
		} else {
			segs = append(segs, LocalSegment{Str: strings.ToLower(r)})
		}
	}
	return segs
}

// String renders the canonical form of v per PEP 440 §"Normalization".
func (v Version) String() string {
	var b strings.Builder
	if v.Epoch != 0 {
		fmt.Fprintf(&b, "%d!", v.Epoch)
	}
	for i, seg := range v.Release {
		if i > 0 {
			b.WriteByte('.')
		}
		fmt.Fprintf(&b, "%d", seg)
	}
	if v.Pre != nil {
		fmt.Fprintf(&b, "%s%d", v.Pre.Phase, v.Pre.N)
	}
	if v.Post != nil {
		fmt.Fprintf(&b, ".post%d", *v.Post)
	}
	if v.Dev != nil {
		fmt.Fprintf(&b, ".dev%d", *v.Dev)
	}
	if len(v.Local) > 0 {
		b.WriteByte('+')
		for i, seg := range v.Local {
			if i > 0 {
				b.WriteByte('.')
			}
			if seg.IsDigit {
				fmt.Fprintf(&b, "%d", seg.Num)
			} else {
				b.WriteString(seg.Str)
			}
		}
	}
	return b.String()
}

// IsPreRelease reports whether v has a pre-release or dev component.
func (v Version) IsPreRelease() bool {
	return v.Pre != nil || v.Dev != nil
}

// IsLocal reports whether v carries a local-version segment.
func (v Version) IsLocal() bool {
	return len(v.Local) > 0
}

// Public returns v with any local segment stripped.
func (v Version) Public() Version {
	v.Local = nil
	return v
}

// Compare implements the PEP 440 total order: negative if v < other, zero if
// equal, positive if v > other. Local versions order lexicographically after
// the public part they extend.
func Compare(v, other Version) int {
	if c := v.Epoch - other.Epoch; c != 0 {
		return sign(c)
	}
	if c := compareReleases(v.Release, other.Release); c != 0 {
		return c
	}
	// A dev release with no pre- or post-release segment sorts before every
	// pre-release of the same release (1.0.dev0 < 1.0a1).
	devOnlyV := v.Pre == nil && v.Post == nil && v.Dev != nil
	devOnlyO := other.Pre == nil && other.Post == nil && other.Dev != nil
	if devOnlyV != devOnlyO {
		if devOnlyV {
			return -1
		}
		return 1
	}
	if c := comparePre(v.Pre, other.Pre); c != 0 {
		return c
	}
	if c := comparePost(v.Post, other.Post); c != 0 {
		return c
	}
	if c := compareDev(v.Dev, other.Dev); c != 0 {
		return c
	}
	return compareLocal(v.Local, other.Local)
}

func sign(n int) int {
	switch {
	case n < 0:
		return -1
	case n > 0:
		return 1
	default:
		return 0
	}
}

func compareReleases(a, b []int) int {
	n := len(a)
	if len(b) > n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		var av, bv int
		if i < len(a) {
			av = a[i]
		}
		if i < len(b) {
			bv = b[i]
		}
		if c := av - bv; c != 0 {
			return sign(c)
		}
	}
	return 0
}

// preRank orders: no pre-release > rc > b > a, matching PEP 440 (a final
// release is newer than any pre-release of the same release segment).
func preRank(p *PreRelease) int {
	if p == nil {
		return 3
	}
	switch p.Phase {
	case "a":
		return 0
	case "b":
		return 1
	case "rc":
		return 2
	default:
		return 0
	}
}

func comparePre(a, b *PreRelease) int {
	if ra, rb := preRank(a), preRank(b); ra != rb {
		return sign(ra - rb)
	}
	if a == nil || b == nil {
		return 0
	}
	return sign(a.N - b.N)
}

func comparePost(a, b *int) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	default:
		return sign(*a - *b)
	}
}

func compareDev(a, b *int) int {
	// No dev component sorts after any dev component of the same release.
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return 1
	case b == nil:
		return -1
	default:
		return sign(*a - *b)
	}
}

func compareLocal(a, b []LocalSegment) int {
	// Absence of a local version sorts before presence of one.
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	if len(a) == 0 {
		return -1
	}
	if len(b) == 0 {
		return 1
	}
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if c := compareLocalSegment(a[i], b[i]); c != 0 {
			return c
		}
	}
	return sign(len(a) - len(b))
}

func compareLocalSegment(a, b LocalSegment) int {
	if a.IsDigit && b.IsDigit {
		return sign(a.Num - b.Num)
	}
	if a.IsDigit != b.IsDigit {
		// Numeric segments sort after alphanumeric ones at the same position.
		if a.IsDigit {
			return 1
		}
		return -1
	}
	return strings.Compare(a.Str, b.Str)
}

// Equal reports whether v and other compare equal under Compare.
func Equal(v, other Version) bool {
	return Compare(v, other) == 0
}

// Less reports whether v sorts strictly before other.
func Less(v, other Version) bool {
	return Compare(v, other) < 0
}

// MustParse parses s, panicking on error; intended for tests and literals.
func MustParse(s string) Version {
	v, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return v
}
