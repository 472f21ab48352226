// Copyright 2025 Google LLC
// SPDX-License-Identifier: Apache-2.0

package distname

import (
	"strings"

	"github.com/pkg/errors"
	"github.com/pep-run/pep/pkg/pypi/name"
	"github.com/pep-run/pep/pkg/pypi/pep440"
)

// WheelName is the parsed form of a ".whl" filename:
// {distribution}-{version}-[{build}-]{pythontag}-{abitag}-{platformtag}.whl
type WheelName struct {
	Distribution string
	Version      pep440.Version
	Build        BuildTag
	PyTags       []string
	AbiTags      []string
	PlatformTags []string
}

// Tags returns the cross product of (python-tag, abi-tag, platform-tag)
// triples this wheel declares compatibility with.
func (w WheelName) Tags() []Tag {
	var out []Tag
	for _, py := range w.PyTags {
		for _, abi := range w.AbiTags {
			for _, plat := range w.PlatformTags {
				out = append(out, Tag{Python: py, ABI: abi, Platform: plat})
			}
		}
	}
	return out
}

// Tag is a single (python-tag, abi-tag, platform-tag) compatibility triple.
type Tag struct {
	Python   string
	ABI      string
	Platform string
}

// CompatibleTags reports whether any tag in fileTags matches a tag in
// targetTags, per PEP 425's tag-set intersection rule. An empty fileTags
// (e.g. an sdist, which declares no tags) is always compatible.
func CompatibleTags(fileTags, targetTags []Tag) bool {
	if len(fileTags) == 0 {
		return true
	}
	for _, ft := range fileTags {
		for _, tt := range targetTags {
			if ft == tt {
				return true
			}
		}
	}
	return false
}

// ParseWheelName parses a wheel filename. If expectedName is non-empty, the
// parsed distribution's normalized form must match it.
func ParseWheelName(filename, expectedName string) (WheelName, error) {
	const ext = ".whl"
	if !strings.HasSuffix(filename, ext) {
		return WheelName{}, errors.Errorf("not a wheel filename: %q", filename)
	}
	stem := strings.TrimSuffix(filename, ext)
	parts := strings.Split(stem, "-")
	if len(parts) < 5 {
		return WheelName{}, errors.Errorf("malformed wheel filename: %q", filename)
	}
	var dist, verStr, buildStr string
	var tail []string
	if len(parts) == 5 {
		dist, verStr = parts[0], parts[1]
		tail = parts[2:]
	} else {
		dist, verStr, buildStr = parts[0], parts[1], parts[2]
		tail = parts[3:]
		// A build tag must start with a digit; if it doesn't, this wasn't a
		// build tag but part of a hyphenated distribution/version — reject
		// rather than silently misparse.
		if buildStr != "" && !(buildStr[0] >= '0' && buildStr[0] <= '9') {
			return WheelName{}, errors.Errorf("malformed wheel filename: %q", filename)
		}
	}
	if len(tail) != 3 {
		return WheelName{}, errors.Errorf("malformed wheel filename: %q", filename)
	}
	if expectedName != "" && name.Normalize(dist) != name.Normalize(expectedName) {
		return WheelName{}, errors.Errorf("wheel distribution %q does not match expected %q", dist, expectedName)
	}
	v, err := pep440.Parse(verStr)
	if err != nil {
		return WheelName{}, errors.Wrapf(err, "parsing wheel version in %q", filename)
	}
	w := WheelName{
		Distribution: dist,
		Version:      v,
		PyTags:       strings.Split(tail[0], "."),
		AbiTags:      strings.Split(tail[1], "."),
		PlatformTags: strings.Split(tail[2], "."),
	}
	if buildStr != "" {
		bt, err := ParseBuildTag(buildStr)
		if err != nil {
			return WheelName{}, errors.Wrapf(err, "parsing build tag in %q", filename)
		}
		w.Build = bt
	}
	return w, nil
}

func (w WheelName) String() string {
	var b strings.Builder
	b.WriteString(w.Distribution)
	b.WriteByte('-')
	b.WriteString(w.Version.String())
	if w.Build.Present() {
		b.WriteByte('-')
		b.WriteString(w.Build.String())
	}
	b.WriteByte('-')
	b.WriteString(strings.Join(w.PyTags, "."))
	b.WriteByte('-')
	b.WriteString(strings.Join(w.AbiTags, "."))
	b.WriteByte('-')
	b.WriteString(strings.Join(w.PlatformTags, "."))
	b.WriteString(".whl")
	return b.String()
}

// SdistExtensions enumerates valid source-distribution file extensions. No
// entry is a suffix of another, so at most one matches a filename.
var SdistExtensions = []string{".tar.gz", ".tar.bz2", ".tar.xz", ".tar.zst", ".zip"}

// SdistName is the parsed form of an sdist filename: {distribution}-{version}.{ext}
type SdistName struct {
	Distribution string
	Version      pep440.Version
	Ext          string
}

// ParseSdistName parses a source distribution filename.
func ParseSdistName(filename, expectedName string) (SdistName, error) {
	var ext, stem string
	for _, e := range SdistExtensions {
		if strings.HasSuffix(filename, e) {
			ext = e
			stem = strings.TrimSuffix(filename, e)
			break
		}
	}
	if ext == "" {
		return SdistName{}, errors.Errorf("unrecognized sdist extension: %q", filename)
	}
	idx := strings.LastIndex(stem, "-")
	if idx < 0 {
		return SdistName{}, errors.Errorf("malformed sdist filename: %q", filename)
	}
	dist, verStr := stem[:idx], stem[idx+1:]
	if expectedName != "" && name.Normalize(dist) != name.Normalize(expectedName) {
		return SdistName{}, errors.Errorf("sdist distribution %q does not match expected %q", dist, expectedName)
	}
	v, err := pep440.Parse(verStr)
	if err != nil {
		return SdistName{}, errors.Wrapf(err, "parsing sdist version in %q", filename)
	}
	return SdistName{Distribution: dist, Version: v, Ext: ext}, nil
}

func (s SdistName) String() string {
	return s.Distribution + "-" + s.Version.String() + s.Ext
}
