// Copyright 2025 Google LLC
// SPDX-License-Identifier: Apache-2.0

// Package metadata provides the per-resolve metadata provider: fetching and
// memoising a package's version listing and its Core Metadata.
package metadata

import (
	"io"

	"github.com/pkg/errors"

	"github.com/pep-run/pep/pkg/archive"
	"github.com/pep-run/pep/pkg/pypi/pep440"
	"github.com/pep-run/pep/pkg/pypi/pep508"
)

// CoreMetadata is the parsed PEP 566/643 "Metadata-2.x" format found in a
// wheel's *.dist-info/METADATA or an sdist's PKG-INFO.
type CoreMetadata struct {
	Name            string
	Version         pep440.Version
	RequiresPython  string
	RequiresDistRaw []string
	ProvidesExtra   []string
	raw             *archive.RFC822Message
}

// ParseCoreMetadata parses r as a Core Metadata document.
func ParseCoreMetadata(r io.Reader) (*CoreMetadata, error) {
	msg, err := archive.ParseRFC822(r)
	if err != nil {
		return nil, errors.Wrap(err, "parsing core metadata")
	}
	name, ok := msg.Get("Name")
	if !ok {
		return nil, errors.New("core metadata missing Name field")
	}
	verStr, ok := msg.Get("Version")
	if !ok {
		return nil, errors.New("core metadata missing Version field")
	}
	ver, err := pep440.Parse(verStr)
	if err != nil {
		return nil, errors.Wrapf(err, "parsing version in core metadata for %q", name)
	}
	reqPython, _ := msg.Get("Requires-Python")
	return &CoreMetadata{
		Name:            name,
		Version:         ver,
		RequiresPython:  reqPython,
		RequiresDistRaw: msg.GetAll("Requires-Dist"),
		ProvidesExtra:   msg.GetAll("Provides-Extra"),
		raw:             msg,
	}, nil
}

// RequiresDist parses every Requires-Dist line into a Requirement.
func (m *CoreMetadata) RequiresDist() ([]pep508.Requirement, error) {
	out := make([]pep508.Requirement, 0, len(m.RequiresDistRaw))
	for _, line := range m.RequiresDistRaw {
		req, err := pep508.ParseRequirement(line)
		if err != nil {
			return nil, errors.Wrapf(err, "parsing Requires-Dist %q for %s %s", line, m.Name, m.Version)
		}
		out = append(out, req)
	}
	return out, nil
}

// SimplifyExtras filters RequiresDist to the requirements that apply given
// the set of extras the resolver has activated for this package, per
// spec.md §4.3's "applying simplify_extras(active_extras)". A requirement
// with no marker, or whose marker is satisfied either with no extra active
// or with any one of activeExtras active, is included.
func (m *CoreMetadata) SimplifyExtras(activeExtras []string, env pep508.Environment) ([]pep508.Requirement, error) {
	reqs, err := m.RequiresDist()
	if err != nil {
		return nil, err
	}
	var out []pep508.Requirement
	for _, req := range reqs {
		if req.Marker == nil {
			out = append(out, req)
			continue
		}
		base := env
		base.Extra = ""
		if req.Marker.Evaluate(base) {
			out = append(out, req)
			continue
		}
		for _, extra := range activeExtras {
			withExtra := env
			withExtra.Extra = extra
			if req.Marker.Evaluate(withExtra) {
				out = append(out, req)
				break
			}
		}
	}
	return out, nil
}
