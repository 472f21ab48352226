// Copyright 2025 Google LLC
// SPDX-License-Identifier: Apache-2.0

// Package lockfile serializes a resolver.Resolution to and from YAML and
// JSON. It owns no semantics of its own: it is a pure encode/decode layer,
// per spec.md §0's "the core does not itself enforce a lockfile format"
// non-goal.
package lockfile

import (
	"encoding/json"
	"io"
	"sort"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/pep-run/pep/pkg/pypi/pep440"
	"github.com/pep-run/pep/pkg/resolver"
)

// Package is one locked distribution, in a shape that serializes cleanly
// to both YAML and JSON (pep440.Version is a struct and pep508.Marker an
// interface over several node types, neither MarshalText-friendly, so the
// lock stores their string forms directly).
type Package struct {
	Name    string   `yaml:"name" json:"name"`
	Version string   `yaml:"version" json:"version"`
	Extras  []string `yaml:"extras,omitempty" json:"extras,omitempty"`
	URL     string   `yaml:"url,omitempty" json:"url,omitempty"`
	Markers []string `yaml:"markers,omitempty" json:"markers,omitempty"`
}

// Lockfile is the on-disk resolution record.
type Lockfile struct {
	Version  int       `yaml:"version" json:"version"`
	Packages []Package `yaml:"packages" json:"packages"`
}

// FormatVersion is bumped whenever Lockfile's shape changes incompatibly.
const FormatVersion = 1

// FromResolution flattens res into a Lockfile, sorted by name for a
// deterministic, diff-friendly serialization.
func FromResolution(res *resolver.Resolution) *Lockfile {
	lf := &Lockfile{Version: FormatVersion}
	for _, pin := range res.Pins {
		pkg := Package{
			Name:    pin.Name,
			Version: pin.Version.String(),
			Extras:  append([]string(nil), pin.Extras...),
			URL:     pin.URL,
		}
		for _, m := range pin.Markers {
			pkg.Markers = append(pkg.Markers, m.String())
		}
		lf.Packages = append(lf.Packages, pkg)
	}
	sort.Slice(lf.Packages, func(i, j int) bool { return lf.Packages[i].Name < lf.Packages[j].Name })
	return lf
}

// Pins decodes a Lockfile back into the plain (name, version, extras, url)
// form pkg/planner consumes; it does not reconstruct a resolver.Resolution
// since KnownMarkers and the solver's internal bookkeeping do not survive
// a round trip and are not needed downstream of the lock.
type Pin struct {
	Name    string
	Version pep440.Version
	Extras  []string
	URL     string
}

// Pins parses each entry's version string back into a pep440.Version.
func (lf *Lockfile) Pins() ([]Pin, error) {
	pins := make([]Pin, 0, len(lf.Packages))
	for _, pkg := range lf.Packages {
		v, err := pep440.Parse(pkg.Version)
		if err != nil {
			return nil, errors.Wrapf(err, "parsing locked version for %q", pkg.Name)
		}
		pins = append(pins, Pin{Name: pkg.Name, Version: v, Extras: pkg.Extras, URL: pkg.URL})
	}
	return pins, nil
}

// EncodeYAML writes lf as YAML.
func EncodeYAML(w io.Writer, lf *Lockfile) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	defer enc.Close()
	return enc.Encode(lf)
}

// DecodeYAML reads a Lockfile from YAML.
func DecodeYAML(r io.Reader) (*Lockfile, error) {
	var lf Lockfile
	if err := yaml.NewDecoder(r).Decode(&lf); err != nil {
		return nil, errors.Wrap(err, "decoding lockfile YAML")
	}
	return &lf, nil
}

// EncodeJSON writes lf as indented JSON, for tooling that prefers it over
// YAML.
func EncodeJSON(w io.Writer, lf *Lockfile) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(lf)
}

// DecodeJSON reads a Lockfile from JSON.
func DecodeJSON(r io.Reader) (*Lockfile, error) {
	var lf Lockfile
	if err := json.NewDecoder(r).Decode(&lf); err != nil {
		return nil, errors.Wrap(err, "decoding lockfile JSON")
	}
	return &lf, nil
}
