// Copyright 2025 Google LLC
// SPDX-License-Identifier: Apache-2.0

package resolver

import (
	"github.com/pep-run/pep/pkg/pypi/pep440"
	"github.com/pep-run/pep/pkg/pypi/pep508"
)

// Pin is one resolved (package, version), annotated with the URL it was
// pinned to (if any) and the markers under which it is relevant.
type Pin struct {
	Name    string
	Version pep440.Version
	Extras  []string
	URL     string
	Markers []pep508.Marker
}

// Resolution is the resolver's output: a flat, deduplicated pin set ready
// for pkg/planner, plus bookkeeping carried through for lock emission.
type Resolution struct {
	Pins         map[string]*Pin // keyed by normalized name
	KnownMarkers KnownMarkers
}

func newResolution() *Resolution {
	return &Resolution{Pins: map[string]*Pin{}, KnownMarkers: KnownMarkers{}}
}

func (r *Resolution) merge(pkgName string, v pep440.Version, url string, extras []string, markers []pep508.Marker) {
	p, ok := r.Pins[pkgName]
	if !ok {
		p = &Pin{Name: pkgName, Version: v, URL: url, Extras: extras, Markers: markers}
		r.Pins[pkgName] = p
		return
	}
	p.Extras = extras
	p.Markers = markers
}
