// Copyright 2025 Google LLC
// SPDX-License-Identifier: Apache-2.0

// Package planner classifies a resolution against a site-packages
// directory into the Reinstall/Installed/Cached/Remote/extraneous buckets
// described in spec.md §4.5.
package planner

import (
	"github.com/pep-run/pep/pkg/distdb"
	"github.com/pep-run/pep/pkg/pypi/name"
	"github.com/pep-run/pep/pkg/pypi/pep440"
	"github.com/pep-run/pep/pkg/sitepkgs"
)

// Reinstall selects which resolved packages must be reinstalled
// regardless of what is already present, per spec.md §4.5 step 1.
type Reinstall struct {
	All      bool
	Packages map[string]bool // normalized names
}

func (r Reinstall) wants(normalizedName string) bool {
	return r.All || r.Packages[normalizedName]
}

// Entry is one resolved distribution to classify. It is exactly the shape
// pkg/distdb.Dist already carries (Name, Version, URL, the selected
// registry File for cache-key purposes), reused here so the planner's
// output can be fed straight into the preparer without translation.
type Entry = distdb.Dist

// Plan is the planner's output: spec.md §4.5's four classified sets plus
// extraneous installed distributions found outside the resolution.
type Plan struct {
	Reinstalls []Entry
	Installed  []Entry
	Cached     []CachedEntry
	Remote     []Entry
	Extraneous []sitepkgs.Dist
}

// CachedEntry is a Remote entry the distribution database already has
// unpacked, so the preparer can skip straight to install.
type CachedEntry struct {
	Entry
	Wheel distdb.LocalWheel
}

// Peeker reports whether a Dist's wheel is already materialized in the
// archive bucket, satisfied by *distdb.DB.
type Peeker interface {
	Peek(d distdb.Dist) (distdb.LocalWheel, bool)
}

// Plan classifies entries against installed (from sitepkgs.Index) and the
// distribution database's cache, per spec.md §4.5. prune includes
// everything in installed that entries does not mention as Extraneous;
// leave it false for an ordinary install/sync that should never delete
// unrelated packages.
func Plan(entries []Entry, installed map[string]sitepkgs.Dist, reinstall Reinstall, peek Peeker, prune bool) *Plan {
	plan := &Plan{}
	seen := map[string]bool{}
	for _, e := range entries {
		key := name.Normalize(e.Name)
		seen[key] = true
		switch {
		case reinstall.wants(key):
			plan.Reinstalls = append(plan.Reinstalls, e)
		case isInstalled(e, installed[key]):
			plan.Installed = append(plan.Installed, e)
		default:
			classifyRemote(e, peek, plan)
		}
	}
	if prune {
		for key, dist := range installed {
			if !seen[key] {
				plan.Extraneous = append(plan.Extraneous, dist)
			}
		}
	}
	return plan
}

// isInstalled implements spec.md §4.5 step 2: a compatible installation
// exists when the name and version match, and — for a URL source — the
// recorded origin matches too. Locked-registry entries where the
// installed version is merely "any version ≤ the resolved one" are left
// to the caller's upgrade policy: Plan always requires an exact version
// match, since spec.md's "≤" clause only applies when the caller has not
// requested an upgrade, which Plan has no visibility into beyond the
// resolved Entry it was given (the caller resolves to the version it
// wants kept, and only passes a lower resolved version when that is the
// intended outcome).
func isInstalled(e Entry, dist sitepkgs.Dist) bool {
	if dist.Name == "" {
		return false
	}
	if dist.EggInfoFile != "" {
		return pep440.Compare(e.Version, dist.Version) == 0
	}
	if pep440.Compare(e.Version, dist.Version) != 0 {
		return false
	}
	if e.URL != "" {
		return e.URL == dist.URL
	}
	return true
}

func classifyRemote(e Entry, peek Peeker, plan *Plan) {
	if peek != nil {
		if d, ok := peek.Peek(e); ok {
			plan.Cached = append(plan.Cached, CachedEntry{Entry: e, Wheel: d})
			return
		}
	}
	plan.Remote = append(plan.Remote, e)
}
