// Copyright 2025 Google LLC
// SPDX-License-Identifier: Apache-2.0

package resolver

import (
	"context"

	"github.com/pkg/errors"

	"github.com/pep-run/pep/pkg/metadata"
	"github.com/pep-run/pep/pkg/pypi/name"
	"github.com/pep-run/pep/pkg/pypi/pep440"
	"github.com/pep-run/pep/pkg/pypi/pep508"
)

// ResolutionMode picks among versions satisfying a package's current range,
// per spec.md §4.4 step 3.
type ResolutionMode int

const (
	Highest ResolutionMode = iota
	Lowest
	LowestDirect
)

// PrereleaseMode controls when a pre-release candidate is eligible.
type PrereleaseMode int

const (
	// IfNecessary allows a pre-release only when no stable version
	// satisfies the current range.
	IfNecessary PrereleaseMode = iota
	// Allow permits pre-releases unconditionally.
	Allow
	// Disallow never permits a pre-release even if no stable candidate
	// exists, failing the resolve instead.
	Disallow
)

// YankedAllowance controls whether a yanked version may still be selected.
type YankedAllowance int

const (
	// ExcludeYanked never selects a yanked version.
	ExcludeYanked YankedAllowance = iota
	// AllowPinnedYanked selects a yanked version only if it is explicitly
	// pinned (by the user's direct requirement or an existing lock).
	AllowPinnedYanked
)

// Provider is the resolver's dependency provider: it answers "what
// versions exist for this package" and "what does this (package, version)
// depend on", per spec.md §4.3/§4.4.
type Provider struct {
	Metadata *metadata.Provider

	// URLMetadata fetches Core Metadata for a URL/Git/path-pinned
	// package, bypassing the Simple API VersionMap entirely. name is the
	// normalized project name and url is the pin as encoded by termFor
	// (a bare archive URL, or "git+<repo>[@ref]" for a Git source);
	// callers typically back this with pkg/distdb.DB.GetMetadata after
	// classifying url the same way cmd/pep's pinToDist does.
	URLMetadata func(ctx context.Context, name, url string) (*metadata.CoreMetadata, error)

	PythonVersion pep440.Version
	Environment   pep508.Environment

	Mode            ResolutionMode
	Prerelease      PrereleaseMode
	YankedAllowance YankedAllowance

	// Pinned marks "project==version" keys (normalized name + "==" +
	// version string) that a lockfile or a user's exact pin already fixed,
	// making a yanked version for that key eligible for selection.
	Pinned map[string]bool

	// directPackages is populated once from the root requirements and
	// consulted by the candidate selector for LowestDirect.
	directPackages map[string]bool
}

// SetDirect records which package names are direct (root) requirements,
// for LowestDirect's root-vs-transitive distinction.
func (p *Provider) SetDirect(names []string) {
	p.directPackages = map[string]bool{}
	for _, n := range names {
		p.directPackages[name.Normalize(n)] = true
	}
}

func (p *Provider) isDirect(pkgName string) bool {
	return p.directPackages[name.Normalize(pkgName)]
}

// isPinned reports whether pkgName==v is pinned, allowing a yanked
// candidate through.
func (p *Provider) isPinned(pkgName string, v pep440.Version) bool {
	return p.Pinned[name.Normalize(pkgName)+"=="+v.String()]
}

func isPrerelease(v pep440.Version) bool {
	return v.Pre != nil || v.Dev != nil
}

// candidates returns pkg's full version list (newest-first) intersected
// with r, filtered by prerelease/yank policy, ordered per p.Mode.
func (p *Provider) candidates(ctx context.Context, pkg Package, r pep440.Range) ([]pep440.Version, error) {
	vm, err := p.Metadata.VersionMap(ctx, pkg.Name)
	if err != nil {
		return nil, errors.Wrapf(err, "listing versions for %s", pkg.Name)
	}

	var inRange []pep440.Version
	for _, v := range vm.Versions {
		if r.Contains(v) {
			inRange = append(inRange, v)
		}
	}

	stableExists := false
	for _, v := range inRange {
		if !isPrerelease(v) {
			stableExists = true
			break
		}
	}
	allowPre := p.Prerelease == Allow || (p.Prerelease == IfNecessary && !stableExists)

	var out []pep440.Version
	for _, v := range inRange {
		if isPrerelease(v) && !allowPre {
			continue
		}
		if p.isYanked(vm, v) && (p.YankedAllowance == ExcludeYanked || !p.isPinned(pkg.Name, v)) {
			continue
		}
		out = append(out, v)
	}

	direct := p.isDirect(pkg.Name)
	mode := p.Mode
	ascending := mode == Lowest || (mode == LowestDirect && direct)
	// vm.Versions is newest-first; reverse in place for ascending modes.
	if ascending {
		for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
			out[i], out[j] = out[j], out[i]
		}
	}
	return out, nil
}

func (p *Provider) isYanked(vm *metadata.VersionMap, v pep440.Version) bool {
	for _, f := range vm.Files[v.String()] {
		if f.Yanked != nil {
			return true
		}
	}
	return false
}

// dependencies returns pkg's parsed, extras-simplified requirements at v.
// URL/Git/path-pinned packages never go through the Simple API VersionMap,
// so they are routed through URLMetadata instead.
func (p *Provider) dependencies(ctx context.Context, pkg Package, v pep440.Version, activeExtras []string) ([]pep508.Requirement, error) {
	m, err := p.metadataFor(ctx, pkg, v)
	if err != nil {
		return nil, errors.Wrapf(err, "fetching metadata for %s %s", pkg.Name, v)
	}
	return m.SimplifyExtras(activeExtras, p.Environment)
}

func (p *Provider) metadataFor(ctx context.Context, pkg Package, v pep440.Version) (*metadata.CoreMetadata, error) {
	if pkg.URL != "" {
		if p.URLMetadata == nil {
			return nil, errors.Errorf("%s is pinned to a URL but no URL metadata source is configured", pkg.Name)
		}
		return p.URLMetadata(ctx, pkg.Name, pkg.URL)
	}
	return p.Metadata.Metadata(ctx, pkg.Name, v)
}

// resolveURLVersion returns the single version a URL/Git/path pin
// resolves to, by fetching its metadata.
func (p *Provider) resolveURLVersion(ctx context.Context, pkg Package) (pep440.Version, error) {
	m, err := p.metadataFor(ctx, pkg, pep440.Version{})
	if err != nil {
		return pep440.Version{}, err
	}
	return m.Version, nil
}
