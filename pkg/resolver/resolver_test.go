// Copyright 2025 Google LLC
// SPDX-License-Identifier: Apache-2.0

package resolver

import (
	"context"
	"io"
	"testing"

	"github.com/pkg/errors"

	"github.com/pep-run/pep/pkg/metadata"
	"github.com/pep-run/pep/pkg/pypi/name"
	"github.com/pep-run/pep/pkg/pypi/pep440"
	"github.com/pep-run/pep/pkg/pypi/pep508"
	"github.com/pep-run/pep/pkg/registry/simple"
)

// fakeVersion describes one version of one project in the fake catalog.
type fakeVersion struct {
	requiresDist []string
	yanked       string // non-empty marks this version yanked
}

// fakeCatalog is the shared in-memory project/version table driving both
// the fake index (Simple listings) and the fake sdist metadata fetcher
// (Requires-Dist), keyed by normalized project name then version string.
type fakeCatalog map[string]map[string]fakeVersion

// fakeIndex is a simple.Client over a fakeCatalog; every file is an sdist,
// so VersionMap's wheel-tag compatibility check never excludes anything.
type fakeIndex struct {
	catalog fakeCatalog
}

func (f *fakeIndex) Simple(ctx context.Context, projectName string) (*simple.SimpleMetadata, error) {
	key := name.Normalize(projectName)
	meta := &simple.SimpleMetadata{Name: key}
	for v, fv := range f.catalog[key] {
		filename := key + "-" + v + ".tar.gz"
		var yanked *string
		if fv.yanked != "" {
			reason := fv.yanked
			yanked = &reason
		}
		meta.Files = append(meta.Files, simple.File{
			Filename: filename,
			URL:      "https://example.test/" + filename,
			Yanked:   yanked,
		})
	}
	return meta, nil
}

func (f *fakeIndex) WheelMetadata(ctx context.Context, file simple.File) ([]byte, error) {
	return nil, errors.New("fake index serves sdists only")
}

func (f *fakeIndex) Stream(ctx context.Context, url string) (io.ReadCloser, error) {
	return nil, errors.New("fake index never streams in these tests")
}

// fakeSdistFetcher implements metadata.SdistMetadataFetcher directly off
// the fakeCatalog, skipping any actual build (pkg/distdb is exercised by
// its own tests, not here).
type fakeSdistFetcher struct {
	catalog fakeCatalog
}

func (f *fakeSdistFetcher) FetchSdistMetadata(ctx context.Context, projectName string, sdist metadata.CompatibleFile) (*metadata.CoreMetadata, error) {
	key := name.Normalize(projectName)
	fv, ok := f.catalog[key][sdist.Version.String()]
	if !ok {
		return nil, errors.Errorf("fake catalog has no entry for %s %s", key, sdist.Version)
	}
	return &metadata.CoreMetadata{
		Name:            key,
		Version:         sdist.Version,
		RequiresDistRaw: fv.requiresDist,
	}, nil
}

func newFakeProvider(catalog fakeCatalog) *Provider {
	idx := &fakeIndex{catalog: catalog}
	return &Provider{
		Metadata: &metadata.Provider{
			Index: idx,
			DB:    &fakeSdistFetcher{catalog: catalog},
		},
		PythonVersion:   mustParseVersion("3.12"),
		Environment:     pep508.Environment{},
		Mode:            Highest,
		Prerelease:      IfNecessary,
		YankedAllowance: ExcludeYanked,
		Pinned:          map[string]bool{},
	}
}

func mustParseVersion(s string) pep440.Version {
	v, err := pep440.Parse(s)
	if err != nil {
		panic(err)
	}
	return v
}

func mustRequirement(t *testing.T, line string) pep508.Requirement {
	t.Helper()
	req, err := pep508.ParseRequirement(line)
	if err != nil {
		t.Fatalf("parsing requirement %q: %v", line, err)
	}
	return req
}

// TestSolveConflictingTransitiveConstraintsIsNoSolution exercises the
// conflict-derivation example in spec.md §8: two direct requirements pin
// a and b, whose transitive constraints on c are disjoint over c's only
// two available versions.
func TestSolveConflictingTransitiveConstraintsIsNoSolution(t *testing.T) {
	catalog := fakeCatalog{
		"a": {"1": {requiresDist: []string{"c>=2"}}},
		"b": {"1": {requiresDist: []string{"c<2"}}},
		"c": {
			"1": {},
			"2": {},
		},
	}
	provider := newFakeProvider(catalog)
	reqs := []pep508.Requirement{
		mustRequirement(t, "a==1"),
		mustRequirement(t, "b==1"),
	}
	r := New(provider, reqs)
	_, err := r.Solve(context.Background())
	if err == nil {
		t.Fatal("expected NoSolutionError, got nil")
	}
	if _, ok := err.(*NoSolutionError); !ok {
		t.Fatalf("expected *NoSolutionError, got %T: %v", err, err)
	}
}

// TestSolvePicksNextNonYankedVersion exercises spec.md §8's yanked-respect
// example: the newest version is yanked and unpinned, so resolution must
// fall back to the next-highest non-yanked version.
func TestSolvePicksNextNonYankedVersion(t *testing.T) {
	catalog := fakeCatalog{
		"anyio": {
			"4.0.0": {yanked: "broken release"},
			"3.9.0": {},
		},
	}
	provider := newFakeProvider(catalog)
	reqs := []pep508.Requirement{mustRequirement(t, "anyio")}
	r := New(provider, reqs)
	res, err := r.Solve(context.Background())
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}
	pin, ok := res.Pins["anyio"]
	if !ok {
		t.Fatal("expected a pin for anyio")
	}
	if pin.Version.String() != "3.9.0" {
		t.Fatalf("expected pin 3.9.0, got %s", pin.Version)
	}
}

// TestSolveSimpleDiamondDependency exercises ordinary unit propagation
// with no conflict: both direct dependents settle on the one version of
// their shared transitive dependency that satisfies both ranges.
func TestSolveSimpleDiamondDependency(t *testing.T) {
	catalog := fakeCatalog{
		"top":   {"1": {requiresDist: []string{"mid-a", "mid-b"}}},
		"mid-a": {"1": {requiresDist: []string{"shared>=1"}}},
		"mid-b": {"1": {requiresDist: []string{"shared<3"}}},
		"shared": {
			"1": {},
			"2": {},
			"3": {},
		},
	}
	provider := newFakeProvider(catalog)
	reqs := []pep508.Requirement{mustRequirement(t, "top")}
	r := New(provider, reqs)
	res, err := r.Solve(context.Background())
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}
	pin, ok := res.Pins["shared"]
	if !ok {
		t.Fatal("expected a pin for shared")
	}
	if pin.Version.String() != "2" {
		t.Fatalf("expected shared pinned at 2, got %s", pin.Version)
	}
}

// TestSolveActivatesExtraDependencies checks that a requirement's enabled
// extras fold the extra-gated Requires-Dist entries into the resolve, via
// Resolver.activeExtras rather than a virtual extra package.
func TestSolveActivatesExtraDependencies(t *testing.T) {
	catalog := fakeCatalog{
		"pkg": {"1": {requiresDist: []string{
			`optional-dep; extra == "speed"`,
		}}},
		"optional-dep": {"1": {}},
	}
	provider := newFakeProvider(catalog)
	reqs := []pep508.Requirement{mustRequirement(t, "pkg[speed]")}
	r := New(provider, reqs)
	res, err := r.Solve(context.Background())
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}
	if _, ok := res.Pins["optional-dep"]; !ok {
		t.Fatal("expected optional-dep to be pulled in by the speed extra")
	}
	pkgPin, ok := res.Pins["pkg"]
	if !ok {
		t.Fatal("expected a pin for pkg")
	}
	foundExtra := false
	for _, e := range pkgPin.Extras {
		if e == "speed" {
			foundExtra = true
		}
	}
	if !foundExtra {
		t.Fatalf("expected pkg's pin to record the speed extra, got %v", pkgPin.Extras)
	}
}

// TestSolveNoCandidateVersion checks that an unsatisfiable direct
// requirement (no version in range) surfaces as NoSolutionError rather
// than panicking or looping.
func TestSolveNoCandidateVersion(t *testing.T) {
	catalog := fakeCatalog{
		"only-one": {"1": {}},
	}
	provider := newFakeProvider(catalog)
	reqs := []pep508.Requirement{mustRequirement(t, "only-one>=2")}
	r := New(provider, reqs)
	_, err := r.Solve(context.Background())
	if err == nil {
		t.Fatal("expected an error, got nil")
	}
	if _, ok := err.(*NoSolutionError); !ok {
		t.Fatalf("expected *NoSolutionError, got %T: %v", err, err)
	}
}
