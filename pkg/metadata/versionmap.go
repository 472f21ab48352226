// Copyright 2025 Google LLC
// SPDX-License-Identifier: Apache-2.0

package metadata

import (
	"sort"
	"strconv"
	"strings"

	"github.com/pep-run/pep/pkg/pypi/distname"
	"github.com/pep-run/pep/pkg/pypi/pep440"
	"github.com/pep-run/pep/pkg/registry/simple"
)

// CompatibleFile is a Simple API file entry annotated with its parsed
// filename, attached during VersionMap construction so downstream callers
// never reparse it.
type CompatibleFile struct {
	simple.File
	Version pep440.Version
	Wheel   *distname.WheelName
	Sdist   *distname.SdistName
}

// IsWheel reports whether this file is a built wheel rather than an sdist.
func (f CompatibleFile) IsWheel() bool { return f.Wheel != nil }

// VersionMap groups a project's compatible files by version, per spec.md
// §4.3. Versions are listed newest-first.
type VersionMap struct {
	Name     string
	Versions []pep440.Version
	Files    map[string][]CompatibleFile // keyed by Version.String()
}

// BuildOptions configures which files VersionMap attaches.
type BuildOptions struct {
	RequiresPython pep440.Range
	Tags           []distname.Tag
	// Pinned marks versions that must be retained even if yanked, because
	// the user pinned them directly or a lock already selected them.
	Pinned map[string]bool
}

// BuildVersionMap computes a VersionMap from a Simple API listing per
// spec.md §4.3(a)-(d): a file is attached if its filename parses, its
// requires-python (if any) intersects opts.RequiresPython, it is not
// yanked (unless pinned), and its tags are compatible (sdists always are).
func BuildVersionMap(meta *simple.SimpleMetadata, opts BuildOptions) *VersionMap {
	vm := &VersionMap{Name: meta.Name, Files: map[string][]CompatibleFile{}}
	seen := map[string]bool{}
	for _, f := range meta.Files {
		cf, ok := attachFile(f, opts)
		if !ok {
			continue
		}
		key := cf.Version.String()
		if !seen[key] {
			seen[key] = true
			vm.Versions = append(vm.Versions, cf.Version)
		}
		vm.Files[key] = append(vm.Files[key], cf)
	}
	sort.Slice(vm.Versions, func(i, j int) bool { return pep440.Compare(vm.Versions[i], vm.Versions[j]) > 0 })
	return vm
}

func attachFile(f simple.File, opts BuildOptions) (CompatibleFile, bool) {
	var cf CompatibleFile
	cf.File = f
	if strings.HasSuffix(f.Filename, ".whl") {
		w, err := distname.ParseWheelName(f.Filename, "")
		if err != nil {
			return CompatibleFile{}, false
		}
		cf.Wheel = &w
		cf.Version = w.Version
		if !distname.CompatibleTags(w.Tags(), opts.Tags) {
			return CompatibleFile{}, false
		}
	} else {
		s, err := distname.ParseSdistName(f.Filename, "")
		if err != nil {
			return CompatibleFile{}, false
		}
		cf.Sdist = &s
		cf.Version = s.Version
	}
	if f.RequiresPython != "" {
		specs, err := pep440.ParseSpecifiers(f.RequiresPython)
		if err != nil {
			return CompatibleFile{}, false
		}
		fileRange := pep440.Compile(specs)
		if opts.RequiresPython.Intersect(fileRange).IsEmpty(pythonVersionLadder) {
			return CompatibleFile{}, false
		}
	}
	if f.Yanked != nil && !opts.Pinned[cf.Version.String()] {
		return CompatibleFile{}, false
	}
	return cf, true
}

// pythonVersionLadder is the set of released CPython minor versions used to
// decide requires-python range intersection, since pep440.Range is a
// membership predicate with no enumerable interval form: two ranges
// "intersect" here if they share a member among the versions Python
// actually shipped.
var pythonVersionLadder = buildPythonVersionLadder()

func buildPythonVersionLadder() []pep440.Version {
	var out []pep440.Version
	for minor := 0; minor <= 14; minor++ {
		v, err := pep440.Parse("3." + strconv.Itoa(minor))
		if err == nil {
			out = append(out, v)
		}
	}
	return out
}
