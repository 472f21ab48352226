// Copyright 2025 Google LLC
// SPDX-License-Identifier: Apache-2.0

// Package uninstaller removes an installed distribution from a
// site-packages directory, per spec.md §4.8.
package uninstaller

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"

	"github.com/pep-run/pep/pkg/perr"
	"github.com/pep-run/pep/pkg/record"
	"github.com/pep-run/pep/pkg/sitepkgs"
)

// Result reports what Uninstall removed.
type Result struct {
	FilesRemoved int
	DirsRemoved  int
}

// Uninstall removes dist from purelib: every file RECORD lists, then the
// .dist-info directory itself, then any directory left empty by those
// removals. A file-form ".egg-info" install carries no RECORD, so it cannot
// be uninstalled safely and fails explicitly (spec.md §4.8).
func Uninstall(purelib string, dist sitepkgs.Dist) (Result, error) {
	if dist.EggInfoFile != "" {
		return Result{}, &perr.CannotUninstallEggInfoError{Name: dist.Name}
	}
	recordPath := filepath.Join(dist.DistInfoDir, "RECORD")
	f, err := os.Open(recordPath)
	if err != nil {
		return Result{}, errors.Wrapf(err, "reading RECORD for %s", dist.Name)
	}
	entries, err := record.Read(f)
	f.Close()
	if err != nil {
		return Result{}, err
	}

	var result Result
	dirs := map[string]bool{}
	for _, e := range entries {
		full := filepath.Join(purelib, filepath.FromSlash(e.Path))
		if err := os.Remove(full); err != nil && !os.IsNotExist(err) {
			return result, errors.Wrapf(err, "removing %s", full)
		} else if err == nil {
			result.FilesRemoved++
		}
		dirs[filepath.Dir(full)] = true
	}

	// Remove the dist-info directory itself, then walk newly-empty parent
	// directories outward in descending path-length order so a leaf
	// directory is always removed before the parent that depended on it
	// being gone.
	if err := os.RemoveAll(dist.DistInfoDir); err != nil {
		return result, errors.Wrapf(err, "removing %s", dist.DistInfoDir)
	}
	result.DirsRemoved += removeEmptyDirs(dirs, purelib)
	return result, nil
}

// removeEmptyDirs deletes every directory in dirs that is now empty and
// lies under root, deepest first so a child's removal can empty its
// parent in the same pass.
func removeEmptyDirs(dirs map[string]bool, root string) int {
	ordered := make([]string, 0, len(dirs))
	for d := range dirs {
		if d != root && strings.HasPrefix(d, root) {
			ordered = append(ordered, d)
		}
	}
	sort.Slice(ordered, func(i, j int) bool { return len(ordered[i]) > len(ordered[j]) })
	removed := 0
	for _, d := range ordered {
		for d != root && d != filepath.Dir(d) {
			entries, err := os.ReadDir(d)
			if err != nil || len(entries) > 0 {
				break
			}
			if err := os.Remove(d); err != nil {
				break
			}
			removed++
			d = filepath.Dir(d)
		}
	}
	return removed
}
