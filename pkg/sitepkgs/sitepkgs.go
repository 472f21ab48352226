// Copyright 2025 Google LLC
// SPDX-License-Identifier: Apache-2.0

// Package sitepkgs indexes an installed site-packages directory: the
// `SitePackages` index spec.md §4.5 and §4.8 read from and write to,
// generalizing the original source's directory-scan local index to this
// module's installer/uninstaller/planner.
package sitepkgs

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"github.com/pep-run/pep/pkg/metadata"
	"github.com/pep-run/pep/pkg/pypi/name"
	"github.com/pep-run/pep/pkg/pypi/pep440"
)

// Dist is one distribution already present in a site-packages directory.
type Dist struct {
	Name    string
	Version pep440.Version
	// URL is the origin recorded in direct_url.json, if this distribution
	// was installed from a URL/Git/local source rather than a registry.
	URL string
	// DistInfoDir is the absolute path to the distribution's ".dist-info"
	// directory.
	DistInfoDir string
	// EggInfoFile is set when this distribution was installed as a
	// file-form ".egg-info" (no directory, no RECORD), which the
	// uninstaller must refuse per spec.md §4.8.
	EggInfoFile string
}

// directURL mirrors the subset of direct_url.json this module inspects.
// See https://packaging.python.org/en/latest/specifications/direct-url/.
type directURL struct {
	URL string `json:"url"`
}

// Index scans root for installed distributions: every "*.dist-info"
// directory and every "*.egg-info" path (file or directory) at the top
// level, keyed by normalized project name.
func Index(root string) (map[string]Dist, error) {
	entries, err := os.ReadDir(root)
	if os.IsNotExist(err) {
		return map[string]Dist{}, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "reading site-packages directory %q", root)
	}
	dists := map[string]Dist{}
	for _, entry := range entries {
		full := filepath.Join(root, entry.Name())
		switch {
		case entry.IsDir() && strings.HasSuffix(entry.Name(), ".dist-info"):
			d, err := readDistInfo(full)
			if err != nil {
				return nil, err
			}
			dists[name.Normalize(d.Name)] = d
		case strings.HasSuffix(entry.Name(), ".egg-info") && !entry.IsDir():
			projectName, version := parseEggInfoFilename(entry.Name())
			dists[name.Normalize(projectName)] = Dist{
				Name:        projectName,
				Version:     version,
				EggInfoFile: full,
			}
		case entry.IsDir() && strings.HasSuffix(entry.Name(), ".egg-info"):
			d, err := readDistInfo(full)
			if err != nil {
				return nil, err
			}
			d.DistInfoDir = full
			dists[name.Normalize(d.Name)] = d
		}
	}
	return dists, nil
}

func readDistInfo(dir string) (Dist, error) {
	f, err := os.Open(filepath.Join(dir, "METADATA"))
	if err != nil {
		f, err = os.Open(filepath.Join(dir, "PKG-INFO"))
	}
	if err != nil {
		return Dist{}, errors.Wrapf(err, "reading metadata for installed distribution %q", dir)
	}
	defer f.Close()
	meta, err := metadata.ParseCoreMetadata(f)
	if err != nil {
		return Dist{}, errors.Wrapf(err, "parsing metadata in %q", dir)
	}
	d := Dist{Name: meta.Name, Version: meta.Version, DistInfoDir: dir}
	if du, ok := readDirectURL(dir); ok {
		d.URL = du
	}
	return d, nil
}

func readDirectURL(distInfoDir string) (string, bool) {
	b, err := os.ReadFile(filepath.Join(distInfoDir, "direct_url.json"))
	if err != nil {
		return "", false
	}
	var du directURL
	if err := json.Unmarshal(b, &du); err != nil {
		return "", false
	}
	return du.URL, du.URL != ""
}

// parseEggInfoFilename splits "Foo-1.2.3.egg-info" into ("Foo", 1.2.3),
// falling back to a zero version if the suffix does not parse.
func parseEggInfoFilename(filename string) (string, pep440.Version) {
	stem := strings.TrimSuffix(filename, ".egg-info")
	idx := strings.LastIndex(stem, "-")
	if idx < 0 {
		return stem, pep440.Version{}
	}
	projectName, verStr := stem[:idx], stem[idx+1:]
	v, err := pep440.Parse(verStr)
	if err != nil {
		return stem, pep440.Version{}
	}
	return projectName, v
}
