// Copyright 2025 Google LLC
// SPDX-License-Identifier: Apache-2.0

// Package venv reads pyvenv.cfg and resolves a virtual environment's
// site-packages and scripts directories, per spec.md §6.
package venv

import (
	"bufio"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/pep-run/pep/pkg/perr"
)

// Config is a parsed pyvenv.cfg: "key = value" lines, not an INI file
// (no sections, no quoting).
type Config struct {
	Home                       string
	IncludeSystemSitePackages  bool
	Version                    string
	VersionMajor, VersionMinor int
	// Implementation names the tool that wrote this pyvenv.cfg ("virtualenv"
	// or "uv"), present as its own bare key rather than under "version".
	Implementation string
}

// Environment is a located virtual environment: its root directory and
// parsed pyvenv.cfg.
type Environment struct {
	Root   string
	Config Config
}

// Load reads "<root>/pyvenv.cfg" and resolves its interpreter version.
func Load(root string) (*Environment, error) {
	cfgPath := filepath.Join(root, "pyvenv.cfg")
	f, err := os.Open(cfgPath)
	if err != nil {
		return nil, &perr.IncompatibleVenvError{Reason: "missing pyvenv.cfg: " + err.Error()}
	}
	defer f.Close()

	cfg := Config{}
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key, value = strings.TrimSpace(key), strings.TrimSpace(value)
		switch key {
		case "home":
			cfg.Home = value
		case "include-system-site-packages":
			cfg.IncludeSystemSitePackages = strings.EqualFold(value, "true")
		case "version", "version_info":
			cfg.Version = value
			major, minor, err := parseVersion(value)
			if err == nil {
				cfg.VersionMajor, cfg.VersionMinor = major, minor
			}
		case "virtualenv", "uv":
			cfg.Implementation = key
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "reading pyvenv.cfg")
	}
	if cfg.VersionMajor == 0 {
		return nil, &perr.IncompatibleVenvError{Reason: "pyvenv.cfg has no usable version field"}
	}
	return &Environment{Root: root, Config: cfg}, nil
}

// parseVersion extracts the major.minor pair from a "3.12.1" or "3.12"
// version string.
func parseVersion(s string) (major, minor int, err error) {
	parts := strings.SplitN(s, ".", 3)
	if len(parts) < 2 {
		return 0, 0, errors.Errorf("unparseable interpreter version %q", s)
	}
	major, err = strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, err
	}
	minor, err = strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, err
	}
	return major, minor, nil
}

// Purelib returns the environment's site-packages directory, per spec.md
// §6: POSIX "<venv>/lib/python{M}.{m}/site-packages", Windows
// "<venv>/Lib/site-packages".
func (e *Environment) Purelib() string {
	if runtime.GOOS == "windows" {
		return filepath.Join(e.Root, "Lib", "site-packages")
	}
	pyDir := "python" + strconv.Itoa(e.Config.VersionMajor) + "." + strconv.Itoa(e.Config.VersionMinor)
	return filepath.Join(e.Root, "lib", pyDir, "site-packages")
}

// ScriptsDir returns the environment's executable-scripts directory, per
// spec.md §6: POSIX "<venv>/bin", Windows "<venv>/Scripts" (falling back
// to "<venv>/bin" under MSYS, and to the venv root itself for a conda
// environment, which has no separate Scripts directory of its own).
func (e *Environment) ScriptsDir() string {
	switch {
	case runtime.GOOS == "windows" && os.Getenv("MSYSTEM") != "":
		return filepath.Join(e.Root, "bin")
	case runtime.GOOS == "windows" && e.Config.Implementation == "":
		// No recognised implementation marker: treat as a conda-style
		// environment, whose executables sit at the environment root.
		if _, err := os.Stat(filepath.Join(e.Root, "Scripts")); err != nil {
			return e.Root
		}
		return filepath.Join(e.Root, "Scripts")
	case runtime.GOOS == "windows":
		return filepath.Join(e.Root, "Scripts")
	default:
		return filepath.Join(e.Root, "bin")
	}
}

// Python returns the path to the environment's interpreter.
func (e *Environment) Python() string {
	if runtime.GOOS == "windows" {
		return filepath.Join(e.ScriptsDir(), "python.exe")
	}
	return filepath.Join(e.ScriptsDir(), "python")
}
