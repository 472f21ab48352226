// Copyright 2025 Google LLC
// SPDX-License-Identifier: Apache-2.0

package build

import (
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"
)

func TestResolveBuildSystemReadsPyprojectToml(t *testing.T) {
	dir := t.TempDir()
	pyproject := `
[build-system]
requires = ["hatchling"]
build-backend = "hatchling.build"
`
	if err := os.WriteFile(filepath.Join(dir, "pyproject.toml"), []byte(pyproject), 0o644); err != nil {
		t.Fatal(err)
	}
	requires, backend, err := resolveBuildSystem(dir)
	if err != nil {
		t.Fatalf("resolveBuildSystem error: %v", err)
	}
	if backend != "hatchling.build" {
		t.Errorf("backend = %q", backend)
	}
	if len(requires) != 1 || requires[0] != "hatchling" {
		t.Errorf("requires = %v", requires)
	}
}

func TestResolveBuildSystemFallsBackToSetuptoolsLegacy(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "setup.py"), []byte("# setup.py"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, backend, err := resolveBuildSystem(dir)
	if err != nil {
		t.Fatalf("resolveBuildSystem error: %v", err)
	}
	if backend != defaultBuildBackend {
		t.Errorf("backend = %q, want %q", backend, defaultBuildBackend)
	}
}

func TestResolveBuildSystemMissingEntrypoint(t *testing.T) {
	dir := t.TempDir()
	_, _, err := resolveBuildSystem(dir)
	if _, ok := err.(*ErrMissingEntrypoint); !ok {
		t.Fatalf("expected ErrMissingEntrypoint, got %v", err)
	}
}

func TestCopyFSToDir(t *testing.T) {
	src := fstest.MapFS{
		"pyproject.toml":    &fstest.MapFile{Data: []byte("[build-system]\n"), Mode: 0o644},
		"src/pkg/__init__.py": &fstest.MapFile{Data: []byte(""), Mode: 0o644},
	}
	dest := t.TempDir()
	if err := copyFSToDir(src, dest); err != nil {
		t.Fatalf("copyFSToDir error: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dest, "pyproject.toml")); err != nil {
		t.Errorf("pyproject.toml missing: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dest, "src", "pkg", "__init__.py")); err != nil {
		t.Errorf("src/pkg/__init__.py missing: %v", err)
	}
}
