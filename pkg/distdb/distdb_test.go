// Copyright 2025 Google LLC
// SPDX-License-Identifier: Apache-2.0

package distdb

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"compress/gzip"
	"context"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/pep-run/pep/pkg/build"
	"github.com/pep-run/pep/pkg/cache"
	"github.com/pep-run/pep/pkg/metadata"
	"github.com/pep-run/pep/pkg/pypi/digest"
	"github.com/pep-run/pep/pkg/pypi/pep440"
	"github.com/pep-run/pep/pkg/registry/simple"
)

func buildTestWheelBytes(t *testing.T, distInfo, metadataBody string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create(distInfo + "/METADATA")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := w.Write([]byte(metadataBody)); err != nil {
		t.Fatal(err)
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

type fakeIndex struct {
	streamBody []byte
}

func (f *fakeIndex) Simple(ctx context.Context, name string) (*simple.SimpleMetadata, error) {
	return nil, nil
}

func (f *fakeIndex) WheelMetadata(ctx context.Context, file simple.File) ([]byte, error) {
	return nil, nil
}

func (f *fakeIndex) Stream(ctx context.Context, url string) (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(f.streamBody)), nil
}

func newTestBuckets(t *testing.T) *cache.Buckets {
	t.Helper()
	return cache.NewBuckets(t.TempDir())
}

func TestGetWheelFromRegistryUnpacksAndCaches(t *testing.T) {
	wheel := buildTestWheelBytes(t, "pkg-1.0.dist-info", "Metadata-Version: 2.1\nName: pkg\nVersion: 1.0\n")
	db := &DB{Cache: newTestBuckets(t), Index: &fakeIndex{streamBody: wheel}}
	d := Dist{
		Kind: KindRegistry,
		Name: "pkg",
		File: simple.File{Filename: "pkg-1.0-py3-none-any.whl", URL: "https://example.com/pkg-1.0-py3-none-any.whl"},
	}
	lw, hashes, err := db.Get(context.Background(), d, nil, digest.Verify)
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if len(hashes) == 0 {
		t.Error("expected computed hashes")
	}
	if _, err := os.Stat(filepath.Join(lw.Path, "pkg-1.0.dist-info", "METADATA")); err != nil {
		t.Errorf("unpacked METADATA missing: %v", err)
	}

	// Second call should hit the wheel pointer cache and return the same
	// archive directory without a further Stream call.
	db.Index = &fakeIndex{streamBody: nil}
	lw2, _, err := db.Get(context.Background(), d, nil, digest.Verify)
	if err != nil {
		t.Fatalf("Get (cached) error: %v", err)
	}
	if lw2.Path != lw.Path {
		t.Errorf("expected cached archive path %q, got %q", lw.Path, lw2.Path)
	}
}

func TestGetHashMismatchFails(t *testing.T) {
	wheel := buildTestWheelBytes(t, "pkg-1.0.dist-info", "Metadata-Version: 2.1\nName: pkg\nVersion: 1.0\n")
	db := &DB{Cache: newTestBuckets(t), Index: &fakeIndex{streamBody: wheel}}
	d := Dist{
		Kind: KindRegistry,
		Name: "pkg",
		File: simple.File{Filename: "pkg-1.0-py3-none-any.whl", URL: "https://example.com/pkg-1.0-py3-none-any.whl"},
	}
	want := digest.Hashes{{Algorithm: digest.SHA256, Hex: "0000000000000000000000000000000000000000000000000000000000000000"[:64]}}
	_, _, err := db.Get(context.Background(), d, want, digest.Require)
	if _, ok := err.(*HashMismatchError); !ok {
		t.Fatalf("expected *HashMismatchError, got %v (%T)", err, err)
	}
}

func TestGetSdistNoBuildPolicy(t *testing.T) {
	db := &DB{Cache: newTestBuckets(t), AllowBuild: false}
	d := Dist{Kind: KindRegistry, Name: "pkg", Version: mustParseVersion(t, "1.0"), File: simple.File{Filename: "pkg-1.0.tar.gz", URL: "https://example.com/pkg-1.0.tar.gz"}}
	_, _, err := db.Get(context.Background(), d, nil, digest.Disabled)
	bf, ok := err.(*BuildFailure)
	if !ok {
		t.Fatalf("expected *BuildFailure, got %v", err)
	}
	if bf.Kind != NoBuild {
		t.Errorf("Kind = %v, want NoBuild", bf.Kind)
	}
}

// fakeBuildContext builds a trivial wheel by writing a fixed METADATA into
// the requested output directory, standing in for an actual PEP 517
// frontend so the build pipeline can be exercised without a Python
// toolchain.
type fakeBuildContext struct {
	wheelBytes []byte
	filename   string
}

func (f *fakeBuildContext) SetupBuild(ctx context.Context, source fs.FS, subdir, distName string) (build.SourceBuild, error) {
	return &fakeSourceBuild{wheelBytes: f.wheelBytes, filename: f.filename}, nil
}

type fakeSourceBuild struct {
	wheelBytes []byte
	filename   string
}

func (f *fakeSourceBuild) Wheel(ctx context.Context, outDir string) (string, error) {
	return f.filename, os.WriteFile(filepath.Join(outDir, f.filename), f.wheelBytes, 0o644)
}

func (f *fakeSourceBuild) Metadata(ctx context.Context) (metadata.CoreMetadata, bool, error) {
	return metadata.CoreMetadata{}, false, nil
}

func TestGetSdistBuildsAndCachesManifest(t *testing.T) {
	wheel := buildTestWheelBytes(t, "pkg-1.0.dist-info", "Metadata-Version: 2.1\nName: pkg\nVersion: 1.0\n")
	var sdistBuf bytes.Buffer
	gzw := gzip.NewWriter(&sdistBuf)
	tw := tar.NewWriter(gzw)
	setupPy := []byte("from setuptools import setup\nsetup()\n")
	if err := tw.WriteHeader(&tar.Header{Name: "setup.py", Typeflag: tar.TypeReg, Mode: 0o644, Size: int64(len(setupPy))}); err != nil {
		t.Fatal(err)
	}
	if _, err := tw.Write(setupPy); err != nil {
		t.Fatal(err)
	}
	if err := tw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := gzw.Close(); err != nil {
		t.Fatal(err)
	}
	sdist := sdistBuf.Bytes()
	builds := 0
	db := &DB{
		Cache:      newTestBuckets(t),
		Index:      &fakeIndex{streamBody: sdist},
		AllowBuild: true,
		Builder: &countingBuildContext{
			inner: &fakeBuildContext{wheelBytes: wheel, filename: "pkg-1.0-py3-none-any.whl"},
			count: &builds,
		},
	}
	d := Dist{Kind: KindRegistry, Name: "pkg", Version: mustParseVersion(t, "1.0"), File: simple.File{Filename: "pkg-1.0.tar.gz", URL: "https://example.com/pkg-1.0.tar.gz"}}

	if _, _, err := db.Get(context.Background(), d, nil, digest.Disabled); err != nil {
		t.Fatalf("first Get error: %v", err)
	}
	if _, _, err := db.Get(context.Background(), d, nil, digest.Disabled); err != nil {
		t.Fatalf("second Get error: %v", err)
	}
	if builds != 1 {
		t.Errorf("expected exactly one build invocation, got %d", builds)
	}
}

type countingBuildContext struct {
	inner build.Context
	count *int
}

func (c *countingBuildContext) SetupBuild(ctx context.Context, source fs.FS, subdir, distName string) (build.SourceBuild, error) {
	*c.count++
	return c.inner.SetupBuild(ctx, source, subdir, distName)
}

func mustParseVersion(t *testing.T, s string) pep440.Version {
	t.Helper()
	v, err := pep440.Parse(s)
	if err != nil {
		t.Fatal(err)
	}
	return v
}
