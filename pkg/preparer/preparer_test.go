// Copyright 2025 Google LLC
// SPDX-License-Identifier: Apache-2.0

package preparer

import (
	"archive/zip"
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/pep-run/pep/pkg/archive"
	"github.com/pep-run/pep/pkg/archive/archivetest"
	"github.com/pep-run/pep/pkg/cache"
	"github.com/pep-run/pep/pkg/distdb"
	"github.com/pep-run/pep/pkg/planner"
	"github.com/pep-run/pep/pkg/registry/simple"
)

func buildTestWheelBytes(t *testing.T, distInfo, metadataBody string) []byte {
	t.Helper()
	buf, err := archivetest.ZipFile([]archive.ZipEntry{
		{
			FileHeader: &zip.FileHeader{Name: distInfo + "/METADATA"},
			Body:       []byte(metadataBody),
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

type fakeIndex struct {
	bodies map[string][]byte
}

func (f *fakeIndex) Simple(ctx context.Context, name string) (*simple.SimpleMetadata, error) {
	return nil, nil
}

func (f *fakeIndex) WheelMetadata(ctx context.Context, file simple.File) ([]byte, error) {
	return nil, nil
}

func (f *fakeIndex) Stream(ctx context.Context, url string) (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(f.bodies[url])), nil
}

type countingReporter struct {
	started, completed int
}

func (r *countingReporter) OnStart(distdb.Dist)           { r.started++ }
func (r *countingReporter) OnProgress(distdb.Dist, int64) {}
func (r *countingReporter) OnComplete(distdb.Dist, error) { r.completed++ }

func TestPrepareFetchesEveryRemoteEntry(t *testing.T) {
	one := buildTestWheelBytes(t, "one-1.0.dist-info", "Metadata-Version: 2.1\nName: one\nVersion: 1.0\n")
	two := buildTestWheelBytes(t, "two-1.0.dist-info", "Metadata-Version: 2.1\nName: two\nVersion: 1.0\n")
	db := &distdb.DB{
		Cache: cache.NewBuckets(t.TempDir()),
		Index: &fakeIndex{bodies: map[string][]byte{
			"https://example.test/one-1.0-py3-none-any.whl": one,
			"https://example.test/two-1.0-py3-none-any.whl": two,
		}},
	}
	plan := &planner.Plan{Remote: []planner.Entry{
		{Kind: distdb.KindRegistry, Name: "one", File: simple.File{Filename: "one-1.0-py3-none-any.whl", URL: "https://example.test/one-1.0-py3-none-any.whl"}},
		{Kind: distdb.KindRegistry, Name: "two", File: simple.File{Filename: "two-1.0-py3-none-any.whl", URL: "https://example.test/two-1.0-py3-none-any.whl"}},
	}}
	reporter := &countingReporter{}
	prepared, err := Prepare(context.Background(), db, plan, nil, Concurrency{Downloads: 2, Builds: 1}, reporter)
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if len(prepared) != 2 {
		t.Fatalf("expected 2 prepared dists, got %d", len(prepared))
	}
	if reporter.started != 2 || reporter.completed != 2 {
		t.Fatalf("expected 2 start/complete events, got %d/%d", reporter.started, reporter.completed)
	}
}

func TestPrepareSurfacesFirstFailure(t *testing.T) {
	db := &distdb.DB{
		Cache:      cache.NewBuckets(t.TempDir()),
		AllowBuild: false,
	}
	plan := &planner.Plan{Remote: []planner.Entry{
		{Kind: distdb.KindURLSdist, Name: "broken", URL: "https://example.test/broken-1.0.tar.gz"},
	}}
	_, err := Prepare(context.Background(), db, plan, nil, Concurrency{Downloads: 1, Builds: 1}, nil)
	if err == nil {
		t.Fatal("expected an error from a build-disabled sdist entry")
	}
}

func TestPreparePassesThroughCachedEntriesUntouched(t *testing.T) {
	db := &distdb.DB{Cache: cache.NewBuckets(t.TempDir())}
	wheel := distdb.LocalWheel{Path: "/cache/archive/deadbeef", Filename: "cached-1.0-py3-none-any.whl"}
	plan := &planner.Plan{Cached: []planner.CachedEntry{
		{Entry: planner.Entry{Name: "cached"}, Wheel: wheel},
	}}
	prepared, err := Prepare(context.Background(), db, plan, nil, Concurrency{Downloads: 1, Builds: 1}, nil)
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if len(prepared) != 1 || prepared[0].Wheel.Path != wheel.Path {
		t.Fatalf("expected the cached wheel to pass through unchanged, got %+v", prepared)
	}
}
