// Copyright 2025 Google LLC
// SPDX-License-Identifier: Apache-2.0

package cache

import (
	"path/filepath"
	"testing"
)

func TestBucketDirAndPath(t *testing.T) {
	b := Bucket{Root: "/cache", Name: "wheels", Version: 2}
	if got, want := b.Dir(), filepath.Join("/cache", "wheels-v2"); got != want {
		t.Errorf("Dir() = %q, want %q", got, want)
	}
	if got, want := b.Path("pypi", "flask"), filepath.Join("/cache", "wheels-v2", "pypi", "flask"); got != want {
		t.Errorf("Path() = %q, want %q", got, want)
	}
}

func TestNewBucketsAll(t *testing.T) {
	b := NewBuckets("/cache")
	all := b.All()
	if len(all) != 8 {
		t.Fatalf("expected 8 buckets, got %d", len(all))
	}
	seen := map[string]bool{}
	for _, bucket := range all {
		seen[bucket.Name] = true
	}
	for _, want := range []string{"wheels", "sdists", "built-wheels", "simple", "archive", "interpreter", "environments", "git"} {
		if !seen[want] {
			t.Errorf("missing bucket %q", want)
		}
	}
}
